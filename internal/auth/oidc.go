package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zitadel/oidc/v3/pkg/oidc"
	"github.com/zitadel/oidc/v3/pkg/op"

	"github.com/ssokit/ssoapi/internal/config"
	"github.com/ssokit/ssoapi/internal/db/bunx"
	"github.com/ssokit/ssoapi/internal/db/models"
	"github.com/ssokit/ssoapi/internal/repository"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

var (
	// ErrOIDCDisabled is returned when OIDC configuration is incomplete.
	ErrOIDCDisabled = errors.New("oidc provider disabled")
)

const (
	defaultAccessTokenTTL  = 60 * time.Minute
	defaultRefreshTokenTTL = 24 * time.Hour
	defaultIDTokenTTL      = 15 * time.Minute

	// Pending auth requests and provider refresh tokens live in bounded
	// in-process caches. An evicted entry just forces the client through
	// the flow again.
	authRequestCacheSize  = 4096
	authRequestTTL        = 15 * time.Minute
	refreshTokenCacheSize = 16384
)

// ProviderDependencies holds the collaborators required by the OIDC storage
// adapter.
type ProviderDependencies struct {
	IAM          iam.Service
	Users        repository.UserRepository
	Applications repository.ApplicationRepository
	OAuthTokens  repository.OAuthTokenRepository
}

// Provider exposes the server-side OIDC endpoints wired through zitadel/oidc.
type Provider struct {
	Router  chi.Router
	Storage *ProviderStorage
}

// loadOrGenerateSigningKey loads an RSA private key and its ID from disk, or generates and saves them if they don't exist.
// Returns the private key and the key ID (kid).
func loadOrGenerateSigningKey(keyPath string) (*rsa.PrivateKey, string, error) {
	// If keyPath is empty, we must generate a new key every time (not ideal but acceptable for dev)
	if keyPath == "" {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		return key, uuid.NewString(), err
	}

	keyIDPath := keyPath + ".kid"

	// Try to load existing key from disk
	keyData, err := os.ReadFile(keyPath)
	if err == nil {
		// Parse PEM-encoded private key
		block, _ := pem.Decode(keyData)
		if block == nil || block.Type != "RSA PRIVATE KEY" {
			return nil, "", fmt.Errorf("invalid PEM block in signing key")
		}
		privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, "", fmt.Errorf("parse signing key: %w", err)
		}

		// Load the key ID
		keyIDData, err := os.ReadFile(keyIDPath)
		if err != nil {
			return nil, "", fmt.Errorf("read key ID file: %w", err)
		}
		keyID := strings.TrimSpace(string(keyIDData))
		if keyID == "" {
			return nil, "", fmt.Errorf("key ID file is empty")
		}

		return privateKey, keyID, nil
	}

	// Generate new key if file doesn't exist
	if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("read signing key file: %w", err)
	}

	// Generate new 2048-bit RSA key
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, "", fmt.Errorf("generate signing key: %w", err)
	}

	// Generate a stable key ID
	keyID := uuid.NewString()

	// Save key to disk so tokens remain valid across restarts
	keyBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: keyBytes,
	})

	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return nil, "", fmt.Errorf("save signing key to disk: %w", err)
	}

	// Save key ID to disk
	if err := os.WriteFile(keyIDPath, []byte(keyID), 0600); err != nil {
		return nil, "", fmt.Errorf("save key ID to disk: %w", err)
	}

	return privateKey, keyID, nil
}

// NewOIDCProvider builds an OpenID provider instance when OIDC is enabled.
func NewOIDCProvider(ctx context.Context, cfg config.OIDCConfig, deps ProviderDependencies) (*Provider, error) {
	if cfg.Issuer == "" {
		return nil, ErrOIDCDisabled
	}
	if deps.IAM == nil || deps.Users == nil || deps.Applications == nil || deps.OAuthTokens == nil {
		return nil, fmt.Errorf("oidc storage dependencies incomplete")
	}

	storage, err := NewProviderStorage(deps, cfg.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("initialise oidc storage: %w", err)
	}

	opConfig := &op.Config{
		CodeMethodS256:        true,
		AuthMethodPost:        true,
		GrantTypeRefreshToken: true,
		SupportedScopes: []string{
			oidc.ScopeOpenID,
			oidc.ScopeOfflineAccess,
			iam.ScopeUsername,
			iam.ScopeEmail,
			iam.ScopePermissions,
		},
		SupportedClaims:          op.DefaultSupportedClaims,
		DefaultLogoutRedirectURI: "",
	}

	provider, err := op.NewProvider(opConfig, storage, op.StaticIssuer(cfg.Issuer), op.WithAllowInsecure())
	if err != nil {
		return nil, err
	}

	storage.setIssuer(cfg.Issuer)

	return &Provider{
		Router:  op.CreateRouter(provider),
		Storage: storage,
	}, nil
}

// Handler exposes the chi.Router handling the OIDC endpoints.
func (p *Provider) Handler() chi.Router {
	return p.Router
}

// ProviderStorage implements op.Storage on top of the application and
// issued-token repositories.
//
// Pending auth requests, authorization codes, and provider refresh tokens
// are process-local state held in expiring caches; issued access tokens are
// persisted so the userinfo path and revocation survive across instances.
type ProviderStorage struct {
	iamService   iam.Service
	users        repository.UserRepository
	applications repository.ApplicationRepository
	oauthTokens  repository.OAuthTokenRepository

	authRequests  *expirable.LRU[string, *authRequest]
	authCodes     *expirable.LRU[string, string] // code → auth request id
	refreshTokens *expirable.LRU[string, *refreshToken]

	signingKey *rsaSigningKey
	issuer     string
}

func (s *ProviderStorage) setIssuer(issuer string) {
	s.issuer = issuer
}

// NewProviderStorage builds the op.Storage adapter, loading or generating
// the RSA signing key.
func NewProviderStorage(deps ProviderDependencies, keyPath string) (*ProviderStorage, error) {
	privateKey, keyID, err := loadOrGenerateSigningKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("load or generate signing key: %w", err)
	}

	return &ProviderStorage{
		iamService:    deps.IAM,
		users:         deps.Users,
		applications:  deps.Applications,
		oauthTokens:   deps.OAuthTokens,
		authRequests:  expirable.NewLRU[string, *authRequest](authRequestCacheSize, nil, authRequestTTL),
		authCodes:     expirable.NewLRU[string, string](authRequestCacheSize, nil, authRequestTTL),
		refreshTokens: expirable.NewLRU[string, *refreshToken](refreshTokenCacheSize, nil, defaultRefreshTokenTTL),
		signingKey: &rsaSigningKey{
			id:        keyID,
			algorithm: jose.RS256,
			key:       privateKey,
		},
	}, nil
}

func (s *ProviderStorage) Health(context.Context) error {
	return nil
}

func (s *ProviderStorage) CreateAuthRequest(ctx context.Context, req *oidc.AuthRequest, userID string) (op.AuthRequest, error) {
	if len(req.Prompt) == 1 && req.Prompt[0] == string(oidc.PromptNone) {
		return nil, oidc.ErrLoginRequired()
	}

	// Grant-time scope validation: strict allow-list, protocol scopes aside.
	if err := iam.ValidateScopes(stripProtocolScopes(req.Scopes)); err != nil {
		return nil, oidc.ErrInvalidRequest().WithDescription("unsupported scope requested")
	}

	authReq := authRequestFromOIDC(req, userID)
	authReq.id = uuid.NewString()

	s.authRequests.Add(authReq.id, authReq)

	return authReq, nil
}

func (s *ProviderStorage) AuthRequestByID(ctx context.Context, id string) (op.AuthRequest, error) {
	req, ok := s.authRequests.Get(id)
	if !ok {
		return nil, fmt.Errorf("auth request %s not found", id)
	}
	return req, nil
}

func (s *ProviderStorage) AuthRequestByCode(ctx context.Context, code string) (op.AuthRequest, error) {
	id, ok := s.authCodes.Get(code)
	if !ok {
		return nil, fmt.Errorf("authorization code invalid")
	}
	req, ok := s.authRequests.Get(id)
	if !ok {
		return nil, fmt.Errorf("auth request %s not found", id)
	}
	return req, nil
}

func (s *ProviderStorage) SaveAuthCode(ctx context.Context, id string, code string) error {
	s.authCodes.Add(code, id)
	return nil
}

func (s *ProviderStorage) DeleteAuthRequest(ctx context.Context, id string) error {
	s.authRequests.Remove(id)
	for _, code := range s.authCodes.Keys() {
		if requestID, ok := s.authCodes.Peek(code); ok && requestID == id {
			s.authCodes.Remove(code)
		}
	}
	return nil
}

// FinalizeAuthRequest marks a pending auth request as authenticated. Called
// by the login form handler after the password check succeeds.
func (s *ProviderStorage) FinalizeAuthRequest(ctx context.Context, id string, userID string) error {
	req, ok := s.authRequests.Get(id)
	if !ok {
		return fmt.Errorf("auth request %s not found", id)
	}
	req.userID = userID
	req.authTime = time.Now()
	req.done = true
	return nil
}

func (s *ProviderStorage) createJWT(request op.TokenRequest, exp time.Time) (string, string, error) {
	jti := uuid.NewString()
	now := time.Now()

	claims := &oidc.IDTokenClaims{
		TokenClaims: oidc.TokenClaims{
			Issuer:     s.issuer,
			Subject:    request.GetSubject(),
			Audience:   oidc.Audience(request.GetAudience()),
			Expiration: oidc.FromTime(exp),
			IssuedAt:   oidc.FromTime(now),
			JWTID:      jti,
		},
		Claims: make(map[string]any),
	}

	key := &jose.JSONWebKey{Key: s.signingKey.key, Algorithm: string(s.signingKey.algorithm), KeyID: s.signingKey.id}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: s.signingKey.algorithm, Key: key}, nil)
	if err != nil {
		return "", "", err
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", "", err
	}
	return token, jti, nil
}

func (s *ProviderStorage) CreateAccessToken(ctx context.Context, request op.TokenRequest) (string, time.Time, error) {
	exp := time.Now().Add(defaultAccessTokenTTL)
	token, jti, err := s.createJWT(request, exp)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := s.persistIssuedToken(ctx, request, jti, exp); err != nil {
		return "", time.Time{}, err
	}

	return token, exp, nil
}

func (s *ProviderStorage) CreateAccessAndRefreshTokens(ctx context.Context, request op.TokenRequest, currentRefreshToken string) (string, string, time.Time, error) {
	// Refresh token rotation: the exchanged token dies with its access token.
	if currentRefreshToken != "" {
		if rt, ok := s.refreshTokens.Get(currentRefreshToken); ok {
			s.refreshTokens.Remove(currentRefreshToken)
			_ = s.revokeIssuedToken(ctx, rt.AccessTokenJTI)
		}
	}

	exp := time.Now().Add(defaultAccessTokenTTL)
	accessToken, jti, err := s.createJWT(request, exp)
	if err != nil {
		return "", "", time.Time{}, err
	}

	refreshID := uuid.NewString()
	rt := &refreshToken{
		ID:             refreshID,
		Token:          refreshID,
		AuthTime:       time.Now(),
		AMR:            getAMR(request),
		Audience:       request.GetAudience(),
		UserID:         request.GetSubject(),
		ApplicationID:  getClientID(request),
		Expiration:     time.Now().Add(defaultRefreshTokenTTL),
		Scopes:         request.GetScopes(),
		AccessTokenJTI: jti,
	}

	s.refreshTokens.Add(rt.ID, rt)

	if err := s.persistIssuedToken(ctx, request, jti, exp); err != nil {
		s.refreshTokens.Remove(rt.ID)
		return "", "", time.Time{}, err
	}

	return accessToken, rt.Token, exp, nil
}

func (s *ProviderStorage) TokenRequestByRefreshToken(ctx context.Context, token string) (op.RefreshTokenRequest, error) {
	rt, ok := s.refreshTokens.Get(token)
	if !ok {
		return nil, op.ErrInvalidRefreshToken
	}
	return refreshTokenRequestFromRefreshToken(rt), nil
}

func (s *ProviderStorage) TerminateSession(ctx context.Context, userID string, clientID string) error {
	return s.oauthTokens.RevokeByUserID(ctx, userID)
}

func (s *ProviderStorage) RevokeToken(ctx context.Context, tokenOrID string, userID string, clientID string) *oidc.Error {
	if rt, ok := s.refreshTokens.Get(tokenOrID); ok {
		if rt.ApplicationID != clientID {
			return oidc.ErrInvalidClient().WithDescription("token belongs to another client")
		}
		s.refreshTokens.Remove(tokenOrID)
		_ = s.revokeIssuedToken(ctx, rt.AccessTokenJTI)
		return nil
	}

	// Not a refresh token: treat it as an access token JTI. Revoking an
	// unknown token is a no-op per RFC 7009.
	_ = s.revokeIssuedToken(ctx, tokenOrID)

	return nil
}

func (s *ProviderStorage) GetRefreshTokenInfo(ctx context.Context, clientID string, token string) (string, string, error) {
	rt, ok := s.refreshTokens.Get(token)
	if !ok {
		return "", "", op.ErrInvalidRefreshToken
	}
	if rt.ApplicationID != clientID {
		return "", "", fmt.Errorf("token belongs to another client")
	}
	return rt.UserID, rt.ID, nil
}

func (s *ProviderStorage) SigningKey(ctx context.Context) (op.SigningKey, error) {
	return s.signingKey, nil
}

func (s *ProviderStorage) SignatureAlgorithms(context.Context) ([]jose.SignatureAlgorithm, error) {
	return []jose.SignatureAlgorithm{s.signingKey.algorithm}, nil
}

func (s *ProviderStorage) KeySet(ctx context.Context) ([]op.Key, error) {
	return []op.Key{&rsaPublicKey{signingKey: s.signingKey}}, nil
}

func (s *ProviderStorage) GetClientByClientID(ctx context.Context, clientID string) (op.Client, error) {
	app, err := s.applications.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if app.Disabled {
		return nil, fmt.Errorf("application is disabled")
	}
	return newApplicationClient(app), nil
}

func (s *ProviderStorage) AuthorizeClientIDSecret(ctx context.Context, clientID, clientSecret string) error {
	if _, err := s.iamService.AuthenticateClient(ctx, clientID, clientSecret); err != nil {
		return fmt.Errorf("invalid client secret")
	}
	return nil
}

func (s *ProviderStorage) SetUserinfoFromScopes(ctx context.Context, userInfo *oidc.UserInfo, userID, clientID string, scopes []string) error {
	return s.populateUserInfo(ctx, userInfo, userID, scopes)
}

func (s *ProviderStorage) SetUserinfoFromRequest(ctx context.Context, userInfo *oidc.UserInfo, token op.IDTokenRequest, scopes []string) error {
	return s.populateUserInfo(ctx, userInfo, token.GetSubject(), scopes)
}

func (s *ProviderStorage) SetUserinfoFromToken(ctx context.Context, userInfo *oidc.UserInfo, tokenID, subject, clientID string) error {
	record, err := s.oauthTokens.GetByJTIHash(ctx, iam.HashToken(tokenID))
	if err != nil {
		return err
	}
	if record.Revoked {
		return errors.New("token is revoked")
	}
	if record.ExpiresAt.Before(time.Now()) {
		return errors.New("token is expired")
	}
	// The persisted record carries the scopes granted at authorization
	// time, so userinfo returns exactly what the ID token would.
	return s.populateUserInfo(ctx, userInfo, subject, record.Scopes)
}

func (s *ProviderStorage) SetIntrospectionFromToken(ctx context.Context, resp *oidc.IntrospectionResponse, tokenID, subject, clientID string) error {
	record, err := s.oauthTokens.GetByJTIHash(ctx, iam.HashToken(tokenID))
	if err != nil {
		if isNotFoundError(err) {
			resp.Active = false
			return nil
		}
		return err
	}
	if record.Revoked {
		resp.Active = false
		return nil
	}

	resp.Active = time.Now().Before(record.ExpiresAt)
	resp.Subject = subject
	resp.ClientID = clientID
	resp.JWTID = tokenID
	resp.Scope = oidc.SpaceDelimitedArray(record.Scopes)
	resp.Expiration = oidc.FromTime(record.ExpiresAt)
	resp.IssuedAt = oidc.FromTime(record.CreatedAt)

	return nil
}

// GetPrivateClaimsFromScopes is the ID-token claims hook. It returns the
// claim resolver's output verbatim, minus the registered sub claim the
// library sets itself.
func (s *ProviderStorage) GetPrivateClaimsFromScopes(ctx context.Context, userID, clientID string, scopes []string) (map[string]any, error) {
	principal, err := s.principalByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	claims := iam.ResolveClaims(principal, scopes)
	delete(claims, "sub")
	if len(claims) == 0 {
		return nil, nil
	}
	return claims, nil
}

func (s *ProviderStorage) GetKeyByIDAndClientID(context.Context, string, string) (*jose.JSONWebKey, error) {
	return nil, fmt.Errorf("client keys not supported")
}

func (s *ProviderStorage) ValidateJWTProfileScopes(context.Context, string, []string) ([]string, error) {
	return []string{oidc.ScopeOpenID}, nil
}

// --- helpers and internal types ---

type authRequest struct {
	*oidc.AuthRequest
	id           string
	userID       string
	createdAt    time.Time
	authTime     time.Time
	sessionState string
	done         bool
}

func authRequestFromOIDC(req *oidc.AuthRequest, userID string) *authRequest {
	return &authRequest{
		AuthRequest: req,
		userID:      userID,
		createdAt:   time.Now(),
		authTime:    time.Now(),
	}
}

func (a *authRequest) GetID() string {
	return a.id
}

func (a *authRequest) GetACR() string {
	return ""
}

func (a *authRequest) GetAMR() []string {
	if a.done {
		return []string{"pwd"}
	}
	return nil
}

func (a *authRequest) GetAudience() []string {
	return []string{a.ClientID}
}

func (a *authRequest) GetAuthTime() time.Time {
	return a.authTime
}

func (a *authRequest) GetClientID() string {
	return a.ClientID
}

func (a *authRequest) GetCodeChallenge() *oidc.CodeChallenge {
	if a.CodeChallenge == "" {
		return nil
	}
	return &oidc.CodeChallenge{
		Challenge: a.CodeChallenge,
		Method:    a.CodeChallengeMethod,
	}
}

func (a *authRequest) GetSubject() string {
	return a.userID
}

func (a *authRequest) Done() bool {
	return a.done
}

func (a *authRequest) GetNonce() string {
	return a.Nonce
}

func (a *authRequest) GetScopes() []string {
	return append([]string{}, a.AuthRequest.Scopes...)
}

func (a *authRequest) GetResponseType() oidc.ResponseType {
	return a.AuthRequest.ResponseType
}

func (a *authRequest) GetResponseMode() oidc.ResponseMode {
	return a.AuthRequest.ResponseMode
}

func (a *authRequest) GetState() string {
	return a.AuthRequest.State
}

func (a *authRequest) GetRedirectURI() string {
	return a.AuthRequest.RedirectURI
}

type refreshToken struct {
	ID             string
	Token          string
	AuthTime       time.Time
	AMR            []string
	Audience       []string
	UserID         string
	ApplicationID  string
	Expiration     time.Time
	Scopes         []string
	AccessTokenJTI string
}

// populateUserInfo fills the userinfo response from the claim resolver.
func (s *ProviderStorage) populateUserInfo(ctx context.Context, info *oidc.UserInfo, userID string, scopes []string) error {
	principal, err := s.principalByID(ctx, userID)
	if err != nil {
		return err
	}

	claims := iam.ResolveClaims(principal, scopes)

	info.Subject = principal.Subject
	if email, ok := claims["email"].(string); ok {
		info.Email = email
	}
	if username, ok := claims["username"].(string); ok {
		info.PreferredUsername = username
	}
	if perms, ok := claims["permissions"]; ok {
		if info.Claims == nil {
			info.Claims = make(map[string]any)
		}
		info.Claims["permissions"] = perms
	}
	return nil
}

// principalByID loads the user and permission row into an iam.Principal for
// claim resolution.
func (s *ProviderStorage) principalByID(ctx context.Context, userID string) (*iam.Principal, error) {
	user, err := s.iamService.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	perm, err := s.iamService.GetPermission(ctx, user)
	if err != nil {
		return nil, err
	}
	return &iam.Principal{
		Subject:            user.ID,
		Username:           user.Username,
		Email:              user.Email,
		AdminUser:          perm.AdminUser,
		CreateApplications: perm.CreateApplications,
		AuthMethod:         iam.AuthMethodOAuth,
	}, nil
}

type rsaSigningKey struct {
	id        string
	algorithm jose.SignatureAlgorithm
	key       *rsa.PrivateKey
}

func (k *rsaSigningKey) SignatureAlgorithm() jose.SignatureAlgorithm {
	return k.algorithm
}

func (k *rsaSigningKey) Key() any {
	return k.key
}

func (k *rsaSigningKey) ID() string {
	return k.id
}

type rsaPublicKey struct {
	signingKey *rsaSigningKey
}

func (k *rsaPublicKey) ID() string {
	return k.signingKey.id
}

func (k *rsaPublicKey) Algorithm() jose.SignatureAlgorithm {
	return k.signingKey.algorithm
}

func (k *rsaPublicKey) Use() string {
	return "sig"
}

func (k *rsaPublicKey) Key() any {
	return &k.signingKey.key.PublicKey
}

// applicationClient adapts a registered application to op.Client.
type applicationClient struct {
	id           string
	redirectURIs []string
}

func newApplicationClient(app *models.Application) op.Client {
	return &applicationClient{
		id:           app.ClientID,
		redirectURIs: append([]string(nil), app.RedirectURIs...),
	}
}

func (c *applicationClient) GetID() string {
	return c.id
}

func (c *applicationClient) RedirectURIs() []string {
	return c.redirectURIs
}

func (c *applicationClient) PostLogoutRedirectURIs() []string {
	return nil
}

func (c *applicationClient) ApplicationType() op.ApplicationType {
	return op.ApplicationTypeWeb
}

func (c *applicationClient) AuthMethod() oidc.AuthMethod {
	return oidc.AuthMethodPost
}

func (c *applicationClient) ResponseTypes() []oidc.ResponseType {
	return []oidc.ResponseType{oidc.ResponseTypeCode}
}

func (c *applicationClient) GrantTypes() []oidc.GrantType {
	return []oidc.GrantType{
		oidc.GrantTypeCode,
		oidc.GrantTypeRefreshToken,
	}
}

func (c *applicationClient) LoginURL(requestID string) string {
	return "/oauth/login?id=" + requestID
}

func (c *applicationClient) AccessTokenType() op.AccessTokenType {
	return op.AccessTokenTypeJWT
}

func (c *applicationClient) IDTokenLifetime() time.Duration {
	return defaultIDTokenTTL
}

func (c *applicationClient) DevMode() bool {
	return false
}

func (c *applicationClient) RestrictAdditionalIdTokenScopes() func(scopes []string) []string {
	return func(scopes []string) []string { return scopes }
}

func (c *applicationClient) RestrictAdditionalAccessTokenScopes() func(scopes []string) []string {
	return func(scopes []string) []string { return scopes }
}

func (c *applicationClient) IsScopeAllowed(scope string) bool {
	if scope == oidc.ScopeOpenID || scope == oidc.ScopeOfflineAccess {
		return true
	}
	return iam.ValidateScopes([]string{scope}) == nil
}

func (c *applicationClient) IDTokenUserinfoClaimsAssertion() bool {
	return false
}

func (c *applicationClient) ClockSkew() time.Duration {
	return 0
}

type refreshTokenRequest struct {
	token  *refreshToken
	scopes []string
}

func refreshTokenRequestFromRefreshToken(token *refreshToken) *refreshTokenRequest {
	return &refreshTokenRequest{
		token:  token,
		scopes: append([]string{}, token.Scopes...),
	}
}

func (r *refreshTokenRequest) GetScopes() []string {
	return r.scopes
}

func (r *refreshTokenRequest) GetAudience() []string {
	return r.token.Audience
}

func (r *refreshTokenRequest) GetSubject() string {
	return r.token.UserID
}

func (r *refreshTokenRequest) GetAMR() []string {
	return r.token.AMR
}

func (r *refreshTokenRequest) GetAuthTime() time.Time {
	return r.token.AuthTime
}

func (r *refreshTokenRequest) GetClientID() string {
	return r.token.ApplicationID
}

func (r *refreshTokenRequest) SetCurrentScopes(scopes []string) {
	if scopes == nil {
		r.scopes = append([]string{}, r.token.Scopes...)
		return
	}
	r.scopes = append([]string{}, scopes...)
}

func getAMR(request op.TokenRequest) []string {
	if authReq, ok := request.(op.AuthRequest); ok {
		return authReq.GetAMR()
	}
	return nil
}

func getClientID(request op.TokenRequest) string {
	if authReq, ok := request.(op.AuthRequest); ok {
		return authReq.GetClientID()
	}
	if rtReq, ok := request.(*refreshTokenRequest); ok {
		return rtReq.token.ApplicationID
	}
	return ""
}

// persistIssuedToken records an issued access token so userinfo,
// introspection, and revocation can recover its state after this process
// forgets the in-memory flow.
func (s *ProviderStorage) persistIssuedToken(ctx context.Context, request op.TokenRequest, jti string, expiresAt time.Time) error {
	subject := strings.TrimSpace(request.GetSubject())
	if subject == "" {
		return fmt.Errorf("token request has no subject")
	}

	if _, err := s.users.GetByID(ctx, subject); err != nil {
		return fmt.Errorf("lookup user %s: %w", subject, err)
	}

	record := &models.OAuthToken{
		ID:        bunx.NewUUIDv7(),
		JTIHash:   iam.HashToken(jti),
		UserID:    subject,
		ClientID:  getClientID(request),
		Scopes:    models.StringList(request.GetScopes()),
		ExpiresAt: expiresAt,
	}

	if err := s.oauthTokens.Create(ctx, record); err != nil {
		return fmt.Errorf("persist issued token: %w", err)
	}
	return nil
}

// revokeIssuedToken marks an issued access token revoked by its JTI.
func (s *ProviderStorage) revokeIssuedToken(ctx context.Context, jti string) error {
	record, err := s.oauthTokens.GetByJTIHash(ctx, iam.HashToken(jti))
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return err
	}
	return s.oauthTokens.Revoke(ctx, record.ID)
}

// stripProtocolScopes removes the OAuth2/OIDC machinery scopes before the
// strict claim-scope validation.
func stripProtocolScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if scope == oidc.ScopeOpenID || scope == oidc.ScopeOfflineAccess {
			continue
		}
		out = append(out, scope)
	}
	return out
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "not found")
}
