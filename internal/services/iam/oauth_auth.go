package iam

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/ssokit/ssoapi/internal/config"
	"github.com/ssokit/ssoapi/internal/repository"
)

// OAuthAuthenticator authenticates requests carrying an access token issued
// by the embedded OAuth2 provider (RS256, verified against the provider's
// own JWKS).
//
// Flow:
//  1. Extract "Authorization: Bearer <token>" header
//  2. Return (nil, nil) if not present
//  3. Verify signature and expiry against the provider JWKS
//  4. Look up the issued-token record by jti hash (revocation + scopes)
//  5. Resolve the live user and permission row
//  6. Construct a Principal carrying the granted scopes
//
// This authenticator is stateless and thread-safe.
type OAuthAuthenticator struct {
	tokenHandler *oidctoken.TokenHandler[map[string]any]
	users        repository.UserRepository
	permissions  repository.PermissionRepository
	oauthTokens  repository.OAuthTokenRepository
}

// oauthTokenClaims is the subset of access token claims this authenticator
// consumes, decoded from the verified claim map.
type oauthTokenClaims struct {
	Subject string `mapstructure:"sub"`
	JTI     string `mapstructure:"jti"`
}

// NewOAuthAuthenticator creates an authenticator for provider-issued access
// tokens.
//
// The JWKS is lazy-loaded because the provider and this verifier live in the
// same process: an eager fetch at construction time would race server
// startup.
func NewOAuthAuthenticator(
	cfg *config.Config,
	users repository.UserRepository,
	permissions repository.PermissionRepository,
	oauthTokens repository.OAuthTokenRepository,
) (*OAuthAuthenticator, error) {
	tokenHandler, err := oidctoken.New[map[string]any](nil,
		options.WithIssuer(cfg.OIDC.Issuer),
		options.WithLazyLoadJwks(true),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize oidc token handler: %w", err)
	}

	return &OAuthAuthenticator{
		tokenHandler: tokenHandler,
		users:        users,
		permissions:  permissions,
		oauthTokens:  oauthTokens,
	}, nil
}

// Authenticate extracts and validates a provider-issued access token.
//
// Returns:
//   - (nil, nil) if no bearer token is present
//   - (nil, error) if verification fails (bad signature, revoked, expired)
//   - (*Principal, nil) if authentication succeeds
func (a *OAuthAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	raw := BearerToken(req.Headers.Get("Authorization"))
	if raw == "" {
		// No credentials for this authenticator, try next
		return nil, nil
	}

	claimMap, err := a.tokenHandler.ParseToken(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims oauthTokenClaims
	if err := mapstructure.Decode(claimMap, &claims); err != nil {
		return nil, fmt.Errorf("decode token claims: %w", err)
	}
	if claims.Subject == "" || claims.JTI == "" {
		return nil, ErrMalformed
	}

	// The issued-token record is the revocation authority for OAuth tokens
	// and carries the scopes granted at authorization time.
	record, err := a.oauthTokens.GetByJTIHash(ctx, HashToken(claims.JTI))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTokenRevoked
		}
		return nil, fmt.Errorf("load token record: %w", err)
	}
	if record.Revoked {
		return nil, ErrTokenRevoked
	}
	if record.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpired
	}
	if record.UserID != claims.Subject {
		return nil, ErrMalformed
	}

	user, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPrincipalInactive
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Active() {
		return nil, ErrPrincipalInactive
	}

	principal := &Principal{
		Subject:    user.ID,
		Username:   user.Username,
		Email:      user.Email,
		AuthMethod: AuthMethodOAuth,
		Scopes:     []string(record.Scopes),
	}

	if user.PermissionID != nil {
		perm, err := a.permissions.GetByID(ctx, *user.PermissionID)
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("load permission: %w", err)
		}
		if err == nil {
			principal.AdminUser = perm.AdminUser
			principal.CreateApplications = perm.CreateApplications
		}
	}

	return principal, nil
}
