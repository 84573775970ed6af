package iam

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hashicorp/go-bexpr"
	"golang.org/x/crypto/bcrypt"

	"github.com/ssokit/ssoapi/internal/config"
	"github.com/ssokit/ssoapi/internal/db/bunx"
	"github.com/ssokit/ssoapi/internal/db/models"
	"github.com/ssokit/ssoapi/internal/repository"
)

// iamService implements the Service interface.
//
// This is the concrete implementation used throughout the codebase. It
// coordinates between repositories, the token authority, and the
// authenticator implementations.
type iamService struct {
	// Repositories
	users        repository.UserRepository
	permissions  repository.PermissionRepository
	revocations  repository.RevocationRepository
	applications repository.ApplicationRepository
	oauthTokens  repository.OAuthTokenRepository

	// Token authority (the only component touching the signing secret)
	authority *TokenAuthority

	// Authenticators, tried in order
	authenticators []Authenticator
}

// Dependencies contains all dependencies for IAM service construction.
//
// This struct is used for dependency injection, making it easy to:
//   - Test with mocks
//   - Swap implementations
//   - Add new dependencies without breaking existing code
type Dependencies struct {
	Users        repository.UserRepository
	Permissions  repository.PermissionRepository
	Revocations  repository.RevocationRepository
	Applications repository.ApplicationRepository
	OAuthTokens  repository.OAuthTokenRepository
}

// NewService creates a new IAM service with all dependencies.
//
// This constructor initializes the TokenAuthority from the auth config and
// registers both authenticators. The session token authenticator comes
// first: both credential types share the Authorization header, and session
// tokens fall through to the OAuth authenticator when they do not parse as
// ours.
func NewService(deps Dependencies, cfg *config.Config) (Service, error) {
	authority := NewTokenAuthority(cfg.Auth, deps.Users, deps.Permissions, deps.Revocations)

	oauthAuth, err := NewOAuthAuthenticator(cfg, deps.Users, deps.Permissions, deps.OAuthTokens)
	if err != nil {
		return nil, fmt.Errorf("initialize oauth authenticator: %w", err)
	}

	return &iamService{
		users:        deps.Users,
		permissions:  deps.Permissions,
		revocations:  deps.Revocations,
		applications: deps.Applications,
		oauthTokens:  deps.OAuthTokens,
		authority:    authority,
		authenticators: []Authenticator{
			NewSessionTokenAuthenticator(authority),
			oauthAuth,
		},
	}, nil
}

// =========================================================================
// Authentication
// =========================================================================

// AuthenticateRequest tries all authenticators in priority order.
func (s *iamService) AuthenticateRequest(ctx context.Context, req AuthRequest) (*Principal, error) {
	for _, authenticator := range s.authenticators {
		principal, err := authenticator.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if principal != nil {
			return principal, nil
		}
	}

	// No authenticator found credentials (unauthenticated request)
	return nil, nil
}

// Authority returns the token authority.
func (s *iamService) Authority() *TokenAuthority {
	return s.authority
}

// =========================================================================
// Session Lifecycle
// =========================================================================

// Register creates a user with an empty permission row and issues a pair.
func (s *iamService) Register(ctx context.Context, username, email, password string) (*models.User, *TokenPair, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, nil, fmt.Errorf("username, email and password are required")
	}

	if taken, err := s.users.ExistsByUsername(ctx, username); err != nil {
		return nil, nil, fmt.Errorf("check username: %w", err)
	} else if taken {
		return nil, nil, ErrDuplicateUser
	}
	if taken, err := s.users.ExistsByEmail(ctx, email); err != nil {
		return nil, nil, fmt.Errorf("check email: %w", err)
	} else if taken {
		return nil, nil, ErrDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	// Every principal gets a permission row at registration, created empty.
	perm := &models.Permission{ID: bunx.NewUUIDv7()}
	if err := s.permissions.Create(ctx, perm); err != nil {
		return nil, nil, fmt.Errorf("create permission: %w", err)
	}

	user := &models.User{
		ID:           bunx.NewUUIDv7(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		PermissionID: &perm.ID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Nothing references the permission row yet; drop it so a failed
		// insert leaves no orphan behind.
		_ = s.permissions.Delete(ctx, perm.ID)

		// Unique constraint race between the exists check and the insert.
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return nil, nil, ErrDuplicateUser
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.authority.Issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies the password and issues a fresh pair. The identifier may
// be a username or an email address.
func (s *iamService) Login(ctx context.Context, username, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil && isNotFound(err) && strings.Contains(username, "@") {
		user, err = s.users.GetByEmail(ctx, username)
	}
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	if !user.Active() {
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, nil, fmt.Errorf("update last login: %w", err)
	}

	pair, err := s.authority.Issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout revokes the user's session via the token authority.
func (s *iamService) Logout(ctx context.Context, userID, refreshToken string) error {
	return s.authority.RevokeSession(ctx, userID, refreshToken)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *iamService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	principal, _, err := s.authority.Verify(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, principal.Subject)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	return s.authority.Issue(user)
}

// =========================================================================
// Self-Service
// =========================================================================

// ChangePassword verifies the old password before setting the new one.
func (s *iamService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("new password is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.users.SetPasswordHash(ctx, userID, string(hash))
}

// ChangeEmail updates the user's email address.
func (s *iamService) ChangeEmail(ctx context.Context, userID, newEmail string) error {
	newEmail = strings.TrimSpace(newEmail)
	if newEmail == "" || !strings.Contains(newEmail, "@") {
		return fmt.Errorf("valid email is required")
	}

	if taken, err := s.users.ExistsByEmail(ctx, newEmail); err != nil {
		return fmt.Errorf("check email: %w", err)
	} else if taken {
		return ErrDuplicateUser
	}

	return s.users.SetEmail(ctx, userID, newEmail)
}

// GetUserByID retrieves a user by internal ID.
func (s *iamService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// GetPermission loads the user's permission row, or a zero-value row when
// the user has none.
func (s *iamService) GetPermission(ctx context.Context, user *models.User) (*models.Permission, error) {
	if user.PermissionID == nil {
		return &models.Permission{}, nil
	}
	perm, err := s.permissions.GetByID(ctx, *user.PermissionID)
	if err != nil {
		if isNotFound(err) {
			return &models.Permission{}, nil
		}
		return nil, err
	}
	return perm, nil
}

// =========================================================================
// User Management (Admin Operations)
// =========================================================================

// CreateUser creates a user with explicit permission flags.
func (s *iamService) CreateUser(ctx context.Context, username, email, password string, adminUser, createApplications bool) (*models.User, error) {
	user, _, err := s.Register(ctx, username, email, password)
	if err != nil {
		return nil, err
	}

	if adminUser || createApplications {
		perm, err := s.permissions.GetByID(ctx, *user.PermissionID)
		if err != nil {
			return nil, fmt.Errorf("load permission: %w", err)
		}
		perm.AdminUser = adminUser
		perm.CreateApplications = createApplications
		if err := s.permissions.Update(ctx, perm); err != nil {
			return nil, fmt.Errorf("update permission: %w", err)
		}
	}

	return user, nil
}

// userFilterFields is the projection ListUsers filters evaluate against.
type userFilterFields struct {
	Username           string `bexpr:"username"`
	Email              string `bexpr:"email"`
	Active             bool   `bexpr:"active"`
	AdminUser          bool   `bexpr:"admin_user"`
	CreateApplications bool   `bexpr:"create_applications"`
}

// ListUsers returns all users, optionally narrowed by a bexpr filter.
func (s *iamService) ListUsers(ctx context.Context, filter string) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	if filter == "" {
		return users, nil
	}

	evaluator, err := bexpr.CreateEvaluator(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	matched := make([]models.User, 0, len(users))
	for i := range users {
		user := &users[i]

		perm, err := s.GetPermission(ctx, user)
		if err != nil {
			return nil, err
		}

		ok, err := evaluator.Evaluate(userFilterFields{
			Username:           user.Username,
			Email:              user.Email,
			Active:             user.Active(),
			AdminUser:          perm.AdminUser,
			CreateApplications: perm.CreateApplications,
		})
		if err != nil {
			return nil, fmt.Errorf("evaluate filter: %w", err)
		}
		if ok {
			matched = append(matched, *user)
		}
	}

	return matched, nil
}

// SearchUsers matches the query as a substring of username or email.
func (s *iamService) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.users.List(ctx)
	}
	return s.users.Search(ctx, query)
}

// UpdateUser applies an admin update.
func (s *iamService) UpdateUser(ctx context.Context, userID string, params UpdateUserParams) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if params.Email != nil && *params.Email != user.Email {
		if err := s.ChangeEmail(ctx, userID, *params.Email); err != nil {
			return nil, err
		}
		user.Email = *params.Email
	}

	if params.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.users.SetPasswordHash(ctx, userID, string(hash)); err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	if params.Active != nil {
		if *params.Active {
			user.DisabledAt = nil
			if err := s.users.Update(ctx, user); err != nil {
				return nil, err
			}
		} else if user.DisabledAt == nil {
			if err := s.users.Disable(ctx, userID); err != nil {
				return nil, err
			}
			now := time.Now()
			user.DisabledAt = &now
		}
	}

	if params.AdminUser != nil || params.CreateApplications != nil {
		if err := s.setPermissionFlags(ctx, user, params.AdminUser, params.CreateApplications); err != nil {
			return nil, err
		}
	}

	return user, nil
}

// setPermissionFlags updates the user's permission row, creating it on
// demand for users registered before permission rows became mandatory.
func (s *iamService) setPermissionFlags(ctx context.Context, user *models.User, adminUser, createApplications *bool) error {
	var perm *models.Permission

	if user.PermissionID != nil {
		existing, err := s.permissions.GetByID(ctx, *user.PermissionID)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("load permission: %w", err)
		}
		perm = existing
	}

	if perm == nil {
		perm = &models.Permission{ID: bunx.NewUUIDv7()}
		if err := s.permissions.Create(ctx, perm); err != nil {
			return fmt.Errorf("create permission: %w", err)
		}
		user.PermissionID = &perm.ID
		if err := s.users.Update(ctx, user); err != nil {
			return fmt.Errorf("link permission: %w", err)
		}
	}

	if adminUser != nil {
		perm.AdminUser = *adminUser
	}
	if createApplications != nil {
		perm.CreateApplications = *createApplications
	}

	return s.permissions.Update(ctx, perm)
}

// DisableUser sets users.disabled_at.
func (s *iamService) DisableUser(ctx context.Context, userID string) error {
	return s.users.Disable(ctx, userID)
}

// =========================================================================
// OAuth2 Application Management
// =========================================================================

// CreateApplication registers an OAuth2 client application. Generates the
// client credentials, hashes the secret with bcrypt, and persists the
// record. Returns the application and the unhashed secret (caller must save
// it - it won't be shown again).
func (s *iamService) CreateApplication(ctx context.Context, name string, redirectURIs []string, createdBy string) (*models.Application, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", fmt.Errorf("application name is required")
	}
	if len(redirectURIs) == 0 {
		return nil, "", fmt.Errorf("at least one redirect URI is required")
	}
	for _, uri := range redirectURIs {
		if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
			return nil, "", fmt.Errorf("invalid redirect URI: %s", uri)
		}
	}

	clientID, err := generateCredential(16)
	if err != nil {
		return nil, "", fmt.Errorf("generate client id: %w", err)
	}
	clientSecret, err := generateCredential(32)
	if err != nil {
		return nil, "", fmt.Errorf("generate client secret: %w", err)
	}

	hashedSecret, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash client secret: %w", err)
	}

	app := &models.Application{
		ID:               bunx.NewUUIDv7(),
		ClientID:         clientID,
		ClientSecretHash: string(hashedSecret),
		Name:             name,
		RedirectURIs:     models.StringList(redirectURIs),
		CreatedBy:        createdBy,
	}

	if err := s.applications.Create(ctx, app); err != nil {
		return nil, "", fmt.Errorf("create application: %w", err)
	}

	return app, clientSecret, nil
}

// ListApplications returns registered applications, optionally narrowed to
// one creator.
func (s *iamService) ListApplications(ctx context.Context, createdBy string) ([]models.Application, error) {
	if createdBy != "" {
		return s.applications.ListByCreator(ctx, createdBy)
	}
	return s.applications.List(ctx)
}

// GetApplicationByClientID retrieves an application by its client identifier.
func (s *iamService) GetApplicationByClientID(ctx context.Context, clientID string) (*models.Application, error) {
	return s.applications.GetByClientID(ctx, clientID)
}

// DeleteApplication removes an application.
func (s *iamService) DeleteApplication(ctx context.Context, id string) error {
	return s.applications.Delete(ctx, id)
}

// AuthenticateClient verifies an application's client secret.
func (s *iamService) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (*models.Application, error) {
	app, err := s.applications.GetByClientID(ctx, clientID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load application: %w", err)
	}

	if app.Disabled {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(app.ClientSecretHash), []byte(clientSecret)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return app, nil
}

// generateCredential returns n random bytes base58-encoded, which keeps
// client credentials copy-paste safe (no ambiguous characters, no URL
// escaping).
func generateCredential(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base58.Encode(buf), nil
}
