package iam

import (
	"context"

	"github.com/ssokit/ssoapi/internal/db/models"
)

// Service provides all identity and access management operations.
//
// This service centralizes:
//   - Authentication (request path - performance critical)
//   - Session lifecycle (login/logout/refresh via the TokenAuthority)
//   - Self-service account operations (settings API)
//   - User management (admin operations)
//   - OAuth2 application management
type Service interface {
	// =========================================================================
	// Authentication (Request Path - Performance Critical)
	// =========================================================================

	// AuthenticateRequest tries all registered authenticators in order.
	// Returns the first successful Principal, or nil if none succeed.
	//
	// Authenticators are tried in priority order:
	//  1. SessionTokenAuthenticator (self-issued epoch tokens)
	//  2. OAuthAuthenticator (provider-issued access tokens)
	//
	// Returns:
	//   - (principal, nil): Authentication successful
	//   - (nil, nil): No valid credentials found (unauthenticated request)
	//   - (nil, error): Authentication failed (invalid credentials)
	AuthenticateRequest(ctx context.Context, req AuthRequest) (*Principal, error)

	// Authority exposes the token authority for callers that need direct
	// token operations (the OIDC login flow verifies passwords, the CLI
	// mints pairs for testing).
	Authority() *TokenAuthority

	// =========================================================================
	// Session Lifecycle (Control Plane)
	// =========================================================================

	// Register creates a user with an empty permission row and returns a
	// freshly issued token pair. Returns ErrDuplicateUser when the username
	// or email is taken.
	Register(ctx context.Context, username, email, password string) (*models.User, *TokenPair, error)

	// Login verifies the password and returns a freshly issued token pair.
	// The identifier may be a username or an email address. Returns
	// ErrInvalidCredentials on unknown user, wrong password, or a disabled
	// account; callers must not distinguish the three.
	Login(ctx context.Context, username, password string) (*models.User, *TokenPair, error)

	// Logout revokes the user's session: one transaction denylists the
	// presented refresh token and bumps the session epoch, invalidating
	// every outstanding token. A bad refresh token is reported as an error
	// AFTER the epoch bump has committed.
	Logout(ctx context.Context, userID, refreshToken string) error

	// Refresh exchanges a valid refresh token for a new pair. The epoch is
	// unchanged; the old refresh token stays usable until logout or expiry.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	// =========================================================================
	// Self-Service (Settings API)
	// =========================================================================

	// ChangePassword verifies the old password before setting the new one.
	// Returns ErrInvalidCredentials when the old password is wrong.
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error

	// ChangeEmail updates the user's email address.
	// Returns ErrDuplicateUser when the email is already taken.
	ChangeEmail(ctx context.Context, userID, newEmail string) error

	// GetUserByID retrieves a user by internal ID.
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// GetPermission loads the user's permission row, or a zero-value row
	// when the user has none.
	GetPermission(ctx context.Context, user *models.User) (*models.Permission, error)

	// =========================================================================
	// User Management (Admin Operations)
	// =========================================================================

	// CreateUser creates a user with explicit permission flags.
	// Used by the admin API and the `ssoapi users create` CLI command.
	CreateUser(ctx context.Context, username, email, password string, adminUser, createApplications bool) (*models.User, error)

	// ListUsers returns all users, optionally narrowed by a boolean filter
	// expression over the fields username, email, active, admin_user and
	// create_applications (go-bexpr syntax, e.g. `admin_user == true`).
	// An empty filter returns everything.
	ListUsers(ctx context.Context, filter string) ([]models.User, error)

	// SearchUsers returns users whose username or email contains the query
	// substring. Used by the admin list's `search` parameter.
	SearchUsers(ctx context.Context, query string) ([]models.User, error)

	// UpdateUser applies an admin update: email, active flag, permission
	// flags, password reset. Nil fields are left untouched. The permission
	// row is created on demand when a flag is first set.
	UpdateUser(ctx context.Context, userID string, params UpdateUserParams) (*models.User, error)

	// DisableUser sets users.disabled_at, immediately failing verification
	// for every outstanding token of that user.
	DisableUser(ctx context.Context, userID string) error

	// =========================================================================
	// OAuth2 Application Management
	// =========================================================================

	// CreateApplication registers an OAuth2 client application.
	//
	// Returns:
	//   - application: Created record
	//   - clientSecret: Unhashed secret (return to caller, not stored)
	//
	// The secret is hashed (bcrypt) before storage.
	CreateApplication(ctx context.Context, name string, redirectURIs []string, createdBy string) (*models.Application, string, error)

	// ListApplications returns registered applications. A non-empty
	// createdBy narrows the result to applications registered by that user;
	// empty returns everything.
	ListApplications(ctx context.Context, createdBy string) ([]models.Application, error)

	// GetApplicationByClientID retrieves an application by its OAuth2
	// client identifier.
	GetApplicationByClientID(ctx context.Context, clientID string) (*models.Application, error)

	// DeleteApplication removes an application. Already-issued tokens for
	// the application keep working until they expire; new flows fail.
	DeleteApplication(ctx context.Context, id string) error

	// AuthenticateClient verifies an application's client secret.
	// Returns ErrInvalidCredentials on unknown client, wrong secret, or a
	// disabled application.
	AuthenticateClient(ctx context.Context, clientID, clientSecret string) (*models.Application, error)
}

// UpdateUserParams carries an admin user update. Nil pointer fields mean
// "leave unchanged".
type UpdateUserParams struct {
	Email              *string
	Password           *string
	Active             *bool
	AdminUser          *bool
	CreateApplications *bool
}
