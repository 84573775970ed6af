package repository

import (
	"context"
	"time"

	"github.com/ssokit/ssoapi/internal/db/models"
)

// UserRepository exposes persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string) error
	SetPasswordHash(ctx context.Context, id string, passwordHash string) error
	SetEmail(ctx context.Context, id string, email string) error
	Disable(ctx context.Context, id string) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	Search(ctx context.Context, query string) ([]models.User, error)
}

// PermissionRepository exposes persistence operations for permission records.
type PermissionRepository interface {
	Create(ctx context.Context, permission *models.Permission) error
	GetByID(ctx context.Context, id string) (*models.Permission, error)
	Update(ctx context.Context, permission *models.Permission) error
	// Delete removes a permission row unless a user still references it.
	Delete(ctx context.Context, id string) error
}

// RevocationRepository manages the refresh-token denylist and the session
// epoch. RevokeSession is the only mutating operation of the token core and
// applies both changes inside a single transaction.
type RevocationRepository interface {
	// RevokeSession atomically inserts the denylist row (when rt is non-nil)
	// and increments the user's session epoch by exactly one. The epoch bump
	// must never be skipped because the presented refresh token was bad.
	RevokeSession(ctx context.Context, userID string, rt *models.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, gracePeriod time.Duration) error
}

// ApplicationRepository exposes persistence operations for OAuth2 clients.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	GetByClientID(ctx context.Context, clientID string) (*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Application, error)
	ListByCreator(ctx context.Context, userID string) ([]models.Application, error)
}

// OAuthTokenRepository tracks access tokens issued by the OAuth2 provider.
type OAuthTokenRepository interface {
	Create(ctx context.Context, token *models.OAuthToken) error
	GetByJTIHash(ctx context.Context, jtiHash string) (*models.OAuthToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, gracePeriod time.Duration) error
}
