package server

import (
	"context"

	"github.com/ssokit/ssoapi/internal/db/models"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

// iamService defines the exact IAM methods used by server handlers.
// This interface provides compile-time proof that iam.Service satisfies
// all requirements without circular imports.
//
// By defining this contract in the server package, we avoid importing
// repositories or internal IAM implementation details while ensuring
// type safety at compile time.
type iamService interface {
	// Session lifecycle
	Register(ctx context.Context, username, email, password string) (*models.User, *iam.TokenPair, error)
	Login(ctx context.Context, username, password string) (*models.User, *iam.TokenPair, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*iam.TokenPair, error)

	// Self-service
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	ChangeEmail(ctx context.Context, userID, newEmail string) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetPermission(ctx context.Context, user *models.User) (*models.Permission, error)

	// User management
	CreateUser(ctx context.Context, username, email, password string, adminUser, createApplications bool) (*models.User, error)
	ListUsers(ctx context.Context, filter string) ([]models.User, error)
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
	UpdateUser(ctx context.Context, userID string, params iam.UpdateUserParams) (*models.User, error)
	DisableUser(ctx context.Context, userID string) error

	// Application management
	CreateApplication(ctx context.Context, name string, redirectURIs []string, createdBy string) (*models.Application, string, error)
	ListApplications(ctx context.Context, createdBy string) ([]models.Application, error)
	GetApplicationByClientID(ctx context.Context, clientID string) (*models.Application, error)
	DeleteApplication(ctx context.Context, id string) error
}

// Compile-time assertion: iam.Service must implement iamService.
// This will cause a build failure if iam.Service is missing any required method.
var _ iamService = (iam.Service)(nil)
