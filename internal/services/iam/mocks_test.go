package iam

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ssokit/ssoapi/internal/db/models"
)

// In-memory repository fakes shared by the iam package tests. They honor
// the repository layer's "not found" error convention so isNotFound matches.

type mockUserRepository struct {
	users map[string]*models.User // id → user
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: map[string]*models.User{}}
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("unique constraint violation")
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user not found: %s", id)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found with username: %s", username)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found with email: %s", email)
}

func (m *mockUserRepository) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

func (m *mockUserRepository) SetPasswordHash(ctx context.Context, id string, passwordHash string) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *mockUserRepository) SetEmail(ctx context.Context, id string, email string) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	u.Email = email
	return nil
}

func (m *mockUserRepository) Disable(ctx context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	now := time.Now()
	u.DisabledAt = &now
	return nil
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) List(ctx context.Context) ([]models.User, error) {
	result := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, *u)
	}
	return result, nil
}

func (m *mockUserRepository) Search(ctx context.Context, query string) ([]models.User, error) {
	result := make([]models.User, 0)
	for _, u := range m.users {
		if strings.Contains(u.Username, query) || strings.Contains(u.Email, query) {
			result = append(result, *u)
		}
	}
	return result, nil
}

type mockPermissionRepository struct {
	permissions map[string]*models.Permission
}

func newMockPermissionRepository() *mockPermissionRepository {
	return &mockPermissionRepository{permissions: map[string]*models.Permission{}}
}

func (m *mockPermissionRepository) Create(ctx context.Context, permission *models.Permission) error {
	cp := *permission
	m.permissions[permission.ID] = &cp
	return nil
}

func (m *mockPermissionRepository) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	if p, ok := m.permissions[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, fmt.Errorf("permission not found: %s", id)
}

func (m *mockPermissionRepository) Update(ctx context.Context, permission *models.Permission) error {
	if _, ok := m.permissions[permission.ID]; !ok {
		return fmt.Errorf("permission not found: %s", permission.ID)
	}
	cp := *permission
	m.permissions[permission.ID] = &cp
	return nil
}

func (m *mockPermissionRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.permissions[id]; !ok {
		return fmt.Errorf("permission not found: %s", id)
	}
	delete(m.permissions, id)
	return nil
}

// mockRevocationRepository applies the denylist insert and the epoch bump
// together, mirroring the transactional repository.
type mockRevocationRepository struct {
	users   *mockUserRepository
	revoked map[string]*models.RevokedToken // jti → row
}

func newMockRevocationRepository(users *mockUserRepository) *mockRevocationRepository {
	return &mockRevocationRepository{users: users, revoked: map[string]*models.RevokedToken{}}
}

func (m *mockRevocationRepository) RevokeSession(ctx context.Context, userID string, rt *models.RevokedToken) error {
	u, ok := m.users.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %s", userID)
	}
	if rt != nil {
		cp := *rt
		m.revoked[rt.JTI] = &cp
	}
	u.SessionEpoch++
	return nil
}

func (m *mockRevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *mockRevocationRepository) DeleteExpired(ctx context.Context, gracePeriod time.Duration) error {
	cutoff := time.Now().Add(-gracePeriod)
	for jti, rt := range m.revoked {
		if rt.Exp.Before(cutoff) {
			delete(m.revoked, jti)
		}
	}
	return nil
}

type mockApplicationRepository struct {
	apps map[string]*models.Application
}

func newMockApplicationRepository() *mockApplicationRepository {
	return &mockApplicationRepository{apps: map[string]*models.Application{}}
}

func (m *mockApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	cp := *app
	m.apps[app.ID] = &cp
	return nil
}

func (m *mockApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	if a, ok := m.apps[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, fmt.Errorf("application not found: %s", id)
}

func (m *mockApplicationRepository) GetByClientID(ctx context.Context, clientID string) (*models.Application, error) {
	for _, a := range m.apps {
		if a.ClientID == clientID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("application not found with client id: %s", clientID)
}

func (m *mockApplicationRepository) Update(ctx context.Context, app *models.Application) error {
	if _, ok := m.apps[app.ID]; !ok {
		return fmt.Errorf("application not found: %s", app.ID)
	}
	cp := *app
	m.apps[app.ID] = &cp
	return nil
}

func (m *mockApplicationRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.apps[id]; !ok {
		return fmt.Errorf("application not found: %s", id)
	}
	delete(m.apps, id)
	return nil
}

func (m *mockApplicationRepository) List(ctx context.Context) ([]models.Application, error) {
	result := make([]models.Application, 0, len(m.apps))
	for _, a := range m.apps {
		result = append(result, *a)
	}
	return result, nil
}

func (m *mockApplicationRepository) ListByCreator(ctx context.Context, userID string) ([]models.Application, error) {
	result := []models.Application{}
	for _, a := range m.apps {
		if a.CreatedBy == userID {
			result = append(result, *a)
		}
	}
	return result, nil
}

type mockOAuthTokenRepository struct {
	tokens map[string]*models.OAuthToken // jtiHash → token
}

func newMockOAuthTokenRepository() *mockOAuthTokenRepository {
	return &mockOAuthTokenRepository{tokens: map[string]*models.OAuthToken{}}
}

func (m *mockOAuthTokenRepository) Create(ctx context.Context, token *models.OAuthToken) error {
	cp := *token
	m.tokens[token.JTIHash] = &cp
	return nil
}

func (m *mockOAuthTokenRepository) GetByJTIHash(ctx context.Context, jtiHash string) (*models.OAuthToken, error) {
	if t, ok := m.tokens[jtiHash]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, fmt.Errorf("oauth token not found")
}

func (m *mockOAuthTokenRepository) Revoke(ctx context.Context, id string) error {
	for _, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			return nil
		}
	}
	return fmt.Errorf("oauth token not found: %s", id)
}

func (m *mockOAuthTokenRepository) RevokeByUserID(ctx context.Context, userID string) error {
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockOAuthTokenRepository) DeleteExpired(ctx context.Context, gracePeriod time.Duration) error {
	cutoff := time.Now().Add(-gracePeriod)
	for hash, t := range m.tokens {
		if t.ExpiresAt.Before(cutoff) {
			delete(m.tokens, hash)
		}
	}
	return nil
}
