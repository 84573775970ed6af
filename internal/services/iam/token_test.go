package iam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ssokit/ssoapi/internal/config"
	"github.com/ssokit/ssoapi/internal/db/bunx"
	"github.com/ssokit/ssoapi/internal/db/models"
)

type authorityFixture struct {
	authority   *TokenAuthority
	users       *mockUserRepository
	permissions *mockPermissionRepository
	revocations *mockRevocationRepository
}

func newAuthorityFixture(accessTTL, refreshTTL time.Duration) *authorityFixture {
	users := newMockUserRepository()
	permissions := newMockPermissionRepository()
	revocations := newMockRevocationRepository(users)

	authority := NewTokenAuthority(config.AuthConfig{
		TokenSecret:     "test-secret",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}, users, permissions, revocations)

	return &authorityFixture{
		authority:   authority,
		users:       users,
		permissions: permissions,
		revocations: revocations,
	}
}

func (f *authorityFixture) seedUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           bunx.NewUUIDv7(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	user := f.seedUser(t, "alice")

	pair, err := f.authority.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatal("Issue() returned empty tokens")
	}
	if pair.Access == pair.Refresh {
		t.Fatal("access and refresh tokens must differ")
	}

	principal, claims, err := f.authority.Verify(ctx, pair.Access, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify(access) error: %v", err)
	}
	if principal.Subject != user.ID {
		t.Errorf("Subject = %q, want %q", principal.Subject, user.ID)
	}
	if principal.Username != "alice" {
		t.Errorf("Username = %q, want alice", principal.Username)
	}
	if principal.SessionEpoch != 0 {
		t.Errorf("SessionEpoch = %d, want 0", principal.SessionEpoch)
	}
	if principal.AdminUser || principal.CreateApplications {
		t.Error("user without permission row must have no capabilities")
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("TokenType = %q, want access", claims.TokenType)
	}
	if claims.ID == "" {
		t.Error("access token missing jti")
	}

	if _, _, err := f.authority.Verify(ctx, pair.Refresh, TokenTypeRefresh); err != nil {
		t.Fatalf("Verify(refresh) error: %v", err)
	}
}

func TestVerify_WrongTokenType(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	user := f.seedUser(t, "alice")

	pair, err := f.authority.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, _, err := f.authority.Verify(ctx, pair.Refresh, TokenTypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("Verify(refresh as access) = %v, want ErrWrongTokenType", err)
	}
	if _, _, err := f.authority.Verify(ctx, pair.Access, TokenTypeRefresh); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("Verify(access as refresh) = %v, want ErrWrongTokenType", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	user := f.seedUser(t, "alice")

	if _, _, err := f.authority.Verify(ctx, "not-a-token", TokenTypeAccess); !errors.Is(err, ErrMalformed) {
		t.Errorf("Verify(garbage) = %v, want ErrMalformed", err)
	}

	// Token signed with a different secret must not verify.
	other := NewTokenAuthority(config.AuthConfig{
		TokenSecret:     "other-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}, f.users, f.permissions, f.revocations)
	pair, err := other.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, _, err := f.authority.Verify(ctx, pair.Access, TokenTypeAccess); !errors.Is(err, ErrMalformed) {
		t.Errorf("Verify(foreign signature) = %v, want ErrMalformed", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(-1*time.Minute, -1*time.Minute)
	user := f.seedUser(t, "alice")

	pair, err := f.authority.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, _, err := f.authority.Verify(ctx, pair.Access, TokenTypeAccess); !errors.Is(err, ErrExpired) {
		t.Errorf("Verify(expired) = %v, want ErrExpired", err)
	}
}

func TestVerify_EpochMismatch(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	user := f.seedUser(t, "alice")

	pair, err := f.authority.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	// Bump the live epoch out from under the token.
	f.users.users[user.ID].SessionEpoch = 1

	if _, _, err := f.authority.Verify(ctx, pair.Access, TokenTypeAccess); !errors.Is(err, ErrEpochMismatch) {
		t.Errorf("Verify(stale epoch) = %v, want ErrEpochMismatch", err)
	}
}

func TestVerify_PrincipalInactive(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	user := f.seedUser(t, "alice")

	pair, err := f.authority.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if err := f.users.Disable(ctx, user.ID); err != nil {
		t.Fatalf("Disable() error: %v", err)
	}

	if _, _, err := f.authority.Verify(ctx, pair.Access, TokenTypeAccess); !errors.Is(err, ErrPrincipalInactive) {
		t.Errorf("Verify(disabled user) = %v, want ErrPrincipalInactive", err)
	}

	// A deleted user is indistinguishable from a disabled one.
	delete(f.users.users, user.ID)
	if _, _, err := f.authority.Verify(ctx, pair.Access, TokenTypeAccess); !errors.Is(err, ErrPrincipalInactive) {
		t.Errorf("Verify(deleted user) = %v, want ErrPrincipalInactive", err)
	}
}

func TestVerify_PermissionFlags(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	user := f.seedUser(t, "admin")

	perm := &models.Permission{ID: bunx.NewUUIDv7(), AdminUser: true, CreateApplications: true}
	if err := f.permissions.Create(ctx, perm); err != nil {
		t.Fatalf("create permission: %v", err)
	}
	f.users.users[user.ID].PermissionID = &perm.ID

	// Re-read so Issue sees the linked permission id.
	linked, err := f.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	pair, err := f.authority.Issue(linked)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	principal, _, err := f.authority.Verify(ctx, pair.Access, TokenTypeAccess)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if !principal.AdminUser || !principal.CreateApplications {
		t.Errorf("capability flags = (%v, %v), want (true, true)", principal.AdminUser, principal.CreateApplications)
	}
}

func TestRevokeSession_InvalidatesAllTokens(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	user := f.seedUser(t, "alice")

	// Two pairs, as if from two devices.
	pairA, err := f.authority.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	pairB, err := f.authority.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if err := f.authority.RevokeSession(ctx, user.ID, pairA.Refresh); err != nil {
		t.Fatalf("RevokeSession() error: %v", err)
	}

	// Every previously issued token fails, not only the surrendered one.
	for _, raw := range []string{pairA.Access, pairB.Access} {
		if _, _, err := f.authority.Verify(ctx, raw, TokenTypeAccess); !errors.Is(err, ErrEpochMismatch) {
			t.Errorf("Verify(access after logout) = %v, want ErrEpochMismatch", err)
		}
	}
	for _, raw := range []string{pairA.Refresh, pairB.Refresh} {
		if _, _, err := f.authority.Verify(ctx, raw, TokenTypeRefresh); !errors.Is(err, ErrEpochMismatch) {
			t.Errorf("Verify(refresh after logout) = %v, want ErrEpochMismatch", err)
		}
	}

	// The surrendered refresh token is additionally denylisted: even if the
	// epoch were rolled back it must stay dead.
	f.users.users[user.ID].SessionEpoch = 0
	if _, _, err := f.authority.Verify(ctx, pairA.Refresh, TokenTypeRefresh); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Verify(denylisted refresh) = %v, want ErrTokenRevoked", err)
	}
	// The non-surrendered refresh token was only epoch-invalidated.
	if _, _, err := f.authority.Verify(ctx, pairB.Refresh, TokenTypeRefresh); err != nil {
		t.Errorf("Verify(other refresh, epoch restored) = %v, want nil", err)
	}
}

func TestRevokeSession_MalformedRefreshStillBumpsEpoch(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	user := f.seedUser(t, "alice")

	pair, err := f.authority.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	err = f.authority.RevokeSession(ctx, user.ID, "garbage")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("RevokeSession(garbage) = %v, want ErrMalformed", err)
	}

	// The epoch bump is not blockable by a bad refresh token.
	if f.users.users[user.ID].SessionEpoch != 1 {
		t.Errorf("SessionEpoch = %d, want 1", f.users.users[user.ID].SessionEpoch)
	}
	if _, _, err := f.authority.Verify(ctx, pair.Access, TokenTypeAccess); !errors.Is(err, ErrEpochMismatch) {
		t.Errorf("Verify(access after failed logout) = %v, want ErrEpochMismatch", err)
	}
}

func TestRevokeSession_AccessTokenRejectedButBumps(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	user := f.seedUser(t, "alice")

	pair, err := f.authority.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	err = f.authority.RevokeSession(ctx, user.ID, pair.Access)
	if !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("RevokeSession(access token) = %v, want ErrWrongTokenType", err)
	}
	if f.users.users[user.ID].SessionEpoch != 1 {
		t.Errorf("SessionEpoch = %d, want 1", f.users.users[user.ID].SessionEpoch)
	}
}

func TestRevokeSession_ForeignRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthorityFixture(15*time.Minute, 24*time.Hour)
	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")

	bobPair, err := f.authority.Issue(bob)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	// Alice logs out presenting Bob's refresh token: her epoch bumps, Bob's
	// token is neither denylisted nor epoch-invalidated.
	err = f.authority.RevokeSession(ctx, alice.ID, bobPair.Refresh)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("RevokeSession(foreign refresh) = %v, want ErrMalformed", err)
	}
	if f.users.users[alice.ID].SessionEpoch != 1 {
		t.Errorf("alice SessionEpoch = %d, want 1", f.users.users[alice.ID].SessionEpoch)
	}
	if _, _, err := f.authority.Verify(ctx, bobPair.Refresh, TokenTypeRefresh); err != nil {
		t.Errorf("Verify(bob refresh) = %v, want nil", err)
	}
}
