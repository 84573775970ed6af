package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ssokit/ssoapi/internal/config"
	"github.com/ssokit/ssoapi/internal/db/bunx"
	"github.com/ssokit/ssoapi/internal/db/models"
	"github.com/ssokit/ssoapi/internal/repository"
)

// TokenType distinguishes the two halves of a token pair.
type TokenType string

const (
	// TokenTypeAccess is the short-lived token presented on API requests.
	TokenTypeAccess TokenType = "access"

	// TokenTypeRefresh is the longer-lived token exchanged for new pairs
	// and surrendered at logout.
	TokenTypeRefresh TokenType = "refresh"
)

// TokenClaims is the JWT payload of both token types.
//
// Epoch snapshots users.session_epoch at issuance. Verification compares it
// against the live value, which is what lets logout invalidate every
// outstanding token with one row update.
type TokenClaims struct {
	jwt.RegisteredClaims

	TokenType TokenType `json:"typ"`
	Epoch     int64     `json:"epoch"`
}

// TokenPair is the result of issuance: one access and one refresh token.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenAuthority mints and verifies session tokens and owns session
// revocation. It is the only component allowed to touch the signing secret.
//
// Issue is read-only against the store (the epoch is only read). Verify is
// read-only as well. RevokeSession is the single mutating operation and
// delegates its atomicity to RevocationRepository.
type TokenAuthority struct {
	secret      []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	users       repository.UserRepository
	permissions repository.PermissionRepository
	revocations repository.RevocationRepository
}

// NewTokenAuthority creates a token authority from the auth configuration.
func NewTokenAuthority(
	cfg config.AuthConfig,
	users repository.UserRepository,
	permissions repository.PermissionRepository,
	revocations repository.RevocationRepository,
) *TokenAuthority {
	return &TokenAuthority{
		secret:      []byte(cfg.TokenSecret),
		accessTTL:   cfg.AccessTokenTTL,
		refreshTTL:  cfg.RefreshTokenTTL,
		users:       users,
		permissions: permissions,
		revocations: revocations,
	}
}

// Issue mints an access+refresh pair for the user, embedding the user's
// current session epoch. No store writes occur.
func (a *TokenAuthority) Issue(user *models.User) (*TokenPair, error) {
	now := time.Now()

	access, err := a.sign(user, TokenTypeAccess, now, a.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := a.sign(user, TokenTypeRefresh, now, a.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (a *TokenAuthority) sign(user *models.User, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        bunx.NewUUIDv7(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: typ,
		Epoch:     user.SessionEpoch,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify validates a raw token of the expected type and resolves it to a
// live Principal.
//
// The checks run in order: signature and expiry (pure computation), token
// type, live user lookup, active flag, epoch comparison, and for refresh
// tokens the denylist. Each failure returns its sentinel from errors.go;
// callers must collapse them to a generic response at the boundary.
func (a *TokenAuthority) Verify(ctx context.Context, raw string, typ TokenType) (*Principal, *TokenClaims, error) {
	claims, err := a.parse(raw)
	if err != nil {
		return nil, nil, err
	}

	if claims.TokenType != typ {
		return nil, nil, ErrWrongTokenType
	}

	user, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			// The referenced user no longer exists. Indistinguishable from
			// a disabled account on purpose.
			return nil, nil, ErrPrincipalInactive
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	if !user.Active() {
		return nil, nil, ErrPrincipalInactive
	}

	// Strict comparison against the committed value. A token issued before
	// a concurrent logout commits its epoch bump fails here on the next
	// request.
	if claims.Epoch != user.SessionEpoch {
		return nil, nil, ErrEpochMismatch
	}

	if typ == TokenTypeRefresh {
		revoked, err := a.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("check denylist: %w", err)
		}
		if revoked {
			return nil, nil, ErrTokenRevoked
		}
	}

	principal, err := a.principalFor(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return principal, claims, nil
}

// parse decodes and signature-checks a raw token without touching the store.
func (a *TokenAuthority) parse(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// RevokeSession logs the user out everywhere.
//
// The epoch bump and the denylist insert are applied in one transaction by
// the repository, so no request observed after this returns can see the old
// epoch as valid. A malformed or foreign refresh token never blocks the
// bump: the epoch is incremented first and the token error is reported
// afterwards.
func (a *TokenAuthority) RevokeSession(ctx context.Context, userID, presentedRefresh string) error {
	var rt *models.RevokedToken
	var tokenErr error

	claims, err := a.parse(presentedRefresh)
	switch {
	case err != nil:
		tokenErr = err
	case claims.TokenType != TokenTypeRefresh:
		tokenErr = ErrWrongTokenType
	case claims.Subject != userID:
		// A refresh token for another user still triggers the caller's own
		// epoch bump but is not denylisted under this call.
		tokenErr = ErrMalformed
	default:
		rt = &models.RevokedToken{
			JTI:    claims.ID,
			UserID: userID,
			Exp:    claims.ExpiresAt.Time,
		}
	}

	if err := a.revocations.RevokeSession(ctx, userID, rt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return tokenErr
}

// principalFor loads the user's permission row (if any) and builds the
// immutable Principal.
func (a *TokenAuthority) principalFor(ctx context.Context, user *models.User) (*Principal, error) {
	principal := &Principal{
		Subject:      user.ID,
		Username:     user.Username,
		Email:        user.Email,
		SessionEpoch: user.SessionEpoch,
		AuthMethod:   AuthMethodSession,
	}

	if user.PermissionID != nil {
		perm, err := a.permissions.GetByID(ctx, *user.PermissionID)
		if err != nil {
			if !isNotFound(err) {
				return nil, fmt.Errorf("load permission: %w", err)
			}
			// Dangling permission reference reads as no capability.
		} else {
			principal.AdminUser = perm.AdminUser
			principal.CreateApplications = perm.CreateApplications
		}
	}

	return principal, nil
}

// isNotFound matches the repository layer's "not found" convention.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
