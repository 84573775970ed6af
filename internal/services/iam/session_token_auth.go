package iam

import (
	"context"
	"errors"
	"strings"
)

// SessionTokenAuthenticator authenticates requests carrying a self-issued
// epoch-stamped access token.
//
// Flow:
//  1. Extract "Authorization: Bearer <token>" header
//  2. Return (nil, nil) if not present
//  3. Verify via the TokenAuthority (signature, expiry, epoch, active flag)
//  4. Return the resolved Principal
//
// A token that does not even parse as one of ours returns (nil, nil) rather
// than an error so the OAuth authenticator can try it next: both token types
// share the Authorization header.
//
// This authenticator is stateless and thread-safe.
type SessionTokenAuthenticator struct {
	authority *TokenAuthority
}

// NewSessionTokenAuthenticator creates a new session token authenticator.
func NewSessionTokenAuthenticator(authority *TokenAuthority) *SessionTokenAuthenticator {
	return &SessionTokenAuthenticator{authority: authority}
}

// Authenticate extracts and validates the bearer access token.
//
// Returns:
//   - (nil, nil) if no bearer token is present or it is not a session token
//   - (nil, error) if the token is ours but fails verification
//   - (*Principal, nil) if authentication succeeds
func (a *SessionTokenAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	raw := BearerToken(req.Headers.Get("Authorization"))
	if raw == "" {
		// No credentials for this authenticator, try next
		return nil, nil
	}

	principal, _, err := a.authority.Verify(ctx, raw, TokenTypeAccess)
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			// Not an HS256 session token. Let the OAuth authenticator
			// decide whether it is one of the provider's tokens.
			return nil, nil
		}
		return nil, err
	}

	return principal, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Returns "" when the header is absent or not a bearer scheme.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
