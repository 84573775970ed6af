package iam

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns a Principal.
//
// Implementations:
//   - SessionTokenAuthenticator: Validates self-issued epoch-stamped tokens
//   - OAuthAuthenticator: Validates access tokens from the embedded OAuth2
//     provider
//
// Return values:
//   - (principal, nil): Authentication successful
//   - (nil, nil): Credentials not present (not an error, try next authenticator)
//   - (nil, error): Authentication failed (invalid credentials)
//
// The authenticator is responsible for:
//  1. Extracting credentials from the request
//  2. Validating credentials (signature, expiry, epoch, revocation)
//  3. Resolving the live user and permission row
//  4. Constructing the immutable Principal struct
type Authenticator interface {
	// Authenticate validates credentials and returns a Principal.
	Authenticate(ctx context.Context, req AuthRequest) (*Principal, error)
}

// AuthRequest wraps HTTP request data for authenticator implementations.
type AuthRequest struct {
	// Headers contains HTTP headers (including Authorization)
	Headers http.Header

	// Cookies contains parsed cookies
	Cookies []*http.Cookie
}

// NewAuthRequest builds an AuthRequest from an HTTP request.
func NewAuthRequest(r *http.Request) AuthRequest {
	return AuthRequest{
		Headers: r.Header,
		Cookies: r.Cookies(),
	}
}
