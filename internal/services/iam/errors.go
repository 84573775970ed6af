package iam

import "errors"

// Token verification error taxonomy.
//
// Every verification failure maps to exactly one of these sentinels so the
// transport layer can collapse them into a single generic "invalid
// credentials" response. The distinctions exist for logging and tests only;
// they must never reach a client body.
var (
	// ErrMalformed means the token could not be decoded or its signature
	// did not verify.
	ErrMalformed = errors.New("token malformed")

	// ErrExpired means the token's exp claim is in the past.
	ErrExpired = errors.New("token expired")

	// ErrEpochMismatch means the token's embedded session epoch no longer
	// equals the user's live epoch (superseded by logout).
	ErrEpochMismatch = errors.New("token epoch mismatch")

	// ErrPrincipalInactive means the referenced user exists but is disabled.
	ErrPrincipalInactive = errors.New("principal inactive")

	// ErrTokenRevoked means a refresh token's jti is on the denylist.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrWrongTokenType means an access token was presented where a refresh
	// token was expected, or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Non-token errors surfaced by Service operations.
var (
	// ErrInvalidCredentials is returned by Login when the username or
	// password is wrong. Deliberately indistinguishable between the two.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateUser is returned by Register when the username or email
	// is already taken.
	ErrDuplicateUser = errors.New("username or email already in use")

	// ErrInvalidScope is returned by ValidateScopes for scopes outside the
	// allow-list.
	ErrInvalidScope = errors.New("invalid scope")
)

// IsAuthError reports whether err belongs to the token verification
// taxonomy. Transport handlers use this to decide between a generic 401 and
// a 500.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrEpochMismatch) ||
		errors.Is(err, ErrPrincipalInactive) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrWrongTokenType) ||
		errors.Is(err, ErrInvalidCredentials)
}
