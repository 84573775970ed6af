package iam

// Principal represents an authenticated identity with pre-resolved
// capability flags.
//
// This struct is IMMUTABLE after construction. The permission flags are
// loaded once at authentication time from the user's permission row and
// never modified, so concurrent handlers can read them without locking.
//
// The Principal is stored in request context and used by the Gate predicates
// and authorization middleware to make access control decisions.
type Principal struct {
	// Subject is the stable identifier embedded in tokens (users.id, UUID).
	Subject string

	// Username is the unique login name.
	Username string

	// Email is the user's email address.
	Email string

	// SessionEpoch is the user's live epoch at authentication time.
	SessionEpoch int64

	// AdminUser grants the admin capability (manage all users).
	// False when the user has no permission row.
	AdminUser bool

	// CreateApplications grants the capability to register OAuth2 client
	// applications. False when the user has no permission row.
	CreateApplications bool

	// AuthMethod records which authenticator produced this principal.
	AuthMethod AuthMethod

	// Scopes lists the granted OAuth2 scopes. Only populated for
	// AuthMethodOAuth; session tokens carry no scope restriction.
	Scopes []string
}

// AuthMethod identifies the credential type a principal presented.
type AuthMethod string

const (
	// AuthMethodSession represents a self-issued epoch-stamped bearer token.
	AuthMethodSession AuthMethod = "session"

	// AuthMethodOAuth represents an access token issued by the embedded
	// OAuth2 provider to a registered application.
	AuthMethodOAuth AuthMethod = "oauth"
)
