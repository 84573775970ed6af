package auth

import "context"

// AuthMethod describes the credential type a principal presented.
type AuthMethod string

const (
	// AuthMethodSession represents a self-issued epoch-stamped bearer token.
	AuthMethodSession AuthMethod = "session"
	// AuthMethodOAuth represents an access token issued by the embedded OAuth2 provider.
	AuthMethodOAuth AuthMethod = "oauth"
)

// AuthenticatedPrincipal captures identity metadata propagated through the request context.
type AuthenticatedPrincipal struct {
	// Subject is the stable user identifier (users.id).
	Subject string
	// Username is the unique login name.
	Username string
	// Email is the user's email address.
	Email string
	// AdminUser grants the admin capability.
	AdminUser bool
	// CreateApplications grants the capability to register OAuth2 applications.
	CreateApplications bool
	// Method records which authenticator produced this principal.
	Method AuthMethod
	// Scopes lists granted OAuth2 scopes (only for Method == AuthMethodOAuth).
	Scopes []string
}

type principalContextKey struct{}

// SetUserContext stores the authenticated principal on the context for downstream consumers.
func SetUserContext(ctx context.Context, principal AuthenticatedPrincipal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// GetUserFromContext retrieves the authenticated principal from the context.
func GetUserFromContext(ctx context.Context) (AuthenticatedPrincipal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(AuthenticatedPrincipal)
	return principal, ok
}
