package iam

// Claim resolution: the one code path that turns a principal plus a granted
// scope set into the claim map returned by the settings API, the OIDC
// ID-token hook, and the userinfo endpoint. All three call sites share this
// function verbatim so the three surfaces can never drift apart.

// Scope names accepted at grant time. "openid" and "offline_access" are
// protocol machinery consumed by the OAuth2 engine itself and never reach
// the resolver.
const (
	ScopeUsername    = "username"
	ScopeEmail       = "email"
	ScopePermissions = "permissions"
)

// claimScopes is the strict allow-list used by ValidateScopes.
var claimScopes = map[string]bool{
	ScopeUsername:    true,
	ScopeEmail:       true,
	ScopePermissions: true,
}

// ResolveClaims derives the scope-filtered claim map for a principal.
//
// The "sub" claim is always present. Each recognized scope adds its claim;
// unknown scopes are silently ignored so that resolution stays usable with
// whatever subset a client was actually granted. The output is computed
// fresh on every call and never contains a credential.
//
// The permissions claim carries both capability flags, defaulting to false
// when the user has no permission row, so a granted "permissions" scope
// always yields the key rather than omitting it.
func ResolveClaims(principal *Principal, scopes []string) map[string]any {
	claims := map[string]any{
		"sub": principal.Subject,
	}

	for _, scope := range scopes {
		switch scope {
		case ScopeUsername:
			claims["username"] = principal.Username
		case ScopeEmail:
			claims["email"] = principal.Email
		case ScopePermissions:
			claims["permissions"] = map[string]any{
				"admin_user":          principal.AdminUser,
				"create_applications": principal.CreateApplications,
			}
		}
	}

	return claims
}

// ValidateScopes is the grant-time scope validation callback for the OAuth2
// engine. Unlike resolution, validation is strict: any scope outside the
// allow-list fails the whole request so a client cannot be granted a scope
// this provider will never honor.
func ValidateScopes(scopes []string) error {
	for _, scope := range scopes {
		if !claimScopes[scope] {
			return ErrInvalidScope
		}
	}
	return nil
}

// FilterScopes returns the subset of scopes the resolver recognizes,
// preserving order. Used when recording granted scopes on issued OAuth
// tokens.
func FilterScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if claimScopes[scope] {
			out = append(out, scope)
		}
	}
	return out
}
