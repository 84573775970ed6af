package iam

// Capability predicates over an authenticated principal.
//
// The three predicates are orthogonal: CanCreateApplications does not imply
// IsAdmin and vice versa. Route guards in internal/middleware build on these
// rather than inspecting the Principal directly, so the capability rules
// live in exactly one place.

// IsAuthenticated reports whether a principal is present at all.
func IsAuthenticated(p *Principal) bool {
	return p != nil && p.Subject != ""
}

// IsAdmin reports whether the principal holds the admin capability.
// False for a principal without a permission row.
func IsAdmin(p *Principal) bool {
	return IsAuthenticated(p) && p.AdminUser
}

// CanCreateApplications reports whether the principal may register OAuth2
// client applications. False for a principal without a permission row.
func CanCreateApplications(p *Principal) bool {
	return IsAuthenticated(p) && p.CreateApplications
}
