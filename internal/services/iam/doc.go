// Package iam provides identity and access management services for the SSO API.
//
// The IAM service centralizes authentication, claim resolution, and capability
// checks. It provides:
//
//   - Epoch-stamped bearer token issuance and verification (TokenAuthority)
//   - Scope-filtered claim resolution shared by the settings API, the OIDC
//     ID-token hook, and the userinfo endpoint (ResolveClaims)
//   - Capability predicates over the resolved principal (Gate)
//   - Authentication via multiple strategies (session tokens, OAuth2 access
//     tokens)
//   - User, permission, and OAuth2 application management
//
// Architecture:
//
//   - Authenticator interface: Pluggable authentication strategies
//   - Principal struct: Unified authentication result (immutable)
//   - TokenAuthority: The only component that mints or verifies session tokens
//   - Service interface: Facade for all IAM operations
//
// Request Flow:
//
//	Request → MultiAuth → Authenticator.Authenticate() → Principal
//	       ↓
//	   Handler → Gate predicate (IsAdmin, CanCreateApplications)
//
// The key design principle is that every token embeds the user's session
// epoch at issuance and verification compares it against the live value.
// Logout increments the epoch inside one transaction, so a single row update
// invalidates every outstanding token for that user.
package iam
