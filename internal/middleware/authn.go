package middleware

import (
	"log"
	"net/http"

	"github.com/ssokit/ssoapi/internal/auth"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

// MultiAuthMiddleware is the unified authentication middleware.
//
// This middleware:
//  1. Extracts headers and cookies from the HTTP request
//  2. Calls iamService.AuthenticateRequest() which tries all authenticators
//  3. Sets the principal in context if authentication succeeds
//  4. Continues to the next handler (authentication failure handled by authz)
//
// Authentication flow:
//   - SessionTokenAuthenticator checks the Authorization header for a
//     session access token
//   - OAuthAuthenticator checks the same header for a provider-issued
//     RS256 token
//   - First successful authenticator wins
//   - If all return (nil, nil): unauthenticated request (allowed)
//   - If any returns (nil, error): authentication failed (401)
func MultiAuthMiddleware(iamService iam.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authReq := iam.AuthRequest{
				Headers: r.Header,
				Cookies: r.Cookies(),
			}

			principal, err := iamService.AuthenticateRequest(ctx, authReq)
			if err != nil {
				log.Printf("authentication failed for %s %s: %v", r.Method, r.URL.Path, err)
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			if principal != nil {
				ctx = auth.SetUserContext(ctx, auth.AuthenticatedPrincipal{
					Subject:            principal.Subject,
					Username:           principal.Username,
					Email:              principal.Email,
					AdminUser:          principal.AdminUser,
					CreateApplications: principal.CreateApplications,
					Method:             auth.AuthMethod(principal.AuthMethod),
					Scopes:             principal.Scopes,
				})
			}

			// Unauthenticated requests (principal == nil) are allowed here.
			// The authorization middleware enforces access checks.
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
