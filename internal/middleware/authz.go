package middleware

import (
	"net/http"

	"github.com/ssokit/ssoapi/internal/auth"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

// gatePrincipal converts the context principal into the capability gate's
// input. Returns nil for unauthenticated requests so the predicates see the
// same shape the rest of the service does.
func gatePrincipal(r *http.Request) *iam.Principal {
	principal, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		return nil
	}
	return &iam.Principal{
		Subject:            principal.Subject,
		Username:           principal.Username,
		Email:              principal.Email,
		AdminUser:          principal.AdminUser,
		CreateApplications: principal.CreateApplications,
	}
}

// RequireAuthenticated rejects requests that carry no authenticated principal.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !iam.IsAuthenticated(gatePrincipal(r)) {
			unauthenticated(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from principals without the admin capability.
// Admin does not imply application management; the two flags are independent.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := gatePrincipal(r)
		if !iam.IsAuthenticated(principal) {
			unauthenticated(w)
			return
		}
		if !iam.IsAdmin(principal) {
			forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireApplicationManager rejects requests from principals that cannot
// register OAuth2 applications.
func RequireApplicationManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := gatePrincipal(r)
		if !iam.IsAuthenticated(principal) {
			unauthenticated(w)
			return
		}
		if !iam.CanCreateApplications(principal) {
			forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthenticated(w http.ResponseWriter) {
	http.Error(w, "authentication required", http.StatusUnauthorized)
}

func forbidden(w http.ResponseWriter) {
	http.Error(w, "forbidden", http.StatusForbidden)
}
