package server

import (
	"encoding/json"
	"net/http"

	"github.com/ssokit/ssoapi/internal/auth"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

// ChangePasswordRequest represents the body of POST /settings/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangeEmailRequest represents the body of POST /settings/change-email.
type ChangeEmailRequest struct {
	Email string `json:"email"`
}

// settingsScopes is the scope set the settings API resolves claims with.
// Session-authenticated callers see their full account; OAuth callers are
// narrowed to the scopes their token was granted.
var settingsScopes = []string{iam.ScopeUsername, iam.ScopeEmail, iam.ScopePermissions}

// HandleAccountInfo returns the caller's account claims. The body is the
// claim resolver's output, so this surface can never drift from the ID
// token or userinfo representations of the same account.
func HandleAccountInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		scopes := settingsScopes
		if principal.Method == auth.AuthMethodOAuth {
			scopes = iam.FilterScopes(principal.Scopes)
		}

		claims := iam.ResolveClaims(&iam.Principal{
			Subject:            principal.Subject,
			Username:           principal.Username,
			Email:              principal.Email,
			AdminUser:          principal.AdminUser,
			CreateApplications: principal.CreateApplications,
		}, scopes)

		writeJSON(w, http.StatusOK, claims)
	}
}

// HandleChangePassword verifies the old password before setting the new one.
func HandleChangePassword(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		var req ChangePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.OldPassword == "" || req.NewPassword == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "old_password and new_password are required"})
			return
		}

		if err := svc.ChangePassword(r.Context(), principal.Subject, req.OldPassword, req.NewPassword); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
	}
}

// HandleChangeEmail updates the caller's email address.
func HandleChangeEmail(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		var req ChangeEmailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Email == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email is required"})
			return
		}

		if err := svc.ChangeEmail(r.Context(), principal.Subject, req.Email); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "email changed"})
	}
}
