package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ssokit/ssoapi/internal/db/models"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

// CreateUserRequest represents the body of POST /admin/users.
type CreateUserRequest struct {
	Username           string `json:"username"`
	Email              string `json:"email"`
	Password           string `json:"password"`
	AdminUser          bool   `json:"admin_user"`
	CreateApplications bool   `json:"create_applications"`
}

// UpdateUserRequest represents the body of PATCH /admin/users/{id}.
// Absent fields are left untouched.
type UpdateUserRequest struct {
	Email              *string `json:"email"`
	Password           *string `json:"password"`
	Active             *bool   `json:"active"`
	AdminUser          *bool   `json:"admin_user"`
	CreateApplications *bool   `json:"create_applications"`
}

// AdminUserResponse represents user data in admin API responses.
type AdminUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

func adminUserResponse(user *models.User) AdminUserResponse {
	return AdminUserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Active:   user.Active(),
	}
}

// HandleAdminListUsers handles GET /admin/users. An optional `search` query
// parameter matches a substring of username or email; an optional `filter`
// parameter narrows the result with a boolean expression over username,
// email, active, admin_user and create_applications.
func HandleAdminListUsers(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			users []models.User
			err   error
		)
		if search := r.URL.Query().Get("search"); search != "" {
			users, err = svc.SearchUsers(r.Context(), search)
		} else {
			users, err = svc.ListUsers(r.Context(), r.URL.Query().Get("filter"))
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid filter expression"})
			return
		}

		out := make([]AdminUserResponse, 0, len(users))
		for i := range users {
			out = append(out, adminUserResponse(&users[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleAdminCreateUser handles POST /admin/users, creating an account with
// explicit permission flags.
func HandleAdminCreateUser(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Username == "" || req.Email == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username, email and password are required"})
			return
		}

		user, err := svc.CreateUser(r.Context(), req.Username, req.Email, req.Password, req.AdminUser, req.CreateApplications)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, adminUserResponse(user))
	}
}

// HandleAdminUpdateUser handles PATCH /admin/users/{id}. Deactivating a user
// makes every outstanding token fail verification on its next use.
func HandleAdminUpdateUser(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")

		var req UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		user, err := svc.UpdateUser(r.Context(), userID, iam.UpdateUserParams{
			Email:              req.Email,
			Password:           req.Password,
			Active:             req.Active,
			AdminUser:          req.AdminUser,
			CreateApplications: req.CreateApplications,
		})
		if err != nil {
			if isNotFoundErr(err) {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
				return
			}
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, adminUserResponse(user))
	}
}

// HandleAdminGetUser handles GET /admin/users/{id}.
func HandleAdminGetUser(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.GetUserByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
			return
		}
		writeJSON(w, http.StatusOK, adminUserResponse(user))
	}
}
