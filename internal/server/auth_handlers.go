package server

import (
	"encoding/json"
	"net/http"

	"github.com/ssokit/ssoapi/internal/auth"
)

// RegisterRequest represents the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents credentials for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LogoutRequest carries the refresh token to denylist on logout. "refresh"
// is the canonical key; "refresh_token" is accepted as an alias.
type LogoutRequest struct {
	Refresh      string `json:"refresh"`
	RefreshToken string `json:"refresh_token"`
}

func (r LogoutRequest) refreshToken() string {
	if r.Refresh != "" {
		return r.Refresh
	}
	return r.RefreshToken
}

// RefreshRequest carries the refresh token to exchange for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPairResponse is returned by register, login, and refresh.
type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// HandleRegister creates a user account and returns an initial token pair.
func HandleRegister(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Username == "" || req.Email == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username, email and password are required"})
			return
		}

		_, pair, err := svc.Register(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, TokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
	}
}

// HandleLogin authenticates username/password and returns a fresh token pair.
// Unknown user, wrong password, and disabled account all produce the same
// generic response.
func HandleLogin(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Username == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid credentials"})
			return
		}

		_, pair, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
	}
}

// HandleLogout revokes the caller's session. All outstanding tokens for the
// user stop verifying once this returns, even when the presented refresh
// token turns out to be bad.
func HandleLogout(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		var req LogoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		if err := svc.Logout(r.Context(), principal.Subject, req.refreshToken()); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
	}
}

// HandleRefresh exchanges a valid refresh token for a new token pair.
func HandleRefresh(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.RefreshToken == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "refresh_token is required"})
			return
		}

		pair, err := svc.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
	}
}
