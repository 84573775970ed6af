package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/ssokit/ssoapi/internal/services/iam"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// errorResponse is the uniform error body for all API endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service errors to HTTP responses. Authentication errors
// collapse to a single generic message so the response never reveals whether
// a username exists, a password was wrong, or an account is disabled.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case iam.IsAuthError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, iam.ErrDuplicateUser):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username or email already in use"})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// isNotFoundErr matches the repository layer's "not found" convention.
func isNotFoundErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
