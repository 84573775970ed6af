package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssokit/ssoapi/internal/auth"
	"github.com/ssokit/ssoapi/internal/db/models"
)

// CreateApplicationRequest represents the body of POST /oauth/applications.
type CreateApplicationRequest struct {
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirect_uris"`
}

// ApplicationResponse represents application data in API responses. The
// client secret only appears in the creation response; it is stored hashed
// and cannot be recovered afterwards.
type ApplicationResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
	CreatedAt    int64    `json:"created_at"`
	Disabled     bool     `json:"disabled"`
}

func applicationResponse(app *models.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:           app.ID,
		Name:         app.Name,
		ClientID:     app.ClientID,
		RedirectURIs: []string(app.RedirectURIs),
		CreatedAt:    app.CreatedAt.UTC().Truncate(time.Second).Unix(),
		Disabled:     app.Disabled,
	}
}

// HandleCreateApplication registers an OAuth2 client application.
func HandleCreateApplication(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.GetUserFromContext(r.Context())

		var req CreateApplicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Name == "" || len(req.RedirectURIs) == 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name and redirect_uris are required"})
			return
		}

		app, secret, err := svc.CreateApplication(r.Context(), req.Name, req.RedirectURIs, principal.Subject)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		resp := applicationResponse(app)
		resp.ClientSecret = secret
		writeJSON(w, http.StatusCreated, resp)
	}
}

// HandleListApplications lists applications. Admins see every application;
// other application managers see only the ones they registered.
func HandleListApplications(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.GetUserFromContext(r.Context())

		createdBy := principal.Subject
		if principal.AdminUser {
			createdBy = ""
		}

		apps, err := svc.ListApplications(r.Context(), createdBy)
		if err != nil {
			writeError(w, err)
			return
		}

		out := make([]ApplicationResponse, 0, len(apps))
		for i := range apps {
			out = append(out, applicationResponse(&apps[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HandleGetApplication returns a single application by client ID.
func HandleGetApplication(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := chi.URLParam(r, "clientID")
		app, err := svc.GetApplicationByClientID(r.Context(), clientID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "application not found"})
			return
		}
		writeJSON(w, http.StatusOK, applicationResponse(app))
	}
}

// HandleDeleteApplication removes an application. Tokens already issued for
// it keep working until expiry; new authorization flows fail immediately.
func HandleDeleteApplication(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := chi.URLParam(r, "clientID")
		app, err := svc.GetApplicationByClientID(r.Context(), clientID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "application not found"})
			return
		}

		if err := svc.DeleteApplication(r.Context(), app.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
