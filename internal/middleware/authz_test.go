package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ssokit/ssoapi/internal/auth"
)

func runGate(t *testing.T, gate func(http.Handler) http.Handler, principal *auth.AuthenticatedPrincipal) *httptest.ResponseRecorder {
	t.Helper()

	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if principal != nil {
		req = req.WithContext(auth.SetUserContext(req.Context(), *principal))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthenticated(t *testing.T) {
	if rec := runGate(t, RequireAuthenticated, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without principal, got %d", rec.Code)
	}

	principal := &auth.AuthenticatedPrincipal{Subject: "user-1"}
	if rec := runGate(t, RequireAuthenticated, principal); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with principal, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	if rec := runGate(t, RequireAdmin, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without principal, got %d", rec.Code)
	}

	nonAdmin := &auth.AuthenticatedPrincipal{Subject: "user-1"}
	if rec := runGate(t, RequireAdmin, nonAdmin); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	// Application management alone does not grant admin.
	appManager := &auth.AuthenticatedPrincipal{Subject: "user-2", CreateApplications: true}
	if rec := runGate(t, RequireAdmin, appManager); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for application manager, got %d", rec.Code)
	}

	admin := &auth.AuthenticatedPrincipal{Subject: "user-3", AdminUser: true}
	if rec := runGate(t, RequireAdmin, admin); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin, got %d", rec.Code)
	}

	// The gates defer to the iam capability predicates: a principal without
	// a subject is unauthenticated regardless of its flags.
	subjectless := &auth.AuthenticatedPrincipal{AdminUser: true, CreateApplications: true}
	if rec := runGate(t, RequireAdmin, subjectless); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for subjectless principal, got %d", rec.Code)
	}
	if rec := runGate(t, RequireApplicationManager, subjectless); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for subjectless principal, got %d", rec.Code)
	}
}

func TestRequireApplicationManager(t *testing.T) {
	if rec := runGate(t, RequireApplicationManager, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without principal, got %d", rec.Code)
	}

	plain := &auth.AuthenticatedPrincipal{Subject: "user-1"}
	if rec := runGate(t, RequireApplicationManager, plain); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without capability, got %d", rec.Code)
	}

	// Admin alone does not grant application management.
	admin := &auth.AuthenticatedPrincipal{Subject: "user-2", AdminUser: true}
	if rec := runGate(t, RequireApplicationManager, admin); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin without capability, got %d", rec.Code)
	}

	manager := &auth.AuthenticatedPrincipal{Subject: "user-3", CreateApplications: true}
	if rec := runGate(t, RequireApplicationManager, manager); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with capability, got %d", rec.Code)
	}
}
