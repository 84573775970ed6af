package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ssokit/ssoapi/internal/db/models"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

func getWithAuth(t *testing.T, handler http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// principalAuth returns an authenticateRequest func mapping bearer tokens to
// fixed principals.
func principalAuth(principals map[string]*iam.Principal) func(ctx context.Context, req iam.AuthRequest) (*iam.Principal, error) {
	return func(ctx context.Context, req iam.AuthRequest) (*iam.Principal, error) {
		header := req.Headers.Get("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) {
			return nil, nil
		}
		if p, ok := principals[header[len(prefix):]]; ok {
			return p, nil
		}
		return nil, nil
	}
}

func TestHandleAccountInfo_SessionSeesFullAccount(t *testing.T) {
	svc := &fakeIAMService{
		authenticateRequest: principalAuth(map[string]*iam.Principal{
			"session-token": {
				Subject:    "u1",
				Username:   "alice",
				Email:      "alice@example.com",
				AdminUser:  true,
				AuthMethod: iam.AuthMethodSession,
			},
		}),
	}
	router := testRouter(svc)

	rec := getWithAuth(t, router, "/settings/info", "session-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var claims map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &claims); err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	if claims["sub"] != "u1" || claims["username"] != "alice" || claims["email"] != "alice@example.com" {
		t.Fatalf("unexpected claims: %v", claims)
	}
	perms, ok := claims["permissions"].(map[string]any)
	if !ok {
		t.Fatalf("expected permissions claim, got %v", claims["permissions"])
	}
	if perms["admin_user"] != true || perms["create_applications"] != false {
		t.Fatalf("unexpected permission flags: %v", perms)
	}
}

func TestHandleAccountInfo_OAuthNarrowedToGrantedScopes(t *testing.T) {
	svc := &fakeIAMService{
		authenticateRequest: principalAuth(map[string]*iam.Principal{
			"oauth-token": {
				Subject:    "u1",
				Username:   "alice",
				Email:      "alice@example.com",
				AuthMethod: iam.AuthMethodOAuth,
				Scopes:     []string{iam.ScopeEmail},
			},
		}),
	}
	router := testRouter(svc)

	rec := getWithAuth(t, router, "/settings/info", "oauth-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var claims map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &claims); err != nil {
		t.Fatalf("decode claims: %v", err)
	}
	if claims["email"] != "alice@example.com" {
		t.Fatalf("expected email claim, got %v", claims)
	}
	if _, ok := claims["username"]; ok {
		t.Fatalf("username leaked without its scope: %v", claims)
	}
	if _, ok := claims["permissions"]; ok {
		t.Fatalf("permissions leaked without its scope: %v", claims)
	}
}

func TestAdminRoutes_RequireAdminFlag(t *testing.T) {
	svc := &fakeIAMService{
		authenticateRequest: principalAuth(map[string]*iam.Principal{
			"plain": {Subject: "u1", AuthMethod: iam.AuthMethodSession},
			"admin": {Subject: "u2", AdminUser: true, AuthMethod: iam.AuthMethodSession},
		}),
	}
	router := testRouter(svc)

	if rec := getWithAuth(t, router, "/admin/users", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 unauthenticated, got %d", rec.Code)
	}
	if rec := getWithAuth(t, router, "/admin/users", "plain"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
	if rec := getWithAuth(t, router, "/admin/users", "admin"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminListUsers_SearchParameter(t *testing.T) {
	var searched string
	svc := &fakeIAMService{
		authenticateRequest: principalAuth(map[string]*iam.Principal{
			"admin": {Subject: "u1", AdminUser: true, AuthMethod: iam.AuthMethodSession},
		}),
		searchUsers: func(ctx context.Context, query string) ([]models.User, error) {
			searched = query
			return []models.User{{ID: "u2", Username: "alice", Email: "alice@example.com"}}, nil
		},
		listUsers: func(ctx context.Context, filter string) ([]models.User, error) {
			t.Fatalf("search request must not fall through to the filter list")
			return nil, nil
		},
	}
	router := testRouter(svc)

	rec := getWithAuth(t, router, "/admin/users?search=ali", "admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if searched != "ali" {
		t.Fatalf("expected search query to reach the service, got %q", searched)
	}

	var users []AdminUserResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Fatalf("unexpected result: %+v", users)
	}
}

func TestApplicationRoutes_RequireCapability(t *testing.T) {
	svc := &fakeIAMService{
		authenticateRequest: principalAuth(map[string]*iam.Principal{
			// Admin alone must not open the application surface.
			"admin":   {Subject: "u1", AdminUser: true, AuthMethod: iam.AuthMethodSession},
			"manager": {Subject: "u2", CreateApplications: true, AuthMethod: iam.AuthMethodSession},
		}),
	}
	router := testRouter(svc)

	if rec := getWithAuth(t, router, "/oauth/applications", "admin"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin without capability, got %d", rec.Code)
	}
	if rec := getWithAuth(t, router, "/oauth/applications", "manager"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for application manager, got %d", rec.Code)
	}
}

func TestApplicationList_ScopedToCreator(t *testing.T) {
	var scopedTo []string
	svc := &fakeIAMService{
		authenticateRequest: principalAuth(map[string]*iam.Principal{
			"manager":       {Subject: "u2", CreateApplications: true, AuthMethod: iam.AuthMethodSession},
			"admin-manager": {Subject: "u3", AdminUser: true, CreateApplications: true, AuthMethod: iam.AuthMethodSession},
		}),
		listApplications: func(ctx context.Context, createdBy string) ([]models.Application, error) {
			scopedTo = append(scopedTo, createdBy)
			return nil, nil
		},
	}
	router := testRouter(svc)

	if rec := getWithAuth(t, router, "/oauth/applications", "manager"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := getWithAuth(t, router, "/oauth/applications", "admin-manager"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Plain managers see their own applications; admins see everything.
	if len(scopedTo) != 2 || scopedTo[0] != "u2" || scopedTo[1] != "" {
		t.Fatalf("unexpected creator scoping: %v", scopedTo)
	}
}
