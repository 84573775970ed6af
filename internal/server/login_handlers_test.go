package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ssokit/ssoapi/internal/db/models"
	"github.com/ssokit/ssoapi/internal/services/iam"
)

type fakeFinalizer struct {
	finalizedID   string
	finalizedUser string
	err           error
}

func (f *fakeFinalizer) FinalizeAuthRequest(ctx context.Context, id string, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.finalizedID = id
	f.finalizedUser = userID
	return nil
}

func postLoginForm(t *testing.T, handler http.Handler, values url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/oauth/login", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func loginService(t *testing.T) *fakeIAMService {
	t.Helper()
	return &fakeIAMService{
		login: func(ctx context.Context, username, password string) (*models.User, *iam.TokenPair, error) {
			if username == "alice" && password == "correct" {
				return &models.User{ID: "u1", Username: "alice"}, &iam.TokenPair{}, nil
			}
			return nil, nil, iam.ErrInvalidCredentials
		},
	}
}

func TestLoginSubmit_ResumesAuthorizationFlow(t *testing.T) {
	finalizer := &fakeFinalizer{}
	handler := HandleLoginSubmit(loginService(t), finalizer)

	rec := postLoginForm(t, handler, url.Values{
		"id":       {"req-123"},
		"username": {"alice"},
		"password": {"correct"},
	})

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/authorize/callback?id=req-123" {
		t.Fatalf("unexpected redirect target: %s", loc)
	}
	if finalizer.finalizedID != "req-123" || finalizer.finalizedUser != "u1" {
		t.Fatalf("finalized (%q, %q)", finalizer.finalizedID, finalizer.finalizedUser)
	}
}

func TestLoginSubmit_WrongPasswordReRendersForm(t *testing.T) {
	finalizer := &fakeFinalizer{}
	handler := HandleLoginSubmit(loginService(t), finalizer)

	rec := postLoginForm(t, handler, url.Values{
		"id":       {"req-123"},
		"username": {"alice"},
		"password": {"wrong"},
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid credentials") {
		t.Fatalf("expected generic error in form, got %s", rec.Body.String())
	}
	if finalizer.finalizedID != "" {
		t.Fatal("auth request finalized despite failed login")
	}
}

func TestLoginSubmit_RejectsExternalNextTarget(t *testing.T) {
	handler := HandleLoginSubmit(loginService(t), &fakeFinalizer{})

	rec := postLoginForm(t, handler, url.Values{
		"next":     {"https://evil.example.com/phish"},
		"username": {"alice"},
		"password": {"correct"},
	})

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Fatalf("external redirect not neutralised: %s", loc)
	}
}

func TestLoginSubmit_KeepsLocalNextTarget(t *testing.T) {
	handler := HandleLoginSubmit(loginService(t), &fakeFinalizer{})

	rec := postLoginForm(t, handler, url.Values{
		"next":     {"/settings/info"},
		"username": {"alice"},
		"password": {"correct"},
	})

	if loc := rec.Header().Get("Location"); loc != "/settings/info" {
		t.Fatalf("local redirect rewritten: %s", loc)
	}
}

func TestLoginForm_RendersRequestID(t *testing.T) {
	handler := HandleLoginForm()

	req := httptest.NewRequest(http.MethodGet, "/oauth/login?id=req-42", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `value="req-42"`) {
		t.Fatalf("form does not carry the auth request id: %s", rec.Body.String())
	}
}
