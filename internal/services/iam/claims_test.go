package iam

import (
	"errors"
	"reflect"
	"testing"
)

func claimsTestPrincipal() *Principal {
	return &Principal{
		Subject:            "0192aa00-0000-7000-8000-000000000001",
		Username:           "alice",
		Email:              "alice@example.com",
		AdminUser:          false,
		CreateApplications: true,
	}
}

func TestResolveClaims_EmptyScopes(t *testing.T) {
	p := claimsTestPrincipal()

	claims := ResolveClaims(p, nil)
	want := map[string]any{"sub": p.Subject}
	if !reflect.DeepEqual(claims, want) {
		t.Errorf("ResolveClaims(nil) = %v, want %v", claims, want)
	}
}

func TestResolveClaims_AllScopes(t *testing.T) {
	p := claimsTestPrincipal()

	claims := ResolveClaims(p, []string{"username", "email", "permissions"})
	want := map[string]any{
		"sub":      p.Subject,
		"username": "alice",
		"email":    "alice@example.com",
		"permissions": map[string]any{
			"admin_user":          false,
			"create_applications": true,
		},
	}
	if !reflect.DeepEqual(claims, want) {
		t.Errorf("ResolveClaims(all) = %v, want %v", claims, want)
	}
}

func TestResolveClaims_UnknownScopeIgnored(t *testing.T) {
	p := claimsTestPrincipal()

	claims := ResolveClaims(p, []string{"bogus"})
	want := map[string]any{"sub": p.Subject}
	if !reflect.DeepEqual(claims, want) {
		t.Errorf("ResolveClaims(bogus) = %v, want %v", claims, want)
	}
}

func TestResolveClaims_PermissionsNeverOmitted(t *testing.T) {
	// A granted permissions scope yields the key with explicit false flags,
	// never an omitted key.
	p := &Principal{Subject: "u1"}

	claims := ResolveClaims(p, []string{"permissions"})
	perms, ok := claims["permissions"].(map[string]any)
	if !ok {
		t.Fatalf("permissions claim missing or wrong type: %v", claims)
	}
	if perms["admin_user"] != false || perms["create_applications"] != false {
		t.Errorf("permissions = %v, want both flags false", perms)
	}
}

func TestResolveClaims_Deterministic(t *testing.T) {
	p := claimsTestPrincipal()
	scopes := []string{"username", "email", "permissions"}

	first := ResolveClaims(p, scopes)
	second := ResolveClaims(p, scopes)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated resolution differs: %v vs %v", first, second)
	}
}

func TestValidateScopes(t *testing.T) {
	tests := []struct {
		name    string
		scopes  []string
		wantErr bool
	}{
		{"empty", nil, false},
		{"email only", []string{"email"}, false},
		{"all claim scopes", []string{"username", "email", "permissions"}, false},
		{"admin rejected", []string{"admin"}, true},
		{"mixed rejected", []string{"email", "admin"}, true},
		{"openid rejected here", []string{"openid"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScopes(tt.scopes)
			if tt.wantErr && !errors.Is(err, ErrInvalidScope) {
				t.Errorf("ValidateScopes(%v) = %v, want ErrInvalidScope", tt.scopes, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateScopes(%v) = %v, want nil", tt.scopes, err)
			}
		})
	}
}

func TestFilterScopes(t *testing.T) {
	got := FilterScopes([]string{"openid", "email", "offline_access", "permissions"})
	want := []string{"email", "permissions"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterScopes() = %v, want %v", got, want)
	}
}
