package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SilverCare-Net/care_layer/internal/app/auth"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/logging"
)

func newMiddleware(t *testing.T, skip []string) (*AuthMiddleware, *auth.Issuer) {
	t.Helper()
	issuer := auth.NewIssuer("test-secret", time.Hour, 24*time.Hour)
	return NewAuthMiddleware(issuer, logging.NewDefault("test"), skip), issuer
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Header().Set("X-User-ID", caller.UserID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	m, _ := newMiddleware(t, nil)

	rec := httptest.NewRecorder()
	m.Handler(echoIdentity()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/profile", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_SkipPath(t *testing.T) {
	m, _ := newMiddleware(t, []string{"/healthz"})

	rec := httptest.NewRecorder()
	m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	m, issuer := newMiddleware(t, nil)

	pair, err := issuer.IssuePair(identity.User{ID: "u1", Groups: []string{identity.GroupGuardian}})
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	m.Handler(echoIdentity()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-User-ID"); got != "u1" {
		t.Fatalf("user id: got %q", got)
	}
}

func TestAuthMiddleware_RefreshTokenRejected(t *testing.T) {
	m, issuer := newMiddleware(t, nil)

	pair, err := issuer.IssuePair(identity.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	rec := httptest.NewRecorder()
	m.Handler(echoIdentity()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_GarbageToken(t *testing.T) {
	m, _ := newMiddleware(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	m.Handler(echoIdentity()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestRequireGroups(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name   string
		caller auth.Identity
		want   int
	}{
		{"member", auth.Identity{UserID: "u1", Groups: []string{identity.GroupCaregiver}}, http.StatusOK},
		{"admin bypass", auth.Identity{UserID: "u1", Admin: true}, http.StatusOK},
		{"outsider", auth.Identity{UserID: "u1", Groups: []string{identity.GroupElder}}, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/service/", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), tc.caller))
		rec := httptest.NewRecorder()
		RequireGroups(identity.GroupCaregiver)(ok).ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, rec.Code, tc.want)
		}
	}

	// No identity at all is unauthorized.
	rec := httptest.NewRecorder()
	RequireGroups(identity.GroupCaregiver)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/service/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: got %d, want 401", rec.Code)
	}
}
