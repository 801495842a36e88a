package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-faktur/internal/common"
	"github.com/noah-isme/backend-faktur/internal/tenant"
)

func loginFor(t *testing.T, svc *Service, tenantID uuid.UUID, roles []string) (User, string) {
	t.Helper()
	store := svc.store.(*memoryStore)
	user := mustRegister(t, svc, tenantID, "user@example.com")

	if roles != nil {
		id := uuid.MustParse(user.ID)
		record := store.users[id]
		record.Roles = roles
		store.users[id] = record
	}

	result, err := svc.Login(context.Background(), tenantID, "user@example.com", "correct horse battery", "ua", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return result.User, result.AccessToken
}

func sessionProbe(got *common.Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session, ok := common.SessionFrom(r.Context()); ok {
			*got = session
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthMissingToken(t *testing.T) {
	svc := newTestService(t, newMemoryStore())
	m := Middleware{Service: svc}

	rec := httptest.NewRecorder()
	m.RequireAuth(sessionProbe(&common.Session{})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthBearerToken(t *testing.T) {
	svc := newTestService(t, newMemoryStore())
	tenantID := uuid.New()
	user, token := loginFor(t, svc, tenantID, nil)
	m := Middleware{Service: svc}

	var session common.Session
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(tenant.WithTenant(req.Context(), tenantID.String()))

	rec := httptest.NewRecorder()
	m.RequireAuth(sessionProbe(&session)).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if session.UserID != user.ID {
		t.Fatalf("session user = %q, want %q", session.UserID, user.ID)
	}
}

func TestRequireAuthCookieToken(t *testing.T) {
	svc := newTestService(t, newMemoryStore())
	tenantID := uuid.New()
	_, token := loginFor(t, svc, tenantID, nil)
	m := Middleware{Service: svc, AccessCookie: "faktur_access"}

	var session common.Session
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "faktur_access", Value: token})
	req = req.WithContext(tenant.WithTenant(req.Context(), tenantID.String()))

	rec := httptest.NewRecorder()
	m.RequireAuth(sessionProbe(&session)).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequireAuthTenantMismatch(t *testing.T) {
	svc := newTestService(t, newMemoryStore())
	_, token := loginFor(t, svc, uuid.New(), nil)
	m := Middleware{Service: svc}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(tenant.WithTenant(req.Context(), uuid.NewString()))

	rec := httptest.NewRecorder()
	m.RequireAuth(sessionProbe(&common.Session{})).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 on tenant mismatch", rec.Code)
	}
}

func TestRequireRoleForbidden(t *testing.T) {
	svc := newTestService(t, newMemoryStore())
	tenantID := uuid.New()
	_, token := loginFor(t, svc, tenantID, []string{"member"})
	m := Middleware{Service: svc}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(tenant.WithTenant(req.Context(), tenantID.String()))

	rec := httptest.NewRecorder()
	m.RequireRole("admin")(sessionProbe(&common.Session{})).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireRoleAdmin(t *testing.T) {
	svc := newTestService(t, newMemoryStore())
	tenantID := uuid.New()
	_, token := loginFor(t, svc, tenantID, []string{"admin", "member"})
	m := Middleware{Service: svc}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(tenant.WithTenant(req.Context(), tenantID.String()))

	rec := httptest.NewRecorder()
	m.RequireRole("admin")(sessionProbe(&common.Session{})).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAuthenticatePassThrough(t *testing.T) {
	svc := newTestService(t, newMemoryStore())
	m := Middleware{Service: svc}

	var authed bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authed = common.SessionFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	m.Authenticate(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || authed {
		t.Fatalf("anonymous request blocked: status %d authed %v", rec.Code, authed)
	}
}
