package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type fakeDirectory struct {
	slugs map[string]uuid.UUID
}

func (f fakeDirectory) GetBySlug(_ context.Context, slug string) (Profile, error) {
	id, ok := f.slugs[slug]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return Profile{ID: id, Slug: slug}, nil
}

func TestResolverPrefersHeader(t *testing.T) {
	r := NewResolver("", "faktur.example", "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.faktur.example"
	req.Header.Set("X-Tenant-ID", "explicit-tenant")

	if got := r.Resolve(req); got != "explicit-tenant" {
		t.Fatalf("resolved %q, want explicit-tenant", got)
	}
}

func TestResolverSubdomainFallback(t *testing.T) {
	r := NewResolver("", "faktur.example", "")

	cases := map[string]string{
		"acme.faktur.example":      "acme",
		"acme.faktur.example:8080": "acme",
		"faktur.example":           "",
		"other.example":            "",
	}
	for host, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		if got := r.Resolve(req); got != want {
			t.Fatalf("host %q resolved %q, want %q", host, got, want)
		}
	}
}

func TestResolverNoRootDomainUsesFirstLabel(t *testing.T) {
	r := NewResolver("", "", "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.localhost:3000"

	if got := r.Resolve(req); got != "acme" {
		t.Fatalf("resolved %q, want acme", got)
	}
}

func TestMiddlewareDefaultTenant(t *testing.T) {
	r := NewResolver("", "faktur.example", "fallback-tenant")

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, _ = FromContext(req.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "faktur.example"
	r.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	if got != "fallback-tenant" {
		t.Fatalf("context tenant = %q, want fallback-tenant", got)
	}
}

func TestMiddlewareCarriesHeaderTenant(t *testing.T) {
	r := NewResolver("X-Org", "", "")

	var got string
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, ok = FromContext(req.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Org", "acme")
	r.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	if !ok || got != "acme" {
		t.Fatalf("context tenant = %q ok=%v", got, ok)
	}
}

func TestMiddlewareCanonicalisesSubdomainSlug(t *testing.T) {
	tenantID := uuid.New()
	r := NewResolver("", "faktur.example", "")
	r.Directory = fakeDirectory{slugs: map[string]uuid.UUID{"acme": tenantID}}

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, _ = FromContext(req.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.faktur.example"
	r.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	if got != tenantID.String() {
		t.Fatalf("context tenant = %q, want %q", got, tenantID)
	}
}

func TestMiddlewareUnknownSlugLeavesUnresolved(t *testing.T) {
	r := NewResolver("", "faktur.example", "")
	r.Directory = fakeDirectory{slugs: map[string]uuid.UUID{}}

	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, ok = FromContext(req.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "ghost.faktur.example"
	r.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	if ok {
		t.Fatal("unknown slug should leave the request unresolved")
	}
}

func TestMiddlewareUUIDBypassesDirectory(t *testing.T) {
	tenantID := uuid.NewString()
	r := NewResolver("", "", "")
	r.Directory = fakeDirectory{slugs: map[string]uuid.UUID{}}

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, _ = FromContext(req.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", tenantID)
	r.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	if got != tenantID {
		t.Fatalf("context tenant = %q, want %q", got, tenantID)
	}
}

func TestMiddlewareDefaultTenantSlugCanonicalised(t *testing.T) {
	tenantID := uuid.New()
	r := NewResolver("", "faktur.example", "default")
	r.Directory = fakeDirectory{slugs: map[string]uuid.UUID{"default": tenantID}}

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, _ = FromContext(req.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "faktur.example"
	r.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	if got != tenantID.String() {
		t.Fatalf("context tenant = %q, want %q", got, tenantID)
	}
}

func TestFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := FromContext(req.Context()); ok {
		t.Fatal("expected no tenant on bare context")
	}
	if _, ok := FromContext(WithTenant(req.Context(), "   ")); ok {
		t.Fatal("whitespace tenant should not resolve")
	}
}
