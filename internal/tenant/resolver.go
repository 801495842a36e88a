package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const tenantContextKey contextKey = "tenant.id"

// Directory maps tenant slugs to their stored profile. *ProfileStore
// satisfies it.
type Directory interface {
	GetBySlug(ctx context.Context, slug string) (Profile, error)
}

// Resolver extracts the tenant identifier from incoming requests, preferring
// an explicit header and falling back to the request subdomain. Identifiers
// that are not UUIDs (subdomain or default-tenant slugs) are canonicalised
// through the Directory so downstream handlers always see the tenant id.
type Resolver struct {
	HeaderName    string
	RootDomain    string
	DefaultTenant string
	Directory     Directory
}

// NewResolver builds a resolver. An empty header name defaults to X-Tenant-ID.
func NewResolver(headerName, rootDomain, defaultTenant string) *Resolver {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	return &Resolver{
		HeaderName:    headerName,
		RootDomain:    strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultTenant: strings.TrimSpace(defaultTenant),
	}
}

// Middleware resolves the tenant and stores it on the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		if id == "" {
			id = r.DefaultTenant
		}
		if id != "" {
			id = r.canonical(req.Context(), id)
		}
		if id != "" {
			req = req.WithContext(WithTenant(req.Context(), id))
		}
		next.ServeHTTP(w, req)
	})
}

// canonical turns a slug identifier into the tenant UUID. UUIDs pass through
// untouched; unknown slugs leave the request unresolved so handlers answer
// TENANT_MISSING rather than acting on a bogus id.
func (r *Resolver) canonical(ctx context.Context, id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	if r.Directory == nil {
		return id
	}
	profile, err := r.Directory.GetBySlug(ctx, id)
	if err != nil {
		return ""
	}
	return profile.ID.String()
}

// Resolve returns the tenant identifier carried by the request, if any.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := strings.TrimSpace(req.Header.Get(r.HeaderName)); id != "" {
		return id
	}
	host := stripPort(req.Host)
	if host == "" {
		return ""
	}
	return strings.TrimSpace(r.subdomain(host))
}

func (r *Resolver) subdomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if r.RootDomain != "" {
		if host == r.RootDomain {
			return ""
		}
		suffix := "." + r.RootDomain
		if !strings.HasSuffix(host, suffix) {
			return ""
		}
		host = strings.TrimSuffix(host, suffix)
	}
	first, _, _ := strings.Cut(host, ".")
	return first
}

func stripPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if strings.HasPrefix(hostport, "[") {
		if idx := strings.Index(hostport, "]"); idx > 1 {
			return hostport[1:idx]
		}
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	if idx := strings.Index(hostport, ":"); idx != -1 && strings.Count(hostport, ":") == 1 {
		return hostport[:idx]
	}
	return hostport
}

// WithTenant stores the tenant identifier inside the context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// FromContext extracts the tenant identifier from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantContextKey).(string)
	if !ok {
		return "", false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	return id, true
}
