package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAllowsUnderLimit(t *testing.T) {
	var calls int
	h := Handler{Limiter: New(NewMemoryStore(), 3, time.Minute)}.Middleware(okHandler(&calls))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if calls != 3 {
		t.Fatalf("handler ran %d times, want 3", calls)
	}
}

func TestMiddlewareBlocksOverLimit(t *testing.T) {
	var calls int
	h := Handler{Limiter: New(NewMemoryStore(), 2, time.Minute)}.Middleware(okHandler(&calls))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if !strings.Contains(last.Body.String(), "RATE_LIMITED") {
		t.Fatalf("body = %s", last.Body.String())
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
}

func TestMiddlewareSetsRateHeaders(t *testing.T) {
	var calls int
	h := Handler{Limiter: New(NewMemoryStore(), 5, time.Minute)}.Middleware(okHandler(&calls))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-RateLimit-Limit") != "5" {
		t.Fatalf("limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Fatalf("remaining header = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestMiddlewareKeysIndependently(t *testing.T) {
	var calls int
	h := Handler{
		Limiter: New(NewMemoryStore(), 1, time.Minute),
		Key: func(r *http.Request) string {
			return r.Header.Get("X-Client")
		},
	}.Middleware(okHandler(&calls))

	for _, client := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Client", client)
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("client %s status = %d", client, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	var calls int
	h := Handler{}.Middleware(okHandler(&calls))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}
