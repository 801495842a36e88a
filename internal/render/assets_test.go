package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/noah-isme/backend-faktur/internal/resilience"
)

func TestHTTPAssetsFetchPNG(t *testing.T) {
	payload := testPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	a := &HTTPAssets{Client: srv.Client()}
	data, imageType, err := a.Fetch(context.Background(), srv.URL+"/logo.png")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if imageType != "PNG" {
		t.Fatalf("image type = %q, want PNG", imageType)
	}
	if len(data) != len(payload) {
		t.Fatalf("body length = %d, want %d", len(data), len(payload))
	}
}

func TestHTTPAssetsRejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not found</html>"))
	}))
	defer srv.Close()

	a := &HTTPAssets{Client: srv.Client()}
	if _, _, err := a.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-image payload")
	}
}

func TestHTTPAssetsEnforcesSizeLimit(t *testing.T) {
	payload := testPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	a := &HTTPAssets{Client: srv.Client(), MaxBytes: int64(len(payload) - 1)}
	if _, _, err := a.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestHTTPAssetsBreakerFailsFast(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := &HTTPAssets{
		Client:  srv.Client(),
		Breaker: resilience.NewBreaker("assets-test", 1, 0.5, time.Minute),
	}

	if _, _, err := a.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for upstream failure")
	}
	_, _, err := a.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, resilience.ErrOpenCircuit) {
		t.Fatalf("err = %v, want open circuit", err)
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Fatalf("upstream hit %d times, want 1", got)
	}
}
