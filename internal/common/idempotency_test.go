package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func idemTestSetup(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Idem{R: rdb, TTL: time.Minute}, mr
}

func TestIdemFirstRequestPasses(t *testing.T) {
	idem, _ := idemTestSetup(t)

	var calls int
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/invoices", nil)
	req.Header.Set("Idempotency-Key", "draft-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("status = %d calls = %d", rec.Code, calls)
	}
}

func TestIdemReplayRejected(t *testing.T) {
	idem, _ := idemTestSetup(t)

	var calls int
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/invoices", nil)
		req.Header.Set("Idempotency-Key", "draft-abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if i == 1 {
			if rec.Code != http.StatusConflict {
				t.Fatalf("replay status = %d, want 409", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "IDEMPOTENT_REPLAY") {
				t.Fatalf("replay body = %s", rec.Body.String())
			}
		}
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestIdemKeyExpires(t *testing.T) {
	idem, mr := idemTestSetup(t)

	var calls int
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/invoices", nil)
		req.Header.Set("Idempotency-Key", "draft-abc")
		h.ServeHTTP(httptest.NewRecorder(), req)
		mr.FastForward(2 * time.Minute)
	}

	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2 after expiry", calls)
	}
}

func TestIdemMissingHeaderSkipsGate(t *testing.T) {
	idem, _ := idemTestSetup(t)

	var calls int
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/invoices", nil))
	}
	if calls != 3 {
		t.Fatalf("handler ran %d times, want 3", calls)
	}
}
