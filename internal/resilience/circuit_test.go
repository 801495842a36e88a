package resilience

import (
	"testing"
	"time"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	b := NewBreaker("test", 4, 0.5, time.Minute)

	for i := 0; i < 2; i++ {
		b.Report(true)
	}
	for i := 0; i < 2; i++ {
		b.Report(false)
	}

	if b.Allow() {
		t.Fatal("expected breaker open after failure ratio reached")
	}
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	b := NewBreaker("test", 1, 0.5, 10*time.Millisecond)
	b.Report(false)
	if b.Allow() {
		t.Fatal("expected breaker open")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open probe permitted after cool-off")
	}
	b.Report(true)
	if !b.Allow() {
		t.Fatal("expected breaker closed after successful probe")
	}
}

func TestBreakerHalfOpenReopensOnFailure(t *testing.T) {
	b := NewBreaker("test", 1, 0.5, 10*time.Millisecond)
	b.Report(false)

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open probe permitted")
	}
	b.Report(false)
	if b.Allow() {
		t.Fatal("expected breaker re-opened after failed probe")
	}
}
