package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/asheth-dev/backend-daan/internal/resilience"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	ctx := context.Background()
	b := resilience.NewBreaker(4, 0.5, time.Minute)

	for i := 0; i < 2; i++ {
		b.Report(ctx, true)
	}
	for i := 0; i < 2; i++ {
		b.Report(ctx, false)
	}
	if b.Allow(ctx) {
		t.Fatal("breaker still closed after failure ratio reached")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	ctx := context.Background()
	b := resilience.NewBreaker(1, 0.5, 10*time.Millisecond)

	b.Report(ctx, false)
	if b.Allow(ctx) {
		t.Fatal("breaker did not open")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow(ctx) {
		t.Fatal("breaker did not permit a half-open probe after cool-off")
	}
	b.Report(ctx, true)
	if !b.Allow(ctx) {
		t.Fatal("breaker did not close after successful probe")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	b := resilience.NewBreaker(1, 0.5, 10*time.Millisecond)

	b.Report(ctx, false)
	time.Sleep(20 * time.Millisecond)
	if !b.Allow(ctx) {
		t.Fatal("expected half-open probe")
	}
	b.Report(ctx, false)
	if b.Allow(ctx) {
		t.Fatal("breaker closed again despite failed probe")
	}
}

func TestBackoffGrowsExponentially(t *testing.T) {
	base := 100 * time.Millisecond
	if got := resilience.Backoff(base, 1, 0); got != base {
		t.Fatalf("attempt 1 backoff = %v, want %v", got, base)
	}
	if got := resilience.Backoff(base, 3, 0); got != 4*base {
		t.Fatalf("attempt 3 backoff = %v, want %v", got, 4*base)
	}
	jittered := resilience.Backoff(base, 2, 0.2)
	lower, upper := 160*time.Millisecond, 240*time.Millisecond
	if jittered < lower || jittered > upper {
		t.Fatalf("jittered backoff %v outside [%v, %v]", jittered, lower, upper)
	}
}
