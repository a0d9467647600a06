package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/udo-labs/udo-engine/internal/model"
)

func TestGuard_PassesValueThrough(t *testing.T) {
	g := NewGuard(DefaultGuardConfig())

	val, err := DoVal(context.Background(), g, func(_ context.Context) (int, error) {
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 7 {
		t.Errorf("expected 7, got %d", val)
	}
}

func TestGuard_OpenBreakerFailsFastWithoutCalling(t *testing.T) {
	cfg := DefaultGuardConfig()
	cfg.RatePerSec = 0 // isolate breaker behavior
	cfg.Breaker = BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour}
	g := NewGuard(cfg)

	boom := errors.New("recompute exploded")
	for i := 0; i < 2; i++ {
		if err := g.Do(context.Background(), func(_ context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected underlying error, got %v", err)
		}
	}

	called := false
	err := g.Do(context.Background(), func(_ context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Error("dependency must not be invoked while breaker is open")
	}
	ue, ok := model.AsUnavailable(err)
	if !ok {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if ue.RetryAfter <= 0 {
		t.Errorf("expected positive retry-after hint, got %s", ue.RetryAfter)
	}
}

func TestGuard_TimeoutCountsAsFailure(t *testing.T) {
	cfg := DefaultGuardConfig()
	cfg.RatePerSec = 0
	cfg.Timeout = 10 * time.Millisecond
	cfg.Breaker = BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour}
	g := NewGuard(cfg)

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if g.Breaker().State() != BreakerOpen {
		t.Errorf("timed-out call must count toward the breaker, state %s", g.Breaker().State())
	}
}

func TestGuard_RateLimitRejectsWithRetryAfter(t *testing.T) {
	cfg := DefaultGuardConfig()
	cfg.RatePerSec = 1
	cfg.Burst = 1
	g := NewGuard(cfg)

	if err := g.Do(context.Background(), func(_ context.Context) error { return nil }); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	err := g.Do(context.Background(), func(_ context.Context) error { return nil })
	ue, ok := model.AsUnavailable(err)
	if !ok {
		t.Fatalf("expected UnavailableError when bucket exhausted, got %v", err)
	}
	if !errors.Is(ue.Err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited cause, got %v", ue.Err)
	}
}
