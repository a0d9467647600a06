package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/udo-labs/udo-engine/internal/model"
)

// ErrRateLimited is returned (wrapped in model.UnavailableError) when the
// guard's token bucket is exhausted.
var ErrRateLimited = eris.New("rate limited")

// GuardConfig tunes a Guard.
type GuardConfig struct {
	// Timeout bounds each guarded call; a timed-out call counts as a failure
	// for breaker purposes. Default: 5s.
	Timeout time.Duration

	// RatePerSec and Burst configure the token-bucket limiter in front of the
	// dependency. RatePerSec <= 0 disables rate limiting.
	RatePerSec float64
	Burst      int

	// ShouldTrip decides whether an error counts toward the breaker. If nil,
	// every error counts. Domain errors such as "project not found" should
	// not trip the breaker; they are answers, not outages.
	ShouldTrip func(err error) bool

	Breaker BreakerConfig
}

// DefaultGuardConfig returns the default guard tuning.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:    5 * time.Second,
		RatePerSec: 10,
		Burst:      20,
		Breaker:    DefaultBreakerConfig(),
	}
}

// Guard is the single guarded-call policy around an expensive dependency:
// rate limit, then breaker admission, then the call under a timeout, with the
// result fed back into the breaker. Rejections surface as
// model.UnavailableError carrying a retry-after hint.
type Guard struct {
	cfg     GuardConfig
	breaker *Breaker
	limiter *rate.Limiter
}

// NewGuard creates a Guard with the given config.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	g := &Guard{
		cfg:     cfg,
		breaker: NewBreaker(cfg.Breaker),
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return g
}

// Breaker exposes the underlying breaker for observability.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Do runs fn through the guard.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal runs fn through the guard, preserving its return value.
func DoVal[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if g.limiter != nil {
		res := g.limiter.Reserve()
		if !res.OK() || res.Delay() > 0 {
			delay := res.Delay()
			res.Cancel()
			return zero, &model.UnavailableError{
				RetryAfter: delay,
				Err:        ErrRateLimited,
			}
		}
	}

	if err := g.breaker.Allow(); err != nil {
		return zero, &model.UnavailableError{
			RetryAfter: g.breaker.RetryAfter(),
			Err:        err,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	val, err := fn(callCtx)
	if err != nil && g.cfg.ShouldTrip != nil && !g.cfg.ShouldTrip(err) {
		g.breaker.Record(nil)
	} else {
		g.breaker.Record(err)
	}
	if err != nil {
		return zero, err
	}
	return val, nil
}
