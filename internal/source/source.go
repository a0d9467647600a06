// Package source defines the measurement collaborator boundary: where the
// engine obtains a project's current uncertainty vector and its history. The
// engine never talks to the expensive recomputation path directly; it goes
// through a Guarded source.
package source

import (
	"context"
	"errors"

	"github.com/udo-labs/udo-engine/internal/model"
	"github.com/udo-labs/udo-engine/internal/resilience"
	"github.com/udo-labs/udo-engine/internal/store"
)

// Source supplies the current vector and a bounded history per project,
// most-recent-last.
type Source interface {
	Current(ctx context.Context, projectID string) (model.Vector, error)
	History(ctx context.Context, projectID string, window int) ([]model.Vector, error)
}

// StoreSource reads vectors straight from the persistence layer.
type StoreSource struct {
	st store.Store
}

// NewStoreSource creates a store-backed source.
func NewStoreSource(st store.Store) *StoreSource {
	return &StoreSource{st: st}
}

func (s *StoreSource) Current(ctx context.Context, projectID string) (model.Vector, error) {
	v, err := s.st.GetVector(ctx, projectID)
	if err != nil {
		return model.Vector{}, err
	}
	return *v, nil
}

func (s *StoreSource) History(ctx context.Context, projectID string, window int) ([]model.Vector, error) {
	return s.st.VectorHistory(ctx, projectID, window)
}

// Guarded wraps a source with the guarded-call policy: rate limit, circuit
// breaker and timeout. Rejections surface as model.UnavailableError.
type Guarded struct {
	inner Source
	guard *resilience.Guard
}

// NewGuarded wraps inner with a guard built from cfg. Domain errors
// (unknown project, malformed vector) never count toward the breaker.
func NewGuarded(inner Source, cfg resilience.GuardConfig) *Guarded {
	cfg.ShouldTrip = func(err error) bool {
		return !errors.Is(err, model.ErrNotFound) && !errors.Is(err, model.ErrValidation)
	}
	return &Guarded{inner: inner, guard: resilience.NewGuard(cfg)}
}

// Guard exposes the underlying guard for observability.
func (g *Guarded) Guard() *resilience.Guard {
	return g.guard
}

func (g *Guarded) Current(ctx context.Context, projectID string) (model.Vector, error) {
	return resilience.DoVal(ctx, g.guard, func(ctx context.Context) (model.Vector, error) {
		return g.inner.Current(ctx, projectID)
	})
}

func (g *Guarded) History(ctx context.Context, projectID string, window int) ([]model.Vector, error) {
	return resilience.DoVal(ctx, g.guard, func(ctx context.Context) ([]model.Vector, error) {
		return g.inner.History(ctx, projectID, window)
	})
}
