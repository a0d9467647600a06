// Package store persists per-project engine state: the current vector, a
// bounded vector history, and the append-only acknowledgement and
// decision-outcome logs. Two drivers are provided, SQLite for single-node
// deployments and Postgres for shared ones.
package store

import (
	"context"
	"time"

	"github.com/udo-labs/udo-engine/internal/model"
)

// Store defines the persistence contract for the uncertainty engine. The
// current vector is the single source of truth per project; PutVector both
// replaces it and appends a history snapshot. Acknowledgements and decision
// outcomes are append-only audit logs.
type Store interface {
	// Vectors
	GetVector(ctx context.Context, projectID string) (*model.Vector, error)
	PutVector(ctx context.Context, projectID string, v model.Vector) error
	VectorHistory(ctx context.Context, projectID string, window int) ([]model.Vector, error)

	// Acknowledgement log (append-only)
	AppendAcknowledgement(ctx context.Context, ack model.Acknowledgement) error
	Acknowledgements(ctx context.Context, projectID string, since time.Time) ([]model.Acknowledgement, error)

	// Decision outcome log (append-only)
	AppendOutcome(ctx context.Context, out model.DecisionOutcome) error
	Outcomes(ctx context.Context, projectID string, limit int) ([]model.DecisionOutcome, error)

	// LastUpdate reports when the project's vector last changed.
	LastUpdate(ctx context.Context, projectID string) (time.Time, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
