package model

import (
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// Error taxonomy for the engine core. All core operations return one of these
// (wrapped with context via eris) or succeed; nothing else crosses the
// core/collaborator boundary. HTTP mapping is the API layer's concern.
var (
	// ErrValidation flags malformed vector or dimension input. Rejected
	// before any mutation; never partially applied.
	ErrValidation = eris.New("validation failed")

	// ErrInvalidAcknowledgement flags an applied impact outside
	// [0, estimated_impact] for the target mitigation.
	ErrInvalidAcknowledgement = eris.New("invalid acknowledgement")

	// ErrNotFound flags an unknown project or mitigation id.
	ErrNotFound = eris.New("not found")
)

// UnavailableError is returned when the guarded recompute path is
// short-circuited (circuit open or rate limited). It carries a retry-after
// hint for the caller.
type UnavailableError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return "source unavailable: " + e.Err.Error()
	}
	return "source unavailable"
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an unknown-project or unknown-mitigation
// error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a caller mistake: malformed input or an
// out-of-range acknowledgement.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidAcknowledgement)
}

// AsUnavailable unwraps err to an UnavailableError if one is in the chain.
func AsUnavailable(err error) (*UnavailableError, bool) {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
