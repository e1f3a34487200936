// Package errs defines the error taxonomy shared across the engine (spec §7).
// Every sentinel here is safe to compare with errors.Is after wrapping with %w.
package errs

import "errors"

// Data errors: the bar or stream is rejected outright, the engine waits.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrOutOfOrder       = errors.New("bar out of order")
	ErrDuplicate        = errors.New("duplicate bar")
	ErrGapTooLarge      = errors.New("gap too large")
)

// State errors: the stream has no usable state this bar.
var (
	ErrUndefined = errors.New("state undefined: below warmup threshold")
	ErrFlapping  = errors.New("state flapping: prior state retained")
)

// Concurrency errors: transient, always retried or degraded, never fatal.
var (
	ErrPerKeyLockContention = errors.New("per-key lock contention")
	ErrAggregatorDegraded   = errors.New("aggregator key degraded")
)

// Learning errors: BoundsViolation should be unreachable by construction;
// seeing it in production is a defect, not an operator-facing condition.
var ErrBoundsViolation = errors.New("lesson bounds violation")

// Position errors.
var ErrPositionAlreadyOpen = errors.New("position already open for (instrument, timeframe)")
