// Package budget enforces the per-bar compute budget described in spec §5:
// "any per-bar computation exceeding a configured budget is aborted; the
// state is retained from the prior bar and the bar is marked skipped".
package budget

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Limiter bounds both the wall-clock time a single bar's pipeline may run
// for and the rate at which an instrument may be re-evaluated, so a burst of
// late bars can never starve the cooperative per-instrument loop (spec §5).
type Limiter struct {
	perBarTimeout time.Duration
	rateLimiter   *rate.Limiter
}

// NewLimiter builds a Limiter with the given per-bar timeout and a token
// bucket refilling at evalsPerSecond with the given burst.
func NewLimiter(perBarTimeout time.Duration, evalsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		perBarTimeout: perBarTimeout,
		rateLimiter:   rate.NewLimiter(rate.Limit(evalsPerSecond), burst),
	}
}

// Run executes fn under the configured per-bar timeout. If fn does not
// return before the deadline, Run returns (false, ctx.Err()) and the caller
// must retain the prior state and mark the bar skipped — it must never
// silently accept a partial result.
func (l *Limiter) Run(parent context.Context, instrumentID string, fn func(context.Context) error) (completed bool, err error) {
	if err := l.rateLimiter.Wait(parent); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(parent, l.perBarTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err == nil, err
	case <-ctx.Done():
		log.Warn().
			Str("instrument", instrumentID).
			Dur("budget", l.perBarTimeout).
			Msg("per-bar compute budget exceeded, bar marked skipped")
		return false, ctx.Err()
	}
}
