package breakers

import (
    "time"
    cb "github.com/sony/gobreaker"
)

type Breaker struct{ cb *cb.CircuitBreaker }

// Config is the tunable subset of gobreaker.Settings this engine exposes
// through internal/config, so an operator can retune trip sensitivity
// without a rebuild, the same way every other coefficient in this repo is
// YAML-addressable.
type Config struct {
    Interval                    time.Duration
    Timeout                     time.Duration
    ConsecutiveFailureThreshold uint32
    MinRequests                 uint32
    FailureRatio                float64
}

// DefaultConfig returns the documented defaults (spec has no explicit
// breaker thresholds; these mirror the teacher's own exchange-call breaker
// tuning, reused here for the per-key write-contention breaker).
func DefaultConfig() Config {
    return Config{
        Interval:                    60 * time.Second,
        Timeout:                     60 * time.Second,
        ConsecutiveFailureThreshold: 3,
        MinRequests:                 20,
        FailureRatio:                0.05,
    }
}

func New(name string, cfg Config) *Breaker {
    st := cb.Settings{Name: name}
    st.Interval = cfg.Interval
    st.Timeout = cfg.Timeout
    st.ReadyToTrip = func(counts cb.Counts) bool {
        if counts.ConsecutiveFailures >= cfg.ConsecutiveFailureThreshold { return true }
        total := counts.Requests
        if total < cfg.MinRequests { return false }
        if float64(counts.TotalFailures)/float64(total) > cfg.FailureRatio { return true }
        return false
    }
    return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }
