package learn

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/infra/breakers"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core/errs"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// RecurrenceTau is the EMA time constant for recurrence_score (spec §4.7).
const RecurrenceTau = 30 * 24 * time.Hour

// lockRetries bounds TryLock attempts before routing contention through the
// breaker (spec §5: "per-key lock or single-writer actor").
const lockRetries = 3

// BaselineFunc resolves baseline_rr for a (mcap_bucket, timeframe) pair over
// the trailing window (90 days / 30-sample minimum). ready=false means
// "baseline_unready" and edge_raw falls back to neutral.
type BaselineFunc func(mcapBucket, timeframe string) (rr float64, ready bool)

type keyEntry struct {
	mu    sync.Mutex
	stats PatternStats
}

// Aggregator is the Pattern Aggregator (spec §4.7): scope-key-sharded
// PatternStats with per-key write locks and lock-free reader snapshots
// (spec §5 shared-resource policy).
type Aggregator struct {
	mu       sync.RWMutex
	entries  map[scope.Key]*keyEntry
	children map[scope.Key]map[scope.Key]struct{}
	breaker  *breakers.Breaker
	baseline BaselineFunc

	// onBraidPromotion, if set, fires every time registerChild promotes a
	// parent scope to a new braid level (metrics.Registry.RecordBraidPromotion
	// wires into this).
	onBraidPromotion func()
}

// SetBraidPromotionHook wires fn to fire on every braid promotion. Optional;
// a nil hook (the default) just skips the callback.
func (a *Aggregator) SetBraidPromotionHook(fn func()) {
	a.onBraidPromotion = fn
}

// DegradedCount returns the number of scope keys currently marked degraded
// (spec §4.8 failure semantics), for the aggregator-degraded gauge.
func (a *Aggregator) DegradedCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	count := 0
	for _, e := range a.entries {
		e.mu.Lock()
		if e.stats.Degraded {
			count++
		}
		e.mu.Unlock()
	}
	return count
}

// NewAggregator constructs an empty Aggregator with the given per-key
// write-contention breaker tuning (internal/config.EngineConfig.BreakerConfig
// loads this from YAML). A nil
// baseline always reports not-ready.
func NewAggregator(baseline BaselineFunc, breakerCfg breakers.Config) *Aggregator {
	if baseline == nil {
		baseline = func(string, string) (float64, bool) { return 0, false }
	}
	return &Aggregator{
		entries:  make(map[scope.Key]*keyEntry),
		children: make(map[scope.Key]map[scope.Key]struct{}),
		breaker:  breakers.New("pattern-aggregator", breakerCfg),
		baseline: baseline,
	}
}

func (a *Aggregator) entryFor(key scope.Key) *keyEntry {
	a.mu.RLock()
	e, ok := a.entries[key]
	a.mu.RUnlock()
	if ok {
		return e
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok = a.entries[key]; ok {
		return e
	}
	e = &keyEntry{stats: PatternStats{ScopeKey: key}}
	a.entries[key] = e
	return e
}

// withLock serializes one mutation against a single scope key. Past
// lockRetries failed TryLocks, the blocking attempt is routed through the
// breaker so sustained contention fails fast instead of queueing forever.
func (a *Aggregator) withLock(key scope.Key, fn func(*PatternStats)) error {
	e := a.entryFor(key)
	for i := 0; i < lockRetries; i++ {
		if e.mu.TryLock() {
			fn(&e.stats)
			e.mu.Unlock()
			return nil
		}
		time.Sleep(time.Millisecond * time.Duration(1<<uint(i)))
	}
	_, err := a.breaker.Execute(func() (any, error) {
		e.mu.Lock()
		fn(&e.stats)
		e.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		log.Warn().Str("scope_key", string(key)).Err(err).Msg("pattern aggregator: per-key lock contention")
		return fmt.Errorf("scope %s: %w", key, errs.ErrPerKeyLockContention)
	}
	return nil
}

// RecordOutcome folds one closed trade's outcome into scopeKey's
// PatternStats: n/avg_rr/var_rr (Welford's online algorithm),
// recurrence_score (EMA, τ=30d), field_coherence, and edge_raw (spec §4.7).
// parentKey is the coarser scope scopeKey rolls up into for
// incremental_edge and braid promotion; pass "" if scopeKey has no parent.
func (a *Aggregator) RecordOutcome(scopeKey, parentKey scope.Key, rr float64, mcapBucket, timeframe string, positiveSubSegment bool, ts time.Time) error {
	baselineRR, ready := a.baseline(mcapBucket, timeframe)

	err := a.withLock(scopeKey, func(s *PatternStats) {
		n := s.N
		delta := rr - s.AvgRR
		s.AvgRR += delta / float64(n+1)
		delta2 := rr - s.AvgRR
		s.VarRR = (s.VarRR*float64(n) + delta*delta2) / float64(n+1)
		s.N = n + 1

		if !s.LastUpdateTS.IsZero() {
			days := ts.Sub(s.LastUpdateTS).Hours() / 24.0
			if days < 0 {
				days = 0
			}
			alpha := 1 - math.Exp(-days/(RecurrenceTau.Hours()/24.0))
			s.RecurrenceScore += alpha * (1 - s.RecurrenceScore)
		}
		s.LastUpdateTS = ts

		s.RecordSegment(positiveSubSegment)

		supportMult := math.Min(1.0, float64(s.N)/20.0)
		if ready {
			s.EdgeRaw = (s.AvgRR - baselineRR) * s.FieldCoherence * supportMult
		} else {
			s.EdgeRaw = 0
		}
		s.Degraded = false
	})
	if err != nil {
		return err
	}

	if parentKey != "" && parentKey != scopeKey {
		a.registerChild(parentKey, scopeKey)
		incr := a.IncrementalEdge(scopeKey, parentKey)
		_ = a.withLock(scopeKey, func(s *PatternStats) { s.IncrementalEdge = incr })
	}
	return nil
}

// registerChild records scopeKey as a child strand of parentKey; once three
// distinct children have been seen the parent is promoted to a braid (spec
// §4.7: ">= 3 child strands ... emit a braid-level-N+1 record").
func (a *Aggregator) registerChild(parentKey, childKey scope.Key) {
	a.mu.Lock()
	set, ok := a.children[parentKey]
	if !ok {
		set = make(map[scope.Key]struct{})
		a.children[parentKey] = set
	}
	_, seen := set[childKey]
	if !seen {
		set[childKey] = struct{}{}
	}
	a.mu.Unlock()

	if seen {
		return
	}
	_ = a.withLock(parentKey, func(s *PatternStats) {
		if s.PromoteChildStrand() {
			log.Info().Str("scope_key", string(parentKey)).Int("braid_level", s.BraidLevel()).
				Msg("pattern aggregator: braid promotion")
			if a.onBraidPromotion != nil {
				a.onBraidPromotion()
			}
		}
	})
}

// Snapshot returns a copy of the PatternStats for key. Readers never block
// writers (spec §5: "reads are lock-free snapshots").
func (a *Aggregator) Snapshot(key scope.Key) (PatternStats, bool) {
	a.mu.RLock()
	e, ok := a.entries[key]
	a.mu.RUnlock()
	if !ok {
		return PatternStats{}, false
	}
	e.mu.Lock()
	s := e.stats
	e.mu.Unlock()
	return s, true
}

// IncrementalEdge is edge_raw(key) minus edge_raw(parentKey) — the test a
// pattern must pass to avoid being dropped (spec §4.7: "patterns that fail
// to add incremental edge over their parent are dropped").
func (a *Aggregator) IncrementalEdge(key, parentKey scope.Key) float64 {
	child, ok := a.Snapshot(key)
	if !ok {
		return 0
	}
	parent, ok := a.Snapshot(parentKey)
	if !ok {
		return child.EdgeRaw
	}
	return child.EdgeRaw - parent.EdgeRaw
}

// MarkDegraded flags key degraded after a pattern-computation error (spec
// §4.8): excluded from override materialization until recomputed.
func (a *Aggregator) MarkDegraded(key scope.Key) error {
	return a.withLock(key, func(s *PatternStats) { s.Degraded = true })
}

// Seed installs a PatternStats snapshot loaded from durable storage as the
// live in-memory entry for its scope key, for process-restart rehydration
// (spec §6 persistence contract). It must only be called before the
// Aggregator is serving live traffic; it overwrites any existing entry.
func (a *Aggregator) Seed(stats PatternStats) {
	a.mu.Lock()
	a.entries[stats.ScopeKey] = &keyEntry{stats: stats}
	a.mu.Unlock()
}
