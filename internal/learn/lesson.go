package learn

import (
	"math"
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// ExecutionLevers are the non-multiplier knobs a Lesson adjusts (spec
// §4.8). SignalThresholds is a fixed set of named thresholds the engine
// consults (e.g. "entry_gate_ts"); the Lesson Builder carries this map over
// unchanged from the prior Lesson.
type ExecutionLevers struct {
	EntryDelayBars   int
	Phase1FracMult   float64
	TrimDelayMult    float64
	TrailMult        float64
	SignalThresholds map[string]float64
}

// Lesson is the bounded, versioned output of one PatternStats epoch update
// (spec §4.8, §3).
type Lesson struct {
	ScopeKey            scope.Key
	SizeMult            float64
	EntryAggressionMult float64
	ExitAggressionMult  float64
	Levers              ExecutionLevers
	Epoch               int
	UpdatedAt           time.Time
}

// Config holds the documented Lesson Builder coefficients (spec §4.8, §9).
type Config struct {
	LearningRate float64
	EdgeScale    float64
	DeltaClip    float64

	// EpochChangeCap is I4's second bound: per-epoch change <= this
	// fraction of the prior value, independent of DeltaClip.
	EpochChangeCap float64

	// NMin/EdgeMin gate actionability (spec §4.7/§4.8; §9 resolves
	// N_min=20, edge_min=0.5).
	NMin    int
	EdgeMin float64

	SizeMultBounds   [2]float64
	AggressionBounds [2]float64
	MaxEntryDelayBars int
}

// DefaultConfig returns the authoritative coefficients (spec §9: "take the
// values defined in the Lesson Builder module as authoritative").
func DefaultConfig() Config {
	return Config{
		LearningRate:      0.02,
		EdgeScale:         20,
		DeltaClip:         0.10,
		EpochChangeCap:    0.02,
		NMin:              20,
		EdgeMin:           0.5,
		SizeMultBounds:    [2]float64{0.5, 1.5},
		AggressionBounds:  [2]float64{0.7, 1.3},
		MaxEntryDelayBars: 5,
	}
}

// NeutralLesson is the Lesson a scope key holds before it has ever
// qualified, and the asymptote Overrides decay toward (spec I6).
func NeutralLesson(key scope.Key) Lesson {
	return Lesson{
		ScopeKey:            key,
		SizeMult:            1.0,
		EntryAggressionMult: 1.0,
		ExitAggressionMult:  1.0,
		Levers: ExecutionLevers{
			EntryDelayBars:   0,
			Phase1FracMult:   1.0,
			TrimDelayMult:    1.0,
			TrailMult:        1.0,
			SignalThresholds: map[string]float64{},
		},
	}
}

// Qualifies reports whether stats has enough support to update a Lesson
// (spec §4.7: "actionable when n >= N_min and edge_raw >= edge_min");
// degraded keys and patterns with negative incremental edge over their
// parent never qualify (spec §4.7, §4.8 failure semantics).
func Qualifies(stats PatternStats, cfg Config) bool {
	if stats.Degraded {
		return false
	}
	if stats.N < cfg.NMin {
		return false
	}
	if stats.EdgeRaw < cfg.EdgeMin {
		return false
	}
	if stats.IncrementalEdge < 0 {
		return false
	}
	return true
}

// Update applies one epoch's bounded update to prior given fresh
// PatternStats (spec §4.8). Non-qualifying patterns leave prior untouched —
// never deleted; Override decay (spec I6) still carries them toward
// neutral between updates.
func Update(prior Lesson, stats PatternStats, cfg Config, now time.Time) Lesson {
	if !Qualifies(stats, cfg) {
		return prior
	}

	delta := clampF(stats.EdgeRaw/cfg.EdgeScale*cfg.LearningRate, -cfg.DeltaClip, cfg.DeltaClip)

	next := prior
	next.ScopeKey = stats.ScopeKey
	next.SizeMult = step(prior.SizeMult, delta, cfg.EpochChangeCap, cfg.SizeMultBounds)
	next.EntryAggressionMult = step(prior.EntryAggressionMult, delta, cfg.EpochChangeCap, cfg.AggressionBounds)
	next.ExitAggressionMult = step(prior.ExitAggressionMult, -delta, cfg.EpochChangeCap, cfg.AggressionBounds)

	next.Levers.Phase1FracMult = step(prior.Levers.Phase1FracMult, delta, cfg.EpochChangeCap, cfg.AggressionBounds)
	next.Levers.TrimDelayMult = step(prior.Levers.TrimDelayMult, -delta, cfg.EpochChangeCap, cfg.AggressionBounds)
	next.Levers.TrailMult = step(prior.Levers.TrailMult, delta, cfg.EpochChangeCap, cfg.AggressionBounds)
	next.Levers.EntryDelayBars = stepInt(prior.Levers.EntryDelayBars, delta, cfg.DeltaClip, cfg.MaxEntryDelayBars)
	if next.Levers.SignalThresholds == nil {
		next.Levers.SignalThresholds = map[string]float64{}
	}

	next.Epoch = prior.Epoch + 1
	next.UpdatedAt = now
	return next
}

// step applies delta to prior, first bounding the step to epochCap of
// prior's magnitude (I4's "per-epoch change bounded by 2% of prior value"),
// then clamping the result to bounds (I4's multiplier bounds).
func step(prior, delta, epochCap float64, bounds [2]float64) float64 {
	maxStep := math.Abs(prior) * epochCap
	if delta > maxStep {
		delta = maxStep
	}
	if delta < -maxStep {
		delta = -maxStep
	}
	return clampF(prior+delta, bounds[0], bounds[1])
}

// stepInt nudges an integer lever by -1/0/+1 depending on whether delta
// exceeds half the documented clip, bounded to [0, maxVal].
func stepInt(prior int, delta, deltaClip float64, maxVal int) int {
	next := prior
	if delta > deltaClip/2 {
		next++
	} else if delta < -deltaClip/2 {
		next--
	}
	if next < 0 {
		next = 0
	}
	if next > maxVal {
		next = maxVal
	}
	return next
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
