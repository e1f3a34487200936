package learn

import (
	"math"
	"sync"
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// DefaultHalfLife is the Override decay half-life (spec §9: 72h).
const DefaultHalfLife = 72 * time.Hour

// Override is the time-decayed, read-time materialization of a Lesson
// (spec §4.8, §6 "get_override(scope_key) -> Override"). Multiplicative
// fields asymptote to 1.0 as age -> infinity (spec I6); additive levers
// asymptote to 0.
type Override struct {
	ScopeKey            scope.Key
	SizeMult            float64
	EntryAggressionMult float64
	ExitAggressionMult  float64
	Levers              ExecutionLevers
	AgeHours            float64
	ComputedAt          time.Time
}

// decayLambda solves exp(-lambda*halfLife) = 0.5 for lambda.
func decayLambda(halfLife time.Duration) float64 {
	return math.Ln2 / halfLife.Hours()
}

func decayToward(value, neutral, decay float64) float64 {
	return neutral + (value-neutral)*decay
}

// Materialize computes value(t) for every Lesson field at read time (spec
// §4.8): `neutral + (lesson_value - neutral) * exp(-lambda * age_hours)`.
// A zero UpdatedAt (a Lesson that has never qualified) is treated as
// already-neutral rather than infinitely old.
func Materialize(l Lesson, halfLife time.Duration, now time.Time) Override {
	if l.UpdatedAt.IsZero() {
		return Override{ScopeKey: l.ScopeKey, SizeMult: 1.0, EntryAggressionMult: 1.0, ExitAggressionMult: 1.0,
			Levers: ExecutionLevers{Phase1FracMult: 1.0, TrimDelayMult: 1.0, TrailMult: 1.0, SignalThresholds: map[string]float64{}},
			ComputedAt: now}
	}

	ageHours := now.Sub(l.UpdatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	lambda := decayLambda(halfLife)
	decay := math.Exp(-lambda * ageHours)

	thresholds := make(map[string]float64, len(l.Levers.SignalThresholds))
	for k, v := range l.Levers.SignalThresholds {
		thresholds[k] = decayToward(v, 0, decay)
	}

	return Override{
		ScopeKey:            l.ScopeKey,
		SizeMult:            decayToward(l.SizeMult, 1.0, decay),
		EntryAggressionMult: decayToward(l.EntryAggressionMult, 1.0, decay),
		ExitAggressionMult:  decayToward(l.ExitAggressionMult, 1.0, decay),
		Levers: ExecutionLevers{
			EntryDelayBars:   int(math.Round(decayToward(float64(l.Levers.EntryDelayBars), 0, decay))),
			Phase1FracMult:   decayToward(l.Levers.Phase1FracMult, 1.0, decay),
			TrimDelayMult:    decayToward(l.Levers.TrimDelayMult, 1.0, decay),
			TrailMult:        decayToward(l.Levers.TrailMult, 1.0, decay),
			SignalThresholds: thresholds,
		},
		AgeHours:   ageHours,
		ComputedAt: now,
	}
}

// Store publishes copy-on-write Lesson snapshots and serves Materialize
// reads from them (spec §5: "Lessons/Overrides are copy-on-write snapshots
// published atomically to readers").
type Store struct {
	mu       sync.RWMutex
	lessons  map[scope.Key]Lesson
	halfLife time.Duration
}

// NewStore constructs a Store with the given decay half-life.
func NewStore(halfLife time.Duration) *Store {
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	return &Store{lessons: make(map[scope.Key]Lesson), halfLife: halfLife}
}

// Publish atomically replaces the Lesson snapshot for l.ScopeKey.
func (s *Store) Publish(l Lesson) {
	s.mu.Lock()
	s.lessons[l.ScopeKey] = l
	s.mu.Unlock()
}

// Get materializes the current Override for key at time now. Unknown keys
// resolve to the neutral Lesson, never an error (spec: overrides must
// always be readable; absence is not a failure).
func (s *Store) Get(key scope.Key, now time.Time) Override {
	s.mu.RLock()
	l, ok := s.lessons[key]
	s.mu.RUnlock()
	if !ok {
		l = NeutralLesson(key)
	}
	return Materialize(l, s.halfLife, now)
}

// Lesson returns the raw (undecayed) stored Lesson for key, for callers that
// need to apply the next epoch's Update rather than read a decayed value.
func (s *Store) Lesson(key scope.Key) (Lesson, bool) {
	s.mu.RLock()
	l, ok := s.lessons[key]
	s.mu.RUnlock()
	return l, ok
}
