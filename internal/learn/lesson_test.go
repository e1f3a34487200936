package learn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

func TestQualifiesRequiresAllThreeConditions(t *testing.T) {
	cfg := DefaultConfig()
	base := PatternStats{N: 25, EdgeRaw: 0.6, IncrementalEdge: 0.1}
	assert.True(t, Qualifies(base, cfg))

	degraded := base
	degraded.Degraded = true
	assert.False(t, Qualifies(degraded, cfg))

	lowN := base
	lowN.N = 5
	assert.False(t, Qualifies(lowN, cfg))

	lowEdge := base
	lowEdge.EdgeRaw = 0.1
	assert.False(t, Qualifies(lowEdge, cfg))

	negIncremental := base
	negIncremental.IncrementalEdge = -0.01
	assert.False(t, Qualifies(negIncremental, cfg))
}

func TestUpdateNonQualifyingLeavesLessonUntouched(t *testing.T) {
	cfg := DefaultConfig()
	prior := NeutralLesson("k")
	stats := PatternStats{N: 1, EdgeRaw: 0, Degraded: true}
	next := Update(prior, stats, cfg, time.Now())
	assert.Equal(t, prior, next)
}

func TestUpdateBoundsPerEpochChangeToEpochChangeCap(t *testing.T) {
	cfg := DefaultConfig()
	prior := NeutralLesson("k")
	stats := PatternStats{ScopeKey: "k", N: 25, EdgeRaw: 100, IncrementalEdge: 0.1} // drives delta to its clip ceiling
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	next := Update(prior, stats, cfg, now)

	// delta = clamp(100/20*0.02, -0.10, 0.10) = 0.10, then stepped down to
	// epochCap*|prior| = 1.0*0.02 = 0.02 (I4's tighter per-epoch bound).
	assert.InDelta(t, 1.02, next.SizeMult, 1e-9)
	assert.InDelta(t, 1.02, next.EntryAggressionMult, 1e-9)
	assert.InDelta(t, 0.98, next.ExitAggressionMult, 1e-9, "exit aggression moves opposite to entry aggression")
	assert.Equal(t, prior.Epoch+1, next.Epoch)
	assert.Equal(t, now, next.UpdatedAt)
}

func TestUpdateBelowEdgeMinDoesNotQualify(t *testing.T) {
	cfg := DefaultConfig()
	prior := NeutralLesson("k")
	// EdgeRaw below edge_min never qualifies (spec §4.7/§4.8), regardless of sign.
	belowMin := PatternStats{ScopeKey: "k", N: 25, EdgeRaw: -100, IncrementalEdge: 0.1}

	next := Update(prior, belowMin, cfg, time.Now())
	assert.Equal(t, prior, next)
}

func TestUpdateRespectsBoundsAcrossManyEpochs(t *testing.T) {
	cfg := DefaultConfig()
	lesson := NeutralLesson("k")
	stats := PatternStats{ScopeKey: "k", N: 25, EdgeRaw: 100, IncrementalEdge: 0.1}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		lesson = Update(lesson, stats, cfg, now.Add(time.Duration(i)*time.Hour))
	}
	// I4: size_mult must never exceed its documented bounds regardless of epoch count.
	assert.LessOrEqual(t, lesson.SizeMult, cfg.SizeMultBounds[1])
	assert.GreaterOrEqual(t, lesson.SizeMult, cfg.SizeMultBounds[0])
	assert.LessOrEqual(t, lesson.EntryAggressionMult, cfg.AggressionBounds[1])
	assert.GreaterOrEqual(t, lesson.ExitAggressionMult, cfg.AggressionBounds[0])
}

func TestStepIntNudgesEntryDelayBarsWithinBounds(t *testing.T) {
	assert.Equal(t, 1, stepInt(0, 0.1, 0.10, 5))
	assert.Equal(t, 0, stepInt(0, -0.1, 0.10, 5))
	assert.Equal(t, 0, stepInt(0, 0.01, 0.10, 5), "small delta below half the clip does not move the lever")
	assert.Equal(t, 5, stepInt(5, 0.1, 0.10, 5), "never exceeds maxVal")
	assert.Equal(t, 0, stepInt(0, -0.1, 0.10, 5), "never goes below zero")
}

func TestNeutralLessonIsAllOnesAndZeroDelay(t *testing.T) {
	l := NeutralLesson(scope.Key("k"))
	assert.Equal(t, 1.0, l.SizeMult)
	assert.Equal(t, 1.0, l.EntryAggressionMult)
	assert.Equal(t, 1.0, l.ExitAggressionMult)
	assert.Equal(t, 0, l.Levers.EntryDelayBars)
	assert.NotNil(t, l.Levers.SignalThresholds)
}
