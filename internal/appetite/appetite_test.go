package appetite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/signature"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/regime"
)

func TestComputeScoresAreBounded(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	in := Inputs{
		Context:            regime.Context{MacroPhase: regime.PhaseTrending},
		Signature:          signature.Signature{TS: 0.9, OX: 0.1, DX: 0.2, EDX: 0.1},
		InstrumentAgeHours: 200,
		ConsecutiveLosses:  0,
		IntentDelta:        0.5,
		McapBucket:         "mid",
	}
	scores := Compute(in, cfg, now)
	assert.GreaterOrEqual(t, scores.A, 0.0)
	assert.LessOrEqual(t, scores.A, 1.0)
	assert.GreaterOrEqual(t, scores.E, 0.0)
	assert.LessOrEqual(t, scores.E, 1.0)
}

func TestComputeConsecutiveLossesSuppressAAndBoostE(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := Inputs{
		Context:            regime.Context{MacroPhase: regime.PhaseTrending},
		Signature:          signature.Signature{TS: 0.5},
		InstrumentAgeHours: 100,
		McapBucket:         "mid",
	}

	clean := base
	clean.ConsecutiveLosses = 0
	lossy := base
	lossy.ConsecutiveLosses = 10 // well past CutPressureThreshold

	scoreClean := Compute(clean, cfg, now)
	scoreLossy := Compute(lossy, cfg, now)

	assert.Greater(t, scoreClean.A, scoreLossy.A, "more consecutive losses should suppress add-appetite")
	assert.Less(t, scoreClean.E, scoreLossy.E, "more consecutive losses should boost exit-assertiveness")
}

func TestComputeUnknownMacroPhaseFallsBackToDefaultWeights(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := Inputs{
		Context:    regime.Context{MacroPhase: regime.Phase("exotic_phase")}, // not a key in cfg.Weights
		Signature:  signature.Signature{TS: 0.5},
		McapBucket: "mid",
	}
	scores := Compute(in, cfg, now)
	assert.GreaterOrEqual(t, scores.A, 0.0)
	assert.LessOrEqual(t, scores.A, 1.0)
}

func TestComputeOverrideAggressionMultipliersApply(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := Inputs{
		Context:    regime.Context{MacroPhase: regime.PhaseTrending},
		Signature:  signature.Signature{TS: 0.5},
		McapBucket: "mid",
	}

	noOverride := Compute(base, cfg, now)

	boosted := base
	boosted.Override = learn.Override{EntryAggressionMult: 1.3, ExitAggressionMult: 1.3}
	boostedScores := Compute(boosted, cfg, now)

	assert.GreaterOrEqual(t, boostedScores.A, noOverride.A)
}

func TestMacroAdjustmentOrdersPhasesByConviction(t *testing.T) {
	assert.Equal(t, 1.0, macroAdjustment(regime.PhaseTrending))
	assert.Greater(t, macroAdjustment(regime.PhaseTrending), macroAdjustment(regime.PhaseChoppy))
	assert.Greater(t, macroAdjustment(regime.PhaseChoppy), macroAdjustment(regime.PhaseHighVol))
}

func TestMax1AndMax1FFloorAtOne(t *testing.T) {
	assert.Equal(t, 1, max1(0))
	assert.Equal(t, 1, max1(-5))
	assert.Equal(t, 5, max1(5))
	assert.Equal(t, 1.0, max1f(0))
	assert.Equal(t, 2.5, max1f(2.5))
}
