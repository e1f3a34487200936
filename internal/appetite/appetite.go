// Package appetite implements the Appetite Calculator (spec §4.5):
// phase-adaptive A/E composite scores gating position entries and exits,
// generalising the teacher's regime-adaptive momentum weighting
// (internal/algo/momentum/core.go's per-regime WeightConfig) from a single
// momentum score to a pair of opposing appetite scores.
package appetite

import (
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/indicators"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/signature"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/regime"
)

// Inputs is the per-bar context snapshot the Appetite Calculator consumes
// (spec §4.5: "all coefficients read from a context snapshot plus current
// Overrides").
type Inputs struct {
	Context            regime.Context
	Signature          signature.Signature
	InstrumentAgeHours float64
	ConsecutiveLosses  int
	IntentDelta        float64 // normalised [-1,1]: strategy/operator intent shift
	McapBucket         string
	Override           learn.Override
}

// Scores is the A/E pair produced for one bar (spec §3, §4.5); both in [0,1]
// (I3).
type Scores struct {
	A float64
	E float64
}

var mcapBoostTable = map[string]float64{
	"nano": 0.3, "micro": 0.5, "mid": 0.7, "big": 0.8, "large": 0.9, "xl": 1.0,
}

// Compute derives A_final/E_final for one bar (spec §4.5):
//
//	A_final = clamp(A_base . A_boost . bucket_multiplier, 0, 1)
//
// E_final mirrors A_base's composition with inverse sign logic on the
// add-vs-exit components, then folds in the Signature's decay reading
// (DX/EDX) as direct exit pressure.
func Compute(in Inputs, cfg Config, now time.Time) Scores {
	weights, ok := cfg.Weights[in.Context.MacroPhase]
	if !ok {
		weights = cfg.Weights[regime.Unknown]
	}

	phasePolicy := indicators.Clamp01(in.Signature.TS - 0.3*in.Signature.OX)
	macroAdj := macroAdjustment(in.Context.MacroPhase)
	cutPressure := indicators.Clamp01(float64(in.ConsecutiveLosses) / float64(max1(cfg.CutPressureThreshold)))
	intentPos := indicators.Clamp01((in.IntentDelta + 1) / 2)
	ageBoost := indicators.Clamp01(in.InstrumentAgeHours / max1f(cfg.AgeBoostFullAfterHours))
	mcapBoost := mcapBoostTable[in.McapBucket]

	aBase := weights.PhasePolicy*phasePolicy +
		weights.MacroAdjustment*macroAdj +
		weights.CutPressure*(1-cutPressure) +
		weights.IntentDelta*intentPos +
		weights.AgeBoost*ageBoost +
		weights.McapBoost*mcapBoost

	eBase := weights.PhasePolicy*(1-phasePolicy) +
		weights.MacroAdjustment*(1-macroAdj) +
		weights.CutPressure*cutPressure +
		weights.IntentDelta*(1-intentPos) +
		weights.AgeBoost*(1-ageBoost) +
		weights.McapBoost*(1-mcapBoost)
	eBase = 0.7*eBase + 0.3*maxF(in.Signature.DX, in.Signature.EDX)

	bucketMult := cfg.BucketMultiplier[in.McapBucket]
	if bucketMult == 0 {
		bucketMult = 1.0
	}
	eBucketAdj := indicators.Clamp(2.0-bucketMult, 0.5, 1.5)

	aBoost := in.Override.EntryAggressionMult
	if aBoost == 0 {
		aBoost = 1.0
	}
	eBoost := in.Override.ExitAggressionMult
	if eBoost == 0 {
		eBoost = 1.0
	}

	return Scores{
		A: indicators.Clamp01(aBase * aBoost * bucketMult),
		E: indicators.Clamp01(eBase * eBoost * eBucketAdj),
	}
}

// macroAdjustment maps the macro phase to a directional conviction term:
// trending regimes favor add-side appetite, choppy/high-vol regimes favor
// caution (mirrors the teacher's regime-weight table bias).
func macroAdjustment(p regime.Phase) float64 {
	switch p {
	case regime.PhaseTrending:
		return 1.0
	case regime.PhaseChoppy:
		return 0.5
	case regime.PhaseHighVol:
		return 0.2
	default:
		return 0.4
	}
}

func max1(i int) int {
	if i < 1 {
		return 1
	}
	return i
}

func max1f(f float64) float64 {
	if f < 1 {
		return 1
	}
	return f
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
