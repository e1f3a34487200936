package appetite

import "github.com/Recursive-Llama/Lotus-Trader-sub009/internal/regime"

// PhaseWeights is the per-macro-phase weighting of A_base's components,
// generalising the teacher's regime-adaptive WeightConfig (which re-weighted
// 1h/4h/12h/24h momentum readings per regime) to re-weight appetite
// components per macro phase instead.
type PhaseWeights struct {
	PhasePolicy     float64
	MacroAdjustment float64
	CutPressure     float64
	IntentDelta     float64
	AgeBoost        float64
	McapBoost       float64
}

// Config holds the documented coefficients for A/E (spec §4.5).
type Config struct {
	Weights map[regime.Phase]PhaseWeights

	// BucketMultiplier scales A_final/E_final by mcap bucket (spec
	// "bucket_multiplier").
	BucketMultiplier map[string]float64

	// AgeBoostFullAfterHours is the instrument age at which AgeBoost saturates to 1.0.
	AgeBoostFullAfterHours float64

	// CutPressureThreshold is the consecutive-loss count at which CutPressure
	// saturates at 1.0; below it, pressure rises in proportion to the losses.
	CutPressureThreshold int
}

// DefaultConfig returns documented defaults, loosely grounded on the
// teacher's regime-adaptive weight ratios (trending favors longer-horizon
// conviction terms; choppy favors defensive/exit terms).
func DefaultConfig() Config {
	return Config{
		Weights: map[regime.Phase]PhaseWeights{
			regime.PhaseTrending: {PhasePolicy: 0.35, MacroAdjustment: 0.15, CutPressure: 0.10, IntentDelta: 0.15, AgeBoost: 0.10, McapBoost: 0.15},
			regime.PhaseChoppy:   {PhasePolicy: 0.20, MacroAdjustment: 0.10, CutPressure: 0.30, IntentDelta: 0.20, AgeBoost: 0.10, McapBoost: 0.10},
			regime.PhaseHighVol:  {PhasePolicy: 0.15, MacroAdjustment: 0.10, CutPressure: 0.35, IntentDelta: 0.20, AgeBoost: 0.05, McapBoost: 0.15},
			regime.Unknown:       {PhasePolicy: 0.25, MacroAdjustment: 0.15, CutPressure: 0.20, IntentDelta: 0.15, AgeBoost: 0.10, McapBoost: 0.15},
		},
		BucketMultiplier: map[string]float64{
			"nano": 0.7, "micro": 0.85, "mid": 1.0, "big": 1.05, "large": 1.1, "xl": 1.15,
		},
		AgeBoostFullAfterHours: 72,
		CutPressureThreshold:   3,
	}
}
