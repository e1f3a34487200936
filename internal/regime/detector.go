package regime

import "time"

// DetectorInputs holds the market-breadth signals a macro regime classifier
// consumes. The classifier itself lives outside the core (spec §1: context
// ingestion is an external collaborator); this type and Classify let tests
// synthesize a plausible Context without
// depending on that external feed, the same way the teacher's
// RegimeDetector turns breadth stats into a labeled regime.
type DetectorInputs struct {
	RealizedVol7d float64
	PctAbove20MA  float64
	BreadthThrust float64
	Timestamp     time.Time
}

// Thresholds mirror the teacher's regime detector thresholds, generalised to
// MacroPhase labels instead of CryptoRun's scan-weight regimes.
type Thresholds struct {
	TrendingVolMax      float64
	TrendingAboveMAMin  float64
	TrendingThrustMin   float64
	ChoppyVolMin        float64
	ChoppyVolMax        float64
	HighVolMin          float64
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendingVolMax:     0.30,
		TrendingAboveMAMin: 0.60,
		TrendingThrustMin:  0.15,
		ChoppyVolMin:       0.30,
		ChoppyVolMax:       0.60,
		HighVolMin:         0.60,
	}
}

const (
	PhaseTrending Phase = "trending"
	PhaseChoppy   Phase = "choppy"
	PhaseHighVol  Phase = "high_vol"
)

// Classify turns breadth/volatility inputs into a macro Phase and a
// confidence in [0,1], following the teacher's threshold-band approach.
func Classify(in DetectorInputs, th Thresholds) (Phase, float64) {
	if in.RealizedVol7d <= th.TrendingVolMax &&
		in.PctAbove20MA >= th.TrendingAboveMAMin &&
		in.BreadthThrust >= th.TrendingThrustMin {
		volConf := 1.0 - (in.RealizedVol7d / th.TrendingVolMax)
		maConf := in.PctAbove20MA / th.TrendingAboveMAMin
		thrustConf := in.BreadthThrust / th.TrendingThrustMin
		confidence := (volConf + maConf + thrustConf) / 3.0
		if confidence > 1.0 {
			confidence = 1.0
		}
		return PhaseTrending, confidence
	}

	if in.RealizedVol7d >= th.HighVolMin {
		confidence := in.RealizedVol7d / th.HighVolMin
		if confidence > 1.0 {
			confidence = 1.0
		}
		return PhaseHighVol, confidence
	}

	if in.RealizedVol7d >= th.ChoppyVolMin && in.RealizedVol7d <= th.ChoppyVolMax {
		return PhaseChoppy, 0.7
	}

	return Unknown, 0.3
}
