package indicators

import "github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"

// AVWAP computes the anchored volume-weighted average price series starting
// at anchorIdx (inclusive) within bars, plus its 10-bar slope at the latest
// point (spec §4.1: "AVWAP anchored at the most recent S3 entry").
func AVWAP(bars []core.Bar, anchorIdx int) (series []float64, slope float64) {
	if anchorIdx < 0 || anchorIdx >= len(bars) {
		return nil, 0
	}
	series = make([]float64, len(bars)-anchorIdx)
	cumPV, cumV := 0.0, 0.0
	for i := anchorIdx; i < len(bars); i++ {
		typical := (bars[i].High + bars[i].Low + bars[i].Close) / 3.0
		cumPV += typical * bars[i].Volume
		cumV += bars[i].Volume
		v := typical
		if cumV > 0 {
			v = cumPV / cumV
		}
		series[i-anchorIdx] = v
	}
	slope = Slope10(series)
	return series, slope
}
