// Package indicators implements the Feature Builder's primitive calculations
// (spec §4.1): EMA set, ATR(Wilder 14), RSI(14)+slope, ADX(14)+slope, volume
// z-score, zig-zag swings, and AVWAP slope. Adapted from the teacher's
// technical-indicator package, generalised from single-shot results into the
// series form the signature engine's slope terms need.
package indicators

import (
	"math"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
)

// EMAPeriods is the documented EMA set (spec §2).
var EMAPeriods = [6]int{20, 30, 60, 144, 250, 333}

// EMASeries computes an exponential moving average with alpha = 2/(n+1)
// over the full price series, aligned index-for-index with prices. The
// first value seeds on prices[0] (standard practice when no separate SMA
// warmup window is specified).
func EMASeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = out[i-1] + alpha*(prices[i]-out[i-1])
	}
	return out
}

// EMALast is a convenience wrapper returning only the final EMA value.
func EMALast(prices []float64, period int) float64 {
	s := EMASeries(prices, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// EMASet computes the last value of every EMA in EMAPeriods, keyed by period.
func EMASet(prices []float64) map[int]float64 {
	out := make(map[int]float64, len(EMAPeriods))
	for _, p := range EMAPeriods {
		out[p] = EMALast(prices, p)
	}
	return out
}

// trueRange computes Wilder's True Range for bar i against the prior close.
func trueRange(curr, prev core.Bar) float64 {
	hl := curr.High - curr.Low
	hc := math.Abs(curr.High - prev.Close)
	lc := math.Abs(curr.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// ATR computes the Wilder-smoothed Average True Range over period bars.
// Returns (value, ok) — ok is false when fewer than period+1 bars are
// available, mirroring the Feature Builder's InsufficientData contract.
func ATR(bars []core.Bar, period int) (float64, bool) {
	if len(bars) < period+1 {
		return 0, false
	}
	trs := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		trs[i-1] = trueRange(bars[i], bars[i-1])
	}
	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trs[i]
	}
	atr /= float64(period)
	alpha := 1.0 / float64(period)
	for i := period; i < len(trs); i++ {
		atr = atr*(1-alpha) + trs[i]*alpha
	}
	return atr, true
}

// ATRSeries computes the Wilder-smoothed ATR aligned to bars (entries before
// the warmup window are 0); used for the ATR-surge term in OX.
func ATRSeries(bars []core.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if len(bars) < period+1 {
		return out
	}
	trs := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		trs[i-1] = trueRange(bars[i], bars[i-1])
	}
	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trs[i]
	}
	atr /= float64(period)
	out[period] = atr
	alpha := 1.0 / float64(period)
	for i := period; i < len(trs); i++ {
		atr = atr*(1-alpha) + trs[i]*alpha
		out[i+1] = atr
	}
	return out
}

// RSISeries computes Wilder-smoothed RSI aligned to prices (prices[0..period]
// produce the seed, so the first `period` entries are the neutral value 50).
func RSISeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = 50.0
	}
	if len(prices) < period+1 {
		return out
	}
	changes := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		changes[i-1] = prices[i] - prices[i-1]
	}
	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	alpha := 1.0 / float64(period)
	for i := period; i < len(changes); i++ {
		gain, loss := 0.0, 0.0
		if changes[i] > 0 {
			gain = changes[i]
		} else {
			loss = -changes[i]
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
		out[i+1] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ADXSeries computes Wilder-smoothed ADX (with its own DX smoothing, unlike
// a single-shot DX reading) aligned to bars; entries before the warmup
// window are 0.
func ADXSeries(bars []core.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if len(bars) < period*2+1 {
		return out
	}
	trs := make([]float64, len(bars)-1)
	plusDM := make([]float64, len(bars)-1)
	minusDM := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		curr, prev := bars[i], bars[i-1]
		trs[i-1] = trueRange(curr, prev)
		plusMove := curr.High - prev.High
		minusMove := prev.Low - curr.Low
		if plusMove > minusMove && plusMove > 0 {
			plusDM[i-1] = plusMove
		}
		if minusMove > plusMove && minusMove > 0 {
			minusDM[i-1] = minusMove
		}
	}

	alpha := 1.0 / float64(period)
	smoothedTR, smoothedPlusDM, smoothedMinusDM := 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		smoothedTR += trs[i]
		smoothedPlusDM += plusDM[i]
		smoothedMinusDM += minusDM[i]
	}

	dxValues := make([]float64, 0, len(trs)-period+1)
	for i := period - 1; i < len(trs); i++ {
		if i >= period {
			smoothedTR = smoothedTR*(1-alpha) + trs[i]*alpha
			smoothedPlusDM = smoothedPlusDM*(1-alpha) + plusDM[i]*alpha
			smoothedMinusDM = smoothedMinusDM*(1-alpha) + minusDM[i]*alpha
		}
		dx := 0.0
		if smoothedTR > 0 {
			pdi := 100.0 * smoothedPlusDM / smoothedTR
			mdi := 100.0 * smoothedMinusDM / smoothedTR
			if sum := pdi + mdi; sum > 0 {
				dx = 100.0 * math.Abs(pdi-mdi) / sum
			}
		}
		dxValues = append(dxValues, dx)
		// out index for this dx is (i+1) in bars space (trs[i] is bars[i+1] vs bars[i])
		barIdx := i + 1
		if len(dxValues) < period {
			out[barIdx] = avg(dxValues)
			continue
		}
		if len(dxValues) == period {
			adx := avg(dxValues[len(dxValues)-period:])
			out[barIdx] = adx
			continue
		}
		prevADX := out[barIdx-1]
		out[barIdx] = (prevADX*float64(period-1) + dx) / float64(period)
	}
	return out
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Slope10 returns the simple 10-bar slope of a series: (latest - 10 bars
// ago) / 10. Returns 0 when the series is too short.
func Slope10(series []float64) float64 {
	n := len(series)
	if n < 11 {
		return 0
	}
	return (series[n-1] - series[n-11]) / 10.0
}

// VolumeZScore computes the z-score of the latest volume against a trailing
// window (spec: 96-bar window).
func VolumeZScore(volumes []float64, window int) float64 {
	n := len(volumes)
	if n == 0 {
		return 0
	}
	if n > window {
		volumes = volumes[n-window:]
	}
	if len(volumes) < 2 {
		return 0
	}
	mean := avg(volumes)
	variance := 0.0
	for _, v := range volumes {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(volumes) - 1)
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}
	latest := volumes[len(volumes)-1]
	return (latest - mean) / stdDev
}

// Sigma is the logistic function 1/(1+e^(-k*x)) used by TS (spec §4.3).
func Sigma(x, k float64) float64 {
	return 1.0 / (1.0 + math.Exp(-k*x))
}

// Clamp01 clips x to [0,1] (spec I3).
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Clamp clips x to [lo,hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
