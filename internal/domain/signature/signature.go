// Package signature implements the Signature Engine (spec §4.3): TS, OX, DX,
// EDX — four bounded continuous signals derived from a FeatureSet plus the
// active State.
package signature

import (
	"math"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/feature"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/indicators"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/state"
)

// Signature is the ephemeral per-bar output (spec §3); all fields in [0,1] (I3).
type Signature struct {
	TS  float64
	OX  float64
	DX  float64
	EDX float64
}

const (
	atrSurgeWindow  = 20
	fragilityWindow = 20
)

// Compute derives a Signature from the FeatureSet, the stream's current
// State, and the ring buffer (needed for the fragility/ATR-surge/curl terms,
// which look back further than a single FeatureSet carries).
func Compute(buf *core.RingBuffer, fs feature.FeatureSet, st state.Value, cfg Config) Signature {
	ts := computeTS(fs, cfg)
	ox := computeOX(buf, fs, st, cfg)
	dx := computeDX(buf, fs, cfg)
	edx := 0.0
	if st == state.S3 {
		edx = computeEDX(buf, fs, cfg)
	}
	return Signature{
		TS:  indicators.Clamp01(ts),
		OX:  indicators.Clamp01(ox),
		DX:  indicators.Clamp01(dx),
		EDX: indicators.Clamp01(edx),
	}
}

// computeTS: 0.6*sigma(rsi_slope_10,k=0.5) + 0.4*sigma(adx_slope_10,k=0.3),
// gated to 0 when ADX < 18 (strict <, so ADX==18.0 is not gated — spec §8).
func computeTS(fs feature.FeatureSet, cfg Config) float64 {
	if fs.ADX < cfg.TS.ADXGate {
		return 0
	}
	rsiTerm := indicators.Sigma(fs.RSISlope10, cfg.TS.RSIK)
	adxTerm := indicators.Sigma(fs.ADXSlope10, cfg.TS.ADXK)
	return cfg.TS.RSIWeight*rsiTerm + cfg.TS.ADXWeight*adxTerm
}

// railScore is the distance of price above a slow EMA normalised by ATR,
// clamped to [0,1] via a logistic so a handful of ATRs above fully saturates
// the term instead of growing unbounded.
func railScore(price, ema, atr float64) float64 {
	if atr <= 0 {
		return 0
	}
	dist := (price - ema) / atr
	return indicators.Sigma(dist, 0.5)
}

func computeOX(buf *core.RingBuffer, fs feature.FeatureSet, st state.Value, cfg Config) float64 {
	rail := (railScore(buf.Latest().Close, fs.EMA.EMA144, fs.ATR) +
		railScore(buf.Latest().Close, fs.EMA.EMA250, fs.ATR) +
		railScore(buf.Latest().Close, fs.EMA.EMA333, fs.ATR)) / 3.0

	expansion := bandExpansion(fs)
	atrSurge := atrSurgeTerm(buf)
	fragility := fragilityTerm(buf)

	ox := cfg.OX.RailWeight*rail +
		cfg.OX.ExpansionWeight*expansion +
		cfg.OX.ATRSurgeWeight*atrSurge +
		cfg.OX.FragilityWeight*fragility

	if st == state.S3 {
		ox += cfg.OX.EDXBoostInS3 * computeEDX(buf, fs, cfg)
	}
	return ox
}

// bandExpansion measures how far the fast band has pulled away from the slow
// band relative to ATR — a proxy for "the bands are fanning out".
func bandExpansion(fs feature.FeatureSet) float64 {
	if fs.ATR <= 0 {
		return 0
	}
	fastMid := (fs.EMA.EMA20 + fs.EMA.EMA30) / 2.0
	slowMid := (fs.EMA.EMA144 + fs.EMA.EMA250 + fs.EMA.EMA333) / 3.0
	spread := math.Abs(fastMid-slowMid) / fs.ATR
	return indicators.Sigma(spread, 0.3)
}

// atrSurgeTerm compares the latest ATR to its trailing average; a surge
// indicates volatility expansion consistent with overextension.
func atrSurgeTerm(buf *core.RingBuffer) float64 {
	bars := buf.Slice(buf.Len())
	series := indicators.ATRSeries(bars, 14)
	n := len(series)
	if n < atrSurgeWindow+1 {
		return 0
	}
	window := series[n-atrSurgeWindow:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))
	if mean == 0 {
		return 0
	}
	ratio := series[n-1]/mean - 1.0
	return indicators.Clamp01(ratio)
}

// fragilityTerm is the variance of returns over the last 20 bars, normalised
// into [0,1] via a logistic on its square root (a volatility-of-volatility
// proxy, spec §4.3 "fragility term").
func fragilityTerm(buf *core.RingBuffer) float64 {
	bars := buf.Slice(buf.Len())
	n := len(bars)
	if n < fragilityWindow+1 {
		return 0
	}
	window := bars[n-fragilityWindow-1:]
	returns := make([]float64, 0, fragilityWindow)
	for i := 1; i < len(window); i++ {
		if window[i-1].Close == 0 {
			continue
		}
		returns = append(returns, (window[i].Close-window[i-1].Close)/window[i-1].Close)
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	return indicators.Sigma(math.Sqrt(variance), 40.0)
}

// computeDX: DX = exp(-3x) * compression_mult * exhaustion * relief * curl,
// where x = (price-EMA333)/(EMA144-EMA333) clipped to [0, inf).
func computeDX(buf *core.RingBuffer, fs feature.FeatureSet, cfg Config) float64 {
	denom := fs.EMA.EMA144 - fs.EMA.EMA333
	if denom == 0 {
		return 0
	}
	x := (buf.Latest().Close - fs.EMA.EMA333) / denom
	if x < 0 {
		x = 0
	}

	exhaustion := indicators.Sigma(-fs.VolZ/cfg.DX.ExhaustionK, 1.0)
	compression := compressionTerm(fs)
	relief := reliefTerm(buf, fs)
	curl := curlTerm(buf, fs)

	return math.Exp(-cfg.DX.Decay*x) * compression * exhaustion * relief * curl
}

// compressionTerm measures band tightening: the slow band's spread relative
// to ATR, inverted so a tight band scores near 1. sigma(0) is 0.5, so the
// inverted value is doubled to span [0, 1].
func compressionTerm(fs feature.FeatureSet) float64 {
	if fs.ATR <= 0 {
		return 0
	}
	spread := math.Abs(fs.EMA.EMA144-fs.EMA.EMA333) / fs.ATR
	return indicators.Clamp01(2.0 * (1.0 - indicators.Sigma(spread, 0.3)))
}

// reliefTerm: clamp(pullback_depth/ATR, 0, 1) — per SPEC_FULL's resolution of
// the "relief"/"curl" Open Question, pullback depth is the retracement from
// the most recent zig-zag swing high.
func reliefTerm(buf *core.RingBuffer, fs feature.FeatureSet) float64 {
	if fs.ATR <= 0 || fs.ZigZag.LastSwingHigh == 0 {
		return 0
	}
	depth := fs.ZigZag.LastSwingHigh - buf.Latest().Close
	return indicators.Clamp01(depth / fs.ATR)
}

// curlTerm: clamp(d²EMA60/dt² normalised by ATR, 0, 1) — the second
// difference of EMA60 over the last three closed bars.
func curlTerm(buf *core.RingBuffer, fs feature.FeatureSet) float64 {
	bars := buf.Slice(buf.Len())
	n := len(bars)
	if n < 3 || fs.ATR <= 0 {
		return 0
	}
	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}
	ema60 := indicators.EMASeries(closes, 60)
	d2 := ema60[n-1] - 2*ema60[n-2] + ema60[n-3]
	return indicators.Clamp01(math.Abs(d2) / fs.ATR)
}

// InDiscountZone reports whether price sits inside the DX discount zone
// (spec §4.3: "DX >= tau_dx with price inside the DX discount zone marks add
// signals"; §9 Open Question resolved by SPEC_FULL.md as a halo of
// cfg.HaloATRFactor*ATR around EMA333 — the same slow-EMA reclaim level
// DX's own x term pulls back toward). Price above the halo is extended, not
// a discount; the zone is open-ended below EMA333 since a deeper pullback is
// still a discount, just one DX's exp(-3x) term already scores near 1 for.
func InDiscountZone(fs feature.FeatureSet, price float64, cfg Config) bool {
	if fs.ATR <= 0 {
		return false
	}
	return price <= fs.EMA.EMA333+cfg.HaloATRFactor*fs.ATR
}

// computeEDX is the weighted S3-relative decay score (spec §4.3); only
// meaningful in S3, but computed unconditionally here so OX's EDX boost can
// read it regardless of the caller's gating.
func computeEDX(buf *core.RingBuffer, fs feature.FeatureSet, cfg Config) float64 {
	slowFieldMomentum := slowFieldMomentumTerm(fs)
	structureFailure := structureFailureTerm(fs)
	participationDecay := indicators.Sigma(-fs.VolZ, 1.0)
	emaCompression := compressionTerm(fs)
	decelerationBreadth := decelerationBreadthTerm(fs)

	return cfg.EDX.SlowFieldMomentum*slowFieldMomentum +
		cfg.EDX.StructureFailure*structureFailure +
		cfg.EDX.ParticipationDecay*participationDecay +
		cfg.EDX.EMACompression*emaCompression +
		cfg.EDX.DecelerationBreadth*decelerationBreadth
}

// slowFieldMomentumTerm decays toward 1 as the slow band's own momentum
// (AVWAP slope, a proxy for participation-weighted trend direction) turns
// negative.
func slowFieldMomentumTerm(fs feature.FeatureSet) float64 {
	if fs.ATR <= 0 {
		return 0
	}
	return indicators.Sigma(-fs.AVWAPSlope/fs.ATR, 1.0)
}

// structureFailureTerm rises as EMA144's lead over EMA60 (in ATR units)
// narrows or inverts — an early read on the bullish-alignment predicate's
// EMA144 > EMA60 leg eroding.
func structureFailureTerm(fs feature.FeatureSet) float64 {
	if fs.ATR <= 0 {
		return 0
	}
	dist := (fs.EMA.EMA144 - fs.EMA.EMA60) / fs.ATR
	return indicators.Sigma(-dist, 0.5)
}

// decelerationBreadthTerm rises as ADX's own slope turns down, independent
// of TS's RSI term — breadth of deceleration across the trend-strength read.
func decelerationBreadthTerm(fs feature.FeatureSet) float64 {
	return indicators.Sigma(-fs.ADXSlope10, 0.3)
}
