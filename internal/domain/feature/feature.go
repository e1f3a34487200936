// Package feature implements the Feature Builder (spec §4.1): given the
// latest closed bar and its TimeframeStream ring buffer, produce a
// FeatureSet, or report InsufficientData during warmup.
package feature

import (
	"fmt"
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core/errs"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/indicators"
)

// EMASet mirrors indicators.EMAPeriods keyed by period for readability at
// call sites (state predicates read field names, not a map).
type EMASet struct {
	EMA20, EMA30, EMA60, EMA144, EMA250, EMA333 float64
}

// FeatureSet is the ephemeral per-bar output of the Feature Builder (spec §3).
type FeatureSet struct {
	InstrumentID string
	TF           core.Timeframe
	TS           time.Time

	EMA EMASet

	ATR float64
	RSI float64
	RSISlope10 float64
	ADX        float64
	ADXSlope10 float64

	VolZ float64

	ZigZag indicators.ZigZagMeta

	AVWAP      float64
	AVWAPSlope float64
}

// VolumeWindow is the z-score lookback (spec §4.1).
const VolumeWindow = 96

const (
	rsiPeriod = 14
	atrPeriod = 14
	adxPeriod = 14

	zigzagBaseThresholdPct = 0.03
	zigzagATRFactor        = 1.0
)

// Build computes a FeatureSet from the given ring buffer. avwapAnchorIdx is
// the index (within buf) of the most recent S3 entry bar, or -1 if the
// stream has never entered S3 — in that case AVWAP anchors at the oldest
// retained bar.
func Build(buf *core.RingBuffer, avwapAnchorIdx int) (FeatureSet, error) {
	if !buf.IsWarm() {
		return FeatureSet{}, fmt.Errorf("%d/%d bars: %w", buf.Len(), core.MinWarmupBars, errs.ErrInsufficientData)
	}

	bars := buf.Slice(buf.Len())
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	latest := bars[len(bars)-1]
	emaSet := indicators.EMASet(closes)

	atr, _ := indicators.ATR(bars, atrPeriod)

	rsiSeries := indicators.RSISeries(closes, rsiPeriod)
	adxSeries := indicators.ADXSeries(bars, adxPeriod)

	anchorIdx := avwapAnchorIdx
	if anchorIdx < 0 || anchorIdx >= len(bars) {
		anchorIdx = 0
	}
	avwapSeries, avwapSlope := indicators.AVWAP(bars, anchorIdx)
	avwapLast := latest.Close
	if len(avwapSeries) > 0 {
		avwapLast = avwapSeries[len(avwapSeries)-1]
	}

	zz := indicators.ZigZag(bars, zigzagBaseThresholdPct, zigzagATRFactor, atr)

	fs := FeatureSet{
		InstrumentID: latest.InstrumentID,
		TF:           latest.TF,
		TS:           latest.TS,
		EMA: EMASet{
			EMA20:  emaSet[20],
			EMA30:  emaSet[30],
			EMA60:  emaSet[60],
			EMA144: emaSet[144],
			EMA250: emaSet[250],
			EMA333: emaSet[333],
		},
		ATR:        atr,
		RSI:        rsiSeries[len(rsiSeries)-1],
		RSISlope10: indicators.Slope10(rsiSeries),
		ADX:        adxSeries[len(adxSeries)-1],
		ADXSlope10: indicators.Slope10(adxSeries),
		VolZ:       indicators.VolumeZScore(volumes, VolumeWindow),
		ZigZag:     zz,
		AVWAP:      avwapLast,
		AVWAPSlope: avwapSlope,
	}
	return fs, nil
}

// Price returns the latest close for convenience in predicates.
func (f FeatureSet) Price(buf *core.RingBuffer) float64 {
	return buf.Latest().Close
}
