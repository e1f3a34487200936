package indicators

import "github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"

// SwingKind identifies a zig-zag pivot type.
type SwingKind int

const (
	SwingHigh SwingKind = iota
	SwingLow
)

// Swing is one zig-zag pivot point.
type Swing struct {
	Index int
	Kind  SwingKind
	Price float64
}

// ZigZagMeta summarises the most recent swings; DX's relief term reads
// LastSwingHigh as its pullback reference.
type ZigZagMeta struct {
	Swings        []Swing
	LastSwingHigh float64
	LastSwingLow  float64
}

// ZigZag computes swing points using a percentage threshold that adapts to
// ATR (spec §4.1): thresholdPct is a base percentage, widened by
// atrFactor*ATR/price so volatile instruments don't whipsaw on noise.
func ZigZag(bars []core.Bar, thresholdPct, atrFactor float64, atr float64) ZigZagMeta {
	meta := ZigZagMeta{}
	if len(bars) < 3 {
		return meta
	}

	effectiveThreshold := func(price float64) float64 {
		t := thresholdPct
		if price > 0 {
			t += atrFactor * (atr / price)
		}
		return t
	}

	// Track the last confirmed pivot and the candidate pivot of the opposite kind.
	lastPivotPrice := bars[0].Close
	lastPivotIdx := 0
	trendUp := true // unknown at start; resolved once the first swing confirms

	candidateIdx := 0
	candidatePrice := bars[0].Close

	for i := 1; i < len(bars); i++ {
		price := bars[i].Close
		if trendUp {
			if price > candidatePrice {
				candidatePrice = price
				candidateIdx = i
			}
			threshold := effectiveThreshold(candidatePrice)
			if (candidatePrice-price)/candidatePrice >= threshold {
				meta.Swings = append(meta.Swings, Swing{Index: candidateIdx, Kind: SwingHigh, Price: candidatePrice})
				meta.LastSwingHigh = candidatePrice
				lastPivotPrice, lastPivotIdx = candidatePrice, candidateIdx
				trendUp = false
				candidatePrice, candidateIdx = price, i
			}
		} else {
			if price < candidatePrice {
				candidatePrice = price
				candidateIdx = i
			}
			threshold := effectiveThreshold(candidatePrice)
			if candidatePrice > 0 && (price-candidatePrice)/candidatePrice >= threshold {
				meta.Swings = append(meta.Swings, Swing{Index: candidateIdx, Kind: SwingLow, Price: candidatePrice})
				meta.LastSwingLow = candidatePrice
				lastPivotPrice, lastPivotIdx = candidatePrice, candidateIdx
				trendUp = true
				candidatePrice, candidateIdx = price, i
			}
		}
	}
	_ = lastPivotPrice
	_ = lastPivotIdx
	return meta
}
