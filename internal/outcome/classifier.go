// Package outcome implements the Outcome Classifier (spec §4.6): on
// position close, compute R/R, drawdown, time-to-payback, and counterfactual
// improvement, emitting an immutable TradeSummary consumed by the Pattern
// Aggregator. Counterfactual computation is a pure function of the
// position's trade tape and bar stream (spec §9) — it has no side effects
// and performs no learning itself.
package outcome

import (
	"math"
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/ledger"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// RRClip bounds rr to [-10,10] (spec I3).
const RRClip = 10.0

// payback sentinel for "undefined if never reached" (spec §4.6): +Inf in
// memory, so it orders after every real payback; the Postgres repository
// persists it as -1.
var TimeToPaybackUndefined = math.Inf(1)

// TradeSummary is the immutable record produced on position close (spec §3).
type TradeSummary struct {
	PositionID string
	ScopeKey   scope.Key

	RR                float64
	MaxDD             float64
	TimeToPaybackDays float64 // math.Inf(1) if +1R was never touched

	MissedEntryRR float64
	MissedExitRR  float64

	ClosedAt time.Time
	Context  ContextSnapshot
}

// ContextSnapshot freezes the scope dimensions and regime state at close
// time, so later recomputation of baselines never needs to replay history.
type ContextSnapshot struct {
	Dimensions scope.Dimensions
	McapBucket string
	Family     string
	State      string
}

// lookAroundBars bounds the counterfactual search window (spec §4.6:
// "documented look-around window").
const lookAroundBars = 10

// Classify computes a TradeSummary for a just-closed position given the
// full bar history for its timeframe (used for counterfactual search) and
// the scope this trade belongs to.
func Classify(p *ledger.Position, bars []core.Bar, scopeKey scope.Key, ctx ContextSnapshot) TradeSummary {
	entryPrice := p.AvgEntryPrice()
	exitPrice := entryPrice
	closedAt := p.OpenedAt
	if p.Exit != nil {
		exitPrice = p.Exit.Price
		closedAt = p.Exit.Timestamp
	}

	returnPct := 0.0
	if entryPrice != 0 {
		returnPct = (exitPrice - entryPrice) / entryPrice
	}

	maxDD := maxDrawdown(bars, entryPrice, p.OpenedAt, closedAt)

	rr := clipRR(returnPct / math.Max(maxDD, 1e-6))

	payback := timeToPayback(bars, entryPrice, maxDD, p.OpenedAt)

	missedEntry, missedExit := counterfactual(bars, p.OpenedAt, closedAt, entryPrice, exitPrice)

	return TradeSummary{
		PositionID:        p.ID,
		ScopeKey:          scopeKey,
		RR:                rr,
		MaxDD:             maxDD,
		TimeToPaybackDays: payback,
		MissedEntryRR:     missedEntry,
		MissedExitRR:      missedExit,
		ClosedAt:          closedAt,
		Context:           ctx,
	}
}

func clipRR(rr float64) float64 {
	if math.IsNaN(rr) || math.IsInf(rr, 0) {
		if rr > 0 {
			return RRClip
		}
		return -RRClip
	}
	if rr > RRClip {
		return RRClip
	}
	if rr < -RRClip {
		return -RRClip
	}
	return rr
}

// maxDrawdown: (entry_price - min_price)/entry_price for longs (spec §4.6),
// searched over the position's lifetime window.
func maxDrawdown(bars []core.Bar, entryPrice float64, from, to time.Time) float64 {
	if entryPrice == 0 {
		return 0
	}
	minPrice := entryPrice
	for _, b := range bars {
		if b.TS.Before(from) || b.TS.After(to) {
			continue
		}
		if b.Low < minPrice {
			minPrice = b.Low
		}
	}
	dd := (entryPrice - minPrice) / entryPrice
	if dd < 0 {
		dd = 0
	}
	return dd
}

// timeToPayback: days from open to the first bar where price touches +1R,
// where 1R is this same trade's own realised max_dd-normalised risk unit
// (spec §4.6: "time from first meaningful allocation to first +1R touch";
// rr's own denominator at Classify uses the same maxDD, so the risk unit
// payback is measured against is the risk unit rr is measured against).
func timeToPayback(bars []core.Bar, entryPrice, maxDD float64, openedAt time.Time) float64 {
	if entryPrice == 0 {
		return TimeToPaybackUndefined
	}
	oneR := entryPrice * math.Max(maxDD, 1e-6)
	target := entryPrice + oneR
	for _, b := range bars {
		if b.TS.Before(openedAt) {
			continue
		}
		if b.High >= target {
			return b.TS.Sub(openedAt).Hours() / 24.0
		}
	}
	return TimeToPaybackUndefined
}

// counterfactual computes missed_entry_rr and missed_exit_rr against the
// best executable entry/exit within lookAroundBars of the actual
// entry/exit bars (spec §4.6, §9 "pure function of the trade tape").
func counterfactual(bars []core.Bar, openedAt, closedAt time.Time, entryPrice, exitPrice float64) (missedEntryRR, missedExitRR float64) {
	entryIdx, exitIdx := -1, -1
	for i, b := range bars {
		if entryIdx == -1 && !b.TS.Before(openedAt) {
			entryIdx = i
		}
		if !b.TS.After(closedAt) {
			exitIdx = i
		}
	}
	if entryIdx == -1 || exitIdx == -1 || entryPrice == 0 {
		return 0, 0
	}

	bestEntry := entryPrice
	lo := max0(entryIdx - lookAroundBars)
	hi := minLen(entryIdx+lookAroundBars, len(bars))
	for i := lo; i < hi; i++ {
		if bars[i].Low < bestEntry {
			bestEntry = bars[i].Low
		}
	}

	bestExit := exitPrice
	lo = max0(exitIdx - lookAroundBars)
	hi = minLen(exitIdx+lookAroundBars, len(bars))
	for i := lo; i < hi; i++ {
		if bars[i].High > bestExit {
			bestExit = bars[i].High
		}
	}

	actualReturn := (exitPrice - entryPrice) / entryPrice
	bestEntryReturn := (exitPrice - bestEntry) / bestEntry
	bestExitReturn := (bestExit - entryPrice) / entryPrice

	missedEntryRR = clipRR(bestEntryReturn - actualReturn)
	missedExitRR = clipRR(bestExitReturn - actualReturn)
	return missedEntryRR, missedExitRR
}

func max0(i int) int {
	if i < 0 {
		return 0
	}
	return i
}

func minLen(i, n int) int {
	if i > n {
		return n
	}
	return i
}
