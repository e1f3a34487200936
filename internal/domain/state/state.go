// Package state implements the per-TimeframeStream trend-lifecycle state
// machine (spec §4.2): S0..S3 plus the global_exit sentinel, two-bar
// debounced transitions, and the reclaimed_ema333 signal.
package state

import (
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/feature"
)

// Value is one of the four lifecycle states or the global-exit sentinel
// (spec §3).
type Value int

const (
	S0 Value = iota // Downtrend
	S1              // Primer
	S2              // Defensive
	S3              // Trending
	GlobalExit
)

func (v Value) String() string {
	switch v {
	case S0:
		return "S0"
	case S1:
		return "S1"
	case S2:
		return "S2"
	case S3:
		return "S3"
	case GlobalExit:
		return "global_exit"
	default:
		return "unknown"
	}
}

// Transition is an emitted state-change event with its reason (spec I1: a
// total-order event with a monotonically non-decreasing timestamp).
type Transition struct {
	From      Value
	To        Value
	Reason    string
	Timestamp time.Time
}

// State is the single active classification for one TimeframeStream.
type State struct {
	Value       Value
	EnteredAt   time.Time
	BarsInState int
}

// Machine evaluates predicates over two consecutive closed bars before
// committing a transition (debounce), and retains the older state if a
// predicate oscillates within that window (spec §4.2, "Tie-breaks").
type Machine struct {
	current State

	// pendingTo/pendingFrom/pendingSet track a predicate that held on the prior bar but
	// has not yet been confirmed for a second consecutive bar.
	pendingTo    Value
	pendingFrom  Value
	pendingSet   bool
	prevWasBelowEMA333 bool
	sawFirstBar bool
}

// NewMachine starts a stream undefined; the first Evaluate call seeds S0.
func NewMachine() *Machine {
	return &Machine{}
}

// Current returns the active State.
func (m *Machine) Current() State { return m.current }

// fastBandMax/fastBandMin operate over {EMA20, EMA30} (spec §4.2).
func fastBandMax(e feature.EMASet) float64 {
	if e.EMA20 > e.EMA30 {
		return e.EMA20
	}
	return e.EMA30
}

func fastBandMin(e feature.EMASet) float64 {
	if e.EMA20 < e.EMA30 {
		return e.EMA20
	}
	return e.EMA30
}

// isGlobalExit is the sentinel predicate: max(fast_band) < EMA60 while S2/S3.
func isGlobalExit(e feature.EMASet) bool {
	return fastBandMax(e) < e.EMA60
}

// isS0 — spec §4.2: max(fast_band) < EMA60 and EMA60 < EMA144 < EMA250 < EMA333.
func isS0(e feature.EMASet) bool {
	return fastBandMax(e) < e.EMA60 &&
		e.EMA60 < e.EMA144 && e.EMA144 < e.EMA250 && e.EMA250 < e.EMA333
}

// isS1 — spec §4.2: min(fast_band) > EMA60, price > EMA60 (S3 excluded by caller ordering).
func isS1(e feature.EMASet, price float64) bool {
	return fastBandMin(e) > e.EMA60 && price > e.EMA60
}

// isS2 — spec §4.2: price > EMA333 (S3 excluded by caller ordering).
func isS2(e feature.EMASet, price float64) bool {
	return price > e.EMA333
}

// FullBullishAlignment is the documented S3 predicate (spec §9 Open
// Question, resolved in SPEC_FULL.md): price above EMA20, price and every
// other EMA (EMA20, EMA30, EMA60, EMA144, EMA250) above EMA333, and EMA144
// above EMA60.
func FullBullishAlignment(e feature.EMASet, price float64) bool {
	return price > e.EMA20 && e.EMA20 > e.EMA333 &&
		e.EMA30 > e.EMA333 && e.EMA250 > e.EMA333 &&
		price > e.EMA333 &&
		e.EMA144 > e.EMA60 &&
		e.EMA60 > e.EMA333
}

// Evaluate runs the state machine for one newly-closed bar and returns any
// Transition committed this bar (nil if none), plus whether reclaimed_ema333
// fired. ts is the bar's close timestamp; it must be >= m.current.EnteredAt
// (spec I1).
func (m *Machine) Evaluate(e feature.EMASet, price float64, ts time.Time) (*Transition, bool) {
	if !m.sawFirstBar {
		m.current = State{Value: S0, EnteredAt: ts, BarsInState: 1}
		m.sawFirstBar = true
		m.prevWasBelowEMA333 = price < e.EMA333
		return nil, false
	}

	reclaimed := false
	if m.current.Value == S3 {
		reclaimed = m.prevWasBelowEMA333 && price >= e.EMA333
	}
	m.prevWasBelowEMA333 = price < e.EMA333

	desired, reason := m.classify(e, price)

	var committed *Transition
	if desired == m.current.Value {
		m.pendingSet = false
		m.current.BarsInState++
	} else if m.pendingSet && m.pendingTo == desired && m.pendingFrom == m.current.Value {
		// second consecutive confirmation: commit
		committed = &Transition{From: m.current.Value, To: desired, Reason: reason, Timestamp: ts}
		m.current = State{Value: desired, EnteredAt: ts, BarsInState: 1}
		m.pendingSet = false
	} else {
		// first observation of this candidate transition, or the candidate
		// changed mid-flight (flapping) — the older state is retained
		// (spec §4.2 Tie-breaks) and the new candidate starts its own
		// debounce window.
		m.pendingTo = desired
		m.pendingFrom = m.current.Value
		m.pendingSet = true
		m.current.BarsInState++
	}

	return committed, reclaimed
}

// classify applies the allowed-transition table (spec §4.2) in priority
// order: global exit overrides everything, then the forward progression
// S0->S1->S2->S3 is checked from the current state.
func (m *Machine) classify(e feature.EMASet, price float64) (Value, string) {
	if (m.current.Value == S2 || m.current.Value == S3) && isGlobalExit(e) {
		return GlobalExit, "global_exit: max(fast_band) < EMA60"
	}
	if m.current.Value == GlobalExit {
		// global exit forces S0; re-evaluate the forward chain from there.
		return classifyForward(e, price, S0)
	}
	return classifyForward(e, price, m.current.Value)
}

func classifyForward(e feature.EMASet, price float64, from Value) (Value, string) {
	switch from {
	case S0, GlobalExit:
		if isS1(e, price) {
			return S1, "S0->S1: fast band above EMA60 and price > EMA60"
		}
		return S0, "remains S0"
	case S1:
		if isS2(e, price) {
			return S2, "S1->S2: price > EMA333"
		}
		if !isS1(e, price) && isS0(e) {
			return S0, "S1->S0: no longer primer"
		}
		return S1, "remains S1"
	case S2:
		if FullBullishAlignment(e, price) {
			return S3, "S2->S3: full bullish alignment"
		}
		if isS0(e) {
			return S0, "S2->S0: lost defensive structure"
		}
		return S2, "remains S2"
	case S3:
		if isS0(e) {
			return S0, "S3->S0: lost trend structure"
		}
		return S3, "remains S3"
	default:
		return S0, "remains S0"
	}
}
