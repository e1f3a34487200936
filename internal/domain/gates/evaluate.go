// Package gates evaluates the entry (TS), add (DX) and trim gates (spec
// §4.4/§4.5) as a single ordered pass. The trim gate compares appetite E,
// not OX, against Cfg.TrimGateOX; OX is reported in its metrics only.
// Adapted from the teacher's
// EvaluateAllGates (freshness/fatigue/late-fill/microstructure), which ran
// every gate and collected reasons instead of short-circuiting on the first
// failure.
package gates

import (
	"fmt"
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/appetite"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/feature"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/signature"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/state"
)

// GateReason carries one gate's pass/fail verdict plus the metrics that
// produced it, for operator-facing explanation.
type GateReason struct {
	Name    string
	Passed  bool
	Message string
	Metrics map[string]float64
}

// EvaluateAllGatesInputs bundles the live signal a single bar needs to run
// every position-policy gate.
type EvaluateAllGatesInputs struct {
	InstrumentID string
	Timestamp    time.Time
	State        state.Value
	Signature    signature.Signature
	Appetite     appetite.Scores
	Cfg          signature.Config

	// Price and Features feed the add gate's discount-zone predicate (spec
	// §4.3: "DX >= tau_dx with price inside the DX discount zone").
	Price    float64
	Features feature.FeatureSet
}

// EvaluateAllGatesResult is the overall verdict plus every individual
// GateReason, in evaluation order.
type EvaluateAllGatesResult struct {
	Passed        bool
	OverallReason string
	Reasons       []GateReason
	Timestamp     time.Time
	InstrumentID  string
}

// EvaluateAllGates runs the entry, add, and trim gates in sequence; the trim
// gate passes when Appetite.E >= Cfg.TrimGateOX. Unlike a
// hard short-circuit, every gate still runs and reports so a caller can log
// the full picture; only the entry gate's outcome determines whether
// applyPositionPolicy actually opens a position.
func EvaluateAllGates(in EvaluateAllGatesInputs) *EvaluateAllGatesResult {
	result := &EvaluateAllGatesResult{
		Passed:       true,
		Reasons:      make([]GateReason, 0, 3),
		Timestamp:    in.Timestamp,
		InstrumentID: in.InstrumentID,
	}

	entryOK := in.Signature.TS >= in.Cfg.EntryGateTS && in.Appetite.A > 0.5 &&
		(in.State == state.S1 || in.State == state.S2 || in.State == state.S3)
	entryReason := GateReason{
		Name:   "entry",
		Passed: entryOK,
		Metrics: map[string]float64{
			"ts": in.Signature.TS, "a": in.Appetite.A,
		},
	}
	if entryOK {
		entryReason.Message = "ts_and_appetite_sufficient"
	} else {
		entryReason.Message = fmt.Sprintf("ts=%.3f(need %.3f) a=%.3f(need >0.5) state=%s",
			in.Signature.TS, in.Cfg.EntryGateTS, in.Appetite.A, in.State)
		result.Passed = false
		result.OverallReason = fmt.Sprintf("blocked_by_entry: %s", entryReason.Message)
	}
	result.Reasons = append(result.Reasons, entryReason)

	dxOK := in.Signature.DX >= in.Cfg.AddGateDX
	discountOK := signature.InDiscountZone(in.Features, in.Price, in.Cfg)
	addOK := dxOK && discountOK
	addReason := GateReason{
		Name:   "add",
		Passed: addOK,
		Message: fmt.Sprintf("dx=%.3f(need %.3f) discount_zone=%v",
			in.Signature.DX, in.Cfg.AddGateDX, discountOK),
		Metrics: map[string]float64{"dx": in.Signature.DX},
	}
	result.Reasons = append(result.Reasons, addReason)

	trimOK := in.Appetite.E >= in.Cfg.TrimGateOX
	trimReason := GateReason{
		Name:    "trim",
		Passed:  trimOK,
		Message: fmt.Sprintf("e=%.3f(trigger %.3f)", in.Appetite.E, in.Cfg.TrimGateOX),
		Metrics: map[string]float64{"e": in.Appetite.E, "ox": in.Signature.OX},
	}
	result.Reasons = append(result.Reasons, trimReason)

	if result.Passed {
		result.OverallReason = "entry_gate_passed"
	}
	return result
}

// FormatGateExplanation renders a GateReason list as a short operator-facing
// string, for CLI/log output.
func FormatGateExplanation(result *EvaluateAllGatesResult) string {
	out := fmt.Sprintf("%s @ %s: %s\n", result.InstrumentID, result.Timestamp.Format(time.RFC3339), result.OverallReason)
	for _, r := range result.Reasons {
		status := "FAIL"
		if r.Passed {
			status = "PASS"
		}
		out += fmt.Sprintf("  [%s] %s: %s\n", status, r.Name, r.Message)
	}
	return out
}
