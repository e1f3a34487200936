package engine

import (
	"fmt"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
)

// SelfTest checks the invariants spec §3 states as always-true (I3, I5)
// against an Instrument's live state, returning every violation found. This
// is a diagnostic for replay/tests, not part of the per-bar hot path —
// every invariant here is also enforced structurally at the point of
// mutation; a non-empty result means that enforcement was bypassed.
func (i *Instrument) SelfTest() []string {
	var violations []string

	for _, tf := range []core.Timeframe{core.TF1m, core.TF15m, core.TF1h, core.TF4h} {
		st, ok := i.Streams[tf]
		if !ok {
			continue
		}

		sig := st.lastSig
		for name, v := range map[string]float64{"TS": sig.TS, "OX": sig.OX, "DX": sig.DX, "EDX": sig.EDX} {
			if v < 0 || v > 1 {
				violations = append(violations, fmt.Sprintf("I3: %s out of [0,1] on tf %s: %f", name, tf, v))
			}
		}

		if !st.buf.IsWarm() && st.machine.Current().BarsInState != 0 {
			violations = append(violations, fmt.Sprintf("I5: tf %s transitioned before reaching warmup", tf))
		}
	}

	return violations
}

// ValidateLessonBounds checks I4 against a materialized Lesson. Only tests
// call it, never the Lesson Builder itself — bounds
// there are enforced by construction (learn.step), so a violation surfacing
// here indicates that construction was bypassed.
func ValidateLessonBounds(l learn.Lesson, cfg learn.Config) []string {
	var violations []string
	check := func(name string, v float64, bounds [2]float64) {
		if v < bounds[0] || v > bounds[1] {
			violations = append(violations, fmt.Sprintf("I4: %s=%f outside [%f,%f]", name, v, bounds[0], bounds[1]))
		}
	}
	check("size_mult", l.SizeMult, cfg.SizeMultBounds)
	check("entry_aggression_mult", l.EntryAggressionMult, cfg.AggressionBounds)
	check("exit_aggression_mult", l.ExitAggressionMult, cfg.AggressionBounds)
	check("phase1_frac_mult", l.Levers.Phase1FracMult, cfg.AggressionBounds)
	check("trim_delay_mult", l.Levers.TrimDelayMult, cfg.AggressionBounds)
	check("trail_mult", l.Levers.TrailMult, cfg.AggressionBounds)
	return violations
}
