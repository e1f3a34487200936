// Package learn implements the Pattern Aggregator, Lesson Builder, and
// Override Materializer (spec §4.7, §4.8): a bounded, decay-governed
// learning loop that turns closed-position outcomes into capital and
// execution multipliers fed back into the engine.
package learn

import (
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// PatternStats is the running statistics kept per scope key (spec §3, §4.7).
type PatternStats struct {
	ScopeKey scope.Key

	N               int
	AvgRR           float64
	VarRR           float64
	EdgeRaw         float64
	RecurrenceScore float64
	FieldCoherence  float64
	IncrementalEdge float64

	LastUpdateTS time.Time

	// Degraded marks the key as excluded from override materialization
	// until recomputed (spec §4.8 failure semantics).
	Degraded bool

	// positiveSegments/totalSegments back FieldCoherence: the fraction of
	// (mcap_bucket, timeframe) sub-segments showing positive edge.
	positiveSegments int
	totalSegments    int

	// childStrands counts accumulated child strands for braid promotion
	// (spec §4.7: ">= 3 child strands ... emit a braid-level-N+1 record").
	childStrands int
	braidLevel   int
}

// BraidLevel returns the current braid level (0 = raw strand).
func (p *PatternStats) BraidLevel() int { return p.braidLevel }

// RecordSegment tracks whether a sub-segment (mcap_bucket x timeframe)
// showed positive edge, feeding FieldCoherence.
func (p *PatternStats) RecordSegment(positiveEdge bool) {
	p.totalSegments++
	if positiveEdge {
		p.positiveSegments++
	}
	if p.totalSegments > 0 {
		p.FieldCoherence = float64(p.positiveSegments) / float64(p.totalSegments)
	}
}

// PromoteChildStrand increments the child-strand counter and returns true
// exactly once, the bar at which >= 3 children accumulate (spec §4.7).
func (p *PatternStats) PromoteChildStrand() bool {
	p.childStrands++
	if p.childStrands >= 3 && p.braidLevel == 0 {
		p.braidLevel = 1
		return true
	}
	return false
}

// PositiveSegments, TotalSegments, and ChildStrands expose the braid/
// coherence counters so the persistence layer can round-trip a PatternStats
// record without the Pattern Aggregator handing out mutable internals.
func (p *PatternStats) PositiveSegments() int { return p.positiveSegments }
func (p *PatternStats) TotalSegments() int    { return p.totalSegments }
func (p *PatternStats) ChildStrands() int     { return p.childStrands }

// Restore rehydrates the unexported braid/coherence counters from a durable
// snapshot. Only the persistence layer should call this, immediately after
// loading a row back into a fresh PatternStats.
func (p *PatternStats) Restore(positiveSegments, totalSegments, childStrands, braidLevel int) {
	p.positiveSegments = positiveSegments
	p.totalSegments = totalSegments
	p.childStrands = childStrands
	p.braidLevel = braidLevel
}
