package learn

import "testing"

func TestRecordSegmentTracksFieldCoherence(t *testing.T) {
	var p PatternStats
	p.RecordSegment(true)
	p.RecordSegment(false)
	p.RecordSegment(true)
	if p.FieldCoherence != 2.0/3.0 {
		t.Fatalf("expected field_coherence=2/3, got %v", p.FieldCoherence)
	}
	if p.TotalSegments() != 3 || p.PositiveSegments() != 2 {
		t.Fatalf("unexpected segment counters: total=%d positive=%d", p.TotalSegments(), p.PositiveSegments())
	}
}

func TestPromoteChildStrandFiresOnceAtThree(t *testing.T) {
	var p PatternStats
	if p.PromoteChildStrand() {
		t.Fatal("must not promote at 1 child")
	}
	if p.PromoteChildStrand() {
		t.Fatal("must not promote at 2 children")
	}
	if !p.PromoteChildStrand() {
		t.Fatal("must promote at 3 children")
	}
	if p.BraidLevel() != 1 {
		t.Fatalf("expected braid level 1, got %d", p.BraidLevel())
	}
	// a fourth child must not re-fire the promotion.
	if p.PromoteChildStrand() {
		t.Fatal("must not re-promote once already at braid level 1")
	}
}

func TestRestoreRehydratesUnexportedCounters(t *testing.T) {
	var p PatternStats
	p.Restore(5, 10, 3, 2)
	if p.PositiveSegments() != 5 || p.TotalSegments() != 10 || p.ChildStrands() != 3 || p.BraidLevel() != 2 {
		t.Fatalf("Restore did not round-trip: %+v", p)
	}
}
