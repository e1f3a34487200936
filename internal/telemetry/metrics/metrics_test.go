package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newUnregisteredRegistry builds a Registry with the same metric shapes as
// NewRegistry but without calling prometheus.MustRegister against the
// package-global default registerer, so each test gets an isolated set of
// collectors instead of panicking on duplicate registration.
func newUnregisteredRegistry() *Registry {
	return &Registry{
		BarProcessDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_bar_process_duration_seconds"},
			[]string{"timeframe", "result"},
		),
		BarsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_bars_processed_total"}, []string{"timeframe"},
		),
		BarsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_bars_skipped_total"}, []string{"timeframe"},
		),
		StateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_state_transitions_total"}, []string{"from", "to"},
		),
		ReclaimEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_reclaim_events_total"}, []string{"timeframe"},
		),
		GateRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_gate_rejections_total"}, []string{"gate"},
		),
		LessonUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_lesson_updates_total"}, []string{"family"},
		),
		BraidPromotions: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "test_braid_promotions_total"},
		),
		AggregatorDegraded: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "test_aggregator_degraded_keys"},
		),
		InvariantViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_invariant_violations_total"}, []string{"invariant"},
		),
	}
}

func TestNewRegistryPopulatesEveryCollector(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.BarProcessDuration)
	require.NotNil(t, r.BarsProcessed)
	require.NotNil(t, r.BarsSkipped)
	require.NotNil(t, r.StateTransitions)
	require.NotNil(t, r.ReclaimEvents)
	require.NotNil(t, r.GateRejections)
	require.NotNil(t, r.LessonUpdates)
	require.NotNil(t, r.BraidPromotions)
	require.NotNil(t, r.AggregatorDegraded)
	require.NotNil(t, r.InvariantViolations)
}

func TestStepTimerRecordsProcessedResult(t *testing.T) {
	r := newUnregisteredRegistry()
	timer := r.StartBarTimer("1h")
	time.Sleep(time.Millisecond)
	timer.Stop("processed")

	assert.InDelta(t, 1.0, testutil.ToFloat64(r.BarsProcessed.WithLabelValues("1h")), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(r.BarsSkipped.WithLabelValues("1h")), 1e-9)
}

func TestStepTimerRecordsSkippedResult(t *testing.T) {
	r := newUnregisteredRegistry()
	timer := r.StartBarTimer("4h")
	timer.Stop("skipped")

	assert.InDelta(t, 1.0, testutil.ToFloat64(r.BarsSkipped.WithLabelValues("4h")), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(r.BarsProcessed.WithLabelValues("4h")), 1e-9)
}

func TestRecordStateTransitionIncrementsLabeledCounter(t *testing.T) {
	r := newUnregisteredRegistry()
	r.RecordStateTransition("s1_primer", "s3_trending")
	r.RecordStateTransition("s1_primer", "s3_trending")
	assert.InDelta(t, 2.0, testutil.ToFloat64(r.StateTransitions.WithLabelValues("s1_primer", "s3_trending")), 1e-9)
}

func TestRecordReclaimEventIncrementsByTimeframe(t *testing.T) {
	r := newUnregisteredRegistry()
	r.RecordReclaimEvent("15m")
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.ReclaimEvents.WithLabelValues("15m")), 1e-9)
}

func TestRecordGateRejectionIncrementsByGateName(t *testing.T) {
	r := newUnregisteredRegistry()
	r.RecordGateRejection("entry")
	r.RecordGateRejection("entry")
	r.RecordGateRejection("trim")
	assert.InDelta(t, 2.0, testutil.ToFloat64(r.GateRejections.WithLabelValues("entry")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.GateRejections.WithLabelValues("trim")), 1e-9)
}

func TestRecordLessonUpdateIncrementsByFamily(t *testing.T) {
	r := newUnregisteredRegistry()
	r.RecordLessonUpdate("l1")
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.LessonUpdates.WithLabelValues("l1")), 1e-9)
}

func TestRecordBraidPromotionIncrementsCounter(t *testing.T) {
	r := newUnregisteredRegistry()
	r.RecordBraidPromotion()
	r.RecordBraidPromotion()
	assert.InDelta(t, 2.0, testutil.ToFloat64(r.BraidPromotions), 1e-9)
}

func TestSetAggregatorDegradedOverwritesGauge(t *testing.T) {
	r := newUnregisteredRegistry()
	r.SetAggregatorDegraded(3)
	assert.InDelta(t, 3.0, testutil.ToFloat64(r.AggregatorDegraded), 1e-9)
	r.SetAggregatorDegraded(1)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.AggregatorDegraded), 1e-9)
}

func TestRecordInvariantViolationIncrementsByID(t *testing.T) {
	r := newUnregisteredRegistry()
	r.RecordInvariantViolation("I3")
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.InvariantViolations.WithLabelValues("I3")), 1e-9)
}

