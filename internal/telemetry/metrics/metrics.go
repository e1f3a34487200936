// Package metrics defines the Prometheus registry for this engine, adapted
// from the teacher's interfaces/http/metrics.go MetricsRegistry: the same
// StepTimer pattern, vectored counters/histograms, and a package-level
// DefaultRegistry singleton, repurposed from scan-pipeline steps to bar
// processing, state transitions, gate rejections, and lesson updates.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Registry holds every Prometheus metric this engine exposes on /metrics.
type Registry struct {
	BarProcessDuration *prometheus.HistogramVec
	BarsProcessed      *prometheus.CounterVec
	BarsSkipped        *prometheus.CounterVec

	StateTransitions *prometheus.CounterVec
	ReclaimEvents    *prometheus.CounterVec

	GateRejections *prometheus.CounterVec

	LessonUpdates     *prometheus.CounterVec
	BraidPromotions   prometheus.Counter
	AggregatorDegraded prometheus.Gauge

	InvariantViolations *prometheus.CounterVec
}

// NewRegistry builds and registers every metric with the default
// Prometheus registerer.
func NewRegistry() *Registry {
	r := &Registry{
		BarProcessDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendcore_bar_process_duration_seconds",
				Help:    "Duration of per-bar processing in the per-instrument loop",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5},
			},
			[]string{"timeframe", "result"},
		),
		BarsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendcore_bars_processed_total", Help: "Total bars processed per timeframe"},
			[]string{"timeframe"},
		),
		BarsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendcore_bars_skipped_total", Help: "Total bars skipped due to budget timeout"},
			[]string{"timeframe"},
		),
		StateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendcore_state_transitions_total", Help: "State machine transitions by from/to state"},
			[]string{"from", "to"},
		),
		ReclaimEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendcore_reclaim_events_total", Help: "EMA333 reclaim events by timeframe"},
			[]string{"timeframe"},
		),
		GateRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendcore_gate_rejections_total", Help: "Entry/add/trim gate rejections by gate name"},
			[]string{"gate"},
		),
		LessonUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendcore_lesson_updates_total", Help: "Lesson epoch updates by scope family"},
			[]string{"family"},
		),
		BraidPromotions: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "trendcore_braid_promotions_total", Help: "Total pattern braid promotions"},
		),
		AggregatorDegraded: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "trendcore_aggregator_degraded_keys", Help: "Current count of degraded scope keys"},
		),
		InvariantViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendcore_invariant_violations_total", Help: "Self-test invariant violations by invariant id"},
			[]string{"invariant"},
		),
	}

	prometheus.MustRegister(
		r.BarProcessDuration, r.BarsProcessed, r.BarsSkipped,
		r.StateTransitions, r.ReclaimEvents, r.GateRejections,
		r.LessonUpdates, r.BraidPromotions, r.AggregatorDegraded,
		r.InvariantViolations,
	)
	return r
}

// StepTimer times one bar's processing and records the histogram/counter
// pair on Stop, mirroring the teacher's StepTimer.
type StepTimer struct {
	registry  *Registry
	timeframe string
	start     time.Time
}

// StartBarTimer begins timing one bar's processing for timeframe.
func (r *Registry) StartBarTimer(timeframe string) *StepTimer {
	return &StepTimer{registry: r, timeframe: timeframe, start: time.Now()}
}

// Stop completes the timer and records duration/count metrics.
func (t *StepTimer) Stop(result string) {
	duration := time.Since(t.start)
	t.registry.BarProcessDuration.WithLabelValues(t.timeframe, result).Observe(duration.Seconds())
	if result == "processed" {
		t.registry.BarsProcessed.WithLabelValues(t.timeframe).Inc()
	} else if result == "skipped" {
		t.registry.BarsSkipped.WithLabelValues(t.timeframe).Inc()
	}
	log.Debug().Str("timeframe", t.timeframe).Str("result", result).Dur("duration", duration).Msg("bar processed")
}

// RecordStateTransition increments the transitions counter.
func (r *Registry) RecordStateTransition(from, to string) {
	r.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordReclaimEvent increments the reclaim counter for timeframe.
func (r *Registry) RecordReclaimEvent(timeframe string) {
	r.ReclaimEvents.WithLabelValues(timeframe).Inc()
}

// RecordGateRejection increments the rejection counter for a named gate.
func (r *Registry) RecordGateRejection(gate string) {
	r.GateRejections.WithLabelValues(gate).Inc()
}

// RecordLessonUpdate increments the lesson-update counter for family.
func (r *Registry) RecordLessonUpdate(family string) {
	r.LessonUpdates.WithLabelValues(family).Inc()
}

// RecordBraidPromotion increments the braid-promotion counter.
func (r *Registry) RecordBraidPromotion() {
	r.BraidPromotions.Inc()
}

// SetAggregatorDegraded sets the current degraded-key gauge.
func (r *Registry) SetAggregatorDegraded(count int) {
	r.AggregatorDegraded.Set(float64(count))
}

// RecordInvariantViolation increments the violation counter for invariant.
func (r *Registry) RecordInvariantViolation(invariant string) {
	r.InvariantViolations.WithLabelValues(invariant).Inc()
}

// DefaultRegistry is the process-wide metrics registry, initialized once at
// startup by InitializeMetrics.
var DefaultRegistry *Registry

// InitializeMetrics initializes DefaultRegistry.
func InitializeMetrics() {
	DefaultRegistry = NewRegistry()
	log.Info().Msg("prometheus metrics registry initialized")
}
