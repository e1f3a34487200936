package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
)

// barJob is one bar routed to its owning Instrument's single-threaded loop.
type barJob struct {
	bar       core.Bar
	regimeKey string
	now       time.Time
}

// Mesh runs one goroutine per Instrument, each draining its own bounded
// channel in ingestion order (spec §5: "parallel per-instrument workers...
// cross-instrument there is no ordering guarantee beyond per-key
// serialization in the aggregator").
type Mesh struct {
	mu          sync.RWMutex
	instruments map[string]*Instrument
	queues      map[string]chan barJob
	factory     func(instrumentID string) *Instrument
	queueDepth  int
	wg          sync.WaitGroup
}

// NewMesh constructs a Mesh. factory lazily builds a new Instrument the
// first time its ID is seen; Instruments built by factory are expected to
// share the same Aggregator/Overrides/RegimeCache across the whole Mesh,
// since those are the structures spec §5 designates as cross-instrument
// shared state.
func NewMesh(factory func(instrumentID string) *Instrument, queueDepth int) *Mesh {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Mesh{
		instruments: make(map[string]*Instrument),
		queues:      make(map[string]chan barJob),
		factory:     factory,
		queueDepth:  queueDepth,
	}
}

func (m *Mesh) workerFor(ctx context.Context, instrumentID string) chan barJob {
	m.mu.RLock()
	q, ok := m.queues[instrumentID]
	m.mu.RUnlock()
	if ok {
		return q
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok = m.queues[instrumentID]; ok {
		return q
	}

	inst := m.factory(instrumentID)
	q = make(chan barJob, m.queueDepth)
	m.instruments[instrumentID] = inst
	m.queues[instrumentID] = q

	m.wg.Add(1)
	go m.run(ctx, inst, q)
	return q
}

func (m *Mesh) run(ctx context.Context, inst *Instrument, q chan barJob) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q:
			if !ok {
				return
			}
			skipped, err := inst.ProcessBar(ctx, job.bar, job.regimeKey, job.now)
			if err != nil {
				log.Warn().Err(err).Str("instrument", inst.ID).Bool("skipped", skipped).Msg("bar processing error")
			}
		}
	}
}

// Submit routes one bar to its owning Instrument's queue. It blocks only if
// that instrument's own queue is full, never on any other instrument's
// backlog (spec §5 per-instrument isolation).
func (m *Mesh) Submit(ctx context.Context, bar core.Bar, regimeKey string, now time.Time) {
	q := m.workerFor(ctx, bar.InstrumentID)
	select {
	case q <- barJob{bar: bar, regimeKey: regimeKey, now: now}:
	case <-ctx.Done():
	}
}

// Instrument returns the live Instrument for id, or nil if no bar for it
// has ever been submitted.
func (m *Mesh) Instrument(id string) *Instrument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instruments[id]
}

// Instruments returns a snapshot of every live Instrument, for periodic
// diagnostics (e.g. the self-test sweep) that need to walk the whole Mesh.
func (m *Mesh) Instruments() []*Instrument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instrument, 0, len(m.instruments))
	for _, inst := range m.instruments {
		out = append(out, inst)
	}
	return out
}

// Close stops accepting new bars and waits for every worker to drain its
// queue and exit.
func (m *Mesh) Close() {
	m.mu.Lock()
	for _, q := range m.queues {
		close(q)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
