// Package engine wires the Feature Builder, State Machine, Signature
// Engine, Appetite Calculator, Position Ledger, Outcome Classifier, and
// Learning Core into the per-instrument cooperative loop described in spec
// §5: within one Instrument, its four TimeframeStreams are processed by a
// single-threaded loop to preserve I1/I2, while the Pattern Aggregator and
// Override Store are the only structures shared across Instruments.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/appetite"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core/budget"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/core/errs"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/feature"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/gates"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/signature"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/domain/state"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/ledger"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/outcome"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/persistence"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/regime"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/telemetry/metrics"
)

// module names every scope key this engine produces (spec §4.7 "module.
// family.state.motif").
const module = "trendcore"

// defaultMotif tags the single strategy motif this engine currently runs;
// a repo with multiple concurrent motifs would key this off the entry
// signal that triggered the position instead of a constant.
const defaultMotif = "trend_follow"

// maxBarsGap bounds CheckGap before a stream is considered to have lost
// continuity (spec §6: "Duplicates and out-of-order bars must be rejected").
const maxBarsGap = 3

// streamState is the live, single-threaded state for one (instrument, tf)
// pair (spec §3 TimeframeStream).
type streamState struct {
	tf          core.Timeframe
	buf         *core.RingBuffer
	machine     *state.Machine
	avwapAnchor int
	lastSig     signature.Signature
}

// Instrument owns its four TimeframeStreams and their Positions exclusively
// (spec §3 Ownership). Shared collaborators — the Aggregator, the Override
// Store, and the regime Cache — are injected so many Instruments can run
// concurrently against the same Learning Core (spec §5).
type Instrument struct {
	ID         string
	Family     string
	McapBucket string

	Streams map[core.Timeframe]*streamState
	Book    *ledger.Book
	Budget  *budget.Limiter

	SigCfg      signature.Config
	AppetiteCfg appetite.Config
	LessonCfg   learn.Config

	Aggregator  *learn.Aggregator
	Overrides   *learn.Store
	RegimeCache *regime.Cache
	DelayGate   *gates.DelayGate

	// overrideCache mirrors every Lesson publication into Redis, if set
	// (SetOverrideCache). Nil means "no cache configured" — publications
	// then only ever live in Overrides, the in-process Store.
	overrideCache OverrideCache

	// repo durably persists closed TradeSummaries, PatternStats, and
	// Lessons, if set (SetRepository). Nil means "no durable store
	// configured" — the in-process Aggregator/Store are still authoritative
	// for the life of the process either way.
	repo *persistence.Repository

	// metrics records this Instrument's bar-processing, state-transition,
	// gate, and lesson activity, if set (SetMetrics).
	metrics *metrics.Registry

	// ConsecutiveLosses feeds the Appetite Calculator's cut-pressure term;
	// maintained here since only this Instrument's own trade history should
	// influence its own appetite (spec §4.4 "cross-timeframe influence
	// occurs only via the Learning Core").
	ConsecutiveLosses int
}

// NewInstrument constructs an Instrument with empty streams; streams are
// created lazily on first bar per timeframe.
func NewInstrument(id, family, mcapBucket string, sigCfg signature.Config, appCfg appetite.Config, lessonCfg learn.Config,
	agg *learn.Aggregator, overrides *learn.Store, regimeCache *regime.Cache) *Instrument {
	return &Instrument{
		ID:          id,
		Family:      family,
		McapBucket:  mcapBucket,
		Streams:     make(map[core.Timeframe]*streamState),
		Book:        ledger.NewBook(),
		Budget:      budget.NewLimiter(500*time.Millisecond, 50, 10),
		SigCfg:      sigCfg,
		AppetiteCfg: appCfg,
		LessonCfg:   lessonCfg,
		Aggregator:  agg,
		Overrides:   overrides,
		RegimeCache: regimeCache,
		DelayGate:   gates.NewDelayGate(gates.DefaultDelayGateConfig()),
	}
}

// OverrideCache mirrors a materialized Lesson publication into an external
// store keyed by scope; persistence/redisrepo.OverrideCache satisfies it.
type OverrideCache interface {
	Publish(ctx context.Context, ov learn.Override) error
}

// SetOverrideCache wires an external Override mirror (e.g. Redis) into this
// Instrument. Optional: a nil cache (the default) means closeOut only
// publishes to the in-process Store.
func (i *Instrument) SetOverrideCache(cache OverrideCache) {
	i.overrideCache = cache
}

// SetRepository wires durable persistence of closed TradeSummaries,
// PatternStats, and Lessons into this Instrument. Optional: a nil repo (the
// default) keeps the engine fully in-memory.
func (i *Instrument) SetRepository(repo *persistence.Repository) {
	i.repo = repo
}

// SetMetrics wires a Prometheus registry into this Instrument. Optional: a
// nil registry (the default) skips every recording call.
func (i *Instrument) SetMetrics(reg *metrics.Registry) {
	i.metrics = reg
}

func (i *Instrument) streamFor(tf core.Timeframe) *streamState {
	st, ok := i.Streams[tf]
	if !ok {
		st = &streamState{
			tf:          tf,
			buf:         core.NewRingBuffer(core.RingBufferCapacity),
			machine:     state.NewMachine(),
			avwapAnchor: -1,
		}
		i.Streams[tf] = st
	}
	return st
}

// ProcessBar feeds one closed bar through the full per-bar pipeline,
// respecting the configured compute budget (spec §5): a bar that exceeds
// budget is marked skipped, and the prior state is retained untouched.
func (i *Instrument) ProcessBar(ctx context.Context, bar core.Bar, regimeKey string, now time.Time) (skipped bool, err error) {
	st := i.streamFor(bar.TF)

	var timer *metrics.StepTimer
	if i.metrics != nil {
		timer = i.metrics.StartBarTimer(string(bar.TF))
	}

	completed, runErr := i.Budget.Run(ctx, i.ID, func(ctx context.Context) error {
		return i.processBarLocked(st, bar, regimeKey, now)
	})

	if timer != nil {
		if !completed {
			timer.Stop("skipped")
		} else {
			timer.Stop("processed")
		}
	}
	if !completed {
		return true, runErr
	}
	return false, runErr
}

func (i *Instrument) processBarLocked(st *streamState, bar core.Bar, regimeKey string, now time.Time) error {
	if err := st.buf.CheckGap(bar, maxBarsGap); err != nil {
		return err
	}
	if err := st.buf.Append(bar); err != nil {
		return err
	}

	fs, err := feature.Build(st.buf, st.avwapAnchor)
	if err != nil {
		if errors.Is(err, errs.ErrInsufficientData) {
			return nil
		}
		return err
	}

	transition, reclaimed := st.machine.Evaluate(fs.EMA, bar.Close, bar.TS)
	if transition != nil && transition.To == state.S3 {
		st.avwapAnchor = st.buf.Len() - 1
	}
	if transition != nil && i.metrics != nil {
		i.metrics.RecordStateTransition(transition.From.String(), transition.To.String())
	}
	if reclaimed {
		log.Info().Str("instrument", i.ID).Str("tf", string(bar.TF)).Msg("reclaimed_ema333")
		if i.metrics != nil {
			i.metrics.RecordReclaimEvent(string(bar.TF))
		}
	}

	cur := st.machine.Current().Value
	sig := signature.Compute(st.buf, fs, cur, i.SigCfg)
	st.lastSig = sig

	ctxSnap := i.RegimeCache.Get(regimeKey, now).Resolve(now)
	scopeKey := i.scopeKey(bar.TF, ctxSnap, cur)
	ov := i.Overrides.Get(scopeKey, now)

	apt := appetite.Compute(appetite.Inputs{
		Context:           ctxSnap,
		Signature:         sig,
		ConsecutiveLosses: i.ConsecutiveLosses,
		McapBucket:        i.McapBucket,
		Override:          ov,
	}, i.AppetiteCfg, now)

	if cur == state.GlobalExit {
		if cp := i.Book.GlobalExitLiquidate(i.ID, st.tf, bar.Close, bar.TS); cp != nil {
			i.DelayGate.Reset(i.ID + "|" + string(st.tf))
			i.closeOut(cp, st, ctxSnap, now)
		}
		return nil
	}

	i.applyPositionPolicy(st, bar, fs, cur, sig, apt, ov)
	return nil
}

// applyPositionPolicy opens, adds to, trims, or leaves alone the position
// for this (instrument, tf) based on the current state and A/E scores (spec
// §4.4, §4.5). Sizing uses apt.A directly, scaled by the Override's
// size_mult — the single channel through which Lessons reach the ledger.
// entry_delay_bars (the Override's ExecutionLevers.EntryDelayBars) must also
// be satisfied via the DelayGate before a first entry fires.
func (i *Instrument) applyPositionPolicy(st *streamState, bar core.Bar, fs feature.FeatureSet, cur state.Value, sig signature.Signature, apt appetite.Scores, ov learn.Override) {
	verdict := gates.EvaluateAllGates(gates.EvaluateAllGatesInputs{
		InstrumentID: i.ID,
		Timestamp:    bar.TS,
		State:        cur,
		Signature:    sig,
		Appetite:     apt,
		Cfg:          i.SigCfg,
		Price:        bar.Close,
		Features:     fs,
	})

	if i.metrics != nil {
		for _, r := range verdict.Reasons {
			if !r.Passed {
				i.metrics.RecordGateRejection(r.Name)
			}
		}
	}

	pos := i.Book.Open(i.ID, st.tf)
	delayKey := i.ID + "|" + string(st.tf)
	delayOK := i.DelayGate.Evaluate(delayKey, ov.Levers.EntryDelayBars, verdict.Passed).Passed
	entryEligible := verdict.Passed && delayOK

	if pos == nil {
		if entryEligible {
			entry := ledger.Entry{Timestamp: bar.TS, Price: bar.Close, Size: apt.A * ov.SizeMult, Reason: cur.String()}
			if _, err := i.Book.OpenPosition(i.ID, st.tf, entry, cur); err != nil {
				log.Warn().Err(err).Str("instrument", i.ID).Str("tf", string(st.tf)).Msg("open position rejected")
			} else {
				i.DelayGate.Reset(delayKey)
			}
		}
		return
	}

	addOK := false
	for _, r := range verdict.Reasons {
		if r.Name == "add" {
			addOK = r.Passed
		}
	}
	if entryEligible || addOK {
		entry := ledger.Entry{Timestamp: bar.TS, Price: bar.Close, Size: apt.A * ov.SizeMult, Reason: cur.String()}
		_, _ = i.Book.AddEntry(i.ID, st.tf, entry, cur)
	}

	if apt.E >= i.SigCfg.TrimGateOX {
		fraction := (apt.E - i.SigCfg.TrimGateOX) / (1 - i.SigCfg.TrimGateOX)
		if fraction > 1 {
			fraction = 1
		}
		_ = i.Book.Trim(i.ID, st.tf, ledger.Trim{Timestamp: bar.TS, Price: bar.Close, Fraction: fraction, Reason: "appetite_exit"})
	}
}

// closeOut runs a just-closed Position through the Outcome Classifier and
// folds the result into the Pattern Aggregator and the Lesson/Override
// Store (spec's closed data-flow loop: "Closed positions -> Outcome
// Classifier -> Pattern Aggregator -> Lesson Builder -> overrides").
func (i *Instrument) closeOut(cp *ledger.Position, st *streamState, ctxSnap regime.Context, now time.Time) {
	cur := st.machine.Current().Value
	scopeKey := i.scopeKey(st.tf, ctxSnap, cur)
	parentKey := i.parentScopeKey(cur)

	bars := st.buf.Slice(st.buf.Len())
	snap := outcome.ContextSnapshot{
		Dimensions: dimensionsFor(i, st.tf, ctxSnap),
		McapBucket: i.McapBucket,
		Family:     i.Family,
		State:      cur.String(),
	}
	summary := outcome.Classify(cp, bars, scopeKey, snap)

	if i.repo != nil {
		if err := i.repo.Trades.Insert(context.Background(), summary); err != nil {
			log.Warn().Err(err).Str("scope_key", string(scopeKey)).Msg("trade summary persistence failed")
		}
	}

	if summary.RR < 0 {
		i.ConsecutiveLosses++
	} else {
		i.ConsecutiveLosses = 0
	}

	positiveSubSegment := summary.RR > 0
	if err := i.Aggregator.RecordOutcome(scopeKey, parentKey, summary.RR, i.McapBucket, string(st.tf), positiveSubSegment, now); err != nil {
		log.Warn().Err(err).Str("scope_key", string(scopeKey)).Msg("pattern aggregator: outcome recording failed")
		_ = i.Aggregator.MarkDegraded(scopeKey)
		return
	}

	stats, ok := i.Aggregator.Snapshot(scopeKey)
	if !ok {
		return
	}
	if i.repo != nil {
		if err := i.repo.Patterns.Upsert(context.Background(), stats); err != nil {
			log.Warn().Err(err).Str("scope_key", string(scopeKey)).Msg("pattern stats persistence failed")
		}
	}

	prior, ok := i.Overrides.Lesson(scopeKey)
	if !ok {
		prior = learn.NeutralLesson(scopeKey)
	}
	next := learn.Update(prior, stats, i.LessonCfg, now)
	i.Overrides.Publish(next)

	if i.metrics != nil {
		i.metrics.RecordLessonUpdate(i.Family)
	}

	if i.repo != nil {
		if err := i.repo.Lessons.Upsert(context.Background(), next); err != nil {
			log.Warn().Err(err).Str("scope_key", string(scopeKey)).Msg("lesson persistence failed")
		}
	}

	if i.overrideCache != nil {
		ov := i.Overrides.Get(scopeKey, now)
		if err := i.overrideCache.Publish(context.Background(), ov); err != nil {
			log.Warn().Err(err).Str("scope_key", string(scopeKey)).Msg("override cache publish failed")
		}
	}
}

func dimensionsFor(i *Instrument, tf core.Timeframe, ctx regime.Context) scope.Dimensions {
	return scope.Dimensions{
		MacroPhase:   string(ctx.MacroPhase),
		MesoPhase:    string(ctx.MesoPhase),
		MicroPhase:   string(ctx.MicroPhase),
		BucketLeader: ctx.BucketLeader,
		BucketRank:   ctx.BucketRank,
		MarketFamily: i.Family,
		Bucket:       i.McapBucket,
		Timeframe:    string(tf),
		AMode:        string(ctx.AMode),
		EMode:        string(ctx.EMode),
	}
}

// scopeKey builds the fully-qualified scope key (spec §4.7).
func (i *Instrument) scopeKey(tf core.Timeframe, ctx regime.Context, st state.Value) scope.Key {
	return scope.Build(module, i.Family, st.String(), defaultMotif, dimensionsFor(i, tf, ctx))
}

// parentScopeKey builds the coarser scope a child strand rolls up into for
// incremental_edge and braid promotion (spec §4.7): module/family/state/
// motif held fixed, context dimensions dropped.
func (i *Instrument) parentScopeKey(st state.Value) scope.Key {
	return scope.Build(module, i.Family, st.String(), defaultMotif, scope.Dimensions{})
}
