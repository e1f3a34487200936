// Package persistence defines the durable-store contracts for the Learning
// Core's closed-loop data (spec §6): closed-trade outcomes, aggregated
// pattern statistics, and materialized lessons. It is adapted from the
// teacher's persistence/interfaces.go, which defined the same shape of
// contract (repo interfaces plus a health-check surface) for exchange
// trades and regime snapshots; the domain types underneath are entirely
// new.
package persistence

import (
	"context"
	"time"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/outcome"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// TimeRange bounds a query by closed-at timestamp, inclusive of both ends.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// TradeSummaryRepo persists outcome.TradeSummary records (spec §4.6), the
// durable record of every closed position the Outcome Classifier produced.
type TradeSummaryRepo interface {
	Insert(ctx context.Context, ts outcome.TradeSummary) error
	InsertBatch(ctx context.Context, summaries []outcome.TradeSummary) error
	ListByScopeKey(ctx context.Context, key scope.Key, tr TimeRange) ([]outcome.TradeSummary, error)
	ListByInstrument(ctx context.Context, instrumentID string, tr TimeRange) ([]outcome.TradeSummary, error)
	Count(ctx context.Context) (int64, error)
}

// PatternRepo persists learn.PatternStats snapshots (spec §4.7), keyed by
// scope key, so the Pattern Aggregator's in-memory state survives restarts.
type PatternRepo interface {
	Upsert(ctx context.Context, stats learn.PatternStats) error
	Get(ctx context.Context, key scope.Key) (learn.PatternStats, bool, error)
	ListDegraded(ctx context.Context) ([]learn.PatternStats, error)
	ListAll(ctx context.Context) ([]learn.PatternStats, error)
}

// LessonRepo persists learn.Lesson snapshots (spec §4.8), the durable
// counterpart to the in-memory Override Store so Overrides survive a
// process restart without relearning from scratch.
type LessonRepo interface {
	Upsert(ctx context.Context, l learn.Lesson) error
	Get(ctx context.Context, key scope.Key) (learn.Lesson, bool, error)
	ListAll(ctx context.Context) ([]learn.Lesson, error)
}

// Repository bundles every repo this engine needs, the same aggregate shape
// the teacher used to hand a single dependency to application-layer code.
type Repository struct {
	Trades   TradeSummaryRepo
	Patterns PatternRepo
	Lessons  LessonRepo
}

// RepositoryHealth reports whether the backing store is reachable, used by
// the /healthz HTTP endpoint.
type RepositoryHealth interface {
	HealthCheck(ctx context.Context) error
}
