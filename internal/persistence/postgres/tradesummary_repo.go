// Package postgres implements the persistence.Repository contracts against
// Postgres via sqlx + lib/pq, adapted from the teacher's trades_repo.go and
// regime_repo.go: the same pq.Error duplicate-key handling and
// JSONB-for-nested-structs idioms (callers supply the context and its deadline), repurposed from exchange
// trades/regime snapshots to TradeSummaries/PatternStats/Lessons.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/outcome"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/persistence"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// pqDuplicateKeyCode is Postgres' unique_violation SQLSTATE.
const pqDuplicateKeyCode = "23505"

// tradeSummaryRepo implements persistence.TradeSummaryRepo.
type tradeSummaryRepo struct {
	db *sqlx.DB
}

// NewTradeSummaryRepo constructs a persistence.TradeSummaryRepo backed by db.
func NewTradeSummaryRepo(db *sqlx.DB) persistence.TradeSummaryRepo {
	return &tradeSummaryRepo{db: db}
}

// tradeSummaryRow is the sqlx scan target for trade_summaries.
type tradeSummaryRow struct {
	PositionID        string    `db:"position_id"`
	ScopeKey          string    `db:"scope_key"`
	RR                float64   `db:"rr"`
	MaxDD             float64   `db:"max_dd"`
	TimeToPaybackDays float64   `db:"time_to_payback_days"`
	MissedEntryRR     float64   `db:"missed_entry_rr"`
	MissedExitRR      float64   `db:"missed_exit_rr"`
	ClosedAt          time.Time `db:"closed_at"`
	ContextJSON       []byte    `db:"context_json"`
}

func toRow(ts outcome.TradeSummary) (tradeSummaryRow, error) {
	ctxJSON, err := json.Marshal(ts.Context)
	if err != nil {
		return tradeSummaryRow{}, fmt.Errorf("marshal context snapshot: %w", err)
	}
	payback := ts.TimeToPaybackDays
	if payback == outcome.TimeToPaybackUndefined {
		// Postgres has no +Inf float8 literal via the text protocol in all
		// drivers; store a documented sentinel instead.
		payback = -1
	}
	return tradeSummaryRow{
		PositionID:        ts.PositionID,
		ScopeKey:          string(ts.ScopeKey),
		RR:                ts.RR,
		MaxDD:             ts.MaxDD,
		TimeToPaybackDays: payback,
		MissedEntryRR:     ts.MissedEntryRR,
		MissedExitRR:      ts.MissedExitRR,
		ClosedAt:          ts.ClosedAt,
		ContextJSON:       ctxJSON,
	}, nil
}

func fromRow(r tradeSummaryRow) (outcome.TradeSummary, error) {
	var ctxSnap outcome.ContextSnapshot
	if err := json.Unmarshal(r.ContextJSON, &ctxSnap); err != nil {
		return outcome.TradeSummary{}, fmt.Errorf("unmarshal context snapshot: %w", err)
	}
	payback := r.TimeToPaybackDays
	if payback < 0 {
		payback = outcome.TimeToPaybackUndefined
	}
	return outcome.TradeSummary{
		PositionID:        r.PositionID,
		ScopeKey:          scope.Key(r.ScopeKey),
		RR:                r.RR,
		MaxDD:             r.MaxDD,
		TimeToPaybackDays: payback,
		MissedEntryRR:     r.MissedEntryRR,
		MissedExitRR:      r.MissedExitRR,
		ClosedAt:          r.ClosedAt,
		Context:           ctxSnap,
	}, nil
}

func (r *tradeSummaryRepo) Insert(ctx context.Context, ts outcome.TradeSummary) error {
	row, err := toRow(ts)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO trade_summaries
			(position_id, scope_key, rr, max_dd, time_to_payback_days, missed_entry_rr, missed_exit_rr, closed_at, context_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, row.PositionID, row.ScopeKey, row.RR, row.MaxDD, row.TimeToPaybackDays, row.MissedEntryRR, row.MissedExitRR, row.ClosedAt, row.ContextJSON)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqDuplicateKeyCode {
			return fmt.Errorf("trade summary %s already recorded: %w", ts.PositionID, err)
		}
		return fmt.Errorf("insert trade summary: %w", err)
	}
	return nil
}

func (r *tradeSummaryRepo) InsertBatch(ctx context.Context, summaries []outcome.TradeSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback()

	for _, ts := range summaries {
		row, err := toRow(ts)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trade_summaries
				(position_id, scope_key, rr, max_dd, time_to_payback_days, missed_entry_rr, missed_exit_rr, closed_at, context_json)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (position_id) DO NOTHING
		`, row.PositionID, row.ScopeKey, row.RR, row.MaxDD, row.TimeToPaybackDays, row.MissedEntryRR, row.MissedExitRR, row.ClosedAt, row.ContextJSON)
		if err != nil {
			return fmt.Errorf("batch insert trade summary %s: %w", ts.PositionID, err)
		}
	}

	return tx.Commit()
}

func (r *tradeSummaryRepo) ListByScopeKey(ctx context.Context, key scope.Key, tr persistence.TimeRange) ([]outcome.TradeSummary, error) {
	var rows []tradeSummaryRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT position_id, scope_key, rr, max_dd, time_to_payback_days, missed_entry_rr, missed_exit_rr, closed_at, context_json
		FROM trade_summaries
		WHERE scope_key = $1 AND closed_at BETWEEN $2 AND $3
		ORDER BY closed_at ASC
	`, string(key), tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("list trade summaries by scope key: %w", err)
	}
	return rowsToSummaries(rows)
}

func (r *tradeSummaryRepo) ListByInstrument(ctx context.Context, instrumentID string, tr persistence.TimeRange) ([]outcome.TradeSummary, error) {
	var rows []tradeSummaryRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT position_id, scope_key, rr, max_dd, time_to_payback_days, missed_entry_rr, missed_exit_rr, closed_at, context_json
		FROM trade_summaries
		WHERE context_json->>'family' = $1 AND closed_at BETWEEN $2 AND $3
		ORDER BY closed_at ASC
	`, instrumentID, tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("list trade summaries by instrument: %w", err)
	}
	return rowsToSummaries(rows)
}

func (r *tradeSummaryRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM trade_summaries`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count trade summaries: %w", err)
	}
	return count, nil
}

func rowsToSummaries(rows []tradeSummaryRow) ([]outcome.TradeSummary, error) {
	out := make([]outcome.TradeSummary, 0, len(rows))
	for _, row := range rows {
		ts, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, nil
}
