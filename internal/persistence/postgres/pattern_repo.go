package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/persistence"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// patternRepo implements persistence.PatternRepo, durably mirroring the
// Pattern Aggregator's in-memory PatternStats so a restart never loses
// accumulated n/avg_rr/braid-promotion history.
type patternRepo struct {
	db *sqlx.DB
}

// NewPatternRepo constructs a persistence.PatternRepo backed by db.
func NewPatternRepo(db *sqlx.DB) persistence.PatternRepo {
	return &patternRepo{db: db}
}

type patternRow struct {
	ScopeKey         string       `db:"scope_key"`
	N                int          `db:"n"`
	AvgRR            float64      `db:"avg_rr"`
	VarRR            float64      `db:"var_rr"`
	EdgeRaw          float64      `db:"edge_raw"`
	RecurrenceScore  float64      `db:"recurrence_score"`
	FieldCoherence   float64      `db:"field_coherence"`
	IncrementalEdge  float64      `db:"incremental_edge"`
	LastUpdateTS     time.Time    `db:"last_update_ts"`
	Degraded         bool         `db:"degraded"`
	PositiveSegments int          `db:"positive_segments"`
	TotalSegments    int          `db:"total_segments"`
	ChildStrands     int          `db:"child_strands"`
	BraidLevel       int          `db:"braid_level"`
}

func patternToRow(s learn.PatternStats) patternRow {
	return patternRow{
		ScopeKey:         string(s.ScopeKey),
		N:                s.N,
		AvgRR:            s.AvgRR,
		VarRR:            s.VarRR,
		EdgeRaw:          s.EdgeRaw,
		RecurrenceScore:  s.RecurrenceScore,
		FieldCoherence:   s.FieldCoherence,
		IncrementalEdge:  s.IncrementalEdge,
		LastUpdateTS:     s.LastUpdateTS,
		Degraded:         s.Degraded,
		PositiveSegments: s.PositiveSegments(),
		TotalSegments:    s.TotalSegments(),
		ChildStrands:     s.ChildStrands(),
		BraidLevel:       s.BraidLevel(),
	}
}

func patternFromRow(r patternRow) learn.PatternStats {
	s := learn.PatternStats{
		ScopeKey:        scope.Key(r.ScopeKey),
		N:               r.N,
		AvgRR:           r.AvgRR,
		VarRR:           r.VarRR,
		EdgeRaw:         r.EdgeRaw,
		RecurrenceScore: r.RecurrenceScore,
		FieldCoherence:  r.FieldCoherence,
		IncrementalEdge: r.IncrementalEdge,
		LastUpdateTS:    r.LastUpdateTS,
		Degraded:        r.Degraded,
	}
	s.Restore(r.PositiveSegments, r.TotalSegments, r.ChildStrands, r.BraidLevel)
	return s
}

func (r *patternRepo) Upsert(ctx context.Context, stats learn.PatternStats) error {
	row := patternToRow(stats)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pattern_stats
			(scope_key, n, avg_rr, var_rr, edge_raw, recurrence_score, field_coherence, incremental_edge,
			 last_update_ts, degraded, positive_segments, total_segments, child_strands, braid_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (scope_key) DO UPDATE SET
			n = EXCLUDED.n, avg_rr = EXCLUDED.avg_rr, var_rr = EXCLUDED.var_rr, edge_raw = EXCLUDED.edge_raw,
			recurrence_score = EXCLUDED.recurrence_score, field_coherence = EXCLUDED.field_coherence,
			incremental_edge = EXCLUDED.incremental_edge, last_update_ts = EXCLUDED.last_update_ts,
			degraded = EXCLUDED.degraded, positive_segments = EXCLUDED.positive_segments,
			total_segments = EXCLUDED.total_segments, child_strands = EXCLUDED.child_strands,
			braid_level = EXCLUDED.braid_level
	`, row.ScopeKey, row.N, row.AvgRR, row.VarRR, row.EdgeRaw, row.RecurrenceScore, row.FieldCoherence,
		row.IncrementalEdge, row.LastUpdateTS, row.Degraded, row.PositiveSegments, row.TotalSegments,
		row.ChildStrands, row.BraidLevel)
	if err != nil {
		return fmt.Errorf("upsert pattern stats %s: %w", stats.ScopeKey, err)
	}
	return nil
}

func (r *patternRepo) Get(ctx context.Context, key scope.Key) (learn.PatternStats, bool, error) {
	var row patternRow
	err := r.db.GetContext(ctx, &row, `
		SELECT scope_key, n, avg_rr, var_rr, edge_raw, recurrence_score, field_coherence, incremental_edge,
		       last_update_ts, degraded, positive_segments, total_segments, child_strands, braid_level
		FROM pattern_stats WHERE scope_key = $1
	`, string(key))
	if errors.Is(err, sql.ErrNoRows) {
		return learn.PatternStats{}, false, nil
	}
	if err != nil {
		return learn.PatternStats{}, false, fmt.Errorf("get pattern stats %s: %w", key, err)
	}
	return patternFromRow(row), true, nil
}

func (r *patternRepo) ListDegraded(ctx context.Context) ([]learn.PatternStats, error) {
	var rows []patternRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT scope_key, n, avg_rr, var_rr, edge_raw, recurrence_score, field_coherence, incremental_edge,
		       last_update_ts, degraded, positive_segments, total_segments, child_strands, braid_level
		FROM pattern_stats WHERE degraded = true
	`)
	if err != nil {
		return nil, fmt.Errorf("list degraded pattern stats: %w", err)
	}
	return patternRowsToStats(rows), nil
}

func (r *patternRepo) ListAll(ctx context.Context) ([]learn.PatternStats, error) {
	var rows []patternRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT scope_key, n, avg_rr, var_rr, edge_raw, recurrence_score, field_coherence, incremental_edge,
		       last_update_ts, degraded, positive_segments, total_segments, child_strands, braid_level
		FROM pattern_stats
	`)
	if err != nil {
		return nil, fmt.Errorf("list pattern stats: %w", err)
	}
	return patternRowsToStats(rows), nil
}

func patternRowsToStats(rows []patternRow) []learn.PatternStats {
	out := make([]learn.PatternStats, 0, len(rows))
	for _, row := range rows {
		out = append(out, patternFromRow(row))
	}
	return out
}
