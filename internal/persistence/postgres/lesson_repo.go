package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/persistence"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// lessonRepo implements persistence.LessonRepo, the durable counterpart to
// learn.Store so a restarted engine doesn't serve neutral Overrides while
// the Learning Core relearns what it already knew.
type lessonRepo struct {
	db *sqlx.DB
}

// NewLessonRepo constructs a persistence.LessonRepo backed by db.
func NewLessonRepo(db *sqlx.DB) persistence.LessonRepo {
	return &lessonRepo{db: db}
}

type lessonRow struct {
	ScopeKey            string    `db:"scope_key"`
	SizeMult            float64   `db:"size_mult"`
	EntryAggressionMult float64   `db:"entry_aggression_mult"`
	ExitAggressionMult  float64   `db:"exit_aggression_mult"`
	LeversJSON          []byte    `db:"levers_json"`
	Epoch               int       `db:"epoch"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func lessonToRow(l learn.Lesson) (lessonRow, error) {
	leversJSON, err := json.Marshal(l.Levers)
	if err != nil {
		return lessonRow{}, fmt.Errorf("marshal execution levers: %w", err)
	}
	return lessonRow{
		ScopeKey:            string(l.ScopeKey),
		SizeMult:            l.SizeMult,
		EntryAggressionMult: l.EntryAggressionMult,
		ExitAggressionMult:  l.ExitAggressionMult,
		LeversJSON:          leversJSON,
		Epoch:               l.Epoch,
		UpdatedAt:           l.UpdatedAt,
	}, nil
}

func lessonFromRow(r lessonRow) (learn.Lesson, error) {
	var levers learn.ExecutionLevers
	if err := json.Unmarshal(r.LeversJSON, &levers); err != nil {
		return learn.Lesson{}, fmt.Errorf("unmarshal execution levers: %w", err)
	}
	return learn.Lesson{
		ScopeKey:            scope.Key(r.ScopeKey),
		SizeMult:            r.SizeMult,
		EntryAggressionMult: r.EntryAggressionMult,
		ExitAggressionMult:  r.ExitAggressionMult,
		Levers:              levers,
		Epoch:               r.Epoch,
		UpdatedAt:           r.UpdatedAt,
	}, nil
}

func (r *lessonRepo) Upsert(ctx context.Context, l learn.Lesson) error {
	row, err := lessonToRow(l)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO lessons (scope_key, size_mult, entry_aggression_mult, exit_aggression_mult, levers_json, epoch, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scope_key) DO UPDATE SET
			size_mult = EXCLUDED.size_mult, entry_aggression_mult = EXCLUDED.entry_aggression_mult,
			exit_aggression_mult = EXCLUDED.exit_aggression_mult, levers_json = EXCLUDED.levers_json,
			epoch = EXCLUDED.epoch, updated_at = EXCLUDED.updated_at
	`, row.ScopeKey, row.SizeMult, row.EntryAggressionMult, row.ExitAggressionMult, row.LeversJSON, row.Epoch, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert lesson %s: %w", l.ScopeKey, err)
	}
	return nil
}

func (r *lessonRepo) Get(ctx context.Context, key scope.Key) (learn.Lesson, bool, error) {
	var row lessonRow
	err := r.db.GetContext(ctx, &row, `
		SELECT scope_key, size_mult, entry_aggression_mult, exit_aggression_mult, levers_json, epoch, updated_at
		FROM lessons WHERE scope_key = $1
	`, string(key))
	if errors.Is(err, sql.ErrNoRows) {
		return learn.Lesson{}, false, nil
	}
	if err != nil {
		return learn.Lesson{}, false, fmt.Errorf("get lesson %s: %w", key, err)
	}
	l, err := lessonFromRow(row)
	if err != nil {
		return learn.Lesson{}, false, err
	}
	return l, true, nil
}

func (r *lessonRepo) ListAll(ctx context.Context) ([]learn.Lesson, error) {
	var rows []lessonRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT scope_key, size_mult, entry_aggression_mult, exit_aggression_mult, levers_json, epoch, updated_at
		FROM lessons
	`)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	out := make([]learn.Lesson, 0, len(rows))
	for _, row := range rows {
		l, err := lessonFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
