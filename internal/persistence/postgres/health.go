package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// health implements persistence.RepositoryHealth against a *sqlx.DB.
type health struct {
	db *sqlx.DB
}

// NewHealthCheck constructs a persistence.RepositoryHealth backed by db.
func NewHealthCheck(db *sqlx.DB) *health {
	return &health{db: db}
}

func (h *health) HealthCheck(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
