package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/bidwatch/internal/core/domain"
)

// CheckpointRepo implements storage.CheckpointRepository using PostgreSQL.
type CheckpointRepo struct {
	db *DB
}

// NewCheckpointRepo creates a new PostgreSQL checkpoint repository.
func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// Get retrieves a listener checkpoint.
func (r *CheckpointRepo) Get(ctx context.Context, kind domain.ListenerKind) (uint64, bool, error) {
	var ledger int64
	err := r.db.GetContext(ctx, &ledger,
		"SELECT ledger FROM listener_checkpoints WHERE listener = $1", string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return uint64(ledger), true, nil
}

// Save moves a checkpoint forward. A lower ledger never overwrites a
// higher one.
func (r *CheckpointRepo) Save(ctx context.Context, kind domain.ListenerKind, ledger uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listener_checkpoints (listener, ledger, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (listener) DO UPDATE SET
			ledger = GREATEST(listener_checkpoints.ledger, EXCLUDED.ledger),
			updated_at = NOW()`,
		string(kind), int64(ledger),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Reset sets a checkpoint unconditionally, moving it backwards if needed.
func (r *CheckpointRepo) Reset(ctx context.Context, kind domain.ListenerKind, ledger uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listener_checkpoints (listener, ledger, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (listener) DO UPDATE SET ledger = EXCLUDED.ledger, updated_at = NOW()`,
		string(kind), int64(ledger),
	)
	if err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	return nil
}
