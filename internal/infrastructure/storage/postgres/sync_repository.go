package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gymkeeper/internal/domain/sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SyncRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewSyncRepository(pool *pgxpool.Pool, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		pool: pool,
		log:  log.With("component", "sync_repository"),
	}
}

// GetStatus returns pull bookkeeping for the user. A user who never
// pulled gets a zero-valued status, not an error.
func (r *SyncRepository) GetStatus(ctx context.Context, userID int) (*sync.Status, error) {
	const query = `SELECT last_pull_at, pull_count FROM sync_status WHERE user_id = $1`

	status := &sync.Status{UserID: userID}

	err := r.pool.QueryRow(ctx, query, userID).Scan(&status.LastPullAt, &status.PullCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return status, nil
		}
		r.log.Error("failed to get sync status", "user_id", userID, "error", err)
		return nil, fmt.Errorf("get sync status: %w", err)
	}

	return status, nil
}

func (r *SyncRepository) RecordPull(ctx context.Context, userID int, at time.Time) error {
	const query = `
		INSERT INTO sync_status (user_id, last_pull_at, pull_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id)
		DO UPDATE SET last_pull_at = EXCLUDED.last_pull_at,
		              pull_count = sync_status.pull_count + 1`

	_, err := r.pool.Exec(ctx, query, userID, at)
	if err != nil {
		r.log.Error("failed to record pull", "user_id", userID, "error", err)
		return fmt.Errorf("record pull: %w", err)
	}

	return nil
}
