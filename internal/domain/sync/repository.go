package sync

import (
	"context"
	"time"
)

// Repository persists sync bookkeeping.
type Repository interface {
	// GetStatus returns the user's pull bookkeeping, zero-valued when
	// the user never pulled.
	GetStatus(ctx context.Context, userID int) (*Status, error)

	// RecordPull bumps the pull counter and last pull time.
	RecordPull(ctx context.Context, userID int, at time.Time) error
}
