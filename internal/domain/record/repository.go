package record

import (
	"context"
	"time"
)

// Repository is the persistence port for training records.
type Repository interface {
	List(ctx context.Context, userID int, typ string) ([]Record, error)
	GetByLocalID(ctx context.Context, userID int, localID string) (*Record, error)
	Create(ctx context.Context, record *Record) (int64, error)
	Update(ctx context.Context, record *Record) error
	MarkDeleted(ctx context.Context, userID int, localID string, modifiedAt time.Time) error

	// GetModifiedSince returns records whose server write time is
	// strictly after since, tombstones included, ordered by write time.
	GetModifiedSince(ctx context.Context, userID int, since time.Time, limit, offset int) ([]Record, error)

	// GetStats returns live record counts grouped by type.
	GetStats(ctx context.Context, userID int) (map[string]int64, error)
}
