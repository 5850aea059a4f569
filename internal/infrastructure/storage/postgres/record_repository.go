package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gymkeeper/internal/domain/record"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// recordColumns is the column list every record query selects, in the
// order scanRecord expects.
const recordColumns = `id, user_id, local_id, type, payload, deleted,
	       client_modified_at, created_at, updated_at`

type RecordRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewRecordRepository(pool *pgxpool.Pool, log *slog.Logger) *RecordRepository {
	return &RecordRepository{
		pool: pool,
		log:  log.With("component", "record_repository"),
	}
}

func (r *RecordRepository) List(ctx context.Context, userID int, typ string) ([]record.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE user_id = $1 AND NOT deleted`

	args := []interface{}{userID}
	if typ != "" {
		query += ` AND type = $2`
		args = append(args, typ)
	}
	query += ` ORDER BY client_modified_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list records", "user_id", userID, "error", err)
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// GetByLocalID returns the stored row whether or not it is a tombstone.
// Callers decide how deleted rows are surfaced.
func (r *RecordRepository) GetByLocalID(ctx context.Context, userID int, localID string) (*record.Record, error) {
	const query = `
		SELECT ` + recordColumns + `
		FROM records
		WHERE user_id = $1 AND local_id = $2`

	row := r.pool.QueryRow(ctx, query, userID, localID)

	rec, err := r.scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, record.ErrNotFound
		}
		r.log.Error("failed to get record",
			"local_id", localID, "user_id", userID, "error", err)
		return nil, fmt.Errorf("get record: %w", err)
	}

	return rec, nil
}

func (r *RecordRepository) Create(ctx context.Context, rec *record.Record) (int64, error) {
	const query = `
		INSERT INTO records (user_id, local_id, type, payload, deleted, client_modified_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		rec.UserID, rec.LocalID, rec.Type, []byte(rec.Payload), rec.ClientModifiedAt,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		r.log.Error("failed to create record",
			"user_id", rec.UserID, "local_id", rec.LocalID, "type", rec.Type, "error", err)
		return 0, fmt.Errorf("create record: %w", err)
	}

	return rec.ID, nil
}

// Update overwrites the stored row identified by (user_id, local_id)
// with the given state. Clearing the deleted flag here is what brings a
// tombstoned record back when a newer write arrives.
func (r *RecordRepository) Update(ctx context.Context, rec *record.Record) error {
	const query = `
		UPDATE records
		SET type = $1, payload = $2, deleted = $3,
		    client_modified_at = $4, updated_at = NOW()
		WHERE user_id = $5 AND local_id = $6
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		rec.Type, []byte(rec.Payload), rec.Deleted, rec.ClientModifiedAt,
		rec.UserID, rec.LocalID,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record.ErrNotFound
		}
		r.log.Error("failed to update record",
			"local_id", rec.LocalID, "user_id", rec.UserID, "error", err)
		return fmt.Errorf("update record: %w", err)
	}

	return nil
}

// MarkDeleted turns the row into a tombstone. The payload is dropped,
// only identity and timestamps survive so sync can propagate the
// deletion to other devices.
func (r *RecordRepository) MarkDeleted(ctx context.Context, userID int, localID string, modifiedAt time.Time) error {
	const query = `
		UPDATE records
		SET deleted = TRUE, payload = NULL,
		    client_modified_at = $3, updated_at = NOW()
		WHERE user_id = $1 AND local_id = $2`

	result, err := r.pool.Exec(ctx, query, userID, localID, modifiedAt)
	if err != nil {
		r.log.Error("failed to mark record deleted",
			"local_id", localID, "user_id", userID, "error", err)
		return fmt.Errorf("mark deleted: %w", err)
	}

	if result.RowsAffected() == 0 {
		return record.ErrNotFound
	}

	return nil
}

func (r *RecordRepository) GetModifiedSince(ctx context.Context, userID int, since time.Time, limit, offset int) ([]record.Record, error) {
	const query = `
		SELECT ` + recordColumns + `
		FROM records
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at, id
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, userID, since, limit, offset)
	if err != nil {
		r.log.Error("failed to get modified records",
			"user_id", userID, "since", since, "error", err)
		return nil, fmt.Errorf("get modified records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

func (r *RecordRepository) GetStats(ctx context.Context, userID int) (map[string]int64, error) {
	const query = `
		SELECT type, COUNT(*)
		FROM records
		WHERE user_id = $1 AND NOT deleted
		GROUP BY type`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("failed to get stats", "user_id", userID, "error", err)
		return nil, fmt.Errorf("get stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var recordType string
		var count int64
		if err := rows.Scan(&recordType, &count); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats[recordType] = count
	}

	return stats, rows.Err()
}

func (r *RecordRepository) scanRecords(rows pgx.Rows) ([]record.Record, error) {
	var records []record.Record

	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func (r *RecordRepository) scanRecord(row interface {
	Scan(dest ...interface{}) error
}) (*record.Record, error) {
	var rec record.Record
	var payload []byte

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.LocalID, &rec.Type, &payload,
		&rec.Deleted, &rec.ClientModifiedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Payload = payload
	return &rec, nil
}
