package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Servicer defines the business logic for record operations.
type Servicer interface {
	List(ctx context.Context, userID int, typ string) (ListResponse, error)
	Find(ctx context.Context, userID int, localID string) (*Record, error)
	Upsert(ctx context.Context, userID int, req WriteRequest) (*Record, bool, error)
	Update(ctx context.Context, userID int, localID string, req WriteRequest) (*Record, error)
	Delete(ctx context.Context, userID int, localID string) error
	ModifiedSince(ctx context.Context, userID int, since time.Time, limit, offset int) ([]Record, error)
	GetStats(ctx context.Context, userID int) (StatsResponse, error)
}

// WriteRequest carries one client write. LocalID is the client-assigned
// identity of the record and doubles as the idempotency key, so a
// replayed create converges on the same row.
type WriteRequest struct {
	LocalID    string          `json:"local_id,omitempty" doc:"Client-assigned record ID, required on create"`
	Type       RecType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	ModifiedAt time.Time       `json:"modified_at" doc:"Client-side modification time used for conflict resolution"`
}

type ListResponse struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

type StatsResponse struct {
	TotalRecords int64            `json:"total_records"`
	ByType       map[string]int64 `json:"by_type"`
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService creates a new record service
func NewService(repo Repository, log *slog.Logger) Servicer {
	return &Service{
		repo: repo,
		log:  log.With("component", "record_service"),
	}
}

// List returns all live records for a user, optionally filtered by type.
func (s *Service) List(ctx context.Context, userID int, typ string) (ListResponse, error) {
	records, err := s.repo.List(ctx, userID, typ)
	if err != nil {
		s.log.Error("failed to list records", "user_id", userID, "error", err)
		return ListResponse{}, fmt.Errorf("list records: %w", err)
	}

	return ListResponse{
		Records: records,
		Total:   len(records),
	}, nil
}

// Find returns a record by its client-assigned ID.
func (s *Service) Find(ctx context.Context, userID int, localID string) (*Record, error) {
	record, err := s.repo.GetByLocalID(ctx, userID, localID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.log.Error("failed to find record", "local_id", localID, "user_id", userID, "error", err)
		return nil, fmt.Errorf("find record: %w", err)
	}

	if record.Deleted {
		return nil, ErrRecordDeleted
	}

	return record, nil
}

// Upsert stores a client write under its local ID. A first write creates
// the row; a replay converges on the stored row; a newer write for an
// existing local ID overwrites it wholesale, last write wins. The
// returned bool reports whether a new row was created.
func (s *Service) Upsert(ctx context.Context, userID int, req WriteRequest) (*Record, bool, error) {
	if err := validateWrite(req); err != nil {
		return nil, false, err
	}

	current, err := s.repo.GetByLocalID(ctx, userID, req.LocalID)
	switch {
	case err == nil:
		winner, err := s.applyIfNewer(ctx, current, req)
		if err != nil {
			return nil, false, err
		}
		return winner, false, nil

	case errors.Is(err, ErrNotFound):
		record := &Record{
			UserID:           userID,
			LocalID:          req.LocalID,
			Type:             req.Type,
			Payload:          req.Payload,
			ClientModifiedAt: req.ModifiedAt,
		}

		recordID, err := s.repo.Create(ctx, record)
		if err != nil {
			s.log.Error("failed to create record", "user_id", userID, "type", req.Type, "error", err)
			return nil, false, fmt.Errorf("create record: %w", err)
		}
		record.ID = recordID

		s.log.Info("record created", "record_id", recordID, "user_id", userID, "type", req.Type)
		return record, true, nil

	default:
		s.log.Error("failed to look up record", "local_id", req.LocalID, "user_id", userID, "error", err)
		return nil, false, fmt.Errorf("get record: %w", err)
	}
}

// Update overwrites an existing record if the incoming write is newer
// than the stored one. On a stale write the stored record is returned
// unchanged so the client can reconcile.
func (s *Service) Update(ctx context.Context, userID int, localID string, req WriteRequest) (*Record, error) {
	req.LocalID = localID
	if err := validateWrite(req); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByLocalID(ctx, userID, localID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record for update: %w", err)
	}

	return s.applyIfNewer(ctx, current, req)
}

// Delete tombstones a record. The row is kept so the change reaches
// other devices through the sync feed.
func (s *Service) Delete(ctx context.Context, userID int, localID string) error {
	if _, err := s.repo.GetByLocalID(ctx, userID, localID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get record for delete: %w", err)
	}

	if err := s.repo.MarkDeleted(ctx, userID, localID, time.Now()); err != nil {
		s.log.Error("failed to delete record", "local_id", localID, "user_id", userID, "error", err)
		return fmt.Errorf("delete record: %w", err)
	}

	s.log.Info("record deleted", "local_id", localID, "user_id", userID)
	return nil
}

// ModifiedSince returns records changed after the given server time,
// tombstones included.
func (s *Service) ModifiedSince(ctx context.Context, userID int, since time.Time, limit, offset int) ([]Record, error) {
	records, err := s.repo.GetModifiedSince(ctx, userID, since, limit, offset)
	if err != nil {
		s.log.Error("failed to get modified records", "user_id", userID, "since", since, "error", err)
		return nil, fmt.Errorf("get modified records: %w", err)
	}
	return records, nil
}

// GetStats returns per-type record counts for the user.
func (s *Service) GetStats(ctx context.Context, userID int) (StatsResponse, error) {
	counts, err := s.repo.GetStats(ctx, userID)
	if err != nil {
		s.log.Error("failed to get stats", "user_id", userID, "error", err)
		return StatsResponse{}, fmt.Errorf("get stats: %w", err)
	}

	response := StatsResponse{ByType: counts}
	for _, n := range counts {
		response.TotalRecords += n
	}

	return response, nil
}

// applyIfNewer resolves a write against the stored record: the write
// with the later client timestamp wins, ties keep the stored row. A
// winning write replaces the record wholesale and clears any tombstone.
func (s *Service) applyIfNewer(ctx context.Context, current *Record, req WriteRequest) (*Record, error) {
	incoming := &Record{
		ID:               current.ID,
		UserID:           current.UserID,
		LocalID:          current.LocalID,
		Type:             req.Type,
		Payload:          req.Payload,
		ClientModifiedAt: req.ModifiedAt,
	}

	if !incoming.NewerThan(current) {
		s.log.Debug("stale write dropped",
			"local_id", current.LocalID,
			"user_id", current.UserID,
			"stored", current.ClientModifiedAt,
			"incoming", req.ModifiedAt,
		)
		return current, nil
	}

	if err := s.repo.Update(ctx, incoming); err != nil {
		s.log.Error("failed to update record", "local_id", current.LocalID, "user_id", current.UserID, "error", err)
		return nil, fmt.Errorf("update record: %w", err)
	}

	s.log.Info("record updated", "local_id", current.LocalID, "user_id", current.UserID, "type", req.Type)
	return incoming, nil
}

func validateWrite(req WriteRequest) error {
	if req.LocalID == "" || len(req.Payload) == 0 {
		return ErrInvalidData
	}
	if err := req.Type.Validate(); err != nil {
		return ErrInvalidData
	}
	if req.ModifiedAt.IsZero() {
		return ErrInvalidData
	}
	return nil
}
