package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gymkeeper/internal/domain/record"
)

// RecordSource is the part of the record service the changes feed
// reads from.
type RecordSource interface {
	ModifiedSince(ctx context.Context, userID int, since time.Time, limit, offset int) ([]record.Record, error)
	GetStats(ctx context.Context, userID int) (record.StatsResponse, error)
}

// Servicer serves the pull side of client synchronization.
type Servicer interface {
	// GetChanges returns records changed after req.Since, tombstones
	// included, paged and ordered by server write time.
	GetChanges(ctx context.Context, userID int, req GetChangesRequest) (*GetChangesResponse, error)

	// GetStatus returns the user's sync bookkeeping.
	GetStatus(ctx context.Context, userID int) (*Status, error)
}

type Service struct {
	records RecordSource
	repo    Repository
	log     *slog.Logger
	config  *ServiceConfig
}

func NewService(records RecordSource, repo Repository, log *slog.Logger, config *ServiceConfig) Servicer {
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 1000
	}

	return &Service{
		records: records,
		repo:    repo,
		log:     log.With("component", "sync_service"),
		config:  config,
	}
}

func (s *Service) GetChanges(ctx context.Context, userID int, req GetChangesRequest) (*GetChangesResponse, error) {
	if req.Limit <= 0 {
		req.Limit = s.config.PageSize
	}
	if req.Limit > s.config.MaxPageSize {
		req.Limit = s.config.MaxPageSize
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	// The watermark is taken before the page is read. A write that
	// lands while we query shows up again on the next pull instead of
	// being skipped.
	serverTime := time.Now()

	// Fetch one row past the page to detect whether more remain.
	records, err := s.records.ModifiedSince(ctx, userID, req.Since, req.Limit+1, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("get changes: %w", err)
	}

	hasMore := len(records) > req.Limit
	if hasMore {
		records = records[:req.Limit]
	}

	if err := s.repo.RecordPull(ctx, userID, serverTime); err != nil {
		s.log.Warn("failed to record pull", "user_id", userID, "error", err)
	}

	s.log.Debug("changes served",
		"user_id", userID,
		"since", req.Since,
		"count", len(records),
		"has_more", hasMore,
	)

	return &GetChangesResponse{
		Records:    records,
		HasMore:    hasMore,
		ServerTime: serverTime,
	}, nil
}

func (s *Service) GetStatus(ctx context.Context, userID int) (*Status, error) {
	status, err := s.repo.GetStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sync status: %w", err)
	}

	stats, err := s.records.GetStats(ctx, userID)
	if err != nil {
		s.log.Warn("failed to get record stats", "user_id", userID, "error", err)
		return status, nil
	}

	status.TotalRecords = stats.TotalRecords
	status.ByType = stats.ByType
	return status, nil
}
