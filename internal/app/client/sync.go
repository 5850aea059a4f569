package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	gosync "sync"
	"time"

	"gymkeeper/internal/domain/record"
	"gymkeeper/internal/domain/sync"
)

// serverGateway is the part of the transport sync relies on.
type serverGateway interface {
	CreateRecord(ctx context.Context, req record.WriteRequest) (int64, error)
	UpdateRecord(ctx context.Context, localID string, req record.WriteRequest) (int64, error)
	DeleteRecord(ctx context.Context, localID string) error
	GetRecord(ctx context.Context, localID string) (*record.Record, error)
	GetChanges(ctx context.Context, since time.Time, limit, offset int) (*sync.GetChangesResponse, error)
}

// connChecker is the reachability state consulted before a cycle.
type connChecker interface {
	Online() bool
}

// SyncConfig tunes a sync cycle.
type SyncConfig struct {
	// MaxAttempts freezes a queued operation after this many failed
	// uploads. Frozen operations wait for a manual retry or discard.
	MaxAttempts int
	// PullPageSize is how many changes one pull request asks for.
	PullPageSize int
	// RequestTimeout bounds each individual server call in a cycle.
	RequestTimeout time.Duration
}

// SyncError describes one failed upload.
type SyncError struct {
	EntryID   int64
	LocalID   string
	Operation Operation
	Err       string
	Permanent bool
}

// SyncResult is what one cycle did.
type SyncResult struct {
	Uploaded  int
	Pulled    int
	Conflicts int
	Failed    []SyncError
	StartTime time.Time
	Duration  time.Duration
}

// SyncService replays queued local mutations against the server in the
// order they were made, then pulls back changes from other devices.
type SyncService struct {
	storage Storage
	gateway serverGateway
	conn    connChecker
	config  *SyncConfig
	log     *slog.Logger

	mu         gosync.Mutex
	isSyncing  bool
	lastResult *SyncResult
}

func NewSyncService(storage Storage, gateway serverGateway, conn connChecker, cfg *SyncConfig, log *slog.Logger) *SyncService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PullPageSize <= 0 {
		cfg.PullPageSize = 100
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	return &SyncService{
		storage: storage,
		gateway: gateway,
		conn:    conn,
		config:  cfg,
		log:     log.With("component", "sync_service"),
	}
}

// Sync runs one full cycle: push the queue, then pull server changes.
// Only one cycle runs at a time.
func (s *SyncService) Sync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.isSyncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
	}()

	if !s.conn.Online() {
		return nil, ErrOffline
	}

	result := &SyncResult{StartTime: time.Now()}

	if err := s.pushQueue(ctx, result); err != nil {
		return result, err
	}
	if err := s.pullChanges(ctx, result); err != nil {
		return result, err
	}

	result.Duration = time.Since(result.StartTime)

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	s.log.Info("sync finished",
		"uploaded", result.Uploaded,
		"pulled", result.Pulled,
		"conflicts", result.Conflicts,
		"failed", len(result.Failed),
		"duration", result.Duration,
	)

	return result, nil
}

// Syncing reports whether a cycle is currently running.
func (s *SyncService) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSyncing
}

// LastResult returns the outcome of the previous completed cycle, or
// nil if none has finished yet.
func (s *SyncService) LastResult() *SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

func (s *SyncService) pushQueue(ctx context.Context, result *SyncResult) error {
	entries, err := s.storage.ListQueue()
	if err != nil {
		return fmt.Errorf("list queue: %w", err)
	}

	// A failure blocks later operations on the same record this cycle,
	// so they never replay out of order. Other records are unaffected.
	skip := make(map[string]bool)

	for i := range entries {
		entry := &entries[i]

		if err := ctx.Err(); err != nil {
			return err
		}
		if skip[entry.LocalID] {
			continue
		}
		if entry.Attempts >= s.config.MaxAttempts {
			skip[entry.LocalID] = true
			continue
		}

		if err := s.pushEntry(ctx, entry); err != nil {
			skip[entry.LocalID] = true
			s.recordFailure(entry, err, result)
			continue
		}

		result.Uploaded++
	}

	return nil
}

func (s *SyncService) pushEntry(ctx context.Context, entry *QueueEntry) error {
	opCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	switch entry.Operation {
	case OpCreate, OpUpdate:
		return s.pushWrite(opCtx, entry)
	case OpDelete:
		return s.pushDelete(opCtx, entry)
	default:
		s.log.Warn("dropping queue entry with unknown operation",
			"operation", entry.Operation, "local_id", entry.LocalID)
		return s.storage.DeleteQueueEntry(entry.ID)
	}
}

// pushWrite uploads the current row, not a payload captured at enqueue
// time, so edits made while the entry waited ride along.
func (s *SyncService) pushWrite(ctx context.Context, entry *QueueEntry) error {
	rec, err := s.storage.GetIncludingDeleted(entry.LocalID)
	if errors.Is(err, ErrNotFound) {
		// The record vanished locally, nothing left to upload.
		return s.storage.DeleteQueueEntry(entry.ID)
	}
	if err != nil {
		return err
	}

	req := record.WriteRequest{
		LocalID:    rec.LocalID,
		Type:       rec.Type,
		Payload:    rec.Payload,
		ModifiedAt: rec.ModifiedAt,
	}

	var remoteID int64
	if entry.Operation == OpCreate {
		remoteID, err = s.gateway.CreateRecord(ctx, req)
	} else {
		remoteID, err = s.gateway.UpdateRecord(ctx, entry.LocalID, req)
	}
	if err != nil {
		return err
	}

	if err := s.storage.MarkSynced(entry.LocalID, remoteID); err != nil {
		return err
	}
	return s.storage.DeleteQueueEntry(entry.ID)
}

func (s *SyncService) pushDelete(ctx context.Context, entry *QueueEntry) error {
	err := s.gateway.DeleteRecord(ctx, entry.LocalID)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		// Already gone on the server, same outcome.
		err = nil
	}
	if err != nil {
		return err
	}

	if err := s.storage.HardDelete(entry.LocalID); err != nil {
		return err
	}
	return s.storage.DeleteQueueEntry(entry.ID)
}

func (s *SyncService) recordFailure(entry *QueueEntry, opErr error, result *SyncResult) {
	permanent := isPermanent(opErr)

	entry.Attempts++
	if permanent {
		// Retrying a rejected request cannot help, freeze it right away
		// for the user to inspect.
		entry.Attempts = s.config.MaxAttempts
	}
	entry.LastAttemptAt = time.Now()
	entry.LastError = opErr.Error()

	if err := s.storage.UpdateQueueEntry(entry); err != nil {
		s.log.Error("failed to update queue entry", "entry_id", entry.ID, "error", err)
	}

	s.log.Warn("upload failed",
		"operation", entry.Operation,
		"local_id", entry.LocalID,
		"attempts", entry.Attempts,
		"permanent", permanent,
		"error", opErr,
	)

	result.Failed = append(result.Failed, SyncError{
		EntryID:   entry.ID,
		LocalID:   entry.LocalID,
		Operation: entry.Operation,
		Err:       opErr.Error(),
		Permanent: permanent,
	})
}

func (s *SyncService) pullChanges(ctx context.Context, result *SyncResult) error {
	since, err := s.storage.LastSync()
	if err != nil {
		return fmt.Errorf("read sync watermark: %w", err)
	}

	var (
		offset    int
		watermark time.Time
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		opCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
		changes, err := s.gateway.GetChanges(opCtx, since, s.config.PullPageSize, offset)
		cancel()
		if err != nil {
			return fmt.Errorf("pull changes: %w", err)
		}

		if watermark.IsZero() {
			watermark = changes.ServerTime
		}

		for i := range changes.Records {
			if err := s.applyRemote(&changes.Records[i], result); err != nil {
				return err
			}
		}

		if !changes.HasMore {
			break
		}
		offset += s.config.PullPageSize
	}

	// The watermark only advances after a cycle with no failed uploads,
	// so records that did not reach the server keep being checked
	// against their server versions on the next pull.
	if len(result.Failed) == 0 && !watermark.IsZero() {
		if err := s.storage.SetLastSync(watermark); err != nil {
			return fmt.Errorf("store sync watermark: %w", err)
		}
	}

	return nil
}

// applyRemote folds one server-side change into local storage.
func (s *SyncService) applyRemote(remote *record.Record, result *SyncResult) error {
	local, err := s.storage.GetIncludingDeleted(remote.LocalID)
	if errors.Is(err, ErrNotFound) {
		if remote.Deleted {
			// Tombstone for a record this device never stored.
			return nil
		}
		result.Pulled++
		return s.storage.SaveRemote(remote)
	}
	if err != nil {
		return err
	}

	if local.State != StateSynced {
		// Both sides changed since the last sync: the newer edit wins,
		// ties go to the server.
		result.Conflicts++
		if local.ModifiedAt.After(remote.ClientModifiedAt) {
			s.log.Debug("conflict resolved, local copy is newer", "local_id", remote.LocalID)
			return nil
		}
		s.log.Debug("conflict resolved, server copy is newer", "local_id", remote.LocalID)
		if err := s.storage.DeleteQueueForRecord(remote.LocalID); err != nil {
			return err
		}
	}

	result.Pulled++
	if remote.Deleted {
		return s.storage.HardDelete(remote.LocalID)
	}
	return s.storage.SaveRemote(remote)
}

// FailedEntries returns queued operations frozen after repeated
// failures.
func (s *SyncService) FailedEntries() ([]QueueEntry, error) {
	entries, err := s.storage.ListQueue()
	if err != nil {
		return nil, err
	}

	var failed []QueueEntry
	for _, entry := range entries {
		if entry.Attempts >= s.config.MaxAttempts {
			failed = append(failed, entry)
		}
	}
	return failed, nil
}

// RetryEntry puts a frozen operation back into rotation.
func (s *SyncService) RetryEntry(id int64) error {
	entry, err := s.storage.GetQueueEntry(id)
	if err != nil {
		return err
	}

	entry.Attempts = 0
	entry.LastAttemptAt = time.Time{}
	entry.LastError = ""
	return s.storage.UpdateQueueEntry(entry)
}

// DiscardEntry abandons a queued operation and restores the record to
// whatever the server holds.
func (s *SyncService) DiscardEntry(ctx context.Context, id int64) error {
	entry, err := s.storage.GetQueueEntry(id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteQueueEntry(id); err != nil {
		return err
	}

	if entry.Operation == OpCreate {
		// The server never accepted this record, drop the local copy.
		return s.storage.HardDelete(entry.LocalID)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	remote, err := s.gateway.GetRecord(opCtx, entry.LocalID)
	var apiErr *APIError
	if errors.As(err, &apiErr) &&
		(apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusGone) {
		return s.storage.HardDelete(entry.LocalID)
	}
	if err != nil {
		return fmt.Errorf("fetch server copy: %w", err)
	}

	return s.storage.SaveRemote(remote)
}

// isPermanent reports whether retrying the same request can ever
// succeed. Rejections cannot be fixed by waiting; network trouble and
// server-side hiccups can.
func isPermanent(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	if apiErr.Status >= 500 {
		return false
	}

	return apiErr.Status >= 400
}
