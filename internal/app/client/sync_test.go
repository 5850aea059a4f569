package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymkeeper/internal/domain/record"
	"gymkeeper/internal/domain/sync"
)

type fakeGateway struct {
	created []record.WriteRequest
	updated []record.WriteRequest
	deleted []string
	offsets []int

	createErr  error
	updateErr  error
	deleteErr  error
	getErr     error
	changesErr error

	records map[string]*record.Record
	changes []*sync.GetChangesResponse
	nextID  int64
}

func (f *fakeGateway) CreateRecord(_ context.Context, req record.WriteRequest) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, req)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeGateway) UpdateRecord(_ context.Context, _ string, req record.WriteRequest) (int64, error) {
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	f.updated = append(f.updated, req)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeGateway) DeleteRecord(_ context.Context, localID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, localID)
	return nil
}

func (f *fakeGateway) GetRecord(_ context.Context, localID string) (*record.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[localID]
	if !ok {
		return nil, &APIError{Status: http.StatusNotFound}
	}
	return rec, nil
}

func (f *fakeGateway) GetChanges(_ context.Context, _ time.Time, _, offset int) (*sync.GetChangesResponse, error) {
	if f.changesErr != nil {
		return nil, f.changesErr
	}
	f.offsets = append(f.offsets, offset)
	if len(f.changes) == 0 {
		return &sync.GetChangesResponse{ServerTime: time.Now()}, nil
	}
	page := f.changes[0]
	f.changes = f.changes[1:]
	return page, nil
}

type stubConn bool

func (s stubConn) Online() bool { return bool(s) }

func newTestSync(t *testing.T) (*SyncService, *SQLiteStorage, *fakeGateway) {
	t.Helper()

	storage := newTestStorage(t)
	gateway := &fakeGateway{records: make(map[string]*record.Record)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewSyncService(storage, gateway, stubConn(true), &SyncConfig{
		MaxAttempts:    3,
		PullPageSize:   10,
		RequestTimeout: time.Second,
	}, log)

	return service, storage, gateway
}

func TestSync_Offline(t *testing.T) {
	storage := newTestStorage(t)
	gateway := &fakeGateway{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewSyncService(storage, gateway, stubConn(false), &SyncConfig{}, log)

	_, err := service.Sync(context.Background())
	assert.ErrorIs(t, err, ErrOffline)
}

func TestSync_SingleFlight(t *testing.T) {
	service, _, _ := newTestSync(t)

	service.mu.Lock()
	service.isSyncing = true
	service.mu.Unlock()

	_, err := service.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestSync_PushCreate(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	rec := newTestRecord("local-1", `{"name": "Leg day"}`)
	require.NoError(t, storage.Put(rec))

	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Empty(t, result.Failed)

	require.Len(t, gateway.created, 1)
	assert.Equal(t, "local-1", gateway.created[0].LocalID)
	assert.Equal(t, record.RecTypeWorkout, gateway.created[0].Type)
	assert.JSONEq(t, `{"name": "Leg day"}`, string(gateway.created[0].Payload))
	assert.True(t, gateway.created[0].ModifiedAt.Equal(rec.ModifiedAt) ||
		gateway.created[0].ModifiedAt.Sub(rec.ModifiedAt) < time.Millisecond)

	got, err := storage.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, StateSynced, got.State)
	require.NotNil(t, got.RemoteID)

	queue, err := storage.ListQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestSync_PushUpdate(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))
	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Push day"}`)))
	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)

	require.Len(t, gateway.updated, 1)
	assert.JSONEq(t, `{"name": "Push day"}`, string(gateway.updated[0].Payload))

	got, err := storage.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, StateSynced, got.State)
}

func TestSync_PushDelete(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))
	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	require.NoError(t, storage.Remove("local-1"))
	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)

	assert.Equal(t, []string{"local-1"}, gateway.deleted)

	// The confirmed tombstone is wiped locally.
	_, err = storage.GetIncludingDeleted("local-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSync_DeleteMissingOnServerCountsAsSuccess(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))
	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	require.NoError(t, storage.Remove("local-1"))

	gateway.deleteErr = &APIError{Status: http.StatusNotFound}
	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Failed)

	_, err = storage.GetIncludingDeleted("local-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSync_PushOrderIsFIFO(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "a"}`)))
	require.NoError(t, storage.Put(newTestRecord("local-2", `{"name": "b"}`)))
	require.NoError(t, storage.Put(newTestRecord("local-3", `{"name": "c"}`)))

	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	require.Len(t, gateway.created, 3)
	assert.Equal(t, "local-1", gateway.created[0].LocalID)
	assert.Equal(t, "local-2", gateway.created[1].LocalID)
	assert.Equal(t, "local-3", gateway.created[2].LocalID)
}

func TestSync_TransientFailureRetriesNextCycle(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))

	gateway.createErr = &APIError{Status: http.StatusInternalServerError}
	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.False(t, result.Failed[0].Permanent)

	queue, err := storage.ListQueue()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 1, queue[0].Attempts)
	assert.NotEmpty(t, queue[0].LastError)

	// The record is untouched until the upload goes through.
	got, err := storage.Get("local-1")
	require.NoError(t, err)
	assert.Equal(t, StatePendingCreate, got.State)

	gateway.createErr = nil
	result, err = service.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Empty(t, result.Failed)
}

func TestSync_NetworkErrorIsTransient(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))

	gateway.createErr = errors.New("dial tcp 127.0.0.1:8080: connection refused")
	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.False(t, result.Failed[0].Permanent)
}

func TestSync_PermanentFailureFreezesEntry(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))

	gateway.createErr = &APIError{Status: http.StatusUnprocessableEntity, Message: "invalid payload"}
	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.True(t, result.Failed[0].Permanent)

	queue, err := storage.ListQueue()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, 3, queue[0].Attempts, "a rejected entry jumps straight to the attempt cap")

	// Frozen entries are not retried on later cycles.
	gateway.createErr = nil
	result, err = service.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Uploaded)
	assert.Empty(t, result.Failed)
	assert.Empty(t, gateway.created)

	failed, err := service.FailedEntries()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "local-1", failed[0].LocalID)
}

func TestSync_PullNewRecord(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	serverTime := time.Now().Truncate(time.Millisecond)
	remoteID := int64(41)
	gateway.changes = []*sync.GetChangesResponse{{
		Records: []record.Record{{
			ID:               remoteID,
			LocalID:          "other-device-1",
			Type:             record.RecTypeWeightLog,
			Payload:          []byte(`{"weight_kg": 82.5}`),
			ClientModifiedAt: serverTime.Add(-time.Minute),
			CreatedAt:        serverTime.Add(-time.Minute),
		}},
		ServerTime: serverTime,
	}}

	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pulled)
	assert.Zero(t, result.Conflicts)

	got, err := storage.Get("other-device-1")
	require.NoError(t, err)
	assert.Equal(t, StateSynced, got.State)
	require.NotNil(t, got.RemoteID)
	assert.Equal(t, remoteID, *got.RemoteID)
	assert.JSONEq(t, `{"weight_kg": 82.5}`, string(got.Payload))

	// The watermark moves to the server time of the pull.
	mark, err := storage.LastSync()
	require.NoError(t, err)
	assert.True(t, mark.Equal(serverTime), "want %s, got %s", serverTime, mark)
}

func TestSync_PullTombstone(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.SaveRemote(&record.Record{
		ID:               41,
		LocalID:          "local-1",
		Type:             record.RecTypeWorkout,
		Payload:          []byte(`{"name": "Leg day"}`),
		ClientModifiedAt: time.Now().Add(-time.Hour),
		CreatedAt:        time.Now().Add(-time.Hour),
	}))

	gateway.changes = []*sync.GetChangesResponse{{
		Records: []record.Record{{
			ID:               41,
			LocalID:          "local-1",
			Type:             record.RecTypeWorkout,
			Deleted:          true,
			ClientModifiedAt: time.Now(),
		}},
		ServerTime: time.Now(),
	}}

	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pulled)

	_, err = storage.GetIncludingDeleted("local-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSync_PullTombstoneForUnknownRecord(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	gateway.changes = []*sync.GetChangesResponse{{
		Records: []record.Record{{
			LocalID:          "never-seen",
			Type:             record.RecTypeWorkout,
			Deleted:          true,
			ClientModifiedAt: time.Now(),
		}},
		ServerTime: time.Now(),
	}}

	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Pulled)

	_, err = storage.GetIncludingDeleted("never-seen")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSync_PullPagination(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	serverTime := time.Now()
	gateway.changes = []*sync.GetChangesResponse{
		{
			Records: []record.Record{{
				LocalID: "page-1", Type: record.RecTypeWorkout,
				Payload: []byte(`{"name": "a"}`), ClientModifiedAt: serverTime.Add(-2 * time.Minute),
			}},
			HasMore:    true,
			ServerTime: serverTime,
		},
		{
			Records: []record.Record{{
				LocalID: "page-2", Type: record.RecTypeWorkout,
				Payload: []byte(`{"name": "b"}`), ClientModifiedAt: serverTime.Add(-time.Minute),
			}},
			ServerTime: serverTime.Add(time.Second),
		},
	}

	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pulled)
	assert.Equal(t, []int{0, 10}, gateway.offsets)

	_, err = storage.Get("page-1")
	assert.NoError(t, err)
	_, err = storage.Get("page-2")
	assert.NoError(t, err)
}

func TestSync_WatermarkHeldWhileUploadsFail(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))

	gateway.createErr = &APIError{Status: http.StatusServiceUnavailable}
	gateway.changes = []*sync.GetChangesResponse{{ServerTime: time.Now()}}

	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	mark, err := storage.LastSync()
	require.NoError(t, err)
	assert.True(t, mark.IsZero(), "watermark must not advance while uploads fail")
}

func TestSync_StaleEditConverges(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	// This device edited the record while offline.
	require.NoError(t, storage.SaveRemote(&record.Record{
		ID:               41,
		LocalID:          "local-1",
		Type:             record.RecTypeWorkout,
		Payload:          []byte(`{"name": "Leg day"}`),
		ClientModifiedAt: time.Now().Add(-2 * time.Hour),
		CreatedAt:        time.Now().Add(-2 * time.Hour),
	}))
	stale := newTestRecord("local-1", `{"name": "Stale edit"}`)
	stale.ModifiedAt = time.Now().Add(-time.Hour)
	require.NoError(t, storage.Put(stale))

	// Another device edited the same record later. The server keeps its
	// copy and the pull brings it here.
	gateway.changes = []*sync.GetChangesResponse{{
		Records: []record.Record{{
			ID:               41,
			LocalID:          "local-1",
			Type:             record.RecTypeWorkout,
			Payload:          []byte(`{"name": "Winning edit"}`),
			ClientModifiedAt: time.Now(),
		}},
		ServerTime: time.Now(),
	}}

	result, err := service.Sync(context.Background())
	require.NoError(t, err)

	got, err := storage.Get("local-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "Winning edit"}`, string(got.Payload))
	assert.Equal(t, StateSynced, got.State)
	assert.Equal(t, 1, result.Uploaded, "the stale edit is still offered to the server")
}

func TestApplyRemote_LocalPendingEditNewerWins(t *testing.T) {
	service, storage, _ := newTestSync(t)

	local := newTestRecord("local-1", `{"name": "Fresh local edit"}`)
	require.NoError(t, storage.Put(local))

	remote := &record.Record{
		ID:               41,
		LocalID:          "local-1",
		Type:             record.RecTypeWorkout,
		Payload:          []byte(`{"name": "Older server copy"}`),
		ClientModifiedAt: time.Now().Add(-time.Hour),
	}

	result := &SyncResult{}
	require.NoError(t, service.applyRemote(remote, result))
	assert.Equal(t, 1, result.Conflicts)
	assert.Zero(t, result.Pulled)

	got, err := storage.Get("local-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "Fresh local edit"}`, string(got.Payload))
	assert.Equal(t, StatePendingCreate, got.State)

	// The pending upload survives to push the local win.
	queue, err := storage.ListQueue()
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestApplyRemote_ServerCopyNewerWins(t *testing.T) {
	service, storage, _ := newTestSync(t)

	local := newTestRecord("local-1", `{"name": "Old local edit"}`)
	local.ModifiedAt = time.Now().Add(-time.Hour)
	require.NoError(t, storage.Put(local))

	remote := &record.Record{
		ID:               41,
		LocalID:          "local-1",
		Type:             record.RecTypeWorkout,
		Payload:          []byte(`{"name": "Newer server copy"}`),
		ClientModifiedAt: time.Now(),
	}

	result := &SyncResult{}
	require.NoError(t, service.applyRemote(remote, result))
	assert.Equal(t, 1, result.Conflicts)
	assert.Equal(t, 1, result.Pulled)

	got, err := storage.Get("local-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "Newer server copy"}`, string(got.Payload))
	assert.Equal(t, StateSynced, got.State)

	// The obsolete upload is dropped with the local edit.
	queue, err := storage.ListQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestApplyRemote_ServerTombstoneBeatsOlderLocalEdit(t *testing.T) {
	service, storage, _ := newTestSync(t)

	local := newTestRecord("local-1", `{"name": "Old local edit"}`)
	local.ModifiedAt = time.Now().Add(-time.Hour)
	require.NoError(t, storage.Put(local))

	remote := &record.Record{
		LocalID:          "local-1",
		Type:             record.RecTypeWorkout,
		Deleted:          true,
		ClientModifiedAt: time.Now(),
	}

	result := &SyncResult{}
	require.NoError(t, service.applyRemote(remote, result))

	_, err := storage.GetIncludingDeleted("local-1")
	assert.ErrorIs(t, err, ErrNotFound)

	queue, err := storage.ListQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestRetryEntry(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))

	gateway.createErr = &APIError{Status: http.StatusUnprocessableEntity}
	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	failed, err := service.FailedEntries()
	require.NoError(t, err)
	require.Len(t, failed, 1)

	require.NoError(t, service.RetryEntry(failed[0].ID))

	entry, err := storage.GetQueueEntry(failed[0].ID)
	require.NoError(t, err)
	assert.Zero(t, entry.Attempts)
	assert.Empty(t, entry.LastError)

	gateway.createErr = nil
	result, err := service.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
}

func TestDiscardEntry_Create(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))

	gateway.createErr = &APIError{Status: http.StatusUnprocessableEntity}
	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	failed, err := service.FailedEntries()
	require.NoError(t, err)
	require.Len(t, failed, 1)

	require.NoError(t, service.DiscardEntry(context.Background(), failed[0].ID))

	// A discarded create leaves no trace: the server never had it.
	_, err = storage.GetIncludingDeleted("local-1")
	assert.ErrorIs(t, err, ErrNotFound)

	queue, err := storage.ListQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestDiscardEntry_UpdateRestoresServerCopy(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))
	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	gateway.records["local-1"] = &record.Record{
		ID:               1,
		LocalID:          "local-1",
		Type:             record.RecTypeWorkout,
		Payload:          []byte(`{"name": "Leg day"}`),
		ClientModifiedAt: time.Now().Add(-time.Minute),
		CreatedAt:        time.Now().Add(-time.Minute),
	}

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Rejected edit"}`)))

	gateway.updateErr = &APIError{Status: http.StatusUnprocessableEntity}
	_, err = service.Sync(context.Background())
	require.NoError(t, err)

	failed, err := service.FailedEntries()
	require.NoError(t, err)
	require.Len(t, failed, 1)

	require.NoError(t, service.DiscardEntry(context.Background(), failed[0].ID))

	got, err := storage.Get("local-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "Leg day"}`, string(got.Payload))
	assert.Equal(t, StateSynced, got.State)
}

func TestDiscardEntry_UpdateGoneOnServer(t *testing.T) {
	service, storage, gateway := newTestSync(t)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Leg day"}`)))
	_, err := service.Sync(context.Background())
	require.NoError(t, err)

	require.NoError(t, storage.Put(newTestRecord("local-1", `{"name": "Rejected edit"}`)))

	gateway.updateErr = &APIError{Status: http.StatusUnprocessableEntity}
	_, err = service.Sync(context.Background())
	require.NoError(t, err)

	failed, err := service.FailedEntries()
	require.NoError(t, err)
	require.Len(t, failed, 1)

	// GetRecord finds nothing on the server.
	require.NoError(t, service.DiscardEntry(context.Background(), failed[0].ID))

	_, err = storage.GetIncludingDeleted("local-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", errors.New("connection refused"), false},
		{"timeout", context.DeadlineExceeded, false},
		{"bad request", &APIError{Status: http.StatusBadRequest}, true},
		{"unauthorized", &APIError{Status: http.StatusUnauthorized}, true},
		{"not found", &APIError{Status: http.StatusNotFound}, true},
		{"unprocessable", &APIError{Status: http.StatusUnprocessableEntity}, true},
		{"request timeout", &APIError{Status: http.StatusRequestTimeout}, false},
		{"too many requests", &APIError{Status: http.StatusTooManyRequests}, false},
		{"internal error", &APIError{Status: http.StatusInternalServerError}, false},
		{"bad gateway", &APIError{Status: http.StatusBadGateway}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPermanent(tt.err))
		})
	}
}
