package client

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymkeeper/internal/app/client/config"
	"gymkeeper/internal/domain/record"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Env:             "local",
		ServerAddress:   "localhost:18080",
		ConfigDir:       dir,
		TokenPath:       filepath.Join(dir, "token"),
		DataPath:        filepath.Join(dir, "gymkeeper.db"),
		SyncInterval:    300,
		RequestTimeout:  1,
		MaxSyncAttempts: 3,
		ProbeInterval:   15,
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	app, err := New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	return app
}

func TestApp_RecordLifecycle(t *testing.T) {
	app := newTestApp(t)

	added, err := app.AddRecord(record.RecTypeWorkout, json.RawMessage(`{"name": "Push day"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, added.LocalID)
	assert.Equal(t, StatePendingCreate, added.State)

	got, err := app.GetRecord(added.LocalID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "Push day"}`, string(got.Payload))

	updated, err := app.UpdateRecord(added.LocalID, json.RawMessage(`{"name": "Push day", "notes": "felt strong"}`))
	require.NoError(t, err)
	assert.True(t, updated.ModifiedAt.After(added.ModifiedAt) || updated.ModifiedAt.Equal(added.ModifiedAt))

	records, err := app.ListRecords(nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"name": "Push day", "notes": "felt strong"}`, string(records[0].Payload))

	// The edit coalesced into the still-queued create.
	pending, err := app.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	require.NoError(t, app.RemoveRecord(added.LocalID))

	records, err = app.ListRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Removing a never-uploaded record cancels its queued create too.
	pending, err = app.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestApp_AddRecord_UnknownType(t *testing.T) {
	app := newTestApp(t)

	_, err := app.AddRecord(record.RecType("cardio"), json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestApp_Counts(t *testing.T) {
	app := newTestApp(t)

	_, err := app.AddRecord(record.RecTypeWorkout, json.RawMessage(`{"name": "Leg day"}`))
	require.NoError(t, err)
	_, err = app.AddRecord(record.RecTypeWeightLog, json.RawMessage(`{"kilos": 82.5}`))
	require.NoError(t, err)

	counts, err := app.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"workout": 1, "weight_log": 1}, counts)
}

func TestApp_TokenLifecycle(t *testing.T) {
	app := newTestApp(t)

	assert.False(t, app.IsAuthenticated())
	_, err := app.GetToken()
	require.Error(t, err)

	require.NoError(t, app.SaveToken("session-token"))

	token, err := app.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)
	assert.True(t, app.IsAuthenticated())

	require.NoError(t, app.ClearToken())
	assert.False(t, app.IsAuthenticated())

	_, err = app.GetToken()
	require.Error(t, err)
}

func TestApp_UserLogin(t *testing.T) {
	app := newTestApp(t)

	assert.Empty(t, app.UserLogin())

	require.NoError(t, app.Storage().Write(userLoginKey, []byte("coach")))
	assert.Equal(t, "coach", app.UserLogin())
}

func TestApp_Clear(t *testing.T) {
	app := newTestApp(t)

	_, err := app.AddRecord(record.RecTypeWorkout, json.RawMessage(`{"name": "Leg day"}`))
	require.NoError(t, err)

	require.NoError(t, app.Clear())

	records, err := app.ListRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, records)

	pending, err := app.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}
