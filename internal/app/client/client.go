package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"gymkeeper/internal/app/client/config"
	"gymkeeper/internal/domain/record"
	"gymkeeper/internal/domain/sync"
)

const userLoginKey = "user_login"

// App wires the local storage, the server transport and the sync
// machinery together. Record operations work entirely offline; the
// server is only needed for accounts and sync.
type App struct {
	config      *config.Config
	log         *slog.Logger
	httpClient  *httpClient
	storage     Storage
	syncService *SyncService
	conn        *Connectivity

	authenticated bool
	wg            gosync.WaitGroup
	cancel        context.CancelFunc
	mu            gosync.RWMutex
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	httpCl, err := NewHTTPClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init http client: %w", err)
	}

	storage, err := NewSQLiteStorage(cfg.DataPath, log)
	if err != nil {
		return nil, fmt.Errorf("init local storage: %w", err)
	}

	conn := NewConnectivity(httpCl, log)

	syncService := NewSyncService(storage, httpCl, conn, &SyncConfig{
		MaxAttempts:    cfg.MaxSyncAttempts,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	}, log)

	app := &App{
		config:      cfg,
		log:         log,
		httpClient:  httpCl,
		storage:     storage,
		syncService: syncService,
		conn:        conn,
	}

	if token, err := app.GetToken(); err == nil && token != "" {
		httpCl.SetToken(token)
		app.authenticated = true
		log.Debug("session token loaded from file")
	}

	return app, nil
}

// Run keeps the client alive for watch mode: it probes the server,
// syncs on the configured interval and syncs immediately when the
// server comes back after an outage.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.handleSignals()

	a.conn.OnOnline(func() {
		a.runSyncOnce(ctx)
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.conn.Watch(ctx, time.Duration(a.config.ProbeInterval)*time.Second)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.startSync(ctx)
	}()

	a.log.Info("client started",
		"server", a.config.ServerAddress,
		"sync_interval_seconds", a.config.SyncInterval,
	)

	a.wg.Wait()
	return nil
}

func (a *App) startSync(ctx context.Context) {
	// One pass right away, then on the interval.
	a.runSyncOnce(ctx)

	ticker := time.NewTicker(time.Duration(a.config.SyncInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("background sync stopped")
			return
		case <-ticker.C:
			a.runSyncOnce(ctx)
		}
	}
}

func (a *App) runSyncOnce(ctx context.Context) {
	if !a.IsAuthenticated() {
		return
	}

	if _, err := a.syncService.Sync(ctx); err != nil {
		switch {
		case errors.Is(err, ErrOffline), errors.Is(err, ErrSyncInProgress):
			a.log.Debug("sync skipped", "reason", err)
		default:
			a.log.Error("sync failed", "error", err)
		}
	}
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	a.log.Info("received shutdown signal", "signal", sig.String())

	if a.cancel != nil {
		a.cancel()
	}
}

// Shutdown stops the background work and waits for it to finish.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// Close releases the local storage.
func (a *App) Close() error {
	return a.storage.Close()
}

// IsAuthenticated reports whether a session token is available.
func (a *App) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.authenticated {
		token, err := a.GetToken()
		if err == nil && token != "" {
			a.authenticated = true
		}
	}

	return a.authenticated
}

// GetToken returns the saved session token.
func (a *App) GetToken() (string, error) {
	tokenBytes, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("not logged in, run: gymkeeper auth login")
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(tokenBytes), nil
}

// SaveToken stores the session token readable by the owner only.
func (a *App) SaveToken(token string) error {
	if err := os.WriteFile(a.config.TokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	a.httpClient.SetToken(token)
	return nil
}

// ClearToken forgets the session. Local records stay on the device.
func (a *App) ClearToken() error {
	a.mu.Lock()
	a.authenticated = false
	a.mu.Unlock()

	a.httpClient.SetToken("")

	if err := os.Remove(a.config.TokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token: %w", err)
	}

	if err := a.storage.Delete(userLoginKey); err != nil {
		a.log.Warn("failed to clear stored login", "error", err)
	}

	return nil
}

// Register creates an account on the server.
func (a *App) Register(ctx context.Context, login, password string) error {
	if err := a.httpClient.Register(ctx, login, password); err != nil {
		return err
	}

	a.log.Info("user registered", "login", login)
	return nil
}

// Login exchanges credentials for a session token and stores it.
func (a *App) Login(ctx context.Context, login, password string) error {
	token, err := a.httpClient.Login(ctx, login, password)
	if err != nil {
		return err
	}

	if err := a.SaveToken(token); err != nil {
		return err
	}

	a.mu.Lock()
	a.authenticated = true
	a.mu.Unlock()

	if err := a.storage.Write(userLoginKey, []byte(login)); err != nil {
		a.log.Warn("failed to store login", "error", err)
	}

	a.log.Info("logged in", "login", login)
	return nil
}

// UserLogin returns the login of the last signed-in user, if any.
func (a *App) UserLogin() string {
	login, ok, err := a.storage.Read(userLoginKey)
	if err != nil || !ok {
		return ""
	}
	return string(login)
}

// AddRecord stores a new record locally and queues it for upload.
func (a *App) AddRecord(recType record.RecType, payload json.RawMessage) (*Record, error) {
	if err := recType.Validate(); err != nil {
		return nil, err
	}

	rec := &Record{
		LocalID:    uuid.NewString(),
		Type:       recType,
		Payload:    payload,
		ModifiedAt: time.Now(),
	}

	if err := a.storage.Put(rec); err != nil {
		return nil, err
	}

	a.log.Debug("record stored", "local_id", rec.LocalID, "type", recType)
	return rec, nil
}

// UpdateRecord replaces the payload of an existing record.
func (a *App) UpdateRecord(localID string, payload json.RawMessage) (*Record, error) {
	existing, err := a.storage.Get(localID)
	if err != nil {
		return nil, err
	}

	existing.Payload = payload
	existing.ModifiedAt = time.Now()

	if err := a.storage.Put(existing); err != nil {
		return nil, err
	}

	return existing, nil
}

// GetRecord returns one live record.
func (a *App) GetRecord(localID string) (*Record, error) {
	return a.storage.Get(localID)
}

// ListRecords returns live records, newest first.
func (a *App) ListRecords(filter *RecordFilter) ([]*Record, error) {
	return a.storage.List(filter)
}

// RemoveRecord deletes a record locally and queues the deletion.
func (a *App) RemoveRecord(localID string) error {
	return a.storage.Remove(localID)
}

// Counts returns per-type totals of live local records.
func (a *App) Counts() (map[string]int, error) {
	return a.storage.Counts()
}

// PendingCount returns how many operations wait in the upload queue.
func (a *App) PendingCount() (int, error) {
	entries, err := a.storage.ListQueue()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// LastSync returns the time of the last completed pull.
func (a *App) LastSync() (time.Time, error) {
	return a.storage.LastSync()
}

// Sync runs one sync cycle now.
func (a *App) Sync(ctx context.Context) (*SyncResult, error) {
	return a.syncService.Sync(ctx)
}

// SyncService exposes the queue inspection and repair operations.
func (a *App) SyncService() *SyncService {
	return a.syncService
}

// Storage exposes the local store for collaborators like the workout
// timer that keep their state in the kv area.
func (a *App) Storage() Storage {
	return a.storage
}

// Ping checks whether the server answers right now.
func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.config.RequestTimeout)*time.Second)
	defer cancel()

	return a.httpClient.HealthCheck(ctx)
}

// ServerSyncStatus fetches the account-wide sync summary.
func (a *App) ServerSyncStatus(ctx context.Context) (*sync.Status, error) {
	return a.httpClient.GetSyncStatus(ctx)
}

// Clear wipes all local records, the upload queue and stored state.
// The server-side copy of the data is untouched.
func (a *App) Clear() error {
	if err := a.storage.Wipe(); err != nil {
		return fmt.Errorf("wipe local storage: %w", err)
	}

	a.log.Info("local data cleared")
	return nil
}
