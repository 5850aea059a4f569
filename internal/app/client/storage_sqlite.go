package client

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"gymkeeper/internal/domain/record"
)

const lastSyncKey = "last_sync"

// SQLiteStorage keeps records, the outbound mutation queue and the
// kv area in a single database file on the device.
type SQLiteStorage struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSQLiteStorage(path string, log *slog.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	storage := &SQLiteStorage{
		db:  db,
		log: log.With("component", "local_storage"),
	}

	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			local_id    TEXT PRIMARY KEY,
			remote_id   INTEGER,
			type        TEXT NOT NULL,
			payload     TEXT NOT NULL,
			state       TEXT NOT NULL,
			modified_at DATETIME NOT NULL,
			created_at  DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_type ON records(type);
		CREATE INDEX IF NOT EXISTS idx_records_state ON records(state);

		CREATE TABLE IF NOT EXISTS sync_queue (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			operation       TEXT NOT NULL,
			local_id        TEXT NOT NULL,
			record_type     TEXT NOT NULL,
			attempts        INTEGER NOT NULL DEFAULT 0,
			last_attempt_at DATETIME,
			last_error      TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_queue_local_id ON sync_queue(local_id);

		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)

	return err
}

// Put saves a local edit and queues it for upload. Repeated edits to a
// record that is already waiting in the queue coalesce into the existing
// entry, so the queue holds at most one pending operation per record.
func (s *SQLiteStorage) Put(rec *Record) error {
	if len(rec.Payload) == 0 || !json.Valid(rec.Payload) {
		return fmt.Errorf("payload is not valid json")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin put: %w", err)
	}
	defer tx.Rollback()

	var state SyncState
	err = tx.QueryRow("SELECT state FROM records WHERE local_id = ?", rec.LocalID).Scan(&state)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec.State = StatePendingCreate
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		_, err = tx.Exec(`
			INSERT INTO records (local_id, type, payload, state, modified_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.LocalID, rec.Type, string(rec.Payload), rec.State, rec.ModifiedAt, rec.CreatedAt)
		if err != nil {
			return mapSQLiteErr("insert record", err)
		}
		if err := enqueueTx(tx, OpCreate, rec.LocalID, rec.Type); err != nil {
			return err
		}

	case err != nil:
		return fmt.Errorf("check record state: %w", err)

	case state == StatePendingCreate || state == StatePendingUpdate:
		// The queued operation reads the row at upload time, so the
		// fresh payload rides along without a second entry.
		rec.State = state
		if err := updateRowTx(tx, rec); err != nil {
			return err
		}

	case state == StateSynced:
		rec.State = StatePendingUpdate
		if err := updateRowTx(tx, rec); err != nil {
			return err
		}
		if err := enqueueTx(tx, OpUpdate, rec.LocalID, rec.Type); err != nil {
			return err
		}

	case state == StatePendingDelete:
		// Editing a record that is queued for deletion revives it: the
		// delete is dropped and the record goes back up as a create.
		rec.State = StatePendingCreate
		if err := updateRowTx(tx, rec); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM sync_queue WHERE local_id = ?", rec.LocalID); err != nil {
			return fmt.Errorf("drop queued operations: %w", err)
		}
		if err := enqueueTx(tx, OpCreate, rec.LocalID, rec.Type); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStorage) Get(localID string) (*Record, error) {
	rec, err := s.GetIncludingDeleted(localID)
	if err != nil {
		return nil, err
	}
	if rec.Tombstoned() {
		return nil, ErrNotFound
	}
	return rec, nil
}

// GetIncludingDeleted returns the record even when it is a local
// tombstone. Sync uses it to resolve conflicts against server changes.
func (s *SQLiteStorage) GetIncludingDeleted(localID string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT local_id, remote_id, type, payload, state, modified_at, created_at
		FROM records
		WHERE local_id = ?
	`, localID)

	rec, err := scanLocalRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStorage) List(filter *RecordFilter) ([]*Record, error) {
	if filter == nil {
		filter = &RecordFilter{}
	}

	query := `
		SELECT local_id, remote_id, type, payload, state, modified_at, created_at
		FROM records
		WHERE 1=1`
	args := []interface{}{}

	if !filter.ShowDeleted {
		query += " AND state != ?"
		args = append(args, StatePendingDelete)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}

	query += " ORDER BY modified_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanLocalRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if !json.Valid(rec.Payload) {
			s.log.Warn("skipping record with corrupt payload", "local_id", rec.LocalID)
			continue
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Remove deletes a record. Records the server has never seen are wiped
// outright; everything else becomes a tombstone queued for upload.
func (s *SQLiteStorage) Remove(localID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin remove: %w", err)
	}
	defer tx.Rollback()

	var (
		state   SyncState
		recType record.RecType
	)
	err = tx.QueryRow("SELECT state, type FROM records WHERE local_id = ?", localID).
		Scan(&state, &recType)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check record state: %w", err)
	}
	if state == StatePendingDelete {
		return ErrNotFound
	}

	if state == StatePendingCreate {
		// The server never saw this record, no tombstone needed.
		if _, err := tx.Exec("DELETE FROM records WHERE local_id = ?", localID); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM sync_queue WHERE local_id = ?", localID); err != nil {
			return fmt.Errorf("drop queued operations: %w", err)
		}
		return tx.Commit()
	}

	_, err = tx.Exec(`
		UPDATE records SET state = ?, modified_at = ? WHERE local_id = ?
	`, StatePendingDelete, time.Now(), localID)
	if err != nil {
		return fmt.Errorf("mark record deleted: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM sync_queue WHERE local_id = ?", localID); err != nil {
		return fmt.Errorf("drop queued operations: %w", err)
	}
	if err := enqueueTx(tx, OpDelete, localID, recType); err != nil {
		return err
	}

	return tx.Commit()
}

// Counts returns how many live records of each type are stored locally.
func (s *SQLiteStorage) Counts() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT type, COUNT(*)
		FROM records
		WHERE state != ?
		GROUP BY type
	`, StatePendingDelete)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			recType string
			count   int
		)
		if err := rows.Scan(&recType, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[recType] = count
	}

	return counts, rows.Err()
}

// SaveRemote stores a record pulled from the server as synced,
// overwriting whatever local copy exists.
func (s *SQLiteStorage) SaveRemote(remote *record.Record) error {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM records WHERE local_id = ?)", remote.LocalID).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("check record existence: %w", err)
	}

	if exists {
		_, err = s.db.Exec(`
			UPDATE records
			SET remote_id = ?, type = ?, payload = ?, state = ?, modified_at = ?
			WHERE local_id = ?
		`, remote.ID, remote.Type, string(remote.Payload), StateSynced,
			remote.ClientModifiedAt, remote.LocalID)
	} else {
		_, err = s.db.Exec(`
			INSERT INTO records (local_id, remote_id, type, payload, state, modified_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, remote.LocalID, remote.ID, remote.Type, string(remote.Payload), StateSynced,
			remote.ClientModifiedAt, remote.CreatedAt)
	}
	if err != nil {
		return mapSQLiteErr("save remote record", err)
	}

	return nil
}

func (s *SQLiteStorage) MarkSynced(localID string, remoteID int64) error {
	_, err := s.db.Exec(`
		UPDATE records SET remote_id = ?, state = ? WHERE local_id = ?
	`, remoteID, StateSynced, localID)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) HardDelete(localID string) error {
	_, err := s.db.Exec("DELETE FROM records WHERE local_id = ?", localID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// ListQueue returns pending operations oldest first, the order they
// must replay in.
func (s *SQLiteStorage) ListQueue() ([]QueueEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, operation, local_id, record_type, attempts, last_attempt_at, last_error, created_at
		FROM sync_queue
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

func (s *SQLiteStorage) GetQueueEntry(id int64) (*QueueEntry, error) {
	row := s.db.QueryRow(`
		SELECT id, operation, local_id, record_type, attempts, last_attempt_at, last_error, created_at
		FROM sync_queue
		WHERE id = ?
	`, id)

	entry, err := scanQueueEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStorage) UpdateQueueEntry(entry *QueueEntry) error {
	lastAttempt := sql.NullTime{Time: entry.LastAttemptAt, Valid: !entry.LastAttemptAt.IsZero()}

	_, err := s.db.Exec(`
		UPDATE sync_queue
		SET attempts = ?, last_attempt_at = ?, last_error = ?
		WHERE id = ?
	`, entry.Attempts, lastAttempt, entry.LastError, entry.ID)
	if err != nil {
		return fmt.Errorf("update queue entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteQueueEntry(id int64) error {
	_, err := s.db.Exec("DELETE FROM sync_queue WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteQueueForRecord(localID string) error {
	_, err := s.db.Exec("DELETE FROM sync_queue WHERE local_id = ?", localID)
	if err != nil {
		return fmt.Errorf("delete queued operations: %w", err)
	}
	return nil
}

// LastSync returns the changes-feed watermark from the previous pull,
// or the zero time if the client has never synced.
func (s *SQLiteStorage) LastSync() (time.Time, error) {
	raw, ok, err := s.Read(lastSyncKey)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last sync time: %w", err)
	}
	return t, nil
}

func (s *SQLiteStorage) SetLastSync(t time.Time) error {
	return s.Write(lastSyncKey, []byte(t.Format(time.RFC3339Nano)))
}

// Read returns the kv value for key. The bool reports whether the key
// existed.
func (s *SQLiteStorage) Read(key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read kv %q: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *SQLiteStorage) Write(key string, value []byte) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", key, string(value))
	if err != nil {
		return mapSQLiteErr("write kv", err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete kv %q: %w", key, err)
	}
	return nil
}

// Wipe removes every record, queued operation and kv entry.
func (s *SQLiteStorage) Wipe() error {
	_, err := s.db.Exec(`
		DELETE FROM records;
		DELETE FROM sync_queue;
		DELETE FROM kv;
	`)
	if err != nil {
		return fmt.Errorf("wipe storage: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func updateRowTx(tx *sql.Tx, rec *Record) error {
	_, err := tx.Exec(`
		UPDATE records
		SET type = ?, payload = ?, state = ?, modified_at = ?
		WHERE local_id = ?
	`, rec.Type, string(rec.Payload), rec.State, rec.ModifiedAt, rec.LocalID)
	if err != nil {
		return mapSQLiteErr("update record", err)
	}
	return nil
}

func enqueueTx(tx *sql.Tx, op Operation, localID string, recType record.RecType) error {
	_, err := tx.Exec(`
		INSERT INTO sync_queue (operation, local_id, record_type, created_at)
		VALUES (?, ?, ?, ?)
	`, op, localID, recType, time.Now())
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", op, err)
	}
	return nil
}

func scanLocalRecord(row interface{ Scan(dest ...interface{}) error }) (*Record, error) {
	var (
		rec      Record
		remoteID sql.NullInt64
		payload  string
	)

	err := row.Scan(&rec.LocalID, &remoteID, &rec.Type, &payload, &rec.State,
		&rec.ModifiedAt, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	if remoteID.Valid {
		rec.RemoteID = &remoteID.Int64
	}
	rec.Payload = json.RawMessage(payload)

	return &rec, nil
}

func scanQueueEntry(row interface{ Scan(dest ...interface{}) error }) (*QueueEntry, error) {
	var (
		entry       QueueEntry
		lastAttempt sql.NullTime
	)

	err := row.Scan(&entry.ID, &entry.Operation, &entry.LocalID, &entry.RecordType,
		&entry.Attempts, &lastAttempt, &entry.LastError, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	if lastAttempt.Valid {
		entry.LastAttemptAt = lastAttempt.Time
	}

	return &entry, nil
}

// mapSQLiteErr surfaces driver conditions callers can act on, most
// importantly a full disk.
func mapSQLiteErr(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrFull {
		return ErrStorageFull
	}
	return fmt.Errorf("%s: %w", op, err)
}
