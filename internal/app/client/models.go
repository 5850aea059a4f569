package client

import (
	"encoding/json"
	"time"

	"gymkeeper/internal/domain/record"
)

// SyncState tracks where a local record stands relative to the server.
type SyncState string

const (
	StatePendingCreate SyncState = "pending_create"
	StatePendingUpdate SyncState = "pending_update"
	StatePendingDelete SyncState = "pending_delete"
	StateSynced        SyncState = "synced"
)

// Operation is the kind of a queued mutation.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Record is the device-local copy of one training record. LocalID is
// generated on this device and never changes; RemoteID is filled in
// after the first successful upload. ModifiedAt is device time and is
// what last-write-wins conflict resolution compares.
type Record struct {
	LocalID    string          `json:"local_id"`
	RemoteID   *int64          `json:"remote_id,omitempty"`
	Type       record.RecType  `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	State      SyncState       `json:"state"`
	ModifiedAt time.Time       `json:"modified_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Tombstoned reports whether the record is deleted locally but the
// deletion has not been confirmed by the server yet.
func (r *Record) Tombstoned() bool {
	return r.State == StatePendingDelete
}

// QueueEntry is one pending mutation waiting to be replayed against
// the server, in the order the user made it.
type QueueEntry struct {
	ID            int64
	Operation     Operation
	LocalID       string
	RecordType    record.RecType
	Attempts      int
	LastAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}

// RecordFilter narrows List results.
type RecordFilter struct {
	Type        string
	ShowDeleted bool
	Limit       int
	Offset      int
}

// Storage is the device-local durable store: records, the outbound
// mutation queue, and a small key-value area for odds and ends like
// timer state and the sync watermark.
type Storage interface {
	Put(rec *Record) error
	Get(localID string) (*Record, error)
	List(filter *RecordFilter) ([]*Record, error)
	Remove(localID string) error
	Counts() (map[string]int, error)

	// Sync plumbing.
	GetIncludingDeleted(localID string) (*Record, error)
	SaveRemote(remote *record.Record) error
	MarkSynced(localID string, remoteID int64) error
	HardDelete(localID string) error
	ListQueue() ([]QueueEntry, error)
	GetQueueEntry(id int64) (*QueueEntry, error)
	UpdateQueueEntry(entry *QueueEntry) error
	DeleteQueueEntry(id int64) error
	DeleteQueueForRecord(localID string) error
	LastSync() (time.Time, error)
	SetLastSync(t time.Time) error

	// Key-value area, also the storage port of the workout timer. Read
	// reports whether the key existed.
	Read(key string) ([]byte, bool, error)
	Write(key string, value []byte) error
	Delete(key string) error

	Wipe() error
	Close() error
}
