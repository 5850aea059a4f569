package record

import (
	"encoding/json"
	"time"
)

// Record is one user-owned training document as stored on the server.
// LocalID is assigned by the client that created the record and is the
// stable identity used for idempotent writes and sync. The payload is
// an opaque client document; the server never interprets it beyond the
// type tag.
type Record struct {
	ID               int64           `json:"id"`
	UserID           int             `json:"user_id"`
	LocalID          string          `json:"local_id"`
	Type             RecType         `json:"type"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	Deleted          bool            `json:"deleted"`
	ClientModifiedAt time.Time       `json:"client_modified_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewerThan reports whether r wins a last-write-wins comparison against
// other. Equal timestamps keep the stored row, so replaying the same
// write is a no-op.
func (r *Record) NewerThan(other *Record) bool {
	return r.ClientModifiedAt.After(other.ClientModifiedAt)
}
