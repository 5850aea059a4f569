package sync

import (
	"time"
)

// Status tracks per-user pull bookkeeping. A row is updated every time
// a client drains the changes feed.
type Status struct {
	UserID       int              `json:"user_id"`
	LastPullAt   time.Time        `json:"last_pull_at"`
	PullCount    int64            `json:"pull_count"`
	TotalRecords int64            `json:"total_records"`
	ByType       map[string]int64 `json:"by_type,omitempty"`
}

// ServiceConfig bounds the changes feed page size.
type ServiceConfig struct {
	PageSize    int
	MaxPageSize int
}
