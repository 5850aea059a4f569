package sync

import (
	"time"

	"gymkeeper/internal/domain/record"
)

// GetChangesRequest asks for records changed after Since. Since is in
// the server clock domain: clients feed back the ServerTime they got
// with the previous page.
type GetChangesRequest struct {
	Since  time.Time
	Limit  int
	Offset int
}

// GetChangesResponse carries one page of the changes feed, tombstones
// included. ServerTime is captured before the page is read, so a client
// that stores it as its next Since never skips a concurrent write.
type GetChangesResponse struct {
	Records    []record.Record `json:"records"`
	HasMore    bool            `json:"has_more"`
	ServerTime time.Time       `json:"server_time"`
}
