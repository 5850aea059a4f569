package sync

import (
	"time"

	"gymkeeper/internal/domain/sync"
)

type getChangesInput struct {
	Since  time.Time `query:"since" doc:"Watermark from the previous pull, RFC 3339. Zero means everything."`
	Limit  int       `query:"limit" doc:"Page size, capped by the server"`
	Offset int       `query:"offset" doc:"Rows to skip within the window"`
}

type getChangesOutput struct {
	Body sync.GetChangesResponse
}

type getStatusInput struct{}

type getStatusOutput struct {
	Body sync.Status
}
