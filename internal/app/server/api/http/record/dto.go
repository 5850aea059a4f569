package record

import (
	"gymkeeper/internal/domain/record"
)

type listInput struct {
	Type string `query:"type" doc:"Filter by record type"`
}

type listOutput struct {
	Body record.ListResponse
}

type createInput struct {
	Body record.WriteRequest
}

type findInput struct {
	LocalID string `path:"localId" doc:"Client-assigned record ID"`
}

type findOutput struct {
	Body record.Record
}

type updateInput struct {
	LocalID string `path:"localId" doc:"Client-assigned record ID"`
	Body    record.WriteRequest
}

type deleteInput struct {
	LocalID string `path:"localId" doc:"Client-assigned record ID"`
}

type writeOutput struct {
	Body writeResponse
}

type writeResponse struct {
	ID      int64  `json:"id" doc:"Server-assigned record ID"`
	LocalID string `json:"local_id"`
	Status  string `json:"status"`
}

type deleteOutput struct {
	Body statusResponse
}

type statusResponse struct {
	Status string `json:"status"`
}
