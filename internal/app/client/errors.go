package client

import "errors"

var (
	// ErrNotFound is returned when a record does not exist locally or
	// only exists as an unsynced tombstone.
	ErrNotFound = errors.New("record not found")

	// ErrStorageFull is returned when the local database cannot grow.
	ErrStorageFull = errors.New("local storage is full")

	// ErrSyncInProgress is returned when a sync cycle is already running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrOffline is returned when the server is unreachable and the
	// requested action needs it.
	ErrOffline = errors.New("server is unreachable")
)
