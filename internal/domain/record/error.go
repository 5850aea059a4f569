package record

import (
	"errors"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidData   = errors.New("invalid record data")
	ErrRecordDeleted = errors.New("record was deleted")
)
