package audit

import "errors"

var (
	// ErrStorageNotAvailable is returned once the async writer is closed.
	ErrStorageNotAvailable = errors.New("storage backend is unavailable")

	ErrEventValidation = errors.New("event validation failed")
	ErrNilStorage      = errors.New("audit storage cannot be nil")
)
