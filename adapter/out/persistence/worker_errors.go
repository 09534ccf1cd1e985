package persistence

import "errors"

// Common persistence errors
var (
	ErrInvalidUser = errors.New("user id must not be empty")
	ErrCorrupt     = errors.New("stored trips document is corrupt")
	ErrClosed      = errors.New("trip store is closed")
)
