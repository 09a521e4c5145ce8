package store

import (
	"context"
	"errors"
)

var (
	// ErrPersist wraps any failure to write a document back to durable storage.
	ErrPersist = errors.New("failed to persist document")
	// ErrLockUnavailable is returned when the exclusive lock cannot be taken.
	ErrLockUnavailable = errors.New("document lock unavailable")
)

// Backend persists a single JSON document. Update holds an exclusive lock
// for the whole read-modify-write cycle so concurrent writers never lose
// each other's changes.
type Backend interface {
	// Read returns the current document, or nil when none has been written yet.
	Read(ctx context.Context) ([]byte, error)

	// Update calls fn with the current document under an exclusive lock.
	// An error from fn aborts without writing and is returned unchanged.
	// A nil result from fn means nothing to write.
	Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error

	// Location describes where the document lives, for logs.
	Location() string
}
