package types

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by both stores when a key is absent. Stores expire
// records on their own schedule, so callers must treat "never existed",
// "already consumed" and "expired" as the same condition.
var ErrNotFound = errors.New("not found")

// SecretStore holds secret metadata records keyed by secret id. Records are
// written once with a TTL and never updated; the store deletes them
// autonomously once the TTL elapses.
type SecretStore interface {
	// PutSecret stores a record that the store will discard on its own
	// after ttlSeconds.
	PutSecret(ctx context.Context, id string, data []byte, ttlSeconds int64) error

	// ConsumeSecret atomically reads and deletes a record. At most one
	// caller ever receives the data for a given id; all others, and any
	// call after expiry, get ErrNotFound.
	ConsumeSecret(ctx context.Context, id string) ([]byte, error)
}

// FileStore holds large ciphertext payloads keyed by secret id. Both paths
// stream so that file secrets are never buffered whole in memory.
type FileStore interface {
	StoreBlob(ctx context.Context, id string, body io.Reader) error
	OpenBlob(ctx context.Context, id string) (io.ReadCloser, error)
	DeleteBlob(ctx context.Context, id string) error
}
