// Package store defines the key-value persistence contract the service is
// built on and provides a Redis-backed implementation for production and an
// in-memory implementation for tests.  Records are stored as JSON blobs;
// interpreting them is the repository layer's job.
package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no record exists under the key.
// Callers should compare with errors.Is; any other error from a Store means
// the backend itself failed.
var ErrKeyNotFound = errors.New("store: key not found")

// Store is the minimal contract required of the system of record: point
// reads and writes plus an ordered prefix scan.  Implementations must
// provide read-after-write consistency within a single process, and every
// method must respect the deadline of the passed context so that no call
// can hang indefinitely.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key.  Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// ScanPrefix returns the values of all keys starting with prefix,
	// ordered by key so results are deterministic.
	ScanPrefix(ctx context.Context, prefix string) ([][]byte, error)
}
