// Package checkpoint provides durable, keyed save/load of in-progress
// workflow state. Writes are whole-value overwrites with last-write-wins
// semantics; no history is retained per key.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when no checkpoint exists for the key.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists workflow state under caller-chosen keys. Keys must uniquely
// identify a task+step (or task+state) pair; saving an existing key
// overwrites its value.
type Store interface {
	// Save serializes state and stores it under key, replacing any prior
	// value.
	Save(ctx context.Context, key string, state any) error

	// Load reads the value stored under key into vptr. The loaded value is
	// equal to what was saved. Returns ErrNotFound if the key is absent.
	Load(ctx context.Context, key string, vptr any) error

	// Delete removes the value stored under key. Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, key string) error
}

// IOError wraps a storage failure. Checkpoint failures never corrupt
// in-memory workflow state; callers may continue without a successful
// checkpoint.
type IOError struct {
	Op  string
	Key string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("checkpoint %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
