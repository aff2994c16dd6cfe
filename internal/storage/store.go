// Package storage persists opaque blobs under string keys ("slots"). The
// readings collection lives in a single slot and is always rewritten whole.
package storage

import (
	"context"
	"errors"
)

// ErrInvalidKey is returned for empty keys or keys a backend cannot store.
var ErrInvalidKey = errors.New("invalid slot key")

// SlotStore is a key/value store holding one serialized value per key.
type SlotStore interface {
	// Load returns the value stored under key. found is false when the
	// slot has never been written or was deleted.
	Load(ctx context.Context, key string) (value []byte, found bool, err error)
	// Save overwrites the slot.
	Save(ctx context.Context, key string, value []byte) error
	// Delete removes the slot. Deleting a missing slot is not an error.
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
