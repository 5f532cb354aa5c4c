package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the key holds no value.
var ErrNotFound = errors.New("key not found")

// Slot is durable local key/value state. Every write is persisted before it returns.
type Slot interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
