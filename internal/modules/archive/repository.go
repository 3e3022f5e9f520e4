package archive

import (
	"context"
	"errors"
)

// ErrStoreLocked means another process holds the store file open.
var ErrStoreLocked = errors.New("store is locked by another process")

// Store is the durable key-value slot the archive is written to as one unit.
type Store interface {
	// Get returns the value under key; ok is false when the key has never been written.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
