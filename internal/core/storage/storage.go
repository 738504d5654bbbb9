// Package storage keeps serialized cache assets under string keys.
package storage

import (
	"context"
	"errors"

	"github.com/zeusync/chaoscache/pkg/encoding"
)

var (
	ErrNotFound   = errors.New("storage key not found")
	ErrExists     = errors.New("storage key already exists")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Storage persists Serializable values by key. Read decodes into the value
// passed in.
type Storage interface {
	Create(ctx context.Context, key string, value encoding.Serializable) error
	Read(ctx context.Context, key string, into encoding.Serializable) error
	Update(ctx context.Context, key string, value encoding.Serializable) error
	Delete(ctx context.Context, key string) error

	Keys(ctx context.Context) ([]string, error)
	Statistics() Statistics
}

// Statistics counts the operations a store has served.
type Statistics struct {
	Keys    int
	Reads   uint64
	Writes  uint64
	Deletes uint64
	Bytes   int64
}
