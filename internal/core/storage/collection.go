package storage

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"github.com/zeusync/chaoscache/internal/core/cache"
)

// SaveCollection writes every cache of col under its own name, replacing
// existing keys. It returns the number of caches written.
func SaveCollection(ctx context.Context, s Storage, col *cache.Collection) (int, error) {
	n := 0
	for _, c := range col.Caches() {
		err := s.Create(ctx, c.Name(), c)
		if errors.Is(err, ErrExists) {
			err = s.Update(ctx, c.Name(), c)
		}
		if err != nil {
			return n, oops.With("collection", col.Name()).Wrap(err)
		}
		n++
	}
	return n, nil
}

// LoadCollection reads every key of s into a new collection.
func LoadCollection(ctx context.Context, s Storage, name string, opts ...cache.CollectionOption) (*cache.Collection, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	col := cache.NewCollection(name, opts...)
	for _, key := range keys {
		c := col.FindOrAddCache(key)
		if err := s.Read(ctx, key, c); err != nil {
			return nil, oops.With("collection", name).Wrap(err)
		}
	}
	return col, nil
}
