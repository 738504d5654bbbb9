package storage

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"github.com/zeusync/chaoscache/pkg/encoding"
)

var _ Storage = (*Memory)(nil)

// Memory is an in-process Storage.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte

	reads, writes, deletes atomic.Uint64
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Create(ctx context.Context, key string, value encoding.Serializable) error {
	return m.put(ctx, key, value, false)
}

func (m *Memory) Update(ctx context.Context, key string, value encoding.Serializable) error {
	return m.put(ctx, key, value, true)
}

func (m *Memory) put(ctx context.Context, key string, value encoding.Serializable, replace bool) error {
	if err := validKey(ctx, key); err != nil {
		return err
	}
	data, err := value.Serialize()
	if err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok != replace {
		if replace {
			return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(ErrNotFound)
		}
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(ErrExists)
	}
	m.values[key] = data
	m.writes.Add(1)
	return nil
}

func (m *Memory) Read(ctx context.Context, key string, into encoding.Serializable) error {
	if err := validKey(ctx, key); err != nil {
		return err
	}
	m.mu.RLock()
	data, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return oops.Code("STORAGE_READ_FAILED").With("key", key).Wrap(ErrNotFound)
	}
	m.reads.Add(1)
	if err := into.Deserialize(data); err != nil {
		return oops.Code("STORAGE_READ_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := validKey(ctx, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return oops.Code("STORAGE_DELETE_FAILED").With("key", key).Wrap(ErrNotFound)
	}
	delete(m.values, key)
	m.deletes.Add(1)
	return nil
}

func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *Memory) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Statistics{
		Keys:    len(m.values),
		Reads:   m.reads.Load(),
		Writes:  m.writes.Load(),
		Deletes: m.deletes.Load(),
	}
	for _, v := range m.values {
		st.Bytes += int64(len(v))
	}
	return st
}
