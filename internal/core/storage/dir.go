package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"github.com/zeusync/chaoscache/pkg/encoding"
)

// Extension is appended to every key stored by Dir.
const Extension = ".chcache"

var _ Storage = (*Dir)(nil)

// Dir stores one asset file per key inside a directory. Writes go to a
// temporary file that is renamed into place.
type Dir struct {
	root string
	mu   sync.Mutex

	reads, writes, deletes atomic.Uint64
}

// NewDir opens root, creating it when missing.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, oops.Code("STORAGE_OPEN_FAILED").With("root", root).Wrap(err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Root() string { return d.root }

// Path returns the file holding key.
func (d *Dir) Path(key string) string {
	return filepath.Join(d.root, key+Extension)
}

func (d *Dir) Create(ctx context.Context, key string, value encoding.Serializable) error {
	return d.put(ctx, key, value, false)
}

func (d *Dir) Update(ctx context.Context, key string, value encoding.Serializable) error {
	return d.put(ctx, key, value, true)
}

func (d *Dir) put(ctx context.Context, key string, value encoding.Serializable, replace bool) error {
	if err := validKey(ctx, key); err != nil {
		return err
	}
	data, err := value.Serialize()
	if err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.Path(key)
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(statErr)
	}
	switch {
	case exists && !replace:
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(ErrExists)
	case !exists && replace:
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(ErrNotFound)
	}

	tmp, err := os.CreateTemp(d.root, "."+key+"-*")
	if err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return oops.Code("STORAGE_WRITE_FAILED").With("key", key).Wrap(err)
	}
	d.writes.Add(1)
	return nil
}

func (d *Dir) Read(ctx context.Context, key string, into encoding.Serializable) error {
	if err := validKey(ctx, key); err != nil {
		return err
	}
	data, err := os.ReadFile(d.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return oops.Code("STORAGE_READ_FAILED").With("key", key).Wrap(ErrNotFound)
	}
	if err != nil {
		return oops.Code("STORAGE_READ_FAILED").With("key", key).Wrap(err)
	}
	d.reads.Add(1)
	if err := into.Deserialize(data); err != nil {
		return oops.Code("STORAGE_READ_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

func (d *Dir) Delete(ctx context.Context, key string) error {
	if err := validKey(ctx, key); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	err := os.Remove(d.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return oops.Code("STORAGE_DELETE_FAILED").With("key", key).Wrap(ErrNotFound)
	}
	if err != nil {
		return oops.Code("STORAGE_DELETE_FAILED").With("key", key).Wrap(err)
	}
	d.deletes.Add(1)
	return nil
}

func (d *Dir) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, oops.Code("STORAGE_LIST_FAILED").With("root", d.root).Wrap(err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, Extension) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, Extension))
	}
	slices.Sort(keys)
	return keys, nil
}

func (d *Dir) Statistics() Statistics {
	st := Statistics{
		Reads:   d.reads.Load(),
		Writes:  d.writes.Load(),
		Deletes: d.deletes.Load(),
	}
	keys, err := d.Keys(context.Background())
	if err != nil {
		return st
	}
	st.Keys = len(keys)
	for _, k := range keys {
		if info, err := os.Stat(d.Path(k)); err == nil {
			st.Bytes += info.Size()
		}
	}
	return st
}

func validKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return oops.Code("STORAGE_INVALID_KEY").With("key", key).Wrap(ErrInvalidKey)
	}
	return nil
}
