package cache

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/pkg/encoding"
)

// AssetVersion is the current on-disk layout version.
const AssetVersion uint16 = 1

var (
	cacheMagic      = [8]byte{'C', 'H', 'C', 'A', 'C', 'H', 'E', 0}
	collectionMagic = [8]byte{'C', 'H', 'C', 'O', 'L', 'L', 0, 0}
)

// maxAssetBody bounds the body length read from a header. The body buffer
// grows with the bytes actually read, never with the declared length.
const maxAssetBody = 256 << 20

// Asset layout: magic[8] | version u16 | body length u64 | gob body |
// xxhash64(body) u64. All integers are little endian.

type assetCurve struct {
	Name   string
	Times  []float64
	Values []float64
}

type assetChannel struct {
	Spec   ChannelSpec
	Times  []float64
	Values []Value
}

type assetParticle struct {
	BeginOffset float64
	Times       []float64
	Transforms  []physics.Transform
	Curves      []assetCurve
	Channels    []assetChannel
}

type assetEventTrack struct {
	Name    string
	Type    string
	Entries []EventEntry
}

type assetCache struct {
	Name            string
	AdapterGUID     uuid.UUID
	Duration        float64
	FrameCount      int
	TrackToParticle []int
	Particles       []assetParticle
	Curves          []assetCurve
	EventTracks     []assetEventTrack
	Channels        []ChannelSpec
	Spawnable       Spawnable
}

type assetCollection struct {
	Name   string
	Caches []assetCache
}

func curvesOf(m map[string]*Curve) []assetCurve {
	out := make([]assetCurve, 0, len(m))
	for _, name := range sortedKeys(m) {
		cv := m[name]
		out = append(out, assetCurve{Name: name, Times: slices.Clone(cv.Times), Values: slices.Clone(cv.Values)})
	}
	return out
}

// snapshot copies the cache content so it can be encoded without holding
// the lock.
func (c *Cache) snapshot() assetCache {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a := assetCache{
		Name:            c.name,
		AdapterGUID:     c.adapterGUID,
		Duration:        c.duration,
		FrameCount:      c.frameCount,
		TrackToParticle: slices.Clone(c.trackToParticle),
		Curves:          curvesOf(c.curves),
		Spawnable:       c.spawnable,
	}
	for _, p := range c.particles {
		ap := assetParticle{
			BeginOffset: p.Track.BeginOffset,
			Times:       slices.Clone(p.Track.Times),
			Transforms:  slices.Clone(p.Track.Transforms),
			Curves:      curvesOf(p.Curves),
		}
		for _, name := range sortedKeys(p.Channels) {
			ch := p.Channels[name]
			ap.Channels = append(ap.Channels, assetChannel{Spec: ch.Spec, Times: slices.Clone(ch.Times), Values: slices.Clone(ch.Values)})
		}
		a.Particles = append(a.Particles, ap)
	}
	for _, name := range sortedKeys(c.eventTracks) {
		t := c.eventTracks[name]
		a.EventTracks = append(a.EventTracks, assetEventTrack{Name: t.Name, Type: t.Type, Entries: slices.Clone(t.Entries)})
	}
	for _, name := range sortedKeys(c.channels) {
		a.Channels = append(a.Channels, c.channels[name])
	}
	return a
}

func (c *Cache) restore(a assetCache) error {
	if len(a.TrackToParticle) != len(a.Particles) {
		return fmt.Errorf("%w: %d tracks but %d particle indices", ErrCorruptAsset, len(a.Particles), len(a.TrackToParticle))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetData()
	c.adapterGUID = a.AdapterGUID
	c.duration = a.Duration
	c.maxTime = a.Duration
	c.frameCount = a.FrameCount
	c.spawnable = a.Spawnable

	for i, ap := range a.Particles {
		if len(ap.Times) != len(ap.Transforms) {
			return fmt.Errorf("%w: track %d has %d times and %d transforms", ErrCorruptAsset, i, len(ap.Times), len(ap.Transforms))
		}
		p := newParticleData()
		p.Track = TransformTrack{BeginOffset: ap.BeginOffset, Times: ap.Times, Transforms: ap.Transforms}
		for _, cv := range ap.Curves {
			p.Curves[cv.Name] = &Curve{Times: cv.Times, Values: cv.Values}
		}
		for _, ch := range ap.Channels {
			p.Channels[ch.Spec.Name] = &ChannelTrack{Spec: ch.Spec, Times: ch.Times, Values: ch.Values}
		}
		index := a.TrackToParticle[i]
		if _, dup := c.particleToTrack[index]; dup {
			return fmt.Errorf("%w: particle %d mapped twice", ErrCorruptAsset, index)
		}
		c.particleToTrack[index] = i
		c.particles = append(c.particles, p)
		c.trackToParticle = append(c.trackToParticle, index)
	}
	for _, cv := range a.Curves {
		c.curves[cv.Name] = &Curve{Times: cv.Times, Values: cv.Values}
	}
	for _, t := range a.EventTracks {
		c.eventTracks[t.Name] = &EventTrack{Name: t.Name, Type: t.Type, Entries: t.Entries}
	}
	for _, spec := range a.Channels {
		c.channels[spec.Name] = spec
	}
	return nil
}

var _ encoding.Serializable = (*Cache)(nil)

// Serialize encodes the cache as an asset.
func (c *Cache) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize replaces the cache content with the decoded asset. The cache
// keeps its own name.
func (c *Cache) Deserialize(data []byte) error {
	var a assetCache
	if err := readAsset(bytes.NewReader(data), cacheMagic, &a); err != nil {
		return oops.Code("CACHE_LOAD_FAILED").With("cache", c.name).Wrap(err)
	}
	if err := c.restore(a); err != nil {
		return oops.Code("CACHE_LOAD_FAILED").With("cache", c.name).Wrap(err)
	}
	return nil
}

// Save writes the cache asset to w.
func (c *Cache) Save(w io.Writer) error {
	if err := writeAsset(w, cacheMagic, c.snapshot()); err != nil {
		return oops.Code("CACHE_SAVE_FAILED").With("cache", c.name).Wrap(err)
	}
	return nil
}

// Load reads a cache asset from r.
func Load(r io.Reader, opts ...Option) (*Cache, error) {
	var a assetCache
	if err := readAsset(r, cacheMagic, &a); err != nil {
		return nil, oops.Code("CACHE_LOAD_FAILED").Wrap(err)
	}
	c := New(a.Name, opts...)
	if err := c.restore(a); err != nil {
		return nil, oops.Code("CACHE_LOAD_FAILED").With("cache", a.Name).Wrap(err)
	}
	return c, nil
}

// Save writes every cache of the collection to w.
func (c *Collection) Save(w io.Writer) error {
	a := assetCollection{Name: c.name}
	for _, cache := range c.Caches() {
		a.Caches = append(a.Caches, cache.snapshot())
	}
	if err := writeAsset(w, collectionMagic, a); err != nil {
		return oops.Code("COLLECTION_SAVE_FAILED").With("collection", c.name).Wrap(err)
	}
	return nil
}

// LoadCollection reads a collection asset written by Collection.Save.
func LoadCollection(r io.Reader, opts ...CollectionOption) (*Collection, error) {
	var a assetCollection
	if err := readAsset(r, collectionMagic, &a); err != nil {
		return nil, oops.Code("COLLECTION_LOAD_FAILED").Wrap(err)
	}
	col := NewCollection(a.Name, opts...)
	for _, ac := range a.Caches {
		cache := New(ac.Name, WithLogger(col.logger), WithMetrics(col.metrics))
		if err := cache.restore(ac); err != nil {
			return nil, oops.Code("COLLECTION_LOAD_FAILED").With("collection", a.Name).With("cache", ac.Name).Wrap(err)
		}
		if err := col.AddCache(cache); err != nil {
			return nil, oops.Code("COLLECTION_LOAD_FAILED").With("collection", a.Name).Wrap(err)
		}
	}
	return col, nil
}

func writeAsset(w io.Writer, magic [8]byte, body any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("encode asset body: %w", err)
	}

	bw := bufio.NewWriter(w)
	header := make([]byte, 0, 18)
	header = append(header, magic[:]...)
	header = binary.LittleEndian.AppendUint16(header, AssetVersion)
	header = binary.LittleEndian.AppendUint64(header, uint64(buf.Len()))
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if _, err := bw.Write(buf.Bytes()); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, xxhash.Sum64(buf.Bytes())); err != nil {
		return err
	}
	return bw.Flush()
}

func readAsset(r io.Reader, magic [8]byte, out any) error {
	var header [18]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("%w: short header: %w", ErrCorruptAsset, err)
	}
	if !bytes.Equal(header[:8], magic[:]) {
		return fmt.Errorf("%w: bad magic %q", ErrCorruptAsset, header[:8])
	}
	if v := binary.LittleEndian.Uint16(header[8:10]); v != AssetVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	n := binary.LittleEndian.Uint64(header[10:18])
	if n > maxAssetBody {
		return fmt.Errorf("%w: body length %d", ErrCorruptAsset, n)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(r, int64(n))); err != nil {
		return fmt.Errorf("%w: short body: %w", ErrCorruptAsset, err)
	}
	if uint64(buf.Len()) != n {
		return fmt.Errorf("%w: short body: %d of %d bytes", ErrCorruptAsset, buf.Len(), n)
	}
	body := buf.Bytes()
	var sum uint64
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return fmt.Errorf("%w: missing checksum: %w", ErrCorruptAsset, err)
	}
	if sum != xxhash.Sum64(body) {
		return ErrChecksumMismatch
	}

	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated body", ErrCorruptAsset)
		}
		return fmt.Errorf("%w: %w", ErrCorruptAsset, err)
	}
	return nil
}
