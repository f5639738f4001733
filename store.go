package icelake

import (
	"context"
	"errors"
	"slices"

	"github.com/zhangyunhao116/skipmap"

	"github.com/florinutz/icelake/iceberg"
	"github.com/florinutz/icelake/icelakeerr"
	"github.com/florinutz/icelake/metrics"
	"github.com/florinutz/icelake/storage"
)

// metadataStore caches decoded table metadata keyed by last-updated-ms.
// Keys are kept ordered so a bounded store can evict the oldest versions.
type metadataStore struct {
	entries  *skipmap.OrderedMap[int64, *iceberg.TableMetadata]
	capacity int // 0 means unbounded
}

func newMetadataStore(capacity int) *metadataStore {
	return &metadataStore{
		entries:  skipmap.New[int64, *iceberg.TableMetadata](),
		capacity: capacity,
	}
}

// fetch reads and decodes the metadata file at path. It does not touch the
// cache.
func fetch(ctx context.Context, backend storage.Backend, path string) (*iceberg.TableMetadata, error) {
	data, err := backend.Read(ctx, path)
	if err != nil {
		return nil, &icelakeerr.StorageError{Op: "read", Path: path, Err: err}
	}
	meta, err := iceberg.DecodeTableMetadata(data)
	if err != nil {
		return nil, &icelakeerr.MetadataDecodeError{Path: path, Err: err}
	}
	return meta, nil
}

// put inserts meta under its own version, overwriting an existing entry.
// Versions in keep are never evicted.
func (s *metadataStore) put(meta *iceberg.TableMetadata, keep ...int64) {
	s.entries.Store(meta.LastUpdatedMS, meta)
	if s.capacity > 0 {
		s.evict(keep)
	}
	metrics.MetadataCacheEntries.Set(float64(s.entries.Len()))
}

func (s *metadataStore) evict(keep []int64) {
	excess := s.entries.Len() - s.capacity
	if excess <= 0 {
		return
	}
	var victims []int64
	s.entries.Range(func(version int64, _ *iceberg.TableMetadata) bool {
		if !slices.Contains(keep, version) {
			victims = append(victims, version)
		}
		return len(victims) < excess
	})
	for _, v := range victims {
		if s.entries.Delete(v) {
			metrics.MetadataCacheEvictions.Inc()
		}
	}
}

func (s *metadataStore) get(version int64) (*iceberg.TableMetadata, error) {
	if version == 0 {
		return nil, icelakeerr.ErrNotLoaded
	}
	meta, ok := s.entries.Load(version)
	if !ok {
		return nil, icelakeerr.ErrMetadataNotFound
	}
	return meta, nil
}

// versions returns the cached versions in ascending order.
func (s *metadataStore) versions() []int64 {
	out := make([]int64, 0, s.entries.Len())
	s.entries.Range(func(version int64, _ *iceberg.TableMetadata) bool {
		out = append(out, version)
		return true
	})
	return out
}

func (s *metadataStore) size() int { return s.entries.Len() }

var errZeroVersion = errors.New("table metadata has last-updated-ms 0")
