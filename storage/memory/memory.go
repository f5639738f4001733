// Package memory implements an in-process storage.Backend, used for tests
// and fixtures.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/florinutz/icelake/storage"
)

// Backend keeps objects in a map. It is safe for concurrent use.
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	failOn  map[string]error
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
		failOn:  make(map[string]error),
	}
}

// Name returns "memory".
func (b *Backend) Name() string { return "memory" }

// Put stores data at p, replacing any previous object.
func (b *Backend) Put(p string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[clean(p)] = append([]byte(nil), data...)
}

// Delete removes the object at p, if any.
func (b *Backend) Delete(p string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, clean(p))
}

// FailOn makes every operation touching p return err. A nil err clears it.
// For List, p is matched against the prefix argument.
func (b *Backend) FailOn(p string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failOn, clean(p))
		return
	}
	b.failOn[clean(p)] = err
}

// Len returns the number of stored objects.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	p = clean(p)
	if err := b.failOn[p]; err != nil {
		return false, err
	}
	_, ok := b.objects[p]
	return ok, nil
}

func (b *Backend) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	p = clean(p)
	if err := b.failOn[p]; err != nil {
		return nil, err
	}
	data, ok := b.objects[p]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", p, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// List mirrors the local backend: only objects directly inside the
// directory part of prefix, sorted by path.
func (b *Backend) List(ctx context.Context, prefix string) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	prefix = strings.TrimPrefix(prefix, "/")
	if err := b.failOn[prefix]; err != nil {
		return nil, err
	}

	dir := prefix
	if !strings.HasSuffix(prefix, "/") {
		dir = path.Dir(prefix) + "/"
		if dir == "./" {
			dir = ""
		}
	}

	var out []storage.Entry
	for p, data := range b.objects {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if strings.Contains(strings.TrimPrefix(p, dir), "/") {
			continue
		}
		out = append(out, storage.Entry{Path: p, Size: int64(len(data))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func clean(p string) string {
	return strings.TrimPrefix(p, "/")
}
