// Package storage defines the byte-addressable backend icelake reads tables
// from, plus decorators that add logging and metrics to any backend.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is wrapped by every backend when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Entry is a single object returned by Backend.List.
type Entry struct {
	Path string // relative to the backend root
	Size int64
}

// Backend abstracts read access to a rooted object namespace. Paths are
// relative to the root and use "/" as separator.
type Backend interface {
	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Read returns the full content of the object at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns the objects whose path starts with prefix, in backend order.
	List(ctx context.Context, prefix string) ([]Entry, error)
}

// Named is implemented by backends that report a short name for logs and
// metric labels ("local", "s3", "memory").
type Named interface {
	Name() string
}

// NameOf returns b's name, or "unknown".
func NameOf(b Backend) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return "unknown"
}
