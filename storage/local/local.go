// Package local implements storage.Backend on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/florinutz/icelake/storage"
)

// Backend reads objects from a directory on the local filesystem.
type Backend struct {
	root string
}

// New creates a backend rooted at dir. The directory must exist.
func New(dir string) (*Backend, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("root %s: %w", abs, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	return &Backend{root: abs}, nil
}

// Name returns "local".
func (b *Backend) Name() string { return "local" }

// Root returns the absolute root directory.
func (b *Backend) Root() string { return b.root }

func (b *Backend) resolve(p string) string {
	return filepath.Join(b.root, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(b.resolve(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}

func (b *Backend) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.resolve(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", p, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// List returns the files directly inside the directory part of prefix whose
// relative path starts with prefix. Subdirectories are not descended into.
// Entries are returned sorted by name, as os.ReadDir does.
func (b *Backend) List(ctx context.Context, prefix string) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = strings.TrimPrefix(prefix, "/")
	dir := prefix
	if !strings.HasSuffix(prefix, "/") {
		dir = path.Dir(prefix)
		if dir == "." {
			dir = ""
		}
	}

	dirEntries, err := os.ReadDir(b.resolve(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	var out []storage.Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		rel := path.Join(dir, de.Name())
		if !strings.HasPrefix(rel, prefix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", rel, err)
		}
		out = append(out, storage.Entry{Path: rel, Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
