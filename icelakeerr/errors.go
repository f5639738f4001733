// Package icelakeerr defines the error values returned by icelake.
//
// Every error belongs to one class sentinel (ErrNotLoaded, ErrVersionResolution,
// ErrMetadataDecode, ErrSnapshotResolution, ErrManifestDecode, ErrPath,
// ErrStorage) so callers can branch with errors.Is without knowing the
// concrete type.
package icelakeerr

import (
	"errors"
	"fmt"
)

// Class sentinels.
var (
	ErrNotLoaded          = errors.New("table metadata not loaded yet")
	ErrVersionResolution  = errors.New("version resolution failed")
	ErrMetadataDecode     = errors.New("table metadata decode failed")
	ErrSnapshotResolution = errors.New("snapshot resolution failed")
	ErrManifestDecode     = errors.New("manifest decode failed")
	ErrPath               = errors.New("path error")
	ErrStorage            = errors.New("storage error")
)

// ErrNoMetadataFound is returned when the metadata directory holds no
// *.metadata.json file and there is no version hint.
var ErrNoMetadataFound = &classError{msg: "no table metadata found", class: ErrVersionResolution}

// ErrNoCurrentSnapshot is returned when the table metadata has no current
// snapshot id.
var ErrNoCurrentSnapshot = &classError{msg: "current snapshot id is empty", class: ErrSnapshotResolution}

// ErrNoSnapshots is returned when the table metadata lists no snapshots.
var ErrNoSnapshots = &classError{msg: "snapshots is empty", class: ErrSnapshotResolution}

// ErrMetadataNotFound is returned when the current version is missing from
// the metadata cache.
var ErrMetadataNotFound = &classError{msg: "table metadata not found", class: ErrNotLoaded}

type classError struct {
	msg   string
	class error
}

func (e *classError) Error() string { return e.msg }

func (e *classError) Is(target error) bool { return target == e.class }

// MalformedVersionHintError indicates that metadata/version-hint.text exists
// but does not hold a non-negative base-10 integer.
type MalformedVersionHintError struct {
	Path  string
	Value string
	Err   error
}

func (e *MalformedVersionHintError) Error() string {
	return fmt.Sprintf("parse version hint %s (%q) failed: %v", e.Path, e.Value, e.Err)
}

func (e *MalformedVersionHintError) Unwrap() error { return e.Err }

func (e *MalformedVersionHintError) Is(target error) bool { return target == ErrVersionResolution }

// MetadataDecodeError wraps a codec failure on a table metadata file.
type MetadataDecodeError struct {
	Path string
	Err  error
}

func (e *MetadataDecodeError) Error() string {
	return fmt.Sprintf("decode table metadata %s: %v", e.Path, e.Err)
}

func (e *MetadataDecodeError) Unwrap() error { return e.Err }

func (e *MetadataDecodeError) Is(target error) bool { return target == ErrMetadataDecode }

// SnapshotNotFoundError indicates that the current snapshot id matches no
// snapshot in the table metadata.
type SnapshotNotFoundError struct {
	ID int64
}

func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("snapshot with id %d is not found", e.ID)
}

func (e *SnapshotNotFoundError) Is(target error) bool { return target == ErrSnapshotResolution }

// ManifestKind names the level of the manifest chain that failed to decode.
type ManifestKind string

const (
	ManifestKindList ManifestKind = "manifest list"
	ManifestKindFile ManifestKind = "manifest"
)

// ManifestDecodeError wraps a codec failure on a manifest list or manifest file.
type ManifestDecodeError struct {
	Kind ManifestKind
	Path string
	Err  error
}

func (e *ManifestDecodeError) Error() string {
	return fmt.Sprintf("decode %s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ManifestDecodeError) Unwrap() error { return e.Err }

func (e *ManifestDecodeError) Is(target error) bool { return target == ErrManifestDecode }

// PathNotUnderRootError indicates that a path recorded in metadata does not
// start with the table location.
type PathNotUnderRootError struct {
	Path     string
	Location string
}

func (e *PathNotUnderRootError) Error() string {
	return fmt.Sprintf("path %s does not start with table location %s", e.Path, e.Location)
}

func (e *PathNotUnderRootError) Is(target error) bool { return target == ErrPath }

// StorageError wraps a failure reported by a storage backend.
type StorageError struct {
	Op   string // "exists", "read", "list"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
