package icelake

import (
	"context"
	"iter"

	"github.com/florinutz/icelake/iceberg"
	"github.com/florinutz/icelake/icelakeerr"
	"github.com/florinutz/icelake/metrics"
	"github.com/florinutz/icelake/storage"
)

// currentSnapshot returns the snapshot meta.CurrentSnapshotID points at.
// Snapshots are scanned in order and the first id match wins.
func currentSnapshot(meta *iceberg.TableMetadata) (*iceberg.Snapshot, error) {
	id, ok := meta.CurrentSnapshot()
	if !ok {
		return nil, icelakeerr.ErrNoCurrentSnapshot
	}
	if len(meta.Snapshots) == 0 {
		return nil, icelakeerr.ErrNoSnapshots
	}
	for i := range meta.Snapshots {
		if meta.Snapshots[i].SnapshotID == id {
			return &meta.Snapshots[i], nil
		}
	}
	return nil, &icelakeerr.SnapshotNotFoundError{ID: id}
}

// scanner walks the manifest chain of one snapshot.
type scanner struct {
	backend  storage.Backend
	location string
}

// dataFiles yields every data file of the current snapshot: for each
// manifest in the manifest list, for each entry in that manifest. Nothing is
// read until the first pull. The first error is yielded once and the walk
// stops. The sequence can be ranged over only once.
func dataFiles(ctx context.Context, meta *iceberg.TableMetadata, backend storage.Backend) iter.Seq2[iceberg.DataFile, error] {
	s := scanner{backend: backend, location: meta.Location}
	done := false
	return func(yield func(iceberg.DataFile, error) bool) {
		if done {
			return
		}
		done = true

		snap, err := currentSnapshot(meta)
		if err != nil {
			yield(iceberg.DataFile{}, err)
			return
		}

		manifests, err := s.manifestPaths(ctx, snap)
		if err != nil {
			yield(iceberg.DataFile{}, err)
			return
		}

		for _, mp := range manifests {
			entries, err := s.readManifest(ctx, mp)
			if err != nil {
				yield(iceberg.DataFile{}, err)
				return
			}
			for _, e := range entries {
				metrics.DataFilesResolved.Inc()
				if !yield(e.DataFile, nil) {
					return
				}
			}
		}
	}
}

// manifestPaths returns the absolute manifest paths of snap in manifest list
// order. Format v1 snapshots may embed the list directly.
func (s scanner) manifestPaths(ctx context.Context, snap *iceberg.Snapshot) ([]string, error) {
	if snap.ManifestList == "" {
		return snap.Manifests, nil
	}

	rel, err := relativize(snap.ManifestList, s.location)
	if err != nil {
		return nil, err
	}
	data, err := s.backend.Read(ctx, rel)
	if err != nil {
		return nil, &icelakeerr.StorageError{Op: "read", Path: rel, Err: err}
	}
	metrics.ManifestsRead.WithLabelValues("list").Inc()

	files, err := iceberg.DecodeManifestList(data)
	if err != nil {
		return nil, &icelakeerr.ManifestDecodeError{Kind: icelakeerr.ManifestKindList, Path: rel, Err: err}
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.ManifestPath
	}
	return paths, nil
}

func (s scanner) readManifest(ctx context.Context, manifestPath string) ([]iceberg.ManifestEntry, error) {
	rel, err := relativize(manifestPath, s.location)
	if err != nil {
		return nil, err
	}
	data, err := s.backend.Read(ctx, rel)
	if err != nil {
		return nil, &icelakeerr.StorageError{Op: "read", Path: rel, Err: err}
	}
	metrics.ManifestsRead.WithLabelValues("manifest").Inc()

	_, entries, err := iceberg.DecodeManifest(data)
	if err != nil {
		return nil, &icelakeerr.ManifestDecodeError{Kind: icelakeerr.ManifestKindFile, Path: rel, Err: err}
	}
	return entries, nil
}

// collect drains seq, returning nil and the first error on failure.
func collect(seq iter.Seq2[iceberg.DataFile, error]) ([]iceberg.DataFile, error) {
	var out []iceberg.DataFile
	for f, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
