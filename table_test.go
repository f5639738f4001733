package icelake_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/florinutz/icelake"
	"github.com/florinutz/icelake/iceberg"
	"github.com/florinutz/icelake/icelakeerr"
	"github.com/florinutz/icelake/storage"
	"github.com/florinutz/icelake/storage/memory"
	"github.com/florinutz/icelake/testutil"
)

const location = "s3://bucket/warehouse/db/events"

func TestLoad_VersionHintWins(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	fx.Metadata(2, 2000, iceberg.NoSnapshotID)
	fx.Metadata(3, 3000, iceberg.NoSnapshotID)
	fx.Hint("2")

	tbl := icelake.New(mem)
	if err := tbl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	meta, err := tbl.CurrentTableMetadata()
	if err != nil {
		t.Fatalf("CurrentTableMetadata: %v", err)
	}
	if meta.LastUpdatedMS != 2000 {
		t.Errorf("LastUpdatedMS = %d, want 2000 (v2 via hint)", meta.LastUpdatedMS)
	}
	if p, _ := tbl.MetadataPath(); p != "metadata/v2.metadata.json" {
		t.Errorf("MetadataPath = %q, want metadata/v2.metadata.json", p)
	}
}

func TestLoad_VersionHintWhitespace(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	fx.Metadata(7, 7000, iceberg.NoSnapshotID)
	fx.Hint("7\n")

	tbl := icelake.New(mem)
	if err := tbl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Version() != 7000 {
		t.Errorf("Version = %d, want 7000", tbl.Version())
	}
}

func TestLoad_FallbackIsLexical(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	fx.Metadata(2, 2000, iceberg.NoSnapshotID)
	fx.Metadata(10, 10000, iceberg.NoSnapshotID)
	mem.Put("metadata/snap-1.avro", []byte("not metadata"))

	tbl := icelake.New(mem)
	if err := tbl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// "v2.metadata.json" sorts after "v10.metadata.json".
	if tbl.Version() != 2000 {
		t.Errorf("Version = %d, want 2000 (lexically last)", tbl.Version())
	}
}

func TestLoad_MissingHint(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	fx.Metadata(1, 1686911671713, iceberg.NoSnapshotID)
	fx.Metadata(2, 1686911699999, iceberg.NoSnapshotID)

	tbl := icelake.New(mem)
	if err := tbl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	meta, err := tbl.CurrentTableMetadata()
	if err != nil {
		t.Fatalf("CurrentTableMetadata: %v", err)
	}
	if meta.LastUpdatedMS != 1686911699999 {
		t.Errorf("LastUpdatedMS = %d, want 1686911699999", meta.LastUpdatedMS)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(fx *testutil.Table, mem *memory.Backend)
		class   error
		checkAs func(t *testing.T, err error)
	}{
		{
			name:  "empty metadata dir",
			setup: func(*testutil.Table, *memory.Backend) {},
			class: icelakeerr.ErrVersionResolution,
			checkAs: func(t *testing.T, err error) {
				if !errors.Is(err, icelakeerr.ErrNoMetadataFound) {
					t.Errorf("error = %v, want ErrNoMetadataFound", err)
				}
			},
		},
		{
			name: "malformed hint",
			setup: func(fx *testutil.Table, _ *memory.Backend) {
				fx.Metadata(1, 1000, iceberg.NoSnapshotID)
				fx.Hint("two")
			},
			class: icelakeerr.ErrVersionResolution,
			checkAs: func(t *testing.T, err error) {
				var hintErr *icelakeerr.MalformedVersionHintError
				if !errors.As(err, &hintErr) || hintErr.Value != "two" {
					t.Errorf("error = %v, want MalformedVersionHintError for %q", err, "two")
				}
			},
		},
		{
			name: "non utf-8 hint",
			setup: func(_ *testutil.Table, mem *memory.Backend) {
				mem.Put("metadata/version-hint.text", []byte{0xff, 0xfe})
			},
			class: icelakeerr.ErrVersionResolution,
		},
		{
			name: "hint points at missing file",
			setup: func(fx *testutil.Table, _ *memory.Backend) {
				fx.Metadata(1, 1000, iceberg.NoSnapshotID)
				fx.Hint("4")
			},
			class: icelakeerr.ErrStorage,
			checkAs: func(t *testing.T, err error) {
				if !errors.Is(err, storage.ErrNotFound) {
					t.Errorf("error = %v, want wrapped storage.ErrNotFound", err)
				}
				var se *icelakeerr.StorageError
				if !errors.As(err, &se) || se.Path != "metadata/v4.metadata.json" {
					t.Errorf("error = %v, want StorageError naming metadata/v4.metadata.json", err)
				}
			},
		},
		{
			name: "garbage metadata",
			setup: func(_ *testutil.Table, mem *memory.Backend) {
				mem.Put("metadata/v1.metadata.json", []byte("{not json"))
			},
			class: icelakeerr.ErrMetadataDecode,
			checkAs: func(t *testing.T, err error) {
				var de *icelakeerr.MetadataDecodeError
				if !errors.As(err, &de) || de.Path != "metadata/v1.metadata.json" {
					t.Errorf("error = %v, want MetadataDecodeError naming the file", err)
				}
			},
		},
		{
			name: "zero last-updated-ms",
			setup: func(fx *testutil.Table, _ *memory.Backend) {
				fx.Metadata(1, 0, iceberg.NoSnapshotID)
			},
			class: icelakeerr.ErrMetadataDecode,
		},
		{
			name: "listing fails",
			setup: func(_ *testutil.Table, mem *memory.Backend) {
				mem.FailOn("metadata/", errors.New("access denied"))
			},
			class: icelakeerr.ErrStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.New()
			tt.setup(testutil.NewTable(t, mem, location), mem)

			tbl := icelake.New(mem)
			err := tbl.Load(context.Background())
			if !errors.Is(err, tt.class) {
				t.Fatalf("Load error = %v, want class %v", err, tt.class)
			}
			if tt.checkAs != nil {
				tt.checkAs(t, err)
			}
			if tbl.Version() != 0 {
				t.Errorf("Version = %d after failed Load, want 0", tbl.Version())
			}
			if n := len(tbl.Versions()); n != 0 {
				t.Errorf("cache holds %d versions after failed Load, want 0", n)
			}
		})
	}
}

func TestLoad_FailureKeepsPreviousState(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	fx.Metadata(1, 1000, iceberg.NoSnapshotID)
	fx.Hint("1")

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	mem.Put("metadata/v2.metadata.json", []byte("{broken"))
	fx.Hint("2")
	if err := tbl.Load(ctx); !errors.Is(err, icelakeerr.ErrMetadataDecode) {
		t.Fatalf("second Load error = %v, want ErrMetadataDecode", err)
	}

	meta, err := tbl.CurrentTableMetadata()
	if err != nil {
		t.Fatalf("CurrentTableMetadata: %v", err)
	}
	if meta.LastUpdatedMS != 1000 {
		t.Errorf("LastUpdatedMS = %d, want 1000", meta.LastUpdatedMS)
	}
	if loc, ok := tbl.Location(); !ok || loc != location {
		t.Errorf("Location = %q, %v; want %q, true", loc, ok, location)
	}
	if got := tbl.Versions(); len(got) != 1 || got[0] != 1000 {
		t.Errorf("Versions = %v, want [1000]", got)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	fx.Metadata(1, 1000, iceberg.NoSnapshotID)

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	first, _ := tbl.CurrentTableMetadata()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	second, _ := tbl.CurrentTableMetadata()

	if first.LastUpdatedMS != second.LastUpdatedMS || first.Location != second.Location || first.TableUUID != second.TableUUID {
		t.Errorf("metadata changed across reloads: %+v vs %+v", first, second)
	}
	if got := tbl.Versions(); len(got) != 1 {
		t.Errorf("Versions = %v, want a single entry", got)
	}
}

func TestLoad_NewVersionIsCached(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	fx.Metadata(1, 1000, iceberg.NoSnapshotID)
	fx.Hint("1")

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	fx.Metadata(2, 2000, iceberg.NoSnapshotID)
	fx.Hint("2")
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if tbl.Version() != 2000 {
		t.Errorf("Version = %d, want 2000", tbl.Version())
	}
	if got := tbl.Versions(); len(got) != 2 || got[0] != 1000 || got[1] != 2000 {
		t.Errorf("Versions = %v, want [1000 2000]", got)
	}
}

func TestCacheCapacity(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	tbl := icelake.New(mem, icelake.WithCacheCapacity(2))
	ctx := context.Background()

	for v := 1; v <= 4; v++ {
		fx.Metadata(v, int64(v)*1000, iceberg.NoSnapshotID)
		fx.Hint(fmt.Sprint(v))
		if err := tbl.Load(ctx); err != nil {
			t.Fatalf("Load v%d: %v", v, err)
		}
	}
	if got := tbl.Versions(); len(got) != 2 || got[0] != 3000 || got[1] != 4000 {
		t.Errorf("Versions = %v, want [3000 4000]", got)
	}

	// Going back to an older version keeps it even at capacity.
	fx.Hint("1")
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load v1: %v", err)
	}
	if _, err := tbl.CurrentTableMetadata(); err != nil {
		t.Errorf("CurrentTableMetadata after reload of evicted version: %v", err)
	}
}

func TestCacheCapacity_KeepsOutgoingVersion(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	tbl := icelake.New(mem, icelake.WithCacheCapacity(1))
	ctx := context.Background()

	for v := 1; v <= 2; v++ {
		fx.Metadata(v, int64(v)*1000, iceberg.NoSnapshotID)
		fx.Hint(fmt.Sprint(v))
		if err := tbl.Load(ctx); err != nil {
			t.Fatalf("Load v%d: %v", v, err)
		}
	}
	// Readers that picked up v1 before the swap can still resolve it.
	if got := tbl.Versions(); len(got) != 2 || got[0] != 1000 || got[1] != 2000 {
		t.Fatalf("Versions = %v, want [1000 2000]", got)
	}

	fx.Metadata(3, 3000, iceberg.NoSnapshotID)
	fx.Hint("3")
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load v3: %v", err)
	}
	if got := tbl.Versions(); len(got) != 2 || got[0] != 2000 || got[1] != 3000 {
		t.Errorf("Versions = %v, want [2000 3000]", got)
	}
}

func TestPreLoadGuard(t *testing.T) {
	tbl := icelake.New(memory.New())

	if _, err := tbl.CurrentTableMetadata(); !errors.Is(err, icelakeerr.ErrNotLoaded) {
		t.Errorf("CurrentTableMetadata error = %v, want ErrNotLoaded", err)
	}
	if _, err := tbl.CurrentDataFiles(context.Background()); !errors.Is(err, icelakeerr.ErrNotLoaded) {
		t.Errorf("CurrentDataFiles error = %v, want ErrNotLoaded", err)
	}
	if _, err := tbl.RelPath(location + "/metadata/x"); !errors.Is(err, icelakeerr.ErrNotLoaded) {
		t.Errorf("RelPath error = %v, want ErrNotLoaded", err)
	}
	if _, err := tbl.CurrentSnapshot(); !errors.Is(err, icelakeerr.ErrNotLoaded) {
		t.Errorf("CurrentSnapshot error = %v, want ErrNotLoaded", err)
	}
	if _, ok := tbl.Location(); ok {
		t.Error("Location reported loaded before Load")
	}
	if tbl.Version() != 0 {
		t.Errorf("Version = %d, want 0", tbl.Version())
	}
}

func TestRelPath(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	fx.Metadata(1, 1000, iceberg.NoSnapshotID)

	tbl := icelake.New(mem)
	if err := tbl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := tbl.RelPath(location + "/metadata/x")
	if err != nil {
		t.Fatalf("RelPath: %v", err)
	}
	if got != "metadata/x" {
		t.Errorf("RelPath = %q, want %q", got, "metadata/x")
	}

	_, err = tbl.RelPath("s3://other-bucket/metadata/x")
	var pe *icelakeerr.PathNotUnderRootError
	if !errors.As(err, &pe) {
		t.Fatalf("RelPath error = %v, want PathNotUnderRootError", err)
	}
	if pe.Location != location {
		t.Errorf("PathNotUnderRootError.Location = %q, want %q", pe.Location, location)
	}
}

func TestCurrentDataFiles_EndToEnd(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	files := fx.DataFiles(3)
	snap := fx.Snapshot(2, 1700000000000, files)
	fx.Metadata(2, 1700000000000, 2, snap)
	fx.Hint("2")

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := tbl.CurrentDataFiles(ctx)
	if err != nil {
		t.Fatalf("CurrentDataFiles: %v", err)
	}
	if len(got) != len(files) {
		t.Fatalf("got %d data files, want %d", len(got), len(files))
	}
	for i := range files {
		if got[i].FilePath != files[i].FilePath || got[i].RecordCount != files[i].RecordCount {
			t.Errorf("file %d = %s (%d rows), want %s (%d rows)",
				i, got[i].FilePath, got[i].RecordCount, files[i].FilePath, files[i].RecordCount)
		}
	}
}

func TestCurrentDataFiles_FirstSnapshotMatchWins(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	first := fx.DataFiles(2)
	second := fx.DataFiles(3)
	fx.Metadata(1, 1000, 5, fx.Snapshot(5, 1000, first), fx.Snapshot(5, 2000, second))

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap, err := tbl.CurrentSnapshot()
	if err != nil {
		t.Fatalf("CurrentSnapshot: %v", err)
	}
	if snap.TimestampMS != 1000 {
		t.Errorf("CurrentSnapshot timestamp = %d, want the first listed snapshot (1000)", snap.TimestampMS)
	}
	got, err := tbl.CurrentDataFiles(ctx)
	if err != nil {
		t.Fatalf("CurrentDataFiles: %v", err)
	}
	if len(got) != len(first) {
		t.Fatalf("got %d data files, want %d from the first snapshot", len(got), len(first))
	}
	for i := range first {
		if got[i].FilePath != first[i].FilePath {
			t.Errorf("file %d = %s, want %s", i, got[i].FilePath, first[i].FilePath)
		}
	}
}

func TestDataFiles_ManifestOrder(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	first := fx.DataFiles(2)
	second := fx.DataFiles(3)
	snap := fx.Snapshot(5, 1700000000000, first, second)
	fx.Metadata(1, 1700000000000, 5, snap)

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := append(append([]iceberg.DataFile{}, first...), second...)
	var got []string
	for f, err := range tbl.DataFiles(ctx) {
		if err != nil {
			t.Fatalf("DataFiles: %v", err)
		}
		got = append(got, f.FilePath)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d files, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i].FilePath {
			t.Errorf("file %d = %s, want %s", i, got[i], want[i].FilePath)
		}
	}
}

func TestDataFiles_StopEarly(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	snap := fx.Snapshot(1, 1000, fx.DataFiles(2), fx.DataFiles(2))
	fx.Metadata(1, 1000, 1, snap)

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Break the second manifest; stopping after the first file must not
	// reach it.
	list, _ := iceberg.DecodeManifestList(mustRead(t, mem, snap.ManifestList))
	rel, _ := tbl.RelPath(list[1].ManifestPath)
	mem.Put(rel, []byte("garbage"))

	n := 0
	for _, err := range tbl.DataFiles(ctx) {
		if err != nil {
			t.Fatalf("DataFiles: %v", err)
		}
		n++
		break
	}
	if n != 1 {
		t.Errorf("pulled %d files, want 1", n)
	}

	if _, err := tbl.CurrentDataFiles(ctx); !errors.Is(err, icelakeerr.ErrManifestDecode) {
		t.Errorf("CurrentDataFiles error = %v, want ErrManifestDecode", err)
	}
}

func TestCurrentDataFiles_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, fx *testutil.Table, mem *memory.Backend)
		check func(t *testing.T, err error)
	}{
		{
			name: "no current snapshot",
			setup: func(t *testing.T, fx *testutil.Table, _ *memory.Backend) {
				fx.Metadata(1, 1000, iceberg.NoSnapshotID, fx.Snapshot(1, 1000, fx.DataFiles(1)))
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, icelakeerr.ErrNoCurrentSnapshot) {
					t.Errorf("error = %v, want ErrNoCurrentSnapshot", err)
				}
			},
		},
		{
			name: "no snapshots",
			setup: func(t *testing.T, fx *testutil.Table, _ *memory.Backend) {
				fx.Metadata(1, 1000, 9)
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, icelakeerr.ErrNoSnapshots) {
					t.Errorf("error = %v, want ErrNoSnapshots", err)
				}
			},
		},
		{
			name: "snapshot not found",
			setup: func(t *testing.T, fx *testutil.Table, _ *memory.Backend) {
				fx.Metadata(1, 1000, 9, fx.Snapshot(1, 1000, fx.DataFiles(1)))
			},
			check: func(t *testing.T, err error) {
				var nf *icelakeerr.SnapshotNotFoundError
				if !errors.As(err, &nf) || nf.ID != 9 {
					t.Errorf("error = %v, want SnapshotNotFoundError{9}", err)
				}
				if !errors.Is(err, icelakeerr.ErrSnapshotResolution) {
					t.Errorf("error = %v, want class ErrSnapshotResolution", err)
				}
			},
		},
		{
			name: "manifest list outside location",
			setup: func(t *testing.T, fx *testutil.Table, _ *memory.Backend) {
				snap := fx.Snapshot(1, 1000, fx.DataFiles(1))
				snap.ManifestList = "s3://elsewhere/snap-1.avro"
				fx.Metadata(1, 1000, 1, snap)
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, icelakeerr.ErrPath) {
					t.Errorf("error = %v, want ErrPath", err)
				}
			},
		},
		{
			name: "manifest list missing",
			setup: func(t *testing.T, fx *testutil.Table, _ *memory.Backend) {
				snap := fx.Snapshot(1, 1000, fx.DataFiles(1))
				snap.ManifestList = fx.Abs("metadata/snap-missing.avro")
				fx.Metadata(1, 1000, 1, snap)
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, icelakeerr.ErrStorage) || !errors.Is(err, storage.ErrNotFound) {
					t.Errorf("error = %v, want StorageError wrapping ErrNotFound", err)
				}
			},
		},
		{
			name: "manifest list garbage",
			setup: func(t *testing.T, fx *testutil.Table, mem *memory.Backend) {
				mem.Put("metadata/snap-bad.avro", []byte("garbage"))
				snap := iceberg.Snapshot{SnapshotID: 1, TimestampMS: 1000, ManifestList: fx.Abs("metadata/snap-bad.avro")}
				fx.Metadata(1, 1000, 1, snap)
			},
			check: func(t *testing.T, err error) {
				var de *icelakeerr.ManifestDecodeError
				if !errors.As(err, &de) || de.Kind != icelakeerr.ManifestKindList || de.Path != "metadata/snap-bad.avro" {
					t.Errorf("error = %v, want ManifestDecodeError for the manifest list", err)
				}
			},
		},
		{
			name: "manifest read fails",
			setup: func(t *testing.T, fx *testutil.Table, mem *memory.Backend) {
				snap := fx.Snapshot(1, 1000, fx.DataFiles(1))
				fx.Metadata(1, 1000, 1, snap)
				list, err := iceberg.DecodeManifestList(mustRead(t, mem, snap.ManifestList))
				if err != nil {
					t.Fatalf("decode list: %v", err)
				}
				mem.FailOn(list[0].ManifestPath[len(location)+1:], errors.New("connection reset"))
			},
			check: func(t *testing.T, err error) {
				var se *icelakeerr.StorageError
				if !errors.As(err, &se) || se.Op != "read" {
					t.Errorf("error = %v, want StorageError on read", err)
				}
			},
		},
		{
			name: "manifest garbage",
			setup: func(t *testing.T, fx *testutil.Table, mem *memory.Backend) {
				mem.Put("metadata/bad-m0.avro", []byte("garbage"))
				list := putManifestList(t, mem, "metadata/snap-1.avro", fx.Abs("metadata/bad-m0.avro"))
				snap := iceberg.Snapshot{SnapshotID: 1, TimestampMS: 1000, ManifestList: fx.Abs(list)}
				fx.Metadata(1, 1000, 1, snap)
			},
			check: func(t *testing.T, err error) {
				var de *icelakeerr.ManifestDecodeError
				if !errors.As(err, &de) || de.Kind != icelakeerr.ManifestKindFile || de.Path != "metadata/bad-m0.avro" {
					t.Errorf("error = %v, want ManifestDecodeError for the manifest file", err)
				}
				if !errors.Is(err, icelakeerr.ErrManifestDecode) {
					t.Errorf("error = %v, want class ErrManifestDecode", err)
				}
			},
		},
		{
			name: "manifest outside location",
			setup: func(t *testing.T, fx *testutil.Table, mem *memory.Backend) {
				list := putManifestList(t, mem, "metadata/snap-1.avro", "s3://elsewhere/metadata/m0.avro")
				snap := iceberg.Snapshot{SnapshotID: 1, TimestampMS: 1000, ManifestList: fx.Abs(list)}
				fx.Metadata(1, 1000, 1, snap)
			},
			check: func(t *testing.T, err error) {
				var pe *icelakeerr.PathNotUnderRootError
				if !errors.As(err, &pe) || pe.Path != "s3://elsewhere/metadata/m0.avro" {
					t.Errorf("error = %v, want PathNotUnderRootError for the manifest", err)
				}
				if !errors.Is(err, icelakeerr.ErrPath) {
					t.Errorf("error = %v, want class ErrPath", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.New()
			tt.setup(t, testutil.NewTable(t, mem, location), mem)

			tbl := icelake.New(mem)
			ctx := context.Background()
			if err := tbl.Load(ctx); err != nil {
				t.Fatalf("Load: %v", err)
			}
			files, err := tbl.CurrentDataFiles(ctx)
			if err == nil {
				t.Fatalf("CurrentDataFiles returned %d files, want error", len(files))
			}
			if files != nil {
				t.Errorf("CurrentDataFiles returned partial result %v", files)
			}
			tt.check(t, err)

			// The walk is read-only: metadata stays current.
			if _, err := tbl.CurrentTableMetadata(); err != nil {
				t.Errorf("CurrentTableMetadata after failed walk: %v", err)
			}
		})
	}
}

func TestDataFiles_V1EmbeddedManifests(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	files := fx.DataFiles(2)
	m := fx.Manifest(3, files)
	snap := iceberg.Snapshot{SnapshotID: 3, TimestampMS: 1000, Manifests: []string{m.ManifestPath}}
	meta := fx.Metadata(1, 1000, 3, snap)
	meta.FormatVersion = 1
	fx.PutMetadata("v1.metadata.json", meta)

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := tbl.CurrentDataFiles(ctx)
	if err != nil {
		t.Fatalf("CurrentDataFiles: %v", err)
	}
	if len(got) != 2 || got[0].FilePath != files[0].FilePath {
		t.Errorf("got %v, want the two embedded manifest files", got)
	}
}

func TestReadFile(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	df := fx.ParquetDataFile("part-0.parquet", []iceberg.SampleRow{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}})
	fx.Metadata(1, 1000, 1, fx.Snapshot(1, 1000, []iceberg.DataFile{df}))

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	data, err := tbl.ReadFile(ctx, df.FilePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	rows, err := iceberg.ParquetRowCount(data)
	if err != nil {
		t.Fatalf("ParquetRowCount: %v", err)
	}
	if rows != 2 {
		t.Errorf("rows = %d, want 2", rows)
	}
}

func TestConcurrentReadersAndLoads(t *testing.T) {
	mem := memory.New()
	fx := testutil.NewTable(t, mem, location)
	snap := fx.Snapshot(1, 1000, fx.DataFiles(3))
	fx.Metadata(1, 1000, 1, snap)

	tbl := icelake.New(mem)
	ctx := context.Background()
	if err := tbl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- tbl.Load(ctx)
		}()
		go func() {
			defer wg.Done()
			files, err := tbl.CurrentDataFiles(ctx)
			if err == nil && len(files) != 3 {
				err = fmt.Errorf("got %d files, want 3", len(files))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_LocalDir(t *testing.T) {
	dir := t.TempDir()
	fx := testutil.NewTable(t, testutil.Dir(dir), dir)
	fx.Metadata(1, 1000, 1, fx.Snapshot(1, 1000, fx.DataFiles(2)))
	fx.Hint("1")

	ctx := context.Background()
	for _, loc := range []string{dir, "file://" + dir} {
		tbl, err := icelake.Open(ctx, loc)
		if err != nil {
			t.Fatalf("Open(%s): %v", loc, err)
		}
		files, err := tbl.CurrentDataFiles(ctx)
		if err != nil {
			t.Fatalf("CurrentDataFiles: %v", err)
		}
		if len(files) != 2 {
			t.Errorf("got %d files, want 2", len(files))
		}
	}
}

func TestOpen_MissingDir(t *testing.T) {
	_, err := icelake.Open(context.Background(), t.TempDir()+"/absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Open error = %v, want ErrNotFound", err)
	}
}

// putManifestList writes a manifest list at rel naming manifestPaths and
// returns rel.
func putManifestList(t *testing.T, mem *memory.Backend, rel string, manifestPaths ...string) string {
	t.Helper()
	list := make([]iceberg.ManifestFile, len(manifestPaths))
	for i, p := range manifestPaths {
		list[i] = iceberg.ManifestFile{ManifestPath: p, AddedSnapshotID: 1}
	}
	data, err := iceberg.EncodeManifestList(list)
	if err != nil {
		t.Fatalf("encode manifest list: %v", err)
	}
	mem.Put(rel, data)
	return rel
}

func mustRead(t *testing.T, mem *memory.Backend, abs string) []byte {
	t.Helper()
	data, err := mem.Read(context.Background(), abs[len(location)+1:])
	if err != nil {
		t.Fatalf("read %s: %v", abs, err)
	}
	return data
}
