// Package testutil provides fixture tables importable from any test package.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/florinutz/icelake/iceberg"
)

// Writer stores fixture objects. *memory.Backend satisfies it, and so does
// Dir.
type Writer interface {
	Put(path string, data []byte)
}

// Dir writes fixture objects below a local directory.
type Dir string

// Put writes data to d/path, creating parent directories. It panics on
// error; fixtures are only written from tests.
func (d Dir) Put(path string, data []byte) {
	p := filepath.Join(string(d), filepath.FromSlash(strings.TrimPrefix(path, "/")))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		panic("testutil.Dir.Put: " + err.Error())
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		panic("testutil.Dir.Put: " + err.Error())
	}
}

// Table writes the files of one fixture table. Paths recorded inside the
// files are absolute (Location + "/..."), paths handed to the Writer are
// relative to the table root, as a reader's backend sees them.
type Table struct {
	tb       testing.TB
	w        Writer
	Location string
	UUID     string
}

// NewTable returns a builder for a table at location.
func NewTable(tb testing.TB, w Writer, location string) *Table {
	tb.Helper()
	return &Table{tb: tb, w: w, Location: location, UUID: uuid.NewString()}
}

// Abs returns the absolute form of a table-relative path.
func (t *Table) Abs(rel string) string {
	return t.Location + "/" + rel
}

// DataFiles returns n data file descriptors under data/ with record counts
// 1..n. Nothing is written.
func (t *Table) DataFiles(n int) []iceberg.DataFile {
	files := make([]iceberg.DataFile, n)
	for i := range files {
		files[i] = iceberg.DataFile{
			FilePath:      t.Abs(fmt.Sprintf("data/%05d-%s.parquet", i, uuid.NewString())),
			FileFormat:    "PARQUET",
			RecordCount:   int64(i + 1),
			FileSizeBytes: int64(1024 * (i + 1)),
		}
	}
	return files
}

// ParquetDataFile writes a real Parquet file holding rows under data/name
// and returns its descriptor.
func (t *Table) ParquetDataFile(name string, rows []iceberg.SampleRow) iceberg.DataFile {
	t.tb.Helper()
	data, df, err := iceberg.EncodeSampleDataFile(rows)
	if err != nil {
		t.tb.Fatalf("encode data file %s: %v", name, err)
	}
	rel := "data/" + name
	t.w.Put(rel, data)
	df.FilePath = t.Abs(rel)
	return df
}

// Manifest writes one manifest file listing files as added entries of
// snapshotID and returns its manifest list record.
func (t *Table) Manifest(snapshotID int64, files []iceberg.DataFile) iceberg.ManifestFile {
	t.tb.Helper()
	entries := make([]iceberg.ManifestEntry, len(files))
	var rows int64
	for i, f := range files {
		id := snapshotID
		entries[i] = iceberg.ManifestEntry{Status: iceberg.ManifestEntryStatusAdded, SnapshotID: &id, DataFile: f}
		rows += f.RecordCount
	}
	data, err := iceberg.EncodeManifest(entries, iceberg.SampleSchema(), 0)
	if err != nil {
		t.tb.Fatalf("encode manifest: %v", err)
	}
	rel := fmt.Sprintf("metadata/%s-m0.avro", uuid.NewString())
	t.w.Put(rel, data)
	return iceberg.ManifestFile{
		ManifestPath:        t.Abs(rel),
		ManifestLength:      int64(len(data)),
		AddedSnapshotID:     snapshotID,
		AddedDataFilesCount: len(files),
		AddedRowsCount:      rows,
	}
}

// Snapshot writes one manifest per element of manifests plus a manifest
// list pointing at them, in order, and returns the snapshot.
func (t *Table) Snapshot(id int64, timestampMS int64, manifests ...[]iceberg.DataFile) iceberg.Snapshot {
	t.tb.Helper()
	list := make([]iceberg.ManifestFile, len(manifests))
	for i, files := range manifests {
		list[i] = t.Manifest(id, files)
	}
	data, err := iceberg.EncodeManifestList(list)
	if err != nil {
		t.tb.Fatalf("encode manifest list: %v", err)
	}
	rel := fmt.Sprintf("metadata/snap-%d-1-%s.avro", id, uuid.NewString())
	t.w.Put(rel, data)
	return iceberg.Snapshot{
		SnapshotID:   id,
		TimestampMS:  timestampMS,
		ManifestList: t.Abs(rel),
		Summary:      map[string]string{"operation": "append"},
	}
}

// Metadata writes metadata/v{version}.metadata.json. current is the current
// snapshot id, or iceberg.NoSnapshotID.
func (t *Table) Metadata(version int, lastUpdatedMS int64, current int64, snapshots ...iceberg.Snapshot) *iceberg.TableMetadata {
	t.tb.Helper()
	meta := t.metadata(lastUpdatedMS, current, snapshots)
	t.PutMetadata(iceberg.MetadataFileName(version), meta)
	return meta
}

// PutMetadata writes meta under metadata/name.
func (t *Table) PutMetadata(name string, meta *iceberg.TableMetadata) {
	t.tb.Helper()
	data, err := iceberg.EncodeTableMetadata(meta)
	if err != nil {
		t.tb.Fatalf("encode metadata: %v", err)
	}
	t.w.Put("metadata/"+name, data)
}

func (t *Table) metadata(lastUpdatedMS int64, current int64, snapshots []iceberg.Snapshot) *iceberg.TableMetadata {
	cur := current
	meta := &iceberg.TableMetadata{
		FormatVersion:     2,
		TableUUID:         t.UUID,
		Location:          t.Location,
		LastUpdatedMS:     lastUpdatedMS,
		LastColumnID:      3,
		Schemas:           []iceberg.Schema{*iceberg.SampleSchema()},
		PartitionSpecs:    []iceberg.PartitionSpec{{SpecID: 0, Fields: []iceberg.PartitionField{}}},
		CurrentSnapshotID: &cur,
		Snapshots:         snapshots,
		SortOrders:        []iceberg.SortOrder{{OrderID: 0, Fields: []iceberg.SortField{}}},
		Properties:        map[string]string{"write.format.default": "parquet"},
	}
	for _, s := range snapshots {
		meta.SnapshotLog = append(meta.SnapshotLog, iceberg.SnapshotLogEntry{
			SnapshotID:  s.SnapshotID,
			TimestampMS: s.TimestampMS,
		})
		if s.SequenceNumber > meta.LastSeqNumber {
			meta.LastSeqNumber = s.SequenceNumber
		}
	}
	return meta
}

// Hint writes metadata/version-hint.text with content as is.
func (t *Table) Hint(content string) {
	t.w.Put("metadata/version-hint.text", []byte(content))
}
