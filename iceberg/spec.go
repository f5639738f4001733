// Package iceberg holds the Iceberg table format types and the codecs that
// turn metadata, manifest list, manifest and data file bytes into them.
//
// See: https://iceberg.apache.org/spec/
package iceberg

import "encoding/json"

// NoSnapshotID is the value writers put in current-snapshot-id when a table
// has no snapshot yet.
const NoSnapshotID int64 = -1

// TableMetadata is the top-level Iceberg table metadata (format v1 and v2).
// Fields the reader does not interpret are carried through unchanged.
type TableMetadata struct {
	FormatVersion      int                `json:"format-version"`
	TableUUID          string             `json:"table-uuid,omitempty"`
	Location           string             `json:"location"`
	LastSeqNumber      int64              `json:"last-sequence-number,omitempty"`
	LastUpdatedMS      int64              `json:"last-updated-ms"`
	LastColumnID       int                `json:"last-column-id"`
	Schema             *Schema            `json:"schema,omitempty"` // v1 only
	Schemas            []Schema           `json:"schemas,omitempty"`
	CurrentSchemaID    int                `json:"current-schema-id"`
	PartitionSpec      []PartitionField   `json:"partition-spec,omitempty"` // v1 only
	PartitionSpecs     []PartitionSpec    `json:"partition-specs,omitempty"`
	DefaultSpecID      int                `json:"default-spec-id"`
	LastPartitionID    int                `json:"last-partition-id,omitempty"`
	CurrentSnapshotID  *int64             `json:"current-snapshot-id,omitempty"`
	Snapshots          []Snapshot         `json:"snapshots,omitempty"`
	SnapshotLog        []SnapshotLogEntry `json:"snapshot-log,omitempty"`
	MetadataLog        []MetadataLogEntry `json:"metadata-log,omitempty"`
	SortOrders         []SortOrder        `json:"sort-orders,omitempty"`
	DefaultSortOrderID int                `json:"default-sort-order-id"`
	Properties         map[string]string  `json:"properties,omitempty"`
}

// CurrentSnapshot returns the current snapshot id, or false when the table
// has none (field absent or set to NoSnapshotID).
func (m *TableMetadata) CurrentSnapshot() (int64, bool) {
	if m.CurrentSnapshotID == nil || *m.CurrentSnapshotID == NoSnapshotID {
		return 0, false
	}
	return *m.CurrentSnapshotID, true
}

// Schema defines the columns of an Iceberg table.
type Schema struct {
	Type               string  `json:"type,omitempty"` // always "struct"
	SchemaID           int     `json:"schema-id"`
	IdentifierFieldIDs []int   `json:"identifier-field-ids,omitempty"`
	Fields             []Field `json:"fields"`
}

// Field is a single column in an Iceberg schema. Type is kept raw because
// nested types (struct, list, map) are JSON objects rather than strings.
type Field struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Type     json.RawMessage `json:"type"`
	Required bool            `json:"required"`
	Doc      string          `json:"doc,omitempty"`
}

// PrimitiveType returns a raw field type for a primitive such as "long".
func PrimitiveType(name string) json.RawMessage {
	b, _ := json.Marshal(name)
	return b
}

// PartitionSpec defines how data is partitioned.
type PartitionSpec struct {
	SpecID int              `json:"spec-id"`
	Fields []PartitionField `json:"fields"`
}

// PartitionField maps a source column to a partition transform.
type PartitionField struct {
	SourceID  int    `json:"source-id"`
	FieldID   int    `json:"field-id,omitempty"`
	Name      string `json:"name"`
	Transform string `json:"transform"`
}

// Snapshot records a point-in-time view of the table.
type Snapshot struct {
	SnapshotID       int64             `json:"snapshot-id"`
	ParentSnapshotID *int64            `json:"parent-snapshot-id,omitempty"`
	SequenceNumber   int64             `json:"sequence-number,omitempty"`
	TimestampMS      int64             `json:"timestamp-ms"`
	ManifestList     string            `json:"manifest-list,omitempty"`
	Manifests        []string          `json:"manifests,omitempty"` // v1 tables written before manifest lists
	Summary          map[string]string `json:"summary,omitempty"`
	SchemaID         *int              `json:"schema-id,omitempty"`
}

// SnapshotLogEntry records when a snapshot was made current.
type SnapshotLogEntry struct {
	TimestampMS int64 `json:"timestamp-ms"`
	SnapshotID  int64 `json:"snapshot-id"`
}

// MetadataLogEntry records a previous metadata file of the table.
type MetadataLogEntry struct {
	TimestampMS  int64  `json:"timestamp-ms"`
	MetadataFile string `json:"metadata-file"`
}

// SortOrder defines how data is sorted within files.
type SortOrder struct {
	OrderID int         `json:"order-id"`
	Fields  []SortField `json:"fields"`
}

// SortField is a single sort column.
type SortField struct {
	SourceID  int    `json:"source-id"`
	Transform string `json:"transform"`
	Direction string `json:"direction"`  // "asc" or "desc"
	NullOrder string `json:"null-order"` // "nulls-first" or "nulls-last"
}

// DataFile describes a single data file in the table.
type DataFile struct {
	ContentType     int            `json:"content"` // 0 = data, 1 = position deletes, 2 = equality deletes
	FilePath        string         `json:"file-path"`
	FileFormat      string         `json:"file-format"` // "PARQUET", "AVRO", "ORC"
	Partition       map[string]any `json:"partition,omitempty"`
	RecordCount     int64          `json:"record-count"`
	FileSizeBytes   int64          `json:"file-size-in-bytes"`
	ColumnSizes     map[int]int64  `json:"column-sizes,omitempty"`
	ValueCounts     map[int]int64  `json:"value-counts,omitempty"`
	NullValueCounts map[int]int64  `json:"null-value-counts,omitempty"`
	NanValueCounts  map[int]int64  `json:"nan-value-counts,omitempty"`
	LowerBounds     map[int][]byte `json:"lower-bounds,omitempty"`
	UpperBounds     map[int][]byte `json:"upper-bounds,omitempty"`
	KeyMetadata     []byte         `json:"key-metadata,omitempty"`
	SplitOffsets    []int64        `json:"split-offsets,omitempty"`
	EqualityIDs     []int          `json:"equality-ids,omitempty"`
	SortOrderID     *int           `json:"sort-order-id,omitempty"`
}

// ManifestEntry status constants.
const (
	ManifestEntryStatusExisting = 0
	ManifestEntryStatusAdded    = 1
	ManifestEntryStatusDeleted  = 2
)

// ManifestEntry is a row in a manifest file.
type ManifestEntry struct {
	Status             int
	SnapshotID         *int64
	SequenceNumber     *int64
	FileSequenceNumber *int64
	DataFile           DataFile
}

// ManifestHeader is the key/value metadata stored in a manifest file header.
type ManifestHeader struct {
	Schema          string
	SchemaID        string
	PartitionSpec   string
	PartitionSpecID string
	FormatVersion   string
	Content         string // "data" or "deletes"
}

// ManifestFile describes a manifest in the manifest list.
type ManifestFile struct {
	ManifestPath        string
	ManifestLength      int64
	PartitionSpecID     int
	ContentType         int // 0 = data, 1 = deletes
	SequenceNumber      int64
	MinSequenceNumber   int64
	AddedSnapshotID     int64
	AddedDataFilesCount int
	AddedRowsCount      int64
	ExistingDataFiles   int
	ExistingRowsCount   int64
	DeletedDataFiles    int
	DeletedRowsCount    int64
}
