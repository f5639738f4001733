package iceberg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/hamba/avro/v2/ocf"
)

// Avro schema for Iceberg manifest entries (format v2).
// Only used to write fixtures; readers decode with the writer schema embedded
// in the file, so v1 manifests decode through the same structs.
const manifestEntryAvroSchema = `{
	"type": "record",
	"name": "manifest_entry",
	"fields": [
		{"name": "status", "type": "int"},
		{"name": "snapshot_id", "type": ["null", "long"], "default": null},
		{"name": "sequence_number", "type": ["null", "long"], "default": null},
		{"name": "file_sequence_number", "type": ["null", "long"], "default": null},
		{"name": "data_file", "type": {
			"type": "record",
			"name": "r2",
			"fields": [
				{"name": "content", "type": "int"},
				{"name": "file_path", "type": "string"},
				{"name": "file_format", "type": "string"},
				{"name": "partition", "type": {"type": "record", "name": "r102", "fields": []}},
				{"name": "record_count", "type": "long"},
				{"name": "file_size_in_bytes", "type": "long"},
				{"name": "column_sizes", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k117_v118",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "long"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "value_counts", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k119_v120",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "long"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "null_value_counts", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k121_v122",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "long"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "nan_value_counts", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k138_v139",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "long"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "lower_bounds", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k126_v127",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "bytes"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "upper_bounds", "type": ["null", {"type": "array", "items": {
					"type": "record", "name": "k128_v129",
					"fields": [
						{"name": "key", "type": "int"},
						{"name": "value", "type": "bytes"}
					]
				}, "logicalType": "map"}], "default": null},
				{"name": "key_metadata", "type": ["null", "bytes"], "default": null},
				{"name": "split_offsets", "type": ["null", {"type": "array", "items": "long"}], "default": null},
				{"name": "equality_ids", "type": ["null", {"type": "array", "items": "int"}], "default": null},
				{"name": "sort_order_id", "type": ["null", "int"], "default": null}
			]
		}}
	]
}`

// Avro schema for manifest list (format v2).
const manifestListAvroSchema = `{
	"type": "record",
	"name": "manifest_file",
	"fields": [
		{"name": "manifest_path", "type": "string"},
		{"name": "manifest_length", "type": "long"},
		{"name": "partition_spec_id", "type": "int"},
		{"name": "content", "type": "int"},
		{"name": "sequence_number", "type": "long"},
		{"name": "min_sequence_number", "type": "long"},
		{"name": "added_snapshot_id", "type": "long"},
		{"name": "added_data_files_count", "type": "int"},
		{"name": "added_rows_count", "type": "long"},
		{"name": "existing_data_files_count", "type": "int"},
		{"name": "existing_rows_count", "type": "long"},
		{"name": "deleted_data_files_count", "type": "int"},
		{"name": "deleted_rows_count", "type": "long"}
	]
}`

// manifestEntryAvro is the Avro-serializable form of a manifest entry.
// Fields whose nullability differs between format v1 and v2 are decoded into
// any and normalized by toInt64.
type manifestEntryAvro struct {
	Status             int                  `avro:"status"`
	SnapshotID         any                  `avro:"snapshot_id"`
	SequenceNumber     any                  `avro:"sequence_number"`
	FileSequenceNumber any                  `avro:"file_sequence_number"`
	DataFile           manifestDataFileAvro `avro:"data_file"`
}

type manifestDataFileAvro struct {
	Content         any            `avro:"content"`
	FilePath        string         `avro:"file_path"`
	FileFormat      string         `avro:"file_format"`
	Partition       map[string]any `avro:"partition"`
	RecordCount     int64          `avro:"record_count"`
	FileSizeBytes   int64          `avro:"file_size_in_bytes"`
	ColumnSizes     []intLongKV    `avro:"column_sizes"`
	ValueCounts     []intLongKV    `avro:"value_counts"`
	NullValueCounts []intLongKV    `avro:"null_value_counts"`
	NanValueCounts  []intLongKV    `avro:"nan_value_counts"`
	LowerBounds     []intBytesKV   `avro:"lower_bounds"`
	UpperBounds     []intBytesKV   `avro:"upper_bounds"`
	KeyMetadata     []byte         `avro:"key_metadata"`
	SplitOffsets    []int64        `avro:"split_offsets"`
	EqualityIDs     []int          `avro:"equality_ids"`
	SortOrderID     *int           `avro:"sort_order_id"`
}

// manifestEntryAvroOut mirrors manifestEntryAvroSchema exactly for encoding.
type manifestEntryAvroOut struct {
	Status             int                     `avro:"status"`
	SnapshotID         *int64                  `avro:"snapshot_id"`
	SequenceNumber     *int64                  `avro:"sequence_number"`
	FileSequenceNumber *int64                  `avro:"file_sequence_number"`
	DataFile           manifestDataFileAvroOut `avro:"data_file"`
}

type manifestDataFileAvroOut struct {
	Content         int          `avro:"content"`
	FilePath        string       `avro:"file_path"`
	FileFormat      string       `avro:"file_format"`
	Partition       struct{}     `avro:"partition"`
	RecordCount     int64        `avro:"record_count"`
	FileSizeBytes   int64        `avro:"file_size_in_bytes"`
	ColumnSizes     []intLongKV  `avro:"column_sizes"`
	ValueCounts     []intLongKV  `avro:"value_counts"`
	NullValueCounts []intLongKV  `avro:"null_value_counts"`
	NanValueCounts  []intLongKV  `avro:"nan_value_counts"`
	LowerBounds     []intBytesKV `avro:"lower_bounds"`
	UpperBounds     []intBytesKV `avro:"upper_bounds"`
	KeyMetadata     []byte       `avro:"key_metadata"`
	SplitOffsets    []int64      `avro:"split_offsets"`
	EqualityIDs     []int        `avro:"equality_ids"`
	SortOrderID     *int         `avro:"sort_order_id"`
}

type intLongKV struct {
	Key   int   `avro:"key"`
	Value int64 `avro:"value"`
}

type intBytesKV struct {
	Key   int    `avro:"key"`
	Value []byte `avro:"value"`
}

// manifestFileAvro is the decoding form of a manifest list row. v1 lists
// make most counters optional, hence any.
type manifestFileAvro struct {
	ManifestPath        string `avro:"manifest_path"`
	ManifestLength      int64  `avro:"manifest_length"`
	PartitionSpecID     int    `avro:"partition_spec_id"`
	ContentType         any    `avro:"content"`
	SequenceNumber      any    `avro:"sequence_number"`
	MinSequenceNumber   any    `avro:"min_sequence_number"`
	AddedSnapshotID     any    `avro:"added_snapshot_id"`
	AddedDataFilesCount any    `avro:"added_data_files_count"`
	AddedRowsCount      any    `avro:"added_rows_count"`
	ExistingDataFiles   any    `avro:"existing_data_files_count"`
	ExistingRowsCount   any    `avro:"existing_rows_count"`
	DeletedDataFiles    any    `avro:"deleted_data_files_count"`
	DeletedRowsCount    any    `avro:"deleted_rows_count"`
}

// manifestFileAvroOut mirrors manifestListAvroSchema exactly for encoding.
type manifestFileAvroOut struct {
	ManifestPath        string `avro:"manifest_path"`
	ManifestLength      int64  `avro:"manifest_length"`
	PartitionSpecID     int    `avro:"partition_spec_id"`
	ContentType         int    `avro:"content"`
	SequenceNumber      int64  `avro:"sequence_number"`
	MinSequenceNumber   int64  `avro:"min_sequence_number"`
	AddedSnapshotID     int64  `avro:"added_snapshot_id"`
	AddedDataFilesCount int    `avro:"added_data_files_count"`
	AddedRowsCount      int64  `avro:"added_rows_count"`
	ExistingDataFiles   int    `avro:"existing_data_files_count"`
	ExistingRowsCount   int64  `avro:"existing_rows_count"`
	DeletedDataFiles    int    `avro:"deleted_data_files_count"`
	DeletedRowsCount    int64  `avro:"deleted_rows_count"`
}

// DecodeManifestList decodes an Avro OCF manifest list into its entries,
// preserving file order.
func DecodeManifestList(data []byte) ([]ManifestFile, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open manifest list: %w", err)
	}

	var out []ManifestFile
	for dec.HasNext() {
		var row manifestFileAvro
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode manifest list entry %d: %w", len(out), err)
		}
		out = append(out, ManifestFile{
			ManifestPath:        row.ManifestPath,
			ManifestLength:      row.ManifestLength,
			PartitionSpecID:     row.PartitionSpecID,
			ContentType:         int(toInt64(row.ContentType)),
			SequenceNumber:      toInt64(row.SequenceNumber),
			MinSequenceNumber:   toInt64(row.MinSequenceNumber),
			AddedSnapshotID:     toInt64(row.AddedSnapshotID),
			AddedDataFilesCount: int(toInt64(row.AddedDataFilesCount)),
			AddedRowsCount:      toInt64(row.AddedRowsCount),
			ExistingDataFiles:   int(toInt64(row.ExistingDataFiles)),
			ExistingRowsCount:   toInt64(row.ExistingRowsCount),
			DeletedDataFiles:    int(toInt64(row.DeletedDataFiles)),
			DeletedRowsCount:    toInt64(row.DeletedRowsCount),
		})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("read manifest list: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("manifest list has no entries")
	}
	return out, nil
}

// DecodeManifest decodes an Avro OCF manifest file into its header and
// entries, preserving file order.
func DecodeManifest(data []byte) (ManifestHeader, []ManifestEntry, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return ManifestHeader{}, nil, fmt.Errorf("open manifest: %w", err)
	}

	md := dec.Metadata()
	header := ManifestHeader{
		Schema:          string(md["schema"]),
		SchemaID:        string(md["schema-id"]),
		PartitionSpec:   string(md["partition-spec"]),
		PartitionSpecID: string(md["partition-spec-id"]),
		FormatVersion:   string(md["format-version"]),
		Content:         string(md["content"]),
	}

	var entries []ManifestEntry
	for dec.HasNext() {
		var row manifestEntryAvro
		if err := dec.Decode(&row); err != nil {
			return ManifestHeader{}, nil, fmt.Errorf("decode manifest entry %d: %w", len(entries), err)
		}
		entries = append(entries, fromManifestEntryAvro(row))
	}
	if err := dec.Error(); err != nil {
		return ManifestHeader{}, nil, fmt.Errorf("read manifest: %w", err)
	}
	return header, entries, nil
}

func fromManifestEntryAvro(row manifestEntryAvro) ManifestEntry {
	df := row.DataFile
	return ManifestEntry{
		Status:             row.Status,
		SnapshotID:         toInt64Ptr(row.SnapshotID),
		SequenceNumber:     toInt64Ptr(row.SequenceNumber),
		FileSequenceNumber: toInt64Ptr(row.FileSequenceNumber),
		DataFile: DataFile{
			ContentType:     int(toInt64(df.Content)),
			FilePath:        df.FilePath,
			FileFormat:      df.FileFormat,
			Partition:       df.Partition,
			RecordCount:     df.RecordCount,
			FileSizeBytes:   df.FileSizeBytes,
			ColumnSizes:     intLongKVToMap(df.ColumnSizes),
			ValueCounts:     intLongKVToMap(df.ValueCounts),
			NullValueCounts: intLongKVToMap(df.NullValueCounts),
			NanValueCounts:  intLongKVToMap(df.NanValueCounts),
			LowerBounds:     intBytesKVToMap(df.LowerBounds),
			UpperBounds:     intBytesKVToMap(df.UpperBounds),
			KeyMetadata:     df.KeyMetadata,
			SplitOffsets:    df.SplitOffsets,
			EqualityIDs:     df.EqualityIDs,
			SortOrderID:     df.SortOrderID,
		},
	}
}

// toInt64 normalizes an Avro int/long decoded into any. Unions whose branch
// type is not registered come back as a single-entry map.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case map[string]any:
		for _, inner := range n {
			return toInt64(inner)
		}
	}
	return 0
}

func toInt64Ptr(v any) *int64 {
	if v == nil {
		return nil
	}
	n := toInt64(v)
	return &n
}

func intLongKVToMap(kvs []intLongKV) map[int]int64 {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[int]int64, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func intBytesKVToMap(kvs []intBytesKV) map[int][]byte {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[int][]byte, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

// EncodeManifest writes manifest entries as an Avro OCF file.
func EncodeManifest(entries []ManifestEntry, schema *Schema, specID int) ([]byte, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(manifestEntryAvroSchema, &buf,
		ocf.WithMetadata(map[string][]byte{
			"schema":            schemaJSON,
			"schema-id":         []byte(strconv.Itoa(schema.SchemaID)),
			"partition-spec":    []byte("[]"),
			"partition-spec-id": []byte(strconv.Itoa(specID)),
			"format-version":    []byte("2"),
			"content":           []byte("data"),
		}),
		ocf.WithCodec(ocf.Deflate),
	)
	if err != nil {
		return nil, fmt.Errorf("create manifest encoder: %w", err)
	}

	for _, entry := range entries {
		if err := enc.Encode(toManifestEntryAvro(entry)); err != nil {
			return nil, fmt.Errorf("encode manifest entry: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close manifest encoder: %w", err)
	}

	return buf.Bytes(), nil
}

func toManifestEntryAvro(entry ManifestEntry) manifestEntryAvroOut {
	df := entry.DataFile
	return manifestEntryAvroOut{
		Status:             entry.Status,
		SnapshotID:         entry.SnapshotID,
		SequenceNumber:     entry.SequenceNumber,
		FileSequenceNumber: entry.FileSequenceNumber,
		DataFile: manifestDataFileAvroOut{
			Content:         df.ContentType,
			FilePath:        df.FilePath,
			FileFormat:      df.FileFormat,
			RecordCount:     df.RecordCount,
			FileSizeBytes:   df.FileSizeBytes,
			ColumnSizes:     mapToIntLongKV(df.ColumnSizes),
			ValueCounts:     mapToIntLongKV(df.ValueCounts),
			NullValueCounts: mapToIntLongKV(df.NullValueCounts),
			NanValueCounts:  mapToIntLongKV(df.NanValueCounts),
			LowerBounds:     mapToIntBytesKV(df.LowerBounds),
			UpperBounds:     mapToIntBytesKV(df.UpperBounds),
			KeyMetadata:     df.KeyMetadata,
			SplitOffsets:    df.SplitOffsets,
			EqualityIDs:     df.EqualityIDs,
			SortOrderID:     df.SortOrderID,
		},
	}
}

// mapToIntLongKV converts a column map to Avro key/value records, sorted by
// key so that encoded manifests are deterministic.
func mapToIntLongKV(m map[int]int64) []intLongKV {
	if len(m) == 0 {
		return nil
	}
	out := make([]intLongKV, 0, len(m))
	for k, v := range m {
		out = append(out, intLongKV{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func mapToIntBytesKV(m map[int][]byte) []intBytesKV {
	if len(m) == 0 {
		return nil
	}
	out := make([]intBytesKV, 0, len(m))
	for k, v := range m {
		out = append(out, intBytesKV{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// EncodeManifestList writes manifest list entries as an Avro OCF file.
func EncodeManifestList(manifests []ManifestFile) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(manifestListAvroSchema, &buf,
		ocf.WithMetadata(map[string][]byte{
			"format-version": []byte("2"),
		}),
		ocf.WithCodec(ocf.Deflate),
	)
	if err != nil {
		return nil, fmt.Errorf("create manifest list encoder: %w", err)
	}

	for _, mf := range manifests {
		row := manifestFileAvroOut{
			ManifestPath:        mf.ManifestPath,
			ManifestLength:      mf.ManifestLength,
			PartitionSpecID:     mf.PartitionSpecID,
			ContentType:         mf.ContentType,
			SequenceNumber:      mf.SequenceNumber,
			MinSequenceNumber:   mf.MinSequenceNumber,
			AddedSnapshotID:     mf.AddedSnapshotID,
			AddedDataFilesCount: mf.AddedDataFilesCount,
			AddedRowsCount:      mf.AddedRowsCount,
			ExistingDataFiles:   mf.ExistingDataFiles,
			ExistingRowsCount:   mf.ExistingRowsCount,
			DeletedDataFiles:    mf.DeletedDataFiles,
			DeletedRowsCount:    mf.DeletedRowsCount,
		}
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("encode manifest list entry: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close manifest list encoder: %w", err)
	}

	return buf.Bytes(), nil
}
