package iceberg

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DecodeTableMetadata deserializes table metadata from JSON.
func DecodeTableMetadata(data []byte) (*TableMetadata, error) {
	var meta TableMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if meta.FormatVersion != 1 && meta.FormatVersion != 2 {
		return nil, fmt.Errorf("unsupported format-version %d", meta.FormatVersion)
	}
	if meta.Location == "" {
		return nil, errors.New("metadata has no location")
	}
	return &meta, nil
}

// EncodeTableMetadata serializes table metadata to JSON.
func EncodeTableMetadata(meta *TableMetadata) ([]byte, error) {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

// MetadataFileName returns the canonical metadata file name for version v.
func MetadataFileName(v int) string {
	return fmt.Sprintf("v%d.metadata.json", v)
}
