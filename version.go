package icelake

import (
	"context"
	"errors"
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/florinutz/icelake/iceberg"
	"github.com/florinutz/icelake/icelakeerr"
	"github.com/florinutz/icelake/storage"
)

const (
	metadataDir        = "metadata/"
	versionHintPath    = metadataDir + "version-hint.text"
	metadataFileSuffix = ".metadata.json"
)

// resolveVersion returns the backend path of the metadata file to load.
//
// The version hint wins when present. Otherwise the metadata directory is
// listed and the lexically greatest *.metadata.json name is taken, so
// v2.metadata.json sorts after v10.metadata.json.
func resolveVersion(ctx context.Context, backend storage.Backend) (string, error) {
	ok, err := backend.Exists(ctx, versionHintPath)
	if err != nil {
		return "", &icelakeerr.StorageError{Op: "exists", Path: versionHintPath, Err: err}
	}
	if ok {
		return readVersionHint(ctx, backend)
	}
	return latestListed(ctx, backend)
}

func readVersionHint(ctx context.Context, backend storage.Backend) (string, error) {
	data, err := backend.Read(ctx, versionHintPath)
	if err != nil {
		return "", &icelakeerr.StorageError{Op: "read", Path: versionHintPath, Err: err}
	}
	if !utf8.Valid(data) {
		return "", &icelakeerr.MalformedVersionHintError{
			Path:  versionHintPath,
			Value: string(data),
			Err:   errors.New("invalid utf-8"),
		}
	}
	raw := string(data)
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", &icelakeerr.MalformedVersionHintError{Path: versionHintPath, Value: raw, Err: err}
	}
	if v < 0 {
		return "", &icelakeerr.MalformedVersionHintError{Path: versionHintPath, Value: raw, Err: errNegativeVersion}
	}
	return metadataDir + iceberg.MetadataFileName(v), nil
}

func latestListed(ctx context.Context, backend storage.Backend) (string, error) {
	entries, err := backend.List(ctx, metadataDir)
	if err != nil {
		return "", &icelakeerr.StorageError{Op: "list", Path: metadataDir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Path, metadataFileSuffix) {
			names = append(names, path.Base(e.Path))
		}
	}
	if len(names) == 0 {
		return "", icelakeerr.ErrNoMetadataFound
	}
	sort.Strings(names)
	return metadataDir + names[len(names)-1], nil
}

var errNegativeVersion = errors.New("negative version")
