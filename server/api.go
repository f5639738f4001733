package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/florinutz/icelake/iceberg"
	"github.com/florinutz/icelake/icelakeerr"
	"github.com/florinutz/icelake/tracing"
)

// Router returns the full HTTP surface: the table API plus /metrics,
// /healthz and /readyz. Every request gets a server span from tp.
func Router(ref *Refresher, tp trace.TracerProvider) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(tracing.Middleware(tp))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", ref.Health().ServeHTTP)
	r.Get("/readyz", ref.Health().Readiness().ServeHTTP)
	r.Mount("/", APIHandler(ref))
	return r
}

// APIHandler returns a chi router with the read-only table API.
//
//	GET  /api/v1/table           - location, version and refresh state
//	GET  /api/v1/table/metadata  - current table metadata
//	GET  /api/v1/table/snapshots - snapshots of the current metadata
//	GET  /api/v1/table/files     - data files of the current snapshot
//	GET  /api/v1/table/versions  - cached metadata versions
//	POST /api/v1/table/reload    - load the latest metadata now
func APIHandler(ref *Refresher) http.Handler {
	r := chi.NewRouter()

	r.Get("/api/v1/table", getTable(ref))
	r.Get("/api/v1/table/metadata", getMetadata(ref))
	r.Get("/api/v1/table/snapshots", listSnapshots(ref))
	r.Get("/api/v1/table/files", listFiles(ref))
	r.Get("/api/v1/table/versions", listVersions(ref))
	r.Post("/api/v1/table/reload", reloadTable(ref))

	return r
}

func getTable(ref *Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := ref.Table()
		meta, err := t.CurrentTableMetadata()
		if err != nil {
			writeError(w, err)
			return
		}
		path, _ := t.MetadataPath()
		info := map[string]any{
			"location":        meta.Location,
			"table_uuid":      meta.TableUUID,
			"format_version":  meta.FormatVersion,
			"version":         t.Version(),
			"metadata_path":   path,
			"snapshot_count":  len(meta.Snapshots),
			"cached_versions": len(t.Versions()),
			"refresh":         ref.Status(),
		}
		if id, ok := meta.CurrentSnapshot(); ok {
			info["current_snapshot_id"] = id
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func getMetadata(ref *Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta, err := ref.Table().CurrentTableMetadata()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)
	}
}

func listSnapshots(ref *Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta, err := ref.Table().CurrentTableMetadata()
		if err != nil {
			writeError(w, err)
			return
		}
		snaps := meta.Snapshots
		if snaps == nil {
			snaps = []iceberg.Snapshot{}
		}
		resp := map[string]any{
			"snapshots": snaps,
			"count":     len(snaps),
		}
		if id, ok := meta.CurrentSnapshot(); ok {
			resp["current_snapshot_id"] = id
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listFiles(ref *Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := ref.Table()
		meta, err := t.CurrentTableMetadata()
		if err != nil {
			writeError(w, err)
			return
		}
		snap, files, err := t.SnapshotFiles(r.Context(), meta)
		if err != nil {
			writeError(w, err)
			return
		}
		if files == nil {
			files = []iceberg.DataFile{}
		}
		var records, size int64
		for _, f := range files {
			records += f.RecordCount
			size += f.FileSizeBytes
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"snapshot_id":        snap.SnapshotID,
			"files":              files,
			"count":              len(files),
			"record_count":       records,
			"file_size_in_bytes": size,
		})
	}
}

func listVersions(ref *Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := ref.Table()
		versions := t.Versions()
		if versions == nil {
			versions = []int64{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"current":  t.Version(),
			"versions": versions,
		})
	}
}

func reloadTable(ref *Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		changed, err := ref.Reload(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"changed": changed,
			"version": ref.Table().Version(),
		})
	}
}

// statusFor maps an icelake error class to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, icelakeerr.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, icelakeerr.ErrSnapshotResolution):
		return http.StatusNotFound
	case errors.Is(err, icelakeerr.ErrStorage), errors.Is(err, icelakeerr.ErrVersionResolution):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
