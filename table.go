package icelake

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/florinutz/icelake/iceberg"
	"github.com/florinutz/icelake/icelakeerr"
	"github.com/florinutz/icelake/metrics"
	"github.com/florinutz/icelake/storage"
	"github.com/florinutz/icelake/storage/local"
	s3backend "github.com/florinutz/icelake/storage/s3"
)

const tracerName = "github.com/florinutz/icelake"

// S3Config holds the connection settings used by Open for s3:// locations.
type S3Config = s3backend.Config

// Option configures a Table.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	cacheCapacity  int
	s3             S3Config
	rateLimit      float64
	rateBurst      int
	breakerMax     int
	breakerReset   time.Duration
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = noop.NewTracerProvider()
	}
	return o
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for Load
// and data file walks. If not set, a noop provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithCacheCapacity bounds the number of metadata versions kept in memory.
// Zero or negative keeps every loaded version.
func WithCacheCapacity(n int) Option {
	return func(o *options) { o.cacheCapacity = max(n, 0) }
}

// WithS3Config sets the S3 client settings used by Open.
func WithS3Config(cfg S3Config) Option {
	return func(o *options) { o.s3 = cfg }
}

// WithRateLimit caps the backend calls made by Open's backend at
// requestsPerSecond, allowing bursts of burst calls. Zero disables it.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = requestsPerSecond
		o.rateBurst = burst
	}
}

// WithCircuitBreaker makes Open's backend fail fast after maxFailures
// consecutive failed calls, retrying one call every resetTimeout. Zero
// disables it.
func WithCircuitBreaker(maxFailures int, resetTimeout time.Duration) Option {
	return func(o *options) {
		o.breakerMax = maxFailures
		o.breakerReset = resetTimeout
	}
}

// loaded is the Loaded state. A nil *loaded is the Unloaded state.
type loaded struct {
	version  int64
	location string
	path     string
}

// Table reads one table through a storage backend. It is safe for
// concurrent use; readers never block on Load.
type Table struct {
	backend storage.Backend
	store   *metadataStore
	state   atomic.Pointer[loaded]
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New returns an unloaded table reading from backend.
func New(backend storage.Backend, opts ...Option) *Table {
	o := buildOptions(opts)
	return &Table{
		backend: backend,
		store:   newMetadataStore(o.cacheCapacity),
		logger:  o.logger.With("component", "table"),
		tracer:  o.tracerProvider.Tracer(tracerName),
	}
}

// Open builds a backend rooted at location and loads the table.
// s3://bucket/prefix locations use S3; anything else, including file://
// URIs, is a local directory.
func Open(ctx context.Context, location string, opts ...Option) (*Table, error) {
	backend, err := OpenBackend(ctx, location, opts...)
	if err != nil {
		return nil, err
	}

	t := New(backend, opts...)
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// OpenBackend returns the backend Open would use for location without
// loading anything. The circuit breaker and rate limit options apply here,
// and logging and metrics are always attached.
func OpenBackend(ctx context.Context, location string, opts ...Option) (storage.Backend, error) {
	o := buildOptions(opts)
	backend, err := openBackend(ctx, location, o.s3)
	if err != nil {
		return nil, err
	}
	backend = storage.WithCircuitBreaker(backend, o.breakerMax, o.breakerReset, o.logger)
	backend = storage.WithRateLimit(backend, o.rateLimit, o.rateBurst)
	return storage.WithMetrics(storage.WithLogging(backend, o.logger)), nil
}

func openBackend(ctx context.Context, location string, cfg S3Config) (storage.Backend, error) {
	if strings.HasPrefix(location, "s3://") {
		bucket, prefix, err := s3backend.ParseURI(location)
		if err != nil {
			return nil, err
		}
		b, err := s3backend.New(ctx, bucket, prefix, cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", location, err)
		}
		return b, nil
	}
	b, err := local.New(strings.TrimPrefix(location, "file://"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", location, err)
	}
	return b, nil
}

// Load resolves the latest metadata version, decodes it and makes it
// current. On failure the previous state and the cache are left untouched.
func (t *Table) Load(ctx context.Context) (err error) {
	ctx, span := t.tracer.Start(ctx, "icelake.table.load")
	start := time.Now()
	defer func() {
		metrics.TableLoadDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.TableLoads.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			metrics.TableLoads.WithLabelValues("ok").Inc()
		}
		span.End()
	}()

	path, err := resolveVersion(ctx, t.backend)
	if err != nil {
		return err
	}
	meta, err := fetch(ctx, t.backend, path)
	if err != nil {
		return err
	}
	if meta.LastUpdatedMS == 0 {
		return &icelakeerr.MetadataDecodeError{Path: path, Err: errZeroVersion}
	}

	// Readers may still hold the outgoing state, so its version survives
	// this round of eviction.
	keep := []int64{meta.LastUpdatedMS}
	if cur := t.state.Load(); cur != nil {
		keep = append(keep, cur.version)
	}
	t.store.put(meta, keep...)
	prev := t.state.Swap(&loaded{version: meta.LastUpdatedMS, location: meta.Location, path: path})

	span.SetAttributes(
		attribute.String("icelake.metadata.path", path),
		attribute.Int64("icelake.version", meta.LastUpdatedMS),
	)
	metrics.TableVersion.Set(float64(meta.LastUpdatedMS))
	if prev == nil || prev.version != meta.LastUpdatedMS {
		t.logger.InfoContext(ctx, "table metadata loaded",
			"path", path, "version", meta.LastUpdatedMS, "location", meta.Location)
	} else {
		t.logger.DebugContext(ctx, "table metadata unchanged", "path", path, "version", meta.LastUpdatedMS)
	}
	return nil
}

// CurrentTableMetadata returns the metadata made current by the last
// successful Load.
func (t *Table) CurrentTableMetadata() (*iceberg.TableMetadata, error) {
	st := t.state.Load()
	if st == nil {
		return nil, icelakeerr.ErrNotLoaded
	}
	return t.store.get(st.version)
}

// CurrentSnapshot returns the snapshot the current metadata points at.
func (t *Table) CurrentSnapshot() (*iceberg.Snapshot, error) {
	meta, err := t.CurrentTableMetadata()
	if err != nil {
		return nil, err
	}
	return currentSnapshot(meta)
}

// DataFiles lazily walks the manifest chain of the current snapshot. The
// metadata is captured when DataFiles is called; a concurrent Load does not
// affect a walk already handed out.
func (t *Table) DataFiles(ctx context.Context) iter.Seq2[iceberg.DataFile, error] {
	meta, err := t.CurrentTableMetadata()
	if err != nil {
		return func(yield func(iceberg.DataFile, error) bool) {
			yield(iceberg.DataFile{}, err)
		}
	}
	return dataFiles(ctx, meta, t.backend)
}

// CurrentDataFiles returns every data file of the current snapshot in
// manifest order. It fails as a whole on the first error.
func (t *Table) CurrentDataFiles(ctx context.Context) ([]iceberg.DataFile, error) {
	meta, err := t.CurrentTableMetadata()
	if err != nil {
		return nil, err
	}
	_, files, err := t.SnapshotFiles(ctx, meta)
	return files, err
}

// SnapshotFiles resolves the current snapshot of meta and returns it along
// with every data file it lists, in manifest order. Passing metadata taken
// from CurrentTableMetadata pairs the snapshot and files with one version
// even if a Load lands meanwhile.
func (t *Table) SnapshotFiles(ctx context.Context, meta *iceberg.TableMetadata) (snap *iceberg.Snapshot, files []iceberg.DataFile, err error) {
	ctx, span := t.tracer.Start(ctx, "icelake.table.data_files")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("icelake.data_files", len(files)))
		}
		span.End()
	}()

	snap, err = currentSnapshot(meta)
	if err != nil {
		return nil, nil, err
	}
	files, err = collect(dataFiles(ctx, meta, t.backend))
	if err != nil {
		return nil, nil, err
	}
	return snap, files, nil
}

// RelPath strips the table location from an absolute path recorded in
// metadata, giving a path the backend can read.
func (t *Table) RelPath(path string) (string, error) {
	st := t.state.Load()
	if st == nil {
		return "", icelakeerr.ErrNotLoaded
	}
	return relativize(path, st.location)
}

// ReadFile reads an absolute path recorded in metadata, such as a data
// file path, through the table's backend.
func (t *Table) ReadFile(ctx context.Context, path string) ([]byte, error) {
	rel, err := t.RelPath(path)
	if err != nil {
		return nil, err
	}
	data, err := t.backend.Read(ctx, rel)
	if err != nil {
		return nil, &icelakeerr.StorageError{Op: "read", Path: rel, Err: err}
	}
	return data, nil
}

// Version returns the current version (last-updated-ms), or 0 before the
// first successful Load.
func (t *Table) Version() int64 {
	if st := t.state.Load(); st != nil {
		return st.version
	}
	return 0
}

// Location returns the current table location.
func (t *Table) Location() (string, bool) {
	if st := t.state.Load(); st != nil {
		return st.location, true
	}
	return "", false
}

// MetadataPath returns the backend path the current metadata was read from.
func (t *Table) MetadataPath() (string, bool) {
	if st := t.state.Load(); st != nil {
		return st.path, true
	}
	return "", false
}

// Versions returns the cached metadata versions in ascending order.
func (t *Table) Versions() []int64 {
	return t.store.versions()
}
