package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TableLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icelake_table_loads_total",
		Help: "Total number of table metadata loads, by result.",
	}, []string{"result"})

	TableLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "icelake_table_load_duration_seconds",
		Help:    "Duration of table metadata loads.",
		Buckets: prometheus.DefBuckets,
	})

	TableVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "icelake_table_version",
		Help: "last-updated-ms of the currently loaded table metadata.",
	})

	MetadataCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "icelake_metadata_cache_entries",
		Help: "Number of table metadata versions held in the cache.",
	})

	MetadataCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icelake_metadata_cache_evictions_total",
		Help: "Total number of table metadata versions evicted from a bounded cache.",
	})

	ManifestsRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icelake_manifests_read_total",
		Help: "Total number of manifest lists and manifest files read.",
	}, []string{"kind"})

	DataFilesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icelake_data_files_resolved_total",
		Help: "Total number of data files yielded by manifest walks.",
	})

	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icelake_storage_operations_total",
		Help: "Total number of storage backend calls, by backend, operation and result.",
	}, []string{"backend", "op", "result"})

	StorageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "icelake_storage_operation_duration_seconds",
		Help:    "Duration of storage backend calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})

	StorageBytesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icelake_storage_bytes_read_total",
		Help: "Total number of bytes read from storage backends.",
	}, []string{"backend"})

	RefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "icelake_refresh_failures_total",
		Help: "Total number of failed background table refreshes.",
	})

	StorageRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icelake_storage_rate_limit_waits_total",
		Help: "Total number of storage calls delayed by the request rate limit.",
	}, []string{"backend"})

	StorageRateLimitWaitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "icelake_storage_rate_limit_wait_duration_seconds",
		Help:    "Time storage calls spent waiting for the request rate limit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	StorageBreakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "icelake_storage_circuit_open",
		Help: "1 while the storage circuit breaker rejects calls, 0 otherwise.",
	}, []string{"backend"})

	StorageBreakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icelake_storage_circuit_rejections_total",
		Help: "Total number of storage calls rejected by an open circuit breaker.",
	}, []string{"backend"})

	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "icelake_panics_recovered_total",
		Help: "Total number of panics recovered in background goroutines.",
	}, []string{"component"})
)
