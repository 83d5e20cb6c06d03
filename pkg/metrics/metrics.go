// Package metrics exposes Prometheus collectors for ingestion and reads.
//
// # Basic Usage
//
//	metrics.FragmentsCommitted.WithLabelValues("SparseNDArray").Inc()
//	metrics.FragmentBytes.WithLabelValues("SparseNDArray").Add(float64(n))
//
//	timer := metrics.NewTimer("commit")
//	commit(rec)
//	metrics.CommitLatency.WithLabelValues("arrow").Observe(timer.Stop().Seconds())
//
// All collectors register with the default Prometheus registry on package
// initialization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FragmentsCommitted counts committed fragments.
	// Labels: object_type
	FragmentsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arraystore_fragments_committed_total",
			Help: "Total number of fragments committed",
		},
		[]string{"object_type"},
	)

	// FragmentBytes counts encoded fragment bytes written to the backend.
	// Labels: object_type
	FragmentBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arraystore_fragment_bytes_total",
			Help: "Total encoded fragment bytes written",
		},
		[]string{"object_type"},
	)

	// CellsWritten counts cells committed.
	// Labels: object_type
	CellsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arraystore_cells_written_total",
			Help: "Total number of cells committed",
		},
		[]string{"object_type"},
	)

	// ChunkNNZ tracks the element count of planned chunks.
	ChunkNNZ = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arraystore_chunk_nnz",
			Help:    "Elements per planned write chunk",
			Buckets: prometheus.ExponentialBuckets(1, 10, 10),
		},
	)

	// CapSplits counts halvings forced by the per-commit byte cap.
	CapSplits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arraystore_cap_splits_total",
			Help: "Total record halvings forced by the byte cap",
		},
	)

	// CommitLatency tracks fragment encode and upload time in seconds.
	// Labels: format (arrow/parquet)
	CommitLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arraystore_commit_latency_seconds",
			Help:    "Fragment commit latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	// IngestErrors counts failed ingest sessions.
	// Labels: error_type
	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arraystore_ingest_errors_total",
			Help: "Total failed ingest sessions by error type",
		},
		[]string{"error_type"},
	)

	// FragmentCacheLookups counts decoded fragment cache lookups.
	// Labels: result (hit/miss)
	FragmentCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arraystore_fragment_cache_lookups_total",
			Help: "Decoded fragment cache lookups",
		},
		[]string{"result"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
