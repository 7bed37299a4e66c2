package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan and transform metrics
var (
	ItemsScannedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "illust_packer_items_scanned_total",
			Help: "Total number of source assets discovered by the scanner",
		},
	)

	ItemsTransformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "illust_packer_items_transformed_total",
			Help: "Total number of images successfully resized and re-encoded",
		},
	)

	ItemsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "illust_packer_items_skipped_total",
			Help: "Total number of items skipped, by reason",
		},
		[]string{"reason"}, // "pattern", "exists", "decode", "encode", "read"
	)

	TransformDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "illust_packer_transform_duration_seconds",
			Help:    "Time spent decoding, resizing and re-encoding one image",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

// Batch commit metrics
var (
	BatchesCommittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "illust_packer_batches_committed_total",
			Help: "Total number of batches durably committed to both stores",
		},
	)

	BatchesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "illust_packer_batches_failed_total",
			Help: "Total number of batch commit failures, by store",
		},
		[]string{"store"}, // "blob", "relational"
	)

	BatchCommitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "illust_packer_batch_commit_duration_seconds",
			Help:    "Duration of one batch commit against one store",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"store"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "illust_packer_batch_size",
			Help:    "Number of items per committed batch",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	BlobBytesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "illust_packer_blob_bytes_written_total",
			Help: "Total re-encoded image bytes written to the blob store",
		},
	)
)

// Reclaim and archive metrics
var (
	SourcesReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "illust_packer_sources_reclaimed_total",
			Help: "Total number of source image files deleted after commit",
		},
	)

	ReclaimErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "illust_packer_reclaim_errors_total",
			Help: "Total number of reclaim failures, by file kind",
		},
		[]string{"kind"}, // "image", "sidecar"
	)

	SidecarsArchivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "illust_packer_sidecars_archived_total",
			Help: "Total number of sidecar files written to the archive",
		},
	)

	ArchiveErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "illust_packer_archive_errors_total",
			Help: "Total number of sidecar files that could not be archived",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "illust_packer_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "illust_packer_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)
)

// Worker metrics
var (
	TransformWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "illust_packer_transform_workers",
			Help: "Number of transform workers in the pool",
		},
	)
)
