package pipeline

import (
	"illust-packer/internal/filesystem"
	"illust-packer/internal/logging"
	"illust-packer/internal/metrics"
	"illust-packer/internal/scanner"
)

// Reclaimer deletes source files whose batch reached Committed.
//
// The image is deleted first: if that fails the sidecar is left intact
// so a retry can still associate the pair. A sidecar deletion failure
// after a successful image deletion is logged and tolerated; the orphan
// is swept by the archiver.
type Reclaimer struct {
	retry           filesystem.RetryConfig
	consumeSidecars bool
	summary         *logging.Summary
}

// NewReclaimer creates a Reclaimer. When consumeSidecars is false the
// sidecar files are retained for the archive pass and only images are
// deleted.
func NewReclaimer(consumeSidecars bool, summary *logging.Summary) *Reclaimer {
	return &Reclaimer{
		retry:           filesystem.DefaultRetryConfig(),
		consumeSidecars: consumeSidecars,
		summary:         summary,
	}
}

// Reclaim deletes the given committed sources and returns how many
// images were removed. Failures are per-file and non-fatal.
func (r *Reclaimer) Reclaim(assets []scanner.SourceAsset) int {
	reclaimed := 0
	for _, asset := range assets {
		if err := filesystem.RemoveWithRetry(asset.Path, r.retry); err != nil {
			logging.Warn("Failed to reclaim source %s: %v", asset.Path, err)
			metrics.ReclaimErrorsTotal.WithLabelValues("image").Inc()
			continue
		}
		reclaimed++
		metrics.SourcesReclaimedTotal.Inc()
		logging.Debug("Reclaimed %s", asset.Path)

		if r.consumeSidecars && asset.SidecarPath != "" {
			if err := filesystem.RemoveWithRetry(asset.SidecarPath, r.retry); err != nil {
				logging.Warn("Failed to remove sidecar %s: %v", asset.SidecarPath, err)
				metrics.ReclaimErrorsTotal.WithLabelValues("sidecar").Inc()
			}
		}
	}

	r.summary.AddReclaimed(int64(reclaimed))
	return reclaimed
}
