package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"illust-packer/internal/blobstore"
	"illust-packer/internal/database"
	"illust-packer/internal/filesystem"
	"illust-packer/internal/logging"
	"illust-packer/internal/metadata"
	"illust-packer/internal/metrics"
	"illust-packer/internal/scanner"
	"illust-packer/internal/transform"
	"illust-packer/internal/workers"
)

// Config tunes one pipeline run.
type Config struct {
	// BatchSize is the number of items committed per transaction pair.
	BatchSize int
	// Workers is the transform pool size; 0 sizes it from the CPU count.
	Workers int
	// ChannelBuffer is the jobs/results channel capacity.
	ChannelBuffer int
	// ConsumeSidecars deletes sidecars along with reclaimed images.
	ConsumeSidecars bool
}

// DefaultConfig returns the standard run configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:     32,
		Workers:       0,
		ChannelBuffer: 256,
	}
}

// Pipeline wires the scanner, the transform worker pool and the batch
// commit coordinator into one run. The store handles are owned by the
// coordinator side and never touched by pool workers.
type Pipeline struct {
	cfg     Config
	scan    *scanner.Scanner
	engine  transform.Engine
	blob    *blobstore.Store
	db      *database.DB
	summary *logging.Summary
	retry   filesystem.RetryConfig

	transformed atomic.Int64
	skipped     atomic.Int64
}

// New creates a Pipeline over already-opened stores.
func New(cfg Config, scan *scanner.Scanner, engine transform.Engine, blob *blobstore.Store, db *database.DB, summary *logging.Summary) *Pipeline {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 32
	}
	if cfg.ChannelBuffer < 1 {
		cfg.ChannelBuffer = 256
	}
	return &Pipeline{
		cfg:     cfg,
		scan:    scan,
		engine:  engine,
		blob:    blob,
		db:      db,
		summary: summary,
		retry:   filesystem.DefaultRetryConfig(),
	}
}

// Run executes one full ingest pass: scan, transform in parallel,
// commit in batches, reclaim committed sources.
//
// Cancellation is honored at batch boundaries only: once ctx is done no
// new work is scheduled, but items already in flight finish committing.
// Run returns ctx.Err() after the open batch has been resolved.
func (p *Pipeline) Run(ctx context.Context) error {
	numWorkers := p.cfg.Workers
	if numWorkers <= 0 {
		numWorkers = workers.ForCPU(0)
	}
	metrics.TransformWorkers.Set(float64(numWorkers))
	logging.Info("Starting ingest with %d transform workers, batch size %d (engine: %s)",
		numWorkers, p.cfg.BatchSize, p.engine.Name())
	startTime := time.Now()

	jobs := make(chan scanner.SourceAsset, p.cfg.ChannelBuffer)
	results := make(chan Item, p.cfg.ChannelBuffer)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(id, jobs, results)
		}(i)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Pattern-mismatched image files surface through the scanner's skip
	// hook so they reach the summary and metrics like any other skip.
	p.scan.OnSkip = p.skip

	// The scanner feeds the pool; a cancelled context stops enqueueing
	// so the pool drains and the coordinator can finish cleanly.
	var scanErr error
	go func() {
		defer close(jobs)
		scanErr = p.scan.Scan(ctx, func(asset scanner.SourceAsset) error {
			p.summary.AddScanned(1)
			metrics.ItemsScannedTotal.Inc()

			exists, err := p.blob.Has(asset.Key())
			if err != nil {
				logging.Warn("Idempotence check failed for %s: %v", asset.Path, err)
			} else if exists {
				p.skip(asset.Path, "exists")
				return nil
			}

			select {
			case jobs <- asset:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}()

	reclaimer := NewReclaimer(p.cfg.ConsumeSidecars, p.summary)
	coord := NewCoordinator(p.blob, p.db, reclaimer, p.summary, p.cfg.BatchSize)

	// Single-threaded commit loop; batch failures are absorbed here and
	// the failed batch's sources stay on disk for the next run.
	for item := range results {
		if err := coord.Add(ctx, item); err != nil {
			var commitErr *CommitError
			if !errors.As(err, &commitErr) {
				return err
			}
		}
	}
	if err := coord.Flush(ctx); err != nil {
		var commitErr *CommitError
		if !errors.As(err, &commitErr) {
			return err
		}
	}

	logging.Info("Ingest pass complete: %d transformed, %d skipped in %v",
		p.transformed.Load(), p.skipped.Load(), time.Since(startTime))

	if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
		return scanErr
	}
	return ctx.Err()
}

// worker transforms assets and extracts sidecar metadata. Workers share
// nothing beyond the channels; store handles stay with the coordinator.
func (p *Pipeline) worker(id int, jobs <-chan scanner.SourceAsset, results chan<- Item) {
	logging.Debug("Transform worker %d started", id)

	for asset := range jobs {
		item, ok := p.process(asset)
		if !ok {
			continue
		}
		results <- item
	}

	logging.Debug("Transform worker %d finished", id)
}

// process turns one source asset into a committable Item. Item-level
// failures are absorbed here: the asset is skipped and logged, never
// fatal to the run.
func (p *Pipeline) process(asset scanner.SourceAsset) (Item, bool) {
	payload, err := filesystem.ReadFileWithRetry(asset.Path, p.retry)
	if err != nil {
		logging.Warn("Failed to read %s: %v", asset.Path, err)
		p.skip(asset.Path, "read")
		return Item{}, false
	}

	start := time.Now()
	encoded, err := p.engine.Transform(payload)
	if err != nil {
		reason := "decode"
		if errors.Is(err, transform.ErrEncode) {
			reason = "encode"
		}
		logging.Warn("Failed to transform %s: %v", asset.Path, err)
		p.skip(asset.Path, reason)
		return Item{}, false
	}
	metrics.TransformDuration.Observe(time.Since(start).Seconds())
	metrics.ItemsTransformedTotal.Inc()
	p.transformed.Add(1)
	p.summary.AddTransformed(1)

	item := Item{Asset: asset, Image: encoded}

	if asset.SidecarPath != "" {
		sidecar, err := filesystem.ReadFileWithRetry(asset.SidecarPath, p.retry)
		if err != nil {
			logging.Warn("Failed to read sidecar %s: %v", asset.SidecarPath, err)
		} else if rec, err := metadata.Extract(sidecar, asset.Name); err != nil {
			// The image still ingests; only the metadata row is lost.
			logging.Warn("Failed to parse sidecar %s: %v", asset.SidecarPath, err)
		} else {
			item.Record = rec
		}
	}

	return item, true
}

func (p *Pipeline) skip(path, reason string) {
	p.skipped.Add(1)
	p.summary.Skip(path, reason)
	metrics.ItemsSkippedTotal.WithLabelValues(reason).Inc()
}
