package pipeline

import (
	"context"
	"fmt"
	"time"

	"illust-packer/internal/blobstore"
	"illust-packer/internal/database"
	"illust-packer/internal/logging"
	"illust-packer/internal/metadata"
	"illust-packer/internal/metrics"
	"illust-packer/internal/scanner"
)

// BatchState tracks one batch through its lifecycle.
type BatchState int

const (
	// StateAccumulating means the batch is still collecting items.
	StateAccumulating BatchState = iota
	// StateCommitting means a commit attempt is in progress.
	StateCommitting
	// StateCommitted means both stores confirmed the batch durable.
	StateCommitted
	// StateFailed means the commit attempt was rolled back.
	StateFailed
)

// String returns the state name for logs.
func (s BatchState) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Item is one transformed asset ready for commit: the normalized image
// payload plus its metadata record, if a sidecar produced one.
type Item struct {
	Asset  scanner.SourceAsset
	Image  []byte
	Record *metadata.Record
}

// batch is an ephemeral group of items committed as one transactional
// unit per store.
type batch struct {
	items []Item
	state BatchState
}

// CommitError is a per-batch failure: the batch was rolled back, its
// sources were left untouched, and a later run will reprocess them.
type CommitError struct {
	Store string
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit batch to %s store: %v", e.Store, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Coordinator groups items into batches and commits each batch across
// both stores. It is single-threaded: exactly one write transaction is
// open per store at any time, and batches commit in the order they fill.
//
// The ordering invariant: the blob-store transaction is resolved before
// the relational commit is attempted, so a crash between the two can
// leave an image without its metadata row (recoverable by re-running
// extraction) but never a metadata row pointing at a missing image.
// Sources are handed to the Reclaimer only after both commits.
type Coordinator struct {
	blob      *blobstore.Store
	db        *database.DB
	reclaimer *Reclaimer
	summary   *logging.Summary
	batchSize int

	current batch
}

// NewCoordinator creates a coordinator committing batches of batchSize
// items. reclaimer may be nil to disable source deletion (dry runs).
func NewCoordinator(blob *blobstore.Store, db *database.DB, reclaimer *Reclaimer, summary *logging.Summary, batchSize int) *Coordinator {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Coordinator{
		blob:      blob,
		db:        db,
		reclaimer: reclaimer,
		summary:   summary,
		batchSize: batchSize,
	}
}

// Add appends one item to the current batch, committing it when full.
// A returned *CommitError covers the whole batch; the run continues
// with the next batch either way.
func (c *Coordinator) Add(ctx context.Context, item Item) error {
	c.current.items = append(c.current.items, item)
	if len(c.current.items) >= c.batchSize {
		return c.commitCurrent(ctx)
	}
	return nil
}

// Flush commits the final partial batch, if any.
func (c *Coordinator) Flush(ctx context.Context) error {
	if len(c.current.items) == 0 {
		return nil
	}
	return c.commitCurrent(ctx)
}

// Pending returns how many items are accumulating in the open batch.
func (c *Coordinator) Pending() int {
	return len(c.current.items)
}

func (c *Coordinator) commitCurrent(ctx context.Context) error {
	b := c.current
	c.current = batch{}

	// An in-flight batch is never cancelled mid-commit; shutdown is
	// honored at the batch boundary by the caller.
	err := c.commit(context.WithoutCancel(ctx), &b)
	c.summary.BatchCommitted(err == nil)
	if err != nil {
		logging.Error("Batch of %d items failed: %v", len(b.items), err)
		return err
	}

	c.summary.AddCommitted(int64(len(b.items)))
	metrics.BatchesCommittedTotal.Inc()
	metrics.BatchSize.Observe(float64(len(b.items)))

	if c.reclaimer != nil {
		assets := make([]scanner.SourceAsset, 0, len(b.items))
		for _, item := range b.items {
			assets = append(assets, item.Asset)
		}
		c.reclaimer.Reclaim(assets)
	}
	return nil
}

// commit drives one batch through Committing to Committed or Failed.
func (c *Coordinator) commit(ctx context.Context, b *batch) error {
	b.state = StateCommitting
	logging.Debug("Committing batch of %d items", len(b.items))

	if err := c.commitBlob(b); err != nil {
		b.state = StateFailed
		metrics.BatchesFailedTotal.WithLabelValues("blob").Inc()
		return &CommitError{Store: "blob", Err: err}
	}

	if err := c.commitRelational(ctx, b); err != nil {
		// The blob transaction is already durable at this point; the
		// orphaned images are tolerated and the rows are recoverable
		// by re-running extraction against the retained sources.
		b.state = StateFailed
		metrics.BatchesFailedTotal.WithLabelValues("relational").Inc()
		return &CommitError{Store: "relational", Err: err}
	}

	b.state = StateCommitted
	return nil
}

func (c *Coordinator) commitBlob(b *batch) error {
	start := time.Now()
	tx, err := c.blob.Begin()
	if err != nil {
		return err
	}

	var bytesWritten int
	for _, item := range b.items {
		if err := tx.Put(item.Asset.Key(), item.Image); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("blob rollback failed: %v", rbErr)
			}
			return err
		}
		bytesWritten += len(item.Image)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	metrics.BlobBytesWrittenTotal.Add(float64(bytesWritten))
	metrics.BatchCommitDuration.WithLabelValues("blob").Observe(time.Since(start).Seconds())
	return nil
}

func (c *Coordinator) commitRelational(ctx context.Context, b *batch) error {
	start := time.Now()
	tx, err := c.db.BeginBatch(ctx)
	if err != nil {
		return err
	}

	for _, item := range b.items {
		if item.Record == nil {
			continue
		}
		if err := tx.Upsert(ctx, item.Record); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("relational rollback failed: %v", rbErr)
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	metrics.BatchCommitDuration.WithLabelValues("relational").Observe(time.Since(start).Seconds())
	return nil
}
