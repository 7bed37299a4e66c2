package blobstore

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"illust-packer/internal/logging"
)

// bucketImages holds every re-encoded image, keyed by stable filename key.
var bucketImages = []byte("images")

// Options configures the blob store.
type Options struct {
	// MapSize is the pre-declared initial mmap size. The store grows
	// beyond it, but pre-sizing avoids remaps during large ingests.
	MapSize int
	// OpenTimeout bounds how long Open waits for the file lock.
	OpenTimeout time.Duration
}

// DefaultOptions returns the standard ingest configuration.
func DefaultOptions() Options {
	return Options{
		MapSize:     1 << 30,
		OpenTimeout: 5 * time.Second,
	}
}

// Store is an embedded transactional key->bytes store for normalized
// image payloads. It has a single writer: at most one BatchTx may be
// open at a time, which the underlying engine enforces.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (creating if needed) the blob store at path. Failure to
// open is fatal to the run.
func Open(path string, opts Options) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout:         opts.OpenTimeout,
		InitialMmapSize: opts.MapSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketImages)
		return err
	})
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close blob store after init failure: %v", closeErr)
		}
		return nil, fmt.Errorf("initialize blob store %s: %w", path, err)
	}

	logging.Info("Blob store opened at %s (initial mmap %d bytes)", path, opts.MapSize)
	return &Store{db: db, path: path}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// Has reports whether a key is already present. Used as the idempotence
// gate before transform work is scheduled.
func (s *Store) Has(key string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketImages).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

// Get returns the payload stored under key, or nil if absent.
func (s *Store) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketImages).Get([]byte(key))
		if v != nil {
			out = make([]byte, len(v))
			copy(out, v)
		}
		return nil
	})
	return out, err
}

// Len returns the number of stored images.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketImages).Stats().KeyN
		return nil
	})
	return n, err
}

// Begin opens the write transaction for one batch. The caller must
// resolve it with Commit or Rollback before opening another.
func (s *Store) Begin() (*BatchTx, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("begin blob transaction: %w", err)
	}
	return &BatchTx{tx: tx}, nil
}

// BatchTx is one open write transaction covering a whole batch of puts.
type BatchTx struct {
	tx   *bolt.Tx
	puts int
}

// Put upserts one image payload under its stable key.
func (b *BatchTx) Put(key string, value []byte) error {
	if err := b.tx.Bucket(bucketImages).Put([]byte(key), value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	b.puts++
	return nil
}

// Puts returns how many puts this transaction holds.
func (b *BatchTx) Puts() int {
	return b.puts
}

// Commit durably flushes the batch.
func (b *BatchTx) Commit() error {
	return b.tx.Commit()
}

// Rollback abandons the batch; none of its puts become visible.
func (b *BatchTx) Rollback() error {
	return b.tx.Rollback()
}
