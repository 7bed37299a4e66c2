package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"illust-packer/internal/logging"
	"illust-packer/internal/metadata"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// KeyMode selects the primary key of the illusts table.
type KeyMode string

const (
	// KeyFilename keys rows by image filename (the consolidation mode).
	KeyFilename KeyMode = "filename"
	// KeyID keys rows by numeric illustration identifier.
	KeyID KeyMode = "id"
)

// Valid reports whether m is a recognized key mode.
func (m KeyMode) Valid() bool {
	return m == KeyFilename || m == KeyID
}

// DB manages the relational metadata store.
type DB struct {
	db      *sql.DB
	dbPath  string
	keyMode KeyMode
}

// New opens (creating if needed) the metadata database at dbPath and
// ensures the illusts schema exists for the given key mode. Open
// failure is fatal to the run.
func New(ctx context.Context, dbPath string, keyMode KeyMode) (*DB, error) {
	if !keyMode.Valid() {
		return nil, fmt.Errorf("invalid key mode %q", keyMode)
	}

	// WAL mode keeps batch commits cheap; busy_timeout prevents
	// "database is locked" errors when a reader is attached.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The coordinator is the only writer; one connection avoids writer
	// contention entirely.
	db.SetMaxOpenConns(1)

	d := &DB{
		db:      db,
		dbPath:  dbPath,
		keyMode: keyMode,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Metadata database initialized at %s (key mode: %s)", dbPath, keyMode)
	return d, nil
}

func (d *DB) initialize(ctx context.Context) error {
	pk := map[KeyMode][2]string{
		KeyFilename: {"filename TEXT PRIMARY KEY", "id INTEGER"},
		KeyID:       {"filename TEXT", "id INTEGER PRIMARY KEY"},
	}[d.keyMode]

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS illusts (
		%s,
		%s,
		title TEXT,
		type TEXT,
		restrict INTEGER,
		user_name TEXT,
		user_account TEXT,
		tags TEXT,
		create_date TIMESTAMP,
		page_count INTEGER,
		width INTEGER,
		height INTEGER,
		sanity_level INTEGER,
		x_restrict INTEGER,
		total_view INTEGER,
		total_bookmarks INTEGER,
		is_bookmarked BOOLEAN,
		visible BOOLEAN,
		is_muted BOOLEAN,
		illust_ai_type INTEGER,
		illust_book_style INTEGER,
		num INTEGER,
		date TIMESTAMP,
		rating TEXT,
		suffix TEXT,
		category TEXT,
		subcategory TEXT,
		url TEXT,
		date_url TEXT,
		extension TEXT
	);`, pk[0], pk[1])

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(initCtx, schema)
	return err
}

// Close releases the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// KeyMode returns the configured primary key mode.
func (d *DB) KeyMode() KeyMode {
	return d.keyMode
}

// upsertSQL is the per-record statement prepared once per batch.
const upsertSQL = `INSERT OR REPLACE INTO illusts (
	filename, id, title, type, restrict, user_name, user_account, tags,
	create_date, page_count, width, height, sanity_level, x_restrict,
	total_view, total_bookmarks, is_bookmarked, visible, is_muted,
	illust_ai_type, illust_book_style, num, date, rating, suffix,
	category, subcategory, url, date_url, extension
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// BeginBatch opens the write transaction for one batch of upserts.
func (d *DB) BeginBatch(ctx context.Context) (*BatchTx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin metadata transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error("rollback after prepare failure: %v", rbErr)
		}
		return nil, fmt.Errorf("prepare upsert: %w", err)
	}
	return &BatchTx{tx: tx, stmt: stmt}, nil
}

// BatchTx is one open transaction with a prepared upsert cursor.
type BatchTx struct {
	tx      *sql.Tx
	stmt    *sql.Stmt
	upserts int
}

// Upsert writes one metadata record, overwriting on primary key conflict.
func (b *BatchTx) Upsert(ctx context.Context, rec *metadata.Record) error {
	_, err := b.stmt.ExecContext(ctx,
		rec.Filename, rec.ID, rec.Title, rec.Type, rec.Restrict,
		rec.UserName, rec.UserAccount, rec.Tags, rec.CreateDate,
		rec.PageCount, rec.Width, rec.Height, rec.SanityLevel,
		rec.XRestrict, rec.TotalView, rec.TotalBookmarks,
		rec.IsBookmarked, rec.Visible, rec.IsMuted, rec.IllustAIType,
		rec.IllustBookStyle, rec.Num, rec.Date, rec.Rating, rec.Suffix,
		rec.Category, rec.Subcategory, rec.URL, rec.DateURL, rec.Extension,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", rec.Filename, err)
	}
	b.upserts++
	return nil
}

// Upserts returns how many records this transaction holds.
func (b *BatchTx) Upserts() int {
	return b.upserts
}

// Commit durably flushes the batch.
func (b *BatchTx) Commit() error {
	if err := b.stmt.Close(); err != nil {
		logging.Warn("close upsert statement: %v", err)
	}
	return b.tx.Commit()
}

// Rollback abandons the batch.
func (b *BatchTx) Rollback() error {
	if err := b.stmt.Close(); err != nil {
		logging.Debug("close upsert statement on rollback: %v", err)
	}
	return b.tx.Rollback()
}
