// Package database manages the embedded relational store for structured
// illustration metadata: the illusts table, keyed by filename or by
// numeric identifier depending on deployment mode, written through
// batched INSERT OR REPLACE transactions.
package database
