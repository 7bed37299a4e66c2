// Package pipeline implements the batched ingestion and dual-store
// commit pipeline: a parallel transform stage feeding a single-threaded
// batch commit coordinator.
//
// Each batch is committed as one write transaction per store, blob
// store first, and source files are released for deletion if and only
// if both commits were confirmed durable. A failed batch is rolled back
// and its sources left on disk, so the next run rediscovers and
// reprocesses them.
package pipeline
