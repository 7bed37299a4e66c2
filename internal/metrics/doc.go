// Package metrics defines Prometheus collectors for the ingestion
// pipeline and an optional HTTP listener that exposes them while a run
// is in progress.
package metrics
