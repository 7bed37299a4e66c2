// Package workers provides utilities for determining worker pool sizes
// for the transform stage.
//
// Go 1.19+ sets GOMAXPROCS from container CPU limits, so worker counts
// derived from GOMAXPROCS respect cgroup constraints where
// runtime.NumCPU() would not. All functions honor the INGEST_WORKERS
// environment variable as an operator override.
package workers
