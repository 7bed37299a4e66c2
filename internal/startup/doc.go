// Package startup handles run initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all run configuration and provides consistent
// logging throughout the run lifecycle.
//
// # Configuration
//
// Configuration is loaded from command-line flags via [LoadConfig], with
// environment variables as fallback defaults for the long-lived knobs:
//
//   - -source / SOURCE_DIR: Directory scanned for source images (default: ./images)
//   - -blob / BLOB_PATH: Path of the image blob store (default: illusts.bolt)
//   - -db / DATABASE_PATH: Path of the metadata database (default: illusts.db)
//   - -batch-size / BATCH_SIZE: Items committed per transaction pair (default: 32)
//   - -size / TARGET_SIZE: Square output dimension in pixels (default: 512)
//   - -key-mode / KEY_MODE: illusts primary key, filename or id (default: filename)
//   - -recursive / RECURSIVE: Scan the source tree recursively (default: false)
//   - -consume-sidecars: Delete sidecars along with reclaimed images (default: false)
//   - -skip-archive: Skip the final sidecar archive sweep (default: false)
//   - -workers: Transform worker count, 0 sizes from the CPU count
//   - -metrics / METRICS_ENABLED: Serve Prometheus metrics during the run (default: false)
//   - -metrics-port / METRICS_PORT: Metrics listener port (default: 9090)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - RESIZE_ENGINE: Transform engine - imaging or vips (default: imaging)
//   - INGEST_WORKERS: Worker count override, takes precedence over heuristics
//
// # Directory Setup
//
// The package validates directories before any work starts:
//   - Source directory: Required, must exist (never created)
//   - Store parent directories: Created if missing, must be writable
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogStoresInit]: Store initialization timing
//   - [LogIngestStart]: Beginning of the ingest pass
//   - [LogArchiveStart]: Beginning of the sidecar archive sweep
//   - [LogShutdownInitiated]: Batch-boundary shutdown start
//   - [LogRunComplete]: Run completion and duration
package startup
