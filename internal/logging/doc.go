// Package logging provides a simple leveled logging interface for the
// ingestion pipeline, plus a per-run Summary handle.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable.
// The Summary type accumulates run counters (scanned, transformed,
// committed, reclaimed) and the skipped-path list, and is flushed once
// at shutdown.
package logging
