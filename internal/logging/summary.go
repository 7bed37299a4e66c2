package logging

import (
	"sync"
)

// SkippedItem records a path that was excluded from ingestion and why.
type SkippedItem struct {
	Path   string
	Reason string
}

// Summary accumulates per-run counters and the skipped-path list.
// One Summary is created per run and flushed exactly once at shutdown;
// it replaces any process-global state for run reporting.
type Summary struct {
	mu sync.Mutex

	Scanned     int64
	Transformed int64
	Committed   int64
	Reclaimed   int64
	Archived    int64
	BatchesOK   int64
	BatchesFail int64

	skipped []SkippedItem
	flushed bool
}

// NewSummary creates an empty run summary.
func NewSummary() *Summary {
	return &Summary{}
}

// AddScanned increments the scanned-item counter by n.
func (s *Summary) AddScanned(n int64) {
	s.mu.Lock()
	s.Scanned += n
	s.mu.Unlock()
}

// AddTransformed increments the transformed-item counter by n.
func (s *Summary) AddTransformed(n int64) {
	s.mu.Lock()
	s.Transformed += n
	s.mu.Unlock()
}

// AddCommitted increments the committed-item counter by n.
func (s *Summary) AddCommitted(n int64) {
	s.mu.Lock()
	s.Committed += n
	s.mu.Unlock()
}

// AddReclaimed increments the reclaimed-source counter by n.
func (s *Summary) AddReclaimed(n int64) {
	s.mu.Lock()
	s.Reclaimed += n
	s.mu.Unlock()
}

// AddArchived increments the archived-sidecar counter by n.
func (s *Summary) AddArchived(n int64) {
	s.mu.Lock()
	s.Archived += n
	s.mu.Unlock()
}

// BatchCommitted records the outcome of one batch commit attempt.
func (s *Summary) BatchCommitted(ok bool) {
	s.mu.Lock()
	if ok {
		s.BatchesOK++
	} else {
		s.BatchesFail++
	}
	s.mu.Unlock()
}

// Skip records a path excluded from ingestion with its reason.
func (s *Summary) Skip(path, reason string) {
	s.mu.Lock()
	s.skipped = append(s.skipped, SkippedItem{Path: path, Reason: reason})
	s.mu.Unlock()
}

// Skipped returns a copy of the skipped-path list.
func (s *Summary) Skipped() []SkippedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SkippedItem, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// Flush prints the run summary. Subsequent calls are no-ops so a
// deferred flush and an explicit one cannot double-report.
func (s *Summary) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushed {
		return
	}
	s.flushed = true

	Info("------------------------------------------------------------")
	Info("RUN SUMMARY")
	Info("------------------------------------------------------------")
	Info("  scanned:     %d", s.Scanned)
	Info("  transformed: %d", s.Transformed)
	Info("  committed:   %d", s.Committed)
	Info("  reclaimed:   %d", s.Reclaimed)
	Info("  archived:    %d", s.Archived)
	Info("  batches:     %d ok, %d failed", s.BatchesOK, s.BatchesFail)
	Info("  skipped:     %d", len(s.skipped))
	for _, item := range s.skipped {
		Info("    %s (%s)", item.Path, item.Reason)
	}
}
