package errors

import (
	"sync"
	"time"
)

// DiagnosticSink collects compiler diagnostics per source file. The server
// pushes the current set to connected clients for the error overlay and
// clears a file's slot on its next clean compile.
type DiagnosticSink struct {
	byFile map[string][]Diagnostic
	mutex  sync.RWMutex
}

// NewDiagnosticSink creates an empty sink.
func NewDiagnosticSink() *DiagnosticSink {
	return &DiagnosticSink{byFile: make(map[string][]Diagnostic)}
}

// Record replaces the diagnostics held for a file.
func (s *DiagnosticSink) Record(file string, diags []Diagnostic) {
	now := time.Now()
	stamped := make([]Diagnostic, len(diags))
	for i, d := range diags {
		if d.Timestamp.IsZero() {
			d.Timestamp = now
		}
		if d.File == "" {
			d.File = file
		}
		stamped[i] = d
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.byFile[file] = stamped
}

// Resolve drops the diagnostics for a file after a clean compile. It reports
// whether anything was actually cleared, so callers only notify clients when
// an overlay might be showing.
func (s *DiagnosticSink) Resolve(file string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	had := len(s.byFile[file]) > 0
	delete(s.byFile, file)
	return had
}

// ForFile returns a copy of the diagnostics held for one file.
func (s *DiagnosticSink) ForFile(file string) []Diagnostic {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	diags := s.byFile[file]
	out := make([]Diagnostic, len(diags))
	copy(out, diags)
	return out
}

// All returns a copy of every held diagnostic, newest file order unspecified.
func (s *DiagnosticSink) All() []Diagnostic {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []Diagnostic
	for _, diags := range s.byFile {
		out = append(out, diags...)
	}
	return out
}

// HasErrors reports whether any file currently holds an error-severity
// diagnostic.
func (s *DiagnosticSink) HasErrors() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, diags := range s.byFile {
		for _, d := range diags {
			if d.Severity == SeverityError {
				return true
			}
		}
	}
	return false
}

// Clear drops everything, used on full restarts of the serving pipeline.
func (s *DiagnosticSink) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.byFile = make(map[string][]Diagnostic)
}
