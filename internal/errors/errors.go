// Package errors defines the error taxonomy for viaduct's serving pipeline.
//
// The taxonomy separates fatal request errors (NotFoundError, ParseError)
// from conditions that deliberately degrade: an unreadable package manifest
// is a resolution miss, a template or style diagnostic still produces cached
// output, and a manifest without a usable entry point falls back to the raw
// identifier with a warning. Resolution layers never surface their own
// misses; only exhaustion of every strategy becomes a NotFoundError.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes the severity as its string form.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts the string form, defaulting unknown values to error
// so a malformed compiler response never silently downgrades a diagnostic.
func (s *Severity) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"info"`:
		*s = SeverityInfo
	case `"warning"`, `"warn"`:
		*s = SeverityWarning
	default:
		*s = SeverityError
	}
	return nil
}

// NotFoundError reports that every resolution strategy was tried and no file
// exists for the request. It maps to a 404 at the HTTP boundary.
type NotFoundError struct {
	// Path is the public request path that could not be resolved
	Path string
	// Tried lists the filesystem paths probed before giving up
	Tried []string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no file found for %q", e.Path)
}

// NewNotFound creates a NotFoundError for a request path.
func NewNotFound(path string, tried ...string) *NotFoundError {
	return &NotFoundError{Path: path, Tried: tried}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ParseError reports that the compiler service rejected a source file. The
// request that triggered the parse fails and nothing is cached for the file;
// a later request retries from current disk content.
type ParseError struct {
	// File is the absolute path of the rejected source
	File string
	// Diagnostics carries the compiler's positioned messages
	Diagnostics []Diagnostic
	// Cause is the underlying compiler error when one exists
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if len(e.Diagnostics) > 0 {
		return fmt.Sprintf("parse failed for %s: %s", e.File, e.Diagnostics[0].Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("parse failed for %s: %v", e.File, e.Cause)
	}
	return fmt.Sprintf("parse failed for %s", e.File)
}

// Unwrap returns the underlying cause error.
func (e *ParseError) Unwrap() error { return e.Cause }

// NewParseError creates a ParseError from compiler output.
func NewParseError(file string, diags []Diagnostic, cause error) *ParseError {
	return &ParseError{File: file, Diagnostics: diags, Cause: cause}
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// DiagnosticsFrom unwraps a compile failure into displayable diagnostics,
// synthesizing a single file-level entry when the error carries none.
func DiagnosticsFrom(file string, err error) []Diagnostic {
	var pe *ParseError
	if errors.As(err, &pe) && len(pe.Diagnostics) > 0 {
		return pe.Diagnostics
	}
	return []Diagnostic{{
		File:     file,
		Message:  err.Error(),
		Severity: SeverityError,
	}}
}

// ManifestError reports a package manifest that exists but could not be read
// or decoded. Callers treat it as a resolution miss, not a failure: the bare
// identifier is handled by the next strategy upstream.
type ManifestError struct {
	// Package is the bare identifier whose manifest misbehaved
	Package string
	// Path is the manifest file that was read
	Path string
	// Cause is the read or decode error
	Cause error
}

// Error implements the error interface.
func (e *ManifestError) Error() string {
	return fmt.Sprintf("unreadable manifest for package %q at %s: %v", e.Package, e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ManifestError) Unwrap() error { return e.Cause }

// Diagnostic is a positioned, non-fatal message from the compiler service.
// Template and style diagnostics never fail the request that produced them;
// they are surfaced separately through the overlay and the stats API.
type Diagnostic struct {
	File      string    `json:"file"`
	Line      int       `json:"line,omitempty"`
	Column    int       `json:"column,omitempty"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// String formats the diagnostic in file:line:col style.
func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.File, d.Severity, d.Message)
}
