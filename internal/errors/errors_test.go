package errors

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Severity
	}{
		{name: "info", input: `"info"`, expected: SeverityInfo},
		{name: "warning", input: `"warning"`, expected: SeverityWarning},
		{name: "short warn accepted", input: `"warn"`, expected: SeverityWarning},
		{name: "error", input: `"error"`, expected: SeverityError},
		{name: "unknown upgrades to error", input: `"fatal"`, expected: SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Severity
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			assert.Equal(t, tt.expected, s)
		})
	}

	data, err := json.Marshal(SeverityWarning)
	require.NoError(t, err)
	assert.Equal(t, `"warning"`, string(data))
}

func TestNotFoundDetection(t *testing.T) {
	base := NewNotFound("/src/missing.js", "/root/src/missing.js")
	assert.True(t, IsNotFound(base))
	assert.Contains(t, base.Error(), "/src/missing.js")

	wrapped := fmt.Errorf("serving module: %w", base)
	assert.True(t, IsNotFound(wrapped))

	assert.False(t, IsNotFound(fmt.Errorf("unrelated")))
	assert.False(t, IsNotFound(nil))
}

func TestParseErrorMessageForms(t *testing.T) {
	withDiags := NewParseError("/src/App.vue", []Diagnostic{
		{Message: "unexpected token", Line: 4, Column: 2},
		{Message: "second"},
	}, nil)
	assert.Contains(t, withDiags.Error(), "unexpected token")

	cause := fmt.Errorf("exit status 1")
	withCause := NewParseError("/src/App.vue", nil, cause)
	assert.Contains(t, withCause.Error(), "exit status 1")
	assert.Equal(t, cause, withCause.Unwrap())

	bare := NewParseError("/src/App.vue", nil, nil)
	assert.Contains(t, bare.Error(), "/src/App.vue")

	wrapped := fmt.Errorf("handling request: %w", withDiags)
	assert.True(t, IsParseError(wrapped))
	assert.False(t, IsParseError(fmt.Errorf("other")))
}

func TestDiagnosticsFrom(t *testing.T) {
	t.Run("parse error keeps its diagnostics", func(t *testing.T) {
		pe := NewParseError("/src/App.vue", []Diagnostic{
			{File: "/src/App.vue", Message: "bad template", Severity: SeverityError},
		}, nil)

		diags := DiagnosticsFrom("/src/App.vue", fmt.Errorf("wrapped: %w", pe))
		require.Len(t, diags, 1)
		assert.Equal(t, "bad template", diags[0].Message)
	})

	t.Run("other errors synthesize one entry", func(t *testing.T) {
		diags := DiagnosticsFrom("/src/App.vue", fmt.Errorf("compiler timed out"))
		require.Len(t, diags, 1)
		assert.Equal(t, "/src/App.vue", diags[0].File)
		assert.Equal(t, SeverityError, diags[0].Severity)
		assert.Contains(t, diags[0].Message, "timed out")
	})

	t.Run("parse error without diagnostics synthesizes too", func(t *testing.T) {
		pe := NewParseError("/src/App.vue", nil, fmt.Errorf("exit status 1"))
		diags := DiagnosticsFrom("/src/App.vue", pe)
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Message, "parse failed")
	})
}

func TestManifestErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := &ManifestError{Package: "vue", Path: "/root/node_modules/vue/package.json", Cause: cause}

	assert.Contains(t, err.Error(), "vue")
	assert.Contains(t, err.Error(), "package.json")
	assert.Equal(t, cause, err.Unwrap())
}

func TestDiagnosticString(t *testing.T) {
	positioned := Diagnostic{File: "/src/App.vue", Line: 12, Column: 5, Message: "bad token", Severity: SeverityError}
	assert.Equal(t, "/src/App.vue:12:5: error: bad token", positioned.String())

	fileOnly := Diagnostic{File: "/src/App.vue", Message: "style warning", Severity: SeverityWarning}
	assert.Equal(t, "/src/App.vue: warning: style warning", fileOnly.String())
}
