package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{input: "debug", expected: LevelDebug},
		{input: "info", expected: LevelInfo},
		{input: "warn", expected: LevelWarn},
		{input: "warning", expected: LevelWarn},
		{input: "error", expected: LevelError},
		{input: "nonsense", expected: LevelInfo},
		{input: "", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
}

// decodeLine parses the single JSON record written to buf.
func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("resolver").Info(context.Background(), "package entry resolved",
		"package", "vue",
		"entry", "vue/dist/vue.esm.js")

	record := decodeLine(t, &buf)
	assert.Equal(t, "package entry resolved", record["msg"])
	assert.Equal(t, "resolver", record["component"])
	assert.Equal(t, "vue", record["package"])
	assert.Equal(t, "vue/dist/vue.esm.js", record["entry"])
}

func TestErrorFieldAttached(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelDebug, Format: "json", Output: &buf})

	logger.Warn(context.Background(), fmt.Errorf("watch failed"), "cannot watch project root")

	record := decodeLine(t, &buf)
	assert.Equal(t, "cannot watch project root", record["msg"])
	assert.Equal(t, "watch failed", record["error"])
}

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelWarn, Format: "json", Output: &buf})

	logger.Debug(context.Background(), "dropped")
	logger.Info(context.Background(), "dropped too")
	assert.Zero(t, buf.Len())

	logger.Warn(context.Background(), nil, "kept")
	assert.NotZero(t, buf.Len())
}

func TestWithFieldsPersist(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelDebug, Format: "json", Output: &buf})

	scoped := logger.With("request_id", "abc123")
	scoped.Info(context.Background(), "handled")

	record := decodeLine(t, &buf)
	assert.Equal(t, "abc123", record["request_id"])
}

func TestNopDiscardsQuietly(t *testing.T) {
	logger := Nop()
	logger.Debug(context.Background(), "nothing")
	logger.Error(context.Background(), fmt.Errorf("boom"), "still nothing")
	logger.With("k", "v").WithComponent("x").Info(context.Background(), "fine")
}
