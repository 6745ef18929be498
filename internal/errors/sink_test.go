package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkRecordStampsDefaults(t *testing.T) {
	sink := NewDiagnosticSink()
	sink.Record("/src/App.vue", []Diagnostic{
		{Message: "no file set", Severity: SeverityWarning},
	})

	diags := sink.ForFile("/src/App.vue")
	require.Len(t, diags, 1)
	assert.Equal(t, "/src/App.vue", diags[0].File)
	assert.False(t, diags[0].Timestamp.IsZero())
}

func TestSinkRecordReplacesPriorSet(t *testing.T) {
	sink := NewDiagnosticSink()
	sink.Record("/src/App.vue", []Diagnostic{{Message: "first"}, {Message: "second"}})
	sink.Record("/src/App.vue", []Diagnostic{{Message: "only"}})

	diags := sink.ForFile("/src/App.vue")
	require.Len(t, diags, 1)
	assert.Equal(t, "only", diags[0].Message)
}

func TestSinkResolveReportsWhetherAnythingCleared(t *testing.T) {
	sink := NewDiagnosticSink()
	sink.Record("/src/App.vue", []Diagnostic{{Message: "boom", Severity: SeverityError}})

	assert.True(t, sink.Resolve("/src/App.vue"))
	assert.Empty(t, sink.ForFile("/src/App.vue"))
	assert.False(t, sink.Resolve("/src/App.vue"))
	assert.False(t, sink.Resolve("/never/recorded.vue"))
}

func TestSinkHasErrorsChecksSeverity(t *testing.T) {
	sink := NewDiagnosticSink()
	assert.False(t, sink.HasErrors())

	sink.Record("/src/a.vue", []Diagnostic{{Message: "note", Severity: SeverityWarning}})
	assert.False(t, sink.HasErrors())

	sink.Record("/src/b.vue", []Diagnostic{{Message: "boom", Severity: SeverityError}})
	assert.True(t, sink.HasErrors())

	sink.Resolve("/src/b.vue")
	assert.False(t, sink.HasErrors())
}

func TestSinkAllAggregatesAcrossFiles(t *testing.T) {
	sink := NewDiagnosticSink()
	sink.Record("/src/a.vue", []Diagnostic{{Message: "one"}})
	sink.Record("/src/b.vue", []Diagnostic{{Message: "two"}, {Message: "three"}})

	assert.Len(t, sink.All(), 3)

	sink.Clear()
	assert.Empty(t, sink.All())
}

func TestSinkForFileReturnsCopy(t *testing.T) {
	sink := NewDiagnosticSink()
	sink.Record("/src/a.vue", []Diagnostic{{Message: "original"}})

	diags := sink.ForFile("/src/a.vue")
	diags[0].Message = "mutated"

	assert.Equal(t, "original", sink.ForFile("/src/a.vue")[0].Message)
}
