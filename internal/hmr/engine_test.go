package hmr

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viaduct-dev/viaduct/internal/cache"
	"github.com/viaduct-dev/viaduct/internal/compiler"
	"github.com/viaduct-dev/viaduct/internal/errors"
	"github.com/viaduct-dev/viaduct/internal/logging"
	"github.com/viaduct-dev/viaduct/internal/types"
)

// pathMapper is the request mapping a resolver would produce: root-relative
// slash paths with a leading slash.
type pathMapper struct {
	root string
}

func (m pathMapper) ResolveToRequest(filePath string) string {
	rel, err := filepath.Rel(m.root, filePath)
	if err != nil {
		return filepath.ToSlash(filePath)
	}
	return "/" + filepath.ToSlash(rel)
}

// fakeService scripts the parse outcome; template and style compilation are
// never reached by the invalidation flow.
type fakeService struct {
	parse func(ctx context.Context, source []byte, filename string) (*compiler.ParseResult, error)
}

func (f *fakeService) Parse(ctx context.Context, source []byte, filename string) (*compiler.ParseResult, error) {
	return f.parse(ctx, source, filename)
}

func (f *fakeService) CompileTemplate(context.Context, compiler.TemplateRequest) (*compiler.CompileResult, error) {
	return nil, stderrors.New("template compilation not expected during invalidation")
}

func (f *fakeService) CompileStyle(context.Context, compiler.StyleRequest) (*compiler.CompileResult, error) {
	return nil, stderrors.New("style compilation not expected during invalidation")
}

type recordingNotifier struct {
	mu            sync.Mutex
	reloads       []types.ReloadEvent
	compileErrors []string
	cleared       []string
}

func (n *recordingNotifier) SendReload(ev types.ReloadEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloads = append(n.reloads, ev)
}

func (n *recordingNotifier) SendCompileError(path string, _ []errors.Diagnostic) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.compileErrors = append(n.compileErrors, path)
}

func (n *recordingNotifier) ClearCompileError(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cleared = append(n.cleared, path)
}

type engineFixture struct {
	root     string
	engine   *Engine
	cache    *cache.Cache
	graph    *Graph
	sink     *errors.DiagnosticSink
	notifier *recordingNotifier
	service  *fakeService
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		root:     t.TempDir(),
		cache:    cache.New(cache.DefaultMaxEntries),
		graph:    NewGraph(),
		sink:     errors.NewDiagnosticSink(),
		notifier: &recordingNotifier{},
		service: &fakeService{
			parse: func(context.Context, []byte, string) (*compiler.ParseResult, error) {
				return nil, stderrors.New("parse not scripted for this test")
			},
		},
	}
	f.engine = NewEngine(pathMapper{root: f.root}, f.cache, f.graph, f.service, f.sink, f.notifier, logging.Nop())
	return f
}

func (f *engineFixture) write(t *testing.T, name, content string) string {
	t.Helper()
	filePath := filepath.Join(f.root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	return filePath
}

func (f *engineFixture) seedDescriptor(t *testing.T, filePath string, desc *types.Descriptor) {
	t.Helper()
	_, err := f.cache.Descriptor(context.Background(), filePath, func(context.Context) (*types.Descriptor, error) {
		return desc, nil
	})
	require.NoError(t, err)
}

func actions(events []types.ReloadEvent) []types.ReloadAction {
	out := make([]types.ReloadAction, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Action)
	}
	return out
}

func TestEngineSkipsFileThatWasNeverServed(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "src/orphan.js", "export const x = 1")

	events := f.engine.HandleChange(context.Background(), filePath)

	assert.Nil(t, events, "no cache entry and no importer edge means nobody can observe the change")
	assert.Empty(t, f.notifier.reloads)
}

func TestEngineHTMLBypassesInUseCheck(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "index.html", "<html></html>")

	events := f.engine.HandleChange(context.Background(), filePath)

	require.Len(t, events, 1)
	assert.Equal(t, types.ActionFullReload, events[0].Action)
	assert.Equal(t, "/index.html", events[0].Path)
	assert.Equal(t, -1, events[0].Index)
	assert.Len(t, f.notifier.reloads, 1)
}

func TestEngineScriptChangeReloadsAndInvalidates(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "src/main.js", "export const x = 1")
	_, err := f.cache.MainModule(context.Background(), filePath, func(context.Context) (*cache.Slot, error) {
		return &cache.Slot{Code: []byte("export const x = 1")}, nil
	})
	require.NoError(t, err)

	events := f.engine.HandleChange(context.Background(), filePath)

	require.Len(t, events, 1)
	assert.Equal(t, types.ActionFullReload, events[0].Action)
	assert.Equal(t, "/src/main.js", events[0].Path)
	_, cached := f.cache.Peek(filePath)
	assert.False(t, cached, "the stale compilation must be dropped before clients reload")
}

func TestEngineStyleChangeWithImporterEdge(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "src/theme.css", "body { margin: 0 }")
	f.graph.Record("/src/theme.css", "/src/main.js")

	events := f.engine.HandleChange(context.Background(), filePath)

	require.Len(t, events, 1)
	assert.Equal(t, types.ActionStyleUpdate, events[0].Action)
	assert.Equal(t, "/src/theme.css", events[0].Path)
	assert.Equal(t, -1, events[0].Index, "plain stylesheets carry no block index")
}

func TestEngineComponentDiffFlow(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "src/App.vue", "<template><p>new</p></template>")
	f.seedDescriptor(t, filePath, &types.Descriptor{
		Filename: filePath,
		Script:   &types.Block{Content: "export default {}"},
		Template: &types.Block{Content: "<p>old</p>"},
	})
	f.service.parse = func(_ context.Context, source []byte, filename string) (*compiler.ParseResult, error) {
		assert.Equal(t, "<template><p>new</p></template>", string(source),
			"the engine parses the on-disk content, not the cached one")
		return &compiler.ParseResult{Descriptor: &types.Descriptor{
			Filename: filename,
			Script:   &types.Block{Content: "export default {}"},
			Template: &types.Block{Content: "<p>new</p>"},
		}}, nil
	}

	events := f.engine.HandleChange(context.Background(), filePath)

	assert.Equal(t, []types.ReloadAction{types.ActionRerender}, actions(events))
	_, cached := f.cache.Peek(filePath)
	assert.False(t, cached, "the component's cached slots are stale after the edit")
}

func TestEngineComponentEquivalentContent(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "src/App.vue", "<template><p>same</p></template>")
	desc := &types.Descriptor{
		Filename: filePath,
		Template: &types.Block{Content: "<p>same</p>"},
	}
	f.seedDescriptor(t, filePath, desc)
	f.service.parse = func(_ context.Context, _ []byte, filename string) (*compiler.ParseResult, error) {
		return &compiler.ParseResult{Descriptor: &types.Descriptor{
			Filename: filename,
			Template: &types.Block{Content: "<p>same</p>"},
		}}, nil
	}

	events := f.engine.HandleChange(context.Background(), filePath)

	assert.Nil(t, events, "a whitespace-only save must not disturb the client")
	assert.Empty(t, f.notifier.reloads)
	_, cached := f.cache.Peek(filePath)
	assert.False(t, cached, "the entry is still invalidated so the next request recompiles")
}

func TestEngineComponentNeverParsedSkipsDiff(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "src/App.vue", "<template><p/></template>")
	f.graph.Record("/src/App.vue", "/src/main.js")

	events := f.engine.HandleChange(context.Background(), filePath)

	assert.Nil(t, events, "without a prior descriptor there is nothing to diff against")
	assert.Empty(t, f.notifier.reloads)
}

func TestEngineComponentUnreadableForcesReload(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "src/App.vue", "<template><p/></template>")
	f.seedDescriptor(t, filePath, &types.Descriptor{
		Filename: filePath,
		Template: &types.Block{Content: "<p/>"},
	})
	require.NoError(t, os.Remove(filePath))

	events := f.engine.HandleChange(context.Background(), filePath)

	assert.Equal(t, []types.ReloadAction{types.ActionFullReload}, actions(events))
}

func TestEngineCompileErrorOverlayLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "src/App.vue", "<template><p>broken")
	f.seedDescriptor(t, filePath, &types.Descriptor{
		Filename: filePath,
		Template: &types.Block{Content: "<p>ok</p>"},
	})

	diags := []errors.Diagnostic{{
		File:     filePath,
		Line:     1,
		Message:  "unterminated template block",
		Severity: errors.SeverityError,
	}}
	f.service.parse = func(context.Context, []byte, string) (*compiler.ParseResult, error) {
		return nil, errors.NewParseError(filePath, diags, nil)
	}

	events := f.engine.HandleChange(context.Background(), filePath)

	assert.Nil(t, events, "broken content sends no reload, the last good version stays on screen")
	assert.Empty(t, f.notifier.reloads)
	assert.Equal(t, []string{"/src/App.vue"}, f.notifier.compileErrors)
	assert.NotEmpty(t, f.sink.ForFile(filePath), "the failure is recorded for later requests")
	assert.Empty(t, f.notifier.cleared)

	// The next save fixes the file. A prior descriptor is needed again
	// because the failed pass already invalidated the entry.
	f.seedDescriptor(t, filePath, &types.Descriptor{
		Filename: filePath,
		Template: &types.Block{Content: "<p>ok</p>"},
	})
	f.write(t, "src/App.vue", "<template><p>fixed</p></template>")
	f.service.parse = func(_ context.Context, _ []byte, filename string) (*compiler.ParseResult, error) {
		return &compiler.ParseResult{Descriptor: &types.Descriptor{
			Filename: filename,
			Template: &types.Block{Content: "<p>fixed</p>"},
		}}, nil
	}

	events = f.engine.HandleChange(context.Background(), filePath)

	assert.Equal(t, []types.ReloadAction{types.ActionRerender}, actions(events))
	assert.Equal(t, []string{"/src/App.vue"}, f.notifier.cleared, "recovery dismisses the overlay")
	assert.Empty(t, f.sink.ForFile(filePath))
}

func TestEngineUnknownExtensionDefaultsToReload(t *testing.T) {
	f := newEngineFixture(t)
	filePath := f.write(t, "src/data.json", `{"x":1}`)
	f.graph.Record("/src/data.json", "/src/main.js")

	events := f.engine.HandleChange(context.Background(), filePath)

	assert.Equal(t, []types.ReloadAction{types.ActionFullReload}, actions(events))
}
