package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viaduct-dev/viaduct/internal/compiler"
	"github.com/viaduct-dev/viaduct/internal/errors"
	"github.com/viaduct-dev/viaduct/internal/types"
)

func testDescriptor(script, tmpl string, styles ...types.StyleBlock) *types.Descriptor {
	d := &types.Descriptor{}
	if script != "" {
		d.Script = &types.Block{Content: script, Attrs: map[string]string{}}
	}
	if tmpl != "" {
		d.Template = &types.Block{Content: tmpl, Attrs: map[string]string{}}
	}
	d.Styles = styles
	return d
}

func parseReturning(d *types.Descriptor) func(context.Context, []byte, string) (*compiler.ParseResult, error) {
	return func(context.Context, []byte, string) (*compiler.ParseResult, error) {
		return &compiler.ParseResult{Descriptor: d}, nil
	}
}

func TestComponentMainModuleComposition(t *testing.T) {
	descriptor := testDescriptor(
		"export default { name: 'App' }",
		"<p>hi</p>",
		types.StyleBlock{Block: types.Block{Content: "p { color: red }"}, Scoped: true},
	)
	f := newServerFixture(t, &fakeCompiler{parse: parseReturning(descriptor)})
	f.write("src/App.vue", "<template><p>hi</p></template>")

	rec := f.get("/src/App.vue")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/javascript")
	body := rec.Body.String()
	assert.Contains(t, body, "const __script = { name: 'App' }")
	assert.Contains(t, body, `import "/src/App.vue?type=style&index=0"`)
	assert.Contains(t, body, `import { render as __render } from "/src/App.vue?type=template"`)
	assert.Contains(t, body, "__script.render = __render")
	assert.Contains(t, body, `__script.__scopeId = "data-v-`)
	assert.Contains(t, body, `__script.__hmrId = "/src/App.vue"`)
	assert.Contains(t, body, "export default __script")
}

func TestComponentScriptOnly(t *testing.T) {
	descriptor := testDescriptor("export default { data: () => ({}) }", "")
	f := newServerFixture(t, &fakeCompiler{parse: parseReturning(descriptor)})
	f.write("src/Store.vue", "<script>export default { data: () => ({}) }</script>")

	rec := f.get("/src/Store.vue")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "?type=template")
	assert.NotContains(t, body, "__scopeId")
	assert.Contains(t, body, "export default __script")
}

func TestComponentWithoutScriptGetsStub(t *testing.T) {
	descriptor := testDescriptor("", "<p>static</p>")
	f := newServerFixture(t, &fakeCompiler{parse: parseReturning(descriptor)})
	f.write("src/Static.vue", "<template><p>static</p></template>")

	rec := f.get("/src/Static.vue")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "const __script = {}")
}

func TestComponentCSSModules(t *testing.T) {
	style := types.StyleBlock{
		Block:  types.Block{Content: ".red { color: red }", Attrs: map[string]string{"module": ""}},
		Module: true,
	}
	descriptor := testDescriptor("export default {}", "<p/>", style)
	service := &fakeCompiler{
		parse: parseReturning(descriptor),
		compileStyle: func(_ context.Context, req compiler.StyleRequest) (*compiler.CompileResult, error) {
			return &compiler.CompileResult{
				Code:         ".red_x1 { color: red }",
				CSSModuleMap: map[string]string{"red": "red_x1"},
			}, nil
		},
	}
	f := newServerFixture(t, service)
	f.write("src/Card.vue", "<style module>.red { color: red }</style>")

	main := f.get("/src/Card.vue")
	require.Equal(t, http.StatusOK, main.Code)
	body := main.Body.String()
	assert.Contains(t, body, `import __style0 from "/src/Card.vue?type=style&index=0"`)
	assert.Contains(t, body, "__script.__cssModules = {")
	assert.Contains(t, body, `"$style": __style0`)

	slot := f.get("/src/Card.vue?type=style&index=0")
	require.Equal(t, http.StatusOK, slot.Code)
	slotBody := slot.Body.String()
	assert.Contains(t, slotBody, `updateStyle("/src/Card.vue?index=0"`)
	assert.Contains(t, slotBody, `export default {"red":"red_x1"}`)
}

func TestNamedCSSModuleBinding(t *testing.T) {
	style := types.StyleBlock{
		Block:  types.Block{Content: ".a {}", Attrs: map[string]string{"module": "theme"}},
		Module: true,
	}
	descriptor := testDescriptor("export default {}", "", style)
	service := &fakeCompiler{
		parse: parseReturning(descriptor),
		compileStyle: func(_ context.Context, req compiler.StyleRequest) (*compiler.CompileResult, error) {
			return &compiler.CompileResult{Code: ".a_x {}", CSSModuleMap: map[string]string{"a": "a_x"}}, nil
		},
	}
	f := newServerFixture(t, service)
	f.write("src/Themed.vue", "<style module=\"theme\">.a {}</style>")

	rec := f.get("/src/Themed.vue")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"theme": __style0`)
}

func TestTemplateSlotCompilesWithScope(t *testing.T) {
	descriptor := testDescriptor(
		"export default {}",
		"<p>hi</p>",
		types.StyleBlock{Block: types.Block{Content: "p {}"}, Scoped: true},
	)
	var got compiler.TemplateRequest
	service := &fakeCompiler{
		parse: parseReturning(descriptor),
		compileTemplate: func(_ context.Context, req compiler.TemplateRequest) (*compiler.CompileResult, error) {
			got = req
			return &compiler.CompileResult{
				Code: "import { h } from 'vue'\nexport function render() { return h('p') }\n",
			}, nil
		},
	}
	f := newServerFixture(t, service)
	f.writeVuePackage()
	f.write("src/App.vue", "<template><p>hi</p></template>")

	rec := f.get("/src/App.vue?type=template")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/javascript")
	assert.Contains(t, rec.Body.String(), "/@modules/vue/dist/vue.esm.js")
	assert.Equal(t, "<p>hi</p>", got.Source)
	assert.Regexp(t, `^data-v-[0-9a-f]{8}$`, got.ScopeID)
}

func TestTemplateSlotWithoutScopedStyles(t *testing.T) {
	descriptor := testDescriptor("export default {}", "<p/>")
	var got compiler.TemplateRequest
	service := &fakeCompiler{
		parse: parseReturning(descriptor),
		compileTemplate: func(_ context.Context, req compiler.TemplateRequest) (*compiler.CompileResult, error) {
			got = req
			return &compiler.CompileResult{Code: "export function render() {}\n"}, nil
		},
	}
	f := newServerFixture(t, service)
	f.write("src/Plain.vue", "<template><p/></template>")

	rec := f.get("/src/Plain.vue?type=template")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, got.ScopeID)
}

func TestStyleSlotScopedCompilation(t *testing.T) {
	descriptor := testDescriptor(
		"export default {}",
		"<p/>",
		types.StyleBlock{Block: types.Block{Content: "p { color: blue }"}, Scoped: true},
	)
	var got compiler.StyleRequest
	service := &fakeCompiler{
		parse: parseReturning(descriptor),
		compileStyle: func(_ context.Context, req compiler.StyleRequest) (*compiler.CompileResult, error) {
			got = req
			return &compiler.CompileResult{Code: "p[data-v-x] { color: blue }"}, nil
		},
	}
	f := newServerFixture(t, service)
	f.write("src/App.vue", "<style scoped>p { color: blue }</style>")

	rec := f.get("/src/App.vue?type=style&index=0")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.Scoped)
	assert.Equal(t, 0, got.Index)
	assert.Regexp(t, `^data-v-[0-9a-f]{8}$`, got.ScopeID)
	body := rec.Body.String()
	assert.Contains(t, body, "updateStyle(")
	assert.Contains(t, body, "p[data-v-x] { color: blue }")
	// Not a CSS module, so the wrapper exports nothing.
	assert.NotContains(t, body, "export default")
}

func TestSlotRequestValidation(t *testing.T) {
	descriptor := testDescriptor("export default {}", "")
	f := newServerFixture(t, &fakeCompiler{parse: parseReturning(descriptor)})
	f.write("src/App.vue", "<script>export default {}</script>")

	assert.Equal(t, http.StatusNotFound, f.get("/src/App.vue?type=template").Code)
	assert.Equal(t, http.StatusNotFound, f.get("/src/App.vue?type=style&index=0").Code)
	assert.Equal(t, http.StatusBadRequest, f.get("/src/App.vue?type=style&index=no").Code)
	assert.Equal(t, http.StatusBadRequest, f.get("/src/App.vue?type=style").Code)
}

func TestComponentParseFailure(t *testing.T) {
	service := &fakeCompiler{
		parse: func(_ context.Context, _ []byte, filename string) (*compiler.ParseResult, error) {
			return nil, errors.NewParseError(filename, []errors.Diagnostic{{
				File:     filename,
				Line:     3,
				Column:   5,
				Message:  "unexpected token",
				Severity: errors.SeverityError,
			}}, nil)
		},
	}
	f := newServerFixture(t, service)
	f.write("src/Broken.vue", "<template><p></template>")

	rec := f.get("/src/Broken.vue")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var payload struct {
		Error       string              `json:"error"`
		Path        string              `json:"path"`
		Diagnostics []errors.Diagnostic `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "compile-error", payload.Error)
	assert.Equal(t, "/src/Broken.vue", payload.Path)
	require.Len(t, payload.Diagnostics, 1)
	assert.Equal(t, "unexpected token", payload.Diagnostics[0].Message)

	assert.True(t, f.server.sink.HasErrors())
}

func TestComponentParsedOncePerVersion(t *testing.T) {
	calls := 0
	descriptor := testDescriptor("export default {}", "<p/>")
	service := &fakeCompiler{
		parse: func(context.Context, []byte, string) (*compiler.ParseResult, error) {
			calls++
			return &compiler.ParseResult{Descriptor: descriptor}, nil
		},
		compileTemplate: func(context.Context, compiler.TemplateRequest) (*compiler.CompileResult, error) {
			return &compiler.CompileResult{Code: "export function render() {}\n"}, nil
		},
	}
	f := newServerFixture(t, service)
	f.write("src/App.vue", "<template><p/></template>")

	f.get("/src/App.vue")
	f.get("/src/App.vue")
	f.get("/src/App.vue?type=template")

	assert.Equal(t, 1, calls)
}
