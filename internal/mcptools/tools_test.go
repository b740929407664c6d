package mcptools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/pocket/api"
	"github.com/agentic-research/pocket/internal/registry"
	"github.com/agentic-research/pocket/internal/run"
	"github.com/agentic-research/pocket/internal/session"
	"github.com/agentic-research/pocket/internal/storage"
)

func newService(t *testing.T) (*Service, *storage.BillyProvider) {
	t.Helper()
	store := storage.NewMemoryProvider()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "recent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	m := session.NewManager(store, reg, session.Options{
		SavePolicy: session.SaveManual,
		Templates: session.NewCatalog(api.Template{
			Name:  "web",
			Files: []api.TemplateFile{{Path: "index.html", Content: "<p>hi</p>"}, {Path: "js/app.js", Content: "console.log('hi')"}},
		}),
	})
	d := run.NewDispatcher(run.NewLocal(2*time.Second, 0), nil)
	return NewService(m, d), store
}

func call(t *testing.T, h server.ToolHandlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestNewServer_Builds(t *testing.T) {
	svc, _ := newService(t)
	assert.NotNil(t, NewServer(svc, "test"))
}

func TestPing(t *testing.T) {
	res := call(t, pingHandler, nil)
	assert.Equal(t, "pong", text(t, res))
}

func TestFileTools_RequireOpenProject(t *testing.T) {
	svc, _ := newService(t)
	res := call(t, readFileHandler(svc), map[string]any{"path": "a.js"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "no project open")
}

func TestCreateProject_FromTemplate(t *testing.T) {
	svc, store := newService(t)
	res := call(t, createProjectHandler(svc), map[string]any{"name": "demo", "template": "web"})
	require.False(t, res.IsError, text(t, res))

	got, _, err := store.ReadFile("PocketCodeStudio/demo/js/app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi')", got)

	tr := text(t, call(t, projectTreeHandler(svc), nil))
	assert.Contains(t, tr, "js/")
	assert.Contains(t, tr, "app.js (javascript)")
}

func TestCreateProject_MissingName(t *testing.T) {
	svc, _ := newService(t)
	res := call(t, createProjectHandler(svc), map[string]any{})
	assert.True(t, res.IsError)
}

func TestWriteReadRoundTrip(t *testing.T) {
	svc, store := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})

	res := call(t, writeFileHandler(svc), map[string]any{"path": "main.js", "content": "1 + 1"})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "Created main.js")

	res = call(t, writeFileHandler(svc), map[string]any{"path": "main.js", "content": "2 + 2"})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "Saved main.js")

	assert.Equal(t, "2 + 2", text(t, call(t, readFileHandler(svc), map[string]any{"path": "main.js"})))
	got, _, err := store.ReadFile("PocketCodeStudio/demo/main.js")
	require.NoError(t, err)
	assert.Equal(t, "2 + 2", got)
}

func TestWriteFile_MissingParent(t *testing.T) {
	svc, _ := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})
	res := call(t, writeFileHandler(svc), map[string]any{"path": "nope/main.js", "content": "x"})
	assert.True(t, res.IsError)
}

func TestFolderRenameMoveDelete(t *testing.T) {
	svc, store := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})
	require.False(t, call(t, createFolderHandler(svc), map[string]any{"path": "src"}).IsError)
	require.False(t, call(t, createFileHandler(svc), map[string]any{"path": "a.js", "content": "x"}).IsError)

	res := call(t, createFileHandler(svc), map[string]any{"path": "a.js"})
	assert.True(t, res.IsError, "duplicate create must fail")

	res = call(t, renameItemHandler(svc), map[string]any{"path": "a.js", "name": "b.js"})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "to b.js")

	res = call(t, moveItemHandler(svc), map[string]any{"path": "b.js", "folder": "src"})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "src/b.js")
	_, _, err := store.ReadFile("PocketCodeStudio/demo/src/b.js")
	require.NoError(t, err)

	res = call(t, deleteItemHandler(svc), map[string]any{"path": "src"})
	require.False(t, res.IsError, text(t, res))
	_, err = store.ReadDir("PocketCodeStudio/demo/src")
	assert.Error(t, err)
	assert.True(t, call(t, readFileHandler(svc), map[string]any{"path": "src/b.js"}).IsError)
}

func TestRecentProjects(t *testing.T) {
	svc, _ := newService(t)
	assert.Equal(t, "No recent projects.", text(t, call(t, recentProjectsHandler(svc), nil)))

	call(t, createProjectHandler(svc), map[string]any{"name": "one"})
	call(t, createProjectHandler(svc), map[string]any{"name": "two"})
	out := text(t, call(t, recentProjectsHandler(svc), nil))
	assert.Contains(t, out, "PocketCodeStudio/one")
	assert.Less(t, strings.Index(out, "two"), strings.Index(out, "one"), "most recent first")

	require.False(t, call(t, renameProjectHandler(svc), map[string]any{"path": "PocketCodeStudio/one", "name": "First"}).IsError)
	assert.Contains(t, text(t, call(t, recentProjectsHandler(svc), nil)), "First")

	require.False(t, call(t, forgetProjectHandler(svc), map[string]any{"path": "PocketCodeStudio/one"}).IsError)
	assert.NotContains(t, text(t, call(t, recentProjectsHandler(svc), nil)), "PocketCodeStudio/one")
}

func TestOpenProject(t *testing.T) {
	svc, store := newService(t)
	require.NoError(t, store.Mkdir("work/site", true))
	require.NoError(t, store.WriteFile("work/site/index.php", "<?php echo 1;"))

	res := call(t, openProjectHandler(svc), map[string]any{"path": "work/site"})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "index.php (php)")

	assert.True(t, call(t, openProjectHandler(svc), map[string]any{"path": "work/missing"}).IsError)
}

func TestRunFile_JavaScript(t *testing.T) {
	svc, _ := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})
	call(t, createFileHandler(svc), map[string]any{"path": "main.js", "content": "console.log('A'); console.error('B')"})

	res := call(t, runFileHandler(svc), map[string]any{"path": "main.js"})
	require.False(t, res.IsError, text(t, res))
	assert.Equal(t, "[log] A\n[error] B\n", text(t, res))

	out := text(t, call(t, consoleHandler(svc), map[string]any{"clear": true}))
	assert.Contains(t, out, "[log] A")
	assert.Equal(t, "Console is empty.", text(t, call(t, consoleHandler(svc), nil)))
}

func TestRunFile_Unsupported(t *testing.T) {
	svc, _ := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})
	call(t, createFileHandler(svc), map[string]any{"path": "notes.md", "content": "# hi"})

	res := call(t, runFileHandler(svc), map[string]any{"path": "notes.md"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Running markdown code is not supported yet.")
}

func TestRunCode_ThrownError(t *testing.T) {
	svc, _ := newService(t)
	res := call(t, runCodeHandler(svc), map[string]any{"code": "throw new Error('boom')", "language": "javascript"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "boom")
}

func TestCheckFile(t *testing.T) {
	svc, _ := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})
	call(t, createFileHandler(svc), map[string]any{"path": "ok.json", "content": `{"a": 1}`})
	call(t, createFileHandler(svc), map[string]any{"path": "bad.json", "content": `{"a": }`})
	call(t, createFileHandler(svc), map[string]any{"path": "notes.txt", "content": "anything"})

	assert.Equal(t, "No syntax errors.", text(t, call(t, checkFileHandler(svc), map[string]any{"path": "ok.json"})))

	res := call(t, checkFileHandler(svc), map[string]any{"path": "bad.json"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "bad.json:")

	assert.Contains(t, text(t, call(t, checkFileHandler(svc), map[string]any{"path": "notes.txt"})), "No checker")
}

func TestFormatFile(t *testing.T) {
	svc, store := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})
	call(t, createFileHandler(svc), map[string]any{"path": "data.json", "content": `{"b":1,"a":2}`})

	res := call(t, formatFileHandler(svc), map[string]any{"path": "data.json"})
	require.False(t, res.IsError, text(t, res))

	got, _, err := store.ReadFile("PocketCodeStudio/demo/data.json")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": 2\n}\n", got)

	assert.Equal(t, "Already formatted.", text(t, call(t, formatFileHandler(svc), map[string]any{"path": "data.json"})))
}

func TestSaveAll(t *testing.T) {
	svc, _ := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})
	res := call(t, saveAllHandler(svc), nil)
	require.False(t, res.IsError, text(t, res))
	assert.Equal(t, "Saved 0 file(s)", text(t, res))
}

func TestCheckFile_LintWarnings(t *testing.T) {
	svc, _ := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})
	call(t, createFileHandler(svc), map[string]any{"path": "a.js", "content": "var x = 1;\n"})

	res := call(t, checkFileHandler(svc), map[string]any{"path": "a.js"})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "a.js: line 1: Use let or const instead of var. (no-var)")
}

func TestCheckFile_NoLintRules(t *testing.T) {
	svc, _ := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo"})
	call(t, createFileHandler(svc), map[string]any{"path": "data.json", "content": `{"a": 1}`})

	res := call(t, checkFileHandler(svc), map[string]any{"path": "data.json"})
	require.False(t, res.IsError, text(t, res))
	assert.Equal(t, "No syntax errors. No lint rules for json.", text(t, res))
}

func TestSearchFiles(t *testing.T) {
	svc, _ := newService(t)
	call(t, createProjectHandler(svc), map[string]any{"name": "demo", "template": "web"})

	assert.Equal(t, "js/app.js\n", text(t, call(t, searchFilesHandler(svc), map[string]any{"query": "APP"})))
	assert.Equal(t, "No files match.", text(t, call(t, searchFilesHandler(svc), map[string]any{"query": "zzz"})))
	assert.True(t, call(t, searchFilesHandler(svc), map[string]any{}).IsError)
}

func TestReadFile_RefusesBinary(t *testing.T) {
	svc, store := newService(t)
	require.NoError(t, store.WriteFile("work/site/logo.png", "\x89PNG\x00"))
	require.False(t, call(t, openProjectHandler(svc), map[string]any{"path": "work/site"}).IsError)

	res := call(t, readFileHandler(svc), map[string]any{"path": "logo.png"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not loaded")
}
