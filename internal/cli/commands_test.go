package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/store"
)

const flowchart = "graph TD\n  A[Start] --> B[End]\n"

// testEnv points every docsmith location at a temp dir and returns it.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("DOCSMITH_STORE_BACKEND", "file")
	t.Setenv("DOCSMITH_STORE_DIR", filepath.Join(dir, "store"))
	t.Setenv("DOCSMITH_CACHE_BACKEND", "file")
	t.Setenv("DOCSMITH_RASTERIZER", "oksvg")
	t.Setenv("DOCSMITH_REPAIR_ENDPOINT", "http://127.0.0.1:1/api/generate")
	return dir
}

// runCLI executes a fresh root command and returns everything it printed.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := captureStdout(t)
	captureSpinner(t)

	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSanitizeCommand(t *testing.T) {
	dir := testEnv(t)
	in := writeFile(t, dir, "diagram.mmd", "graph TD\n  A[[x]] --> B(y)\n")

	out, err := runCLI(t, "", "sanitize", in)
	require.NoError(t, err)
	assert.Contains(t, out, `A[["x"]]`)
	assert.Contains(t, out, "B(y)")
}

func TestSanitizeCommandStdin(t *testing.T) {
	testEnv(t)

	out, err := runCLI(t, "```mermaid\nA[x]\n```", "sanitize")
	require.NoError(t, err)
	assert.Equal(t, "A[\"x\"]\n", out)
}

func TestRenderCommand(t *testing.T) {
	dir := testEnv(t)
	in := writeFile(t, dir, "diagram.mmd", flowchart)

	svgPath := filepath.Join(dir, "out.svg")
	_, err := runCLI(t, "", "render", in, "-o", svgPath)
	require.NoError(t, err)
	data, err := os.ReadFile(svgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")

	pngPath := filepath.Join(dir, "out.png")
	_, err = runCLI(t, "", "render", in, "-o", pngPath)
	require.NoError(t, err)
	data, err = os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "png signature")
}

func TestRenderCommandBadFormat(t *testing.T) {
	dir := testEnv(t)
	in := writeFile(t, dir, "diagram.mmd", flowchart)

	_, err := runCLI(t, "", "render", in, "-f", "gif")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
}

func TestRenderDocumentWithoutDiagram(t *testing.T) {
	dir := testEnv(t)
	in := writeFile(t, dir, "notes.md", "# Notes\n\nNo pictures here.\n")

	_, err := runCLI(t, "", "doc", "import", in)
	require.NoError(t, err)

	out, err := runCLI(t, "", "render", "--doc", "-o", filepath.Join(dir, "d.svg"))
	require.NoError(t, err)
	assert.Contains(t, out, "no diagram available")
	assert.NoFileExists(t, filepath.Join(dir, "d.svg"))
}

func TestDocImportAndShow(t *testing.T) {
	dir := testEnv(t)
	in := writeFile(t, dir, "response.json", `{"text_content": "# Title\n\nBody", "visual_content": "graph TD\nA-->B"}`)

	out, err := runCLI(t, "", "doc", "import", in, "--provider", "openai", "--model", "gpt-4o")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported document")
	assert.Contains(t, out, "diagram: yes")

	out, err = runCLI(t, "", "doc", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"textContent": "# Title\n\nBody"`)
	assert.Contains(t, out, `"visualContent": "graph TD\nA-->B"`)

	out, err = runCLI(t, "", "doc", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "openai")
	assert.Contains(t, out, "gpt-4o")
	assert.Contains(t, out, "A-->B")
}

func TestDocImportRejectsUnknownProvider(t *testing.T) {
	dir := testEnv(t)
	in := writeFile(t, dir, "notes.md", "text")

	_, err := runCLI(t, "", "doc", "import", in, "--provider", "acme")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidProvider))
}

func TestDocShowWithoutDocument(t *testing.T) {
	testEnv(t)

	_, err := runCLI(t, "", "doc", "show")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
}

func TestKeySetAndDelete(t *testing.T) {
	dir := testEnv(t)

	_, err := runCLI(t, "sk-test\n", "key", "set", "openai")
	require.NoError(t, err)

	fs, err := store.NewFileStore(filepath.Join(dir, "store"))
	require.NoError(t, err)
	docs := store.NewDocuments(fs)
	key, err := docs.Credential(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	_, err = runCLI(t, "", "key", "delete", "openai")
	require.NoError(t, err)
	_, err = docs.Credential(context.Background(), "openai")
	assert.True(t, store.IsNotFound(err))
}

func TestKeySetEmpty(t *testing.T) {
	testEnv(t)

	_, err := runCLI(t, "\n", "key", "set", "openai")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestExportCommand(t *testing.T) {
	dir := testEnv(t)
	in := writeFile(t, dir, "notes.md", "# Notes\n\n```mermaid\n"+flowchart+"```\n\nThe end.\n")
	outDir := filepath.Join(dir, "out")

	out, err := runCLI(t, "", "export", in, "--dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(outDir, "documentation.md"))

	md, err := os.ReadFile(filepath.Join(outDir, "documentation.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "![Diagram 1](data:image/png;base64,")
	assert.NotContains(t, string(md), "```mermaid")

	pdf, err := os.ReadFile(filepath.Join(outDir, "documentation.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")), "pdf header")
}

func TestExportOutputNeedsSingleFormat(t *testing.T) {
	dir := testEnv(t)
	in := writeFile(t, dir, "notes.md", "text")

	_, err := runCLI(t, "", "export", in, "-o", filepath.Join(dir, "x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = runCLI(t, "", "export", in, "-f", "docx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
}

func TestConfigCommands(t *testing.T) {
	dir := testEnv(t)

	out, err := runCLI(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[repair]")
	assert.Contains(t, out, "oksvg")

	out, err = runCLI(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config", "docsmith", "config.toml"), strings.TrimSpace(out))
}

func TestMissingConfigFile(t *testing.T) {
	dir := testEnv(t)

	_, err := runCLI(t, "", "--config", filepath.Join(dir, "nope.toml"), "config", "show")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))
}

func TestCacheCommands(t *testing.T) {
	dir := testEnv(t)
	cacheDir := filepath.Join(dir, "cache", "docsmith")

	out, err := runCLI(t, "", "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, cacheDir, strings.TrimSpace(out))

	out, err = runCLI(t, "", "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache is empty")

	require.NoError(t, os.MkdirAll(filepath.Join(cacheDir, "ab"), 0o755))
	writeFile(t, filepath.Join(cacheDir, "ab"), "entry.json", "{}")

	out, err = runCLI(t, "", "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 cached entries")
}

func TestCacheDirFromConfig(t *testing.T) {
	testEnv(t)
	t.Setenv("DOCSMITH_CACHE_DIR", "/tmp/docsmith-custom")

	out, err := runCLI(t, "", "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/docsmith-custom", strings.TrimSpace(out))
}
