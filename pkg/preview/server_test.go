package preview

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/docsmith/pkg/diagram"
	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/events"
	"github.com/matzehuels/docsmith/pkg/export"
	"github.com/matzehuels/docsmith/pkg/repair"
	"github.com/matzehuels/docsmith/pkg/store"
	"github.com/matzehuels/docsmith/pkg/typeset"
	"github.com/matzehuels/docsmith/pkg/view"
)

const boxSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 40 20"><rect width="40" height="20" fill="black"/></svg>`

type okEngine struct{}

func (okEngine) Name() string { return "ok" }

func (okEngine) RenderSVG(_ context.Context, source string) ([]byte, error) {
	if !strings.Contains(source, "ok") {
		return nil, &diagram.SyntaxError{Line: 1, Msg: "not ok"}
	}
	return []byte(boxSVG), nil
}

// countingGenerator replies with reply. When gate is set, each call
// signals started and then waits for gate to close.
type countingGenerator struct {
	mu    sync.Mutex
	calls int

	reply   string
	started chan struct{}
	gate    chan struct{}
}

func (g *countingGenerator) Generate(ctx context.Context, _ repair.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.gate != nil {
		g.started <- struct{}{}
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.reply, nil
}

func (g *countingGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	server *httptest.Server
	gen    *countingGenerator
}

// newFixture starts a preview server. A nil doc leaves the store empty.
func newFixture(t *testing.T, doc *document.Document) *fixture {
	t.Helper()
	return newFixtureWith(t, doc, &countingGenerator{})
}

func newFixtureWith(t *testing.T, doc *document.Document, gen *countingGenerator) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{})

	docs := store.NewDocuments(store.NewMemoryStore())
	if doc != nil {
		require.NoError(t, docs.SaveDocument(ctx, *doc))
	}
	require.NoError(t, docs.SetMetadata(ctx, document.GenerationMetadata{Provider: "openai", Model: "m", Prompt: "p"}))
	require.NoError(t, docs.SetCredential(ctx, "openai", "sk"))

	notifier := repair.NotifierFunc(func(context.Context, repair.Notice) {})
	coord := repair.NewCoordinator(docs, events.NewMemoryBus(), gen, notifier, logger)
	renderer := diagram.NewRenderer(okEngine{}, diagram.OKSVGRasterizer{}, nil, logger)
	v := view.New(renderer, coord, logger)
	t.Cleanup(v.Close)

	exporter := export.NewRunner(renderer, typeset.DefaultLayout(), logger)
	srv := httptest.NewServer(New(docs, v, exporter, logger))
	t.Cleanup(srv.Close)
	return &fixture{server: srv, gen: gen}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndexRendersDocumentAndDiagram(t *testing.T) {
	f := newFixture(t, &document.Document{
		TextContent: "Sure, here it is.\n\n# Service Overview\n\nThe **gateway** routes requests.\n\n```mermaid\ngraph TD\nok --> done\n```\n",
	})

	resp, body := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `<h1 id="service-overview">Service Overview</h1>`)
	assert.Contains(t, body, "<strong>gateway</strong>")
	assert.NotContains(t, body, "Sure, here it is.")
	assert.NotContains(t, body, "ok --&gt; done")
	assert.Contains(t, body, `data-status="rendered"`)
	assert.Contains(t, body, `<img src="/diagram.svg" alt="Diagram" width="40" height="20">`)
}

func TestIndexHighlightsCode(t *testing.T) {
	f := newFixture(t, &document.Document{
		TextContent: "# Usage\n\n```go\nfunc main() {}\n```\n",
	})

	_, body := f.get(t, "/")
	assert.Contains(t, body, "<pre")
	assert.Contains(t, body, "<span style=")
	assert.NotContains(t, body, `class="language-go"`)
}

func TestIndexWithoutDocument(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-status="empty"`)
	assert.Contains(t, body, view.NoDiagramMessage)
	assert.Zero(t, f.gen.count())

	resp, _ = f.get(t, "/export.md")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDiagramEndpoints(t *testing.T) {
	f := newFixture(t, &document.Document{VisualContent: "graph TD\nok"})

	resp, body := f.get(t, "/diagram.svg")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Equal(t, boxSVG, body)

	resp, body = f.get(t, "/diagram.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))
}

func TestDiagramEndpointsWithoutDiagram(t *testing.T) {
	f := newFixture(t, &document.Document{TextContent: "just text"})

	for _, path := range []string{"/diagram.svg", "/diagram.png"} {
		resp, body := f.get(t, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Contains(t, body, view.NoDiagramMessage)
	}
}

func TestExportEndpoints(t *testing.T) {
	f := newFixture(t, &document.Document{TextContent: "# Doc\n\n```mermaid\nok\n```\n"})

	resp, body := f.get(t, "/export.md")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="documentation.md"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, "![Diagram 1](data:image/png;base64,")

	resp, body = f.get(t, "/export.pdf")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="documentation.pdf"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(body, "%PDF"))
}

func TestFailedDiagramAndRetry(t *testing.T) {
	f := newFixture(t, &document.Document{VisualContent: "graph TD\nA[[broken]]"})

	resp, body := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-status="failed"`)
	assert.Contains(t, body, `A[[&#34;broken&#34;]]`, "panel shows the sanitized source")
	assert.Contains(t, body, `action="/diagram/retry"`)
	assert.Equal(t, 1, f.gen.count())

	// Reloading does not repair again.
	f.get(t, "/")
	assert.Equal(t, 1, f.gen.count())

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Post(f.server.URL+"/diagram/retry", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, 2, f.gen.count())
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, nil)
	resp, _ := f.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type fetched struct {
	status int
	body   string
	err    error
}

func fetch(url string) fetched {
	resp, err := http.Get(url)
	if err != nil {
		return fetched{err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return fetched{status: resp.StatusCode, body: string(body), err: err}
}

func TestConcurrentLoadWaitsForRepair(t *testing.T) {
	gen := &countingGenerator{
		reply:   "```mermaid\ngraph TD\nok --> done\n```",
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	f := newFixtureWith(t, &document.Document{
		TextContent: "# Doc\n\n```mermaid\ngraph TD\nbroken\n```\n",
	}, gen)

	page := make(chan fetched, 1)
	go func() { page <- fetch(f.server.URL + "/") }()
	<-gen.started

	svg := make(chan fetched, 1)
	go func() { svg <- fetch(f.server.URL + "/diagram.svg") }()
	time.Sleep(50 * time.Millisecond)
	close(gen.gate)

	first := <-page
	require.NoError(t, first.err)
	assert.Contains(t, first.body, `data-status="rendered"`)

	second := <-svg
	require.NoError(t, second.err)
	assert.Equal(t, http.StatusOK, second.status, "a load during the repair must not see a failed diagram")
	assert.Equal(t, boxSVG, second.body)
	assert.Equal(t, 1, gen.count())
}
