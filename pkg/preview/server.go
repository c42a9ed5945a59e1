// Package preview serves a generated document over HTTP: the text as
// HTML, its diagram as SVG and PNG, and both exports.
//
// Every request reloads the document from the store, so a repair or an
// applied update event shows up on the next page load.
//
//	srv := preview.New(docs, view, exporter, logger)
//	err := srv.ListenAndServe(ctx, "localhost:8080")
package preview

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/matzehuels/docsmith/pkg/diagram"
	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/export"
	"github.com/matzehuels/docsmith/pkg/store"
	"github.com/matzehuels/docsmith/pkg/view"
)

// DefaultTimeout bounds a single request, including any diagram repair it
// triggers.
const DefaultTimeout = 90 * time.Second

// Server is the preview HTTP server.
type Server struct {
	Docs     *store.Documents
	View     *view.DiagramView
	Exporter *export.Runner
	Logger   *log.Logger
	Timeout  time.Duration

	router chi.Router
	md     goldmark.Markdown
	turn   chan struct{} // one render cycle at a time
}

// New creates and configures the server. A nil logger means log.Default().
func New(docs *store.Documents, v *view.DiagramView, exporter *export.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		Docs:     docs,
		View:     v,
		Exporter: exporter,
		Logger:   logger,
		Timeout:  DefaultTimeout,
		md:       newMarkdown(),
		turn:     make(chan struct{}, 1),
	}
	s.setupRoutes()
	return s
}

// newMarkdown returns the converter for the document text: GFM with
// inline-styled code highlighting, so the page needs no stylesheet for it.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(highlighting.WithStyle("github")),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.Logger))
	r.Use(middleware.Timeout(s.Timeout))

	r.Get("/", s.handleIndex)
	r.Get("/diagram.svg", s.handleDiagramSVG)
	r.Get("/diagram.png", s.handleDiagramPNG)
	r.Get("/export.md", s.handleExport(export.FormatMarkdown))
	r.Get("/export.pdf", s.handleExport(export.FormatPDF))
	r.Post("/diagram/retry", s.handleRetry)

	s.router = r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.Logger.Info("preview server listening", "addr", addr)

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.Wrap(errors.ErrCodeNetwork, err, "listen on %s", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// Handlers
// =============================================================================

type page struct {
	Title   string
	Body    template.HTML
	Status  string
	Message string
	Source  string
	Width   int
	Height  int
	Repair  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	doc, st, err := s.renderCurrent(r.Context(), nil)
	if err != nil && !store.IsNotFound(err) {
		s.fail(w, r, err)
		return
	}

	var body bytes.Buffer
	text := document.StripDiagrams(document.Clean(doc.TextContent))
	if err := s.md.Convert([]byte(text), &body); err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeParse, err, "convert markdown"))
		return
	}

	p := page{
		Title:   export.DefaultTitle,
		Body:    template.HTML(body.String()),
		Status:  st.Status.String(),
		Message: st.Message,
		Source:  st.Source,
		Width:   st.Width / diagram.RasterScale,
		Height:  st.Height / diagram.RasterScale,
		Repair:  st.Repair.Phase.String(),
	}
	if st.Err != nil && st.Status == view.StatusFailed {
		p.Message = errors.UserMessage(st.Err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, p); err != nil {
		s.Logger.Warn("write page", "error", err)
	}
}

func (s *Server) handleDiagramSVG(w http.ResponseWriter, r *http.Request) {
	st, ok := s.renderedState(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(st.SVG)
}

func (s *Server) handleDiagramPNG(w http.ResponseWriter, r *http.Request) {
	st, ok := s.renderedState(w, r)
	if !ok {
		return
	}
	if len(st.PNG) == 0 {
		err := st.Err
		if err == nil {
			err = errors.New(errors.ErrCodeRender, "diagram has no raster")
		}
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(st.PNG)
}

func (s *Server) handleExport(format string) http.HandlerFunc {
	contentType := map[string]string{
		export.FormatMarkdown: "text/markdown; charset=utf-8",
		export.FormatPDF:      "application/pdf",
	}[format]

	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := s.document(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out, err := s.Exporter.Export(r.Context(), format, *doc)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.DefaultFileNames[format]+`"`)
		w.Write(out.Data)
	}
}

// handleRetry clears the repair state of the current diagram and renders
// it again, allowing one more repair attempt.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	reset := func(doc document.Document) {
		if d, ok := document.ExtractDiagram(doc); ok && s.View.Coordinator != nil {
			s.View.Coordinator.Reset(d.Source)
			s.Logger.Info("diagram repair reset", "request_id", middleware.GetReqID(r.Context()))
		}
	}
	if _, _, err := s.renderCurrent(r.Context(), reset); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) document(ctx context.Context) (*document.Document, error) {
	doc, err := s.Docs.Document(ctx)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// renderCurrent loads the stored document and runs the view's render
// cycle for it, holding the server's render turn throughout. A request
// that waits for the turn therefore sees the document as a finished
// repair left it, never the source that repair replaced. before, if set,
// runs on the loaded document ahead of rendering. A missing document
// renders as empty and is returned as a blank document with the
// not-found error.
func (s *Server) renderCurrent(ctx context.Context, before func(document.Document)) (*document.Document, view.State, error) {
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, view.State{}, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "wait for diagram render")
	}
	defer func() { <-s.turn }()

	doc, err := s.document(ctx)
	if err != nil && !store.IsNotFound(err) {
		return nil, view.State{}, err
	}
	if doc == nil {
		doc = &document.Document{}
	}
	if before != nil && err == nil {
		before(*doc)
	}
	s.View.SetDocument(*doc)
	return doc, s.View.Render(ctx), err
}

func (s *Server) renderedState(w http.ResponseWriter, r *http.Request) (view.State, bool) {
	_, st, err := s.renderCurrent(r.Context(), nil)
	if err != nil {
		s.fail(w, r, err)
		return view.State{}, false
	}
	if st.Status != view.StatusRendered {
		msg := st.Message
		if msg == "" {
			msg = view.NoDiagramMessage
		}
		http.Error(w, msg, http.StatusNotFound)
		return st, false
	}
	return st, true
}

// fail maps an error code to an HTTP status and writes the user message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat:
		status = http.StatusBadRequest
	case errors.ErrCodeRender, errors.ErrCodeImageDecode, errors.ErrCodeParse:
		status = http.StatusUnprocessableEntity
	case errors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}
	if status >= 500 {
		s.Logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	http.Error(w, errors.UserMessage(err), status)
}
