package export

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/docsmith/pkg/diagram"
	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/markdown"
	"github.com/matzehuels/docsmith/pkg/observability"
	"github.com/matzehuels/docsmith/pkg/typeset"
)

// Runner produces exports. It holds no per-export state, so one Runner may
// serve concurrent exports.
type Runner struct {
	Renderer *diagram.Renderer
	Layout   typeset.Layout
	Title    string
	// Loader resolves image sources other than the inlined diagrams.
	Loader typeset.ImageLoader
	Logger *log.Logger
}

// Output is one finished export.
type Output struct {
	Format   string
	Data     []byte
	Diagrams int // diagrams inlined as images
	Pages    int // PDF only
	Duration time.Duration
}

// NewRunner returns a runner with DefaultTitle. A nil renderer uses the
// default diagram renderer and a nil logger means log.Default().
func NewRunner(renderer *diagram.Renderer, layout typeset.Layout, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if renderer == nil {
		renderer = diagram.NewRenderer(nil, nil, nil, logger)
	}
	return &Runner{
		Renderer: renderer,
		Layout:   layout,
		Title:    DefaultTitle,
		Loader:   typeset.DefaultLoader{},
		Logger:   logger,
	}
}

// Export runs the export for format.
func (r *Runner) Export(ctx context.Context, format string, doc document.Document) (*Output, error) {
	switch format {
	case FormatMarkdown:
		return r.Markdown(ctx, doc)
	case FormatPDF:
		return r.PDF(ctx, doc)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown export format %q", format)
	}
}

// Markdown returns the document as UTF-8 markdown with diagrams inlined.
func (r *Runner) Markdown(ctx context.Context, doc document.Document) (out *Output, err error) {
	start := r.begin(ctx, FormatMarkdown)
	defer func() { r.end(ctx, FormatMarkdown, start, out, err) }()

	text, diagrams, err := r.prepare(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &Output{Format: FormatMarkdown, Data: []byte(text), Diagrams: diagrams}, nil
}

// PDF typesets the document. An image that cannot be decoded fails the
// whole export with IMAGE_DECODE_ERROR.
func (r *Runner) PDF(ctx context.Context, doc document.Document) (out *Output, err error) {
	start := r.begin(ctx, FormatPDF)
	defer func() { r.end(ctx, FormatPDF, start, out, err) }()

	text, diagrams, err := r.prepare(ctx, doc)
	if err != nil {
		return nil, err
	}

	blocks := markdown.Parse(text)
	r.Logger.Debug("parsed blocks", "blocks", len(blocks), "kinds", markdown.Stats(blocks))

	opts := []typeset.Option{typeset.WithPageNumbers(), typeset.WithLogger(r.Logger)}
	if r.Title != "" {
		opts = append(opts, typeset.WithTitle(r.Title))
	}
	if r.Loader != nil {
		opts = append(opts, typeset.WithImageLoader(r.Loader))
	}
	data, report, err := typeset.Render(ctx, blocks, r.Layout, opts...)
	if err != nil {
		return nil, err
	}
	return &Output{Format: FormatPDF, Data: data, Diagrams: diagrams, Pages: report.Pages}, nil
}

// prepare cleans the text, appends the visual content when the text has
// no diagram, and inlines every diagram as an image.
func (r *Runner) prepare(ctx context.Context, doc document.Document) (string, int, error) {
	text := document.Clean(doc.TextContent)
	if !document.HasDiagram(text) {
		if visual := document.StripFence(doc.VisualContent); visual != "" {
			text = strings.TrimRight(text, "\n") + "\n\n" + visualHeading + "\n\n" + document.Fence(visual) + "\n"
		}
	}

	rasterize := func(ctx context.Context, source string) ([]byte, error) {
		raster, err := r.Renderer.Rasterize(ctx, source)
		if err != nil {
			return nil, err
		}
		return raster.PNG, nil
	}
	out, n, err := document.ConvertDiagramsToImages(ctx, text, rasterize, r.Logger)
	if err != nil {
		return "", 0, err
	}
	if strings.TrimSpace(out) == "" {
		out = text
	}
	return out, n, nil
}

func (r *Runner) begin(ctx context.Context, format string) time.Time {
	observability.Export().OnExportStart(ctx, format)
	return time.Now()
}

func (r *Runner) end(ctx context.Context, format string, start time.Time, out *Output, err error) {
	d := time.Since(start)
	size := 0
	if out != nil {
		out.Duration = d
		size = len(out.Data)
	}
	observability.Export().OnExportComplete(ctx, format, size, d, err)
	if err != nil {
		r.Logger.Error("export failed", "format", format, "error", err)
		return
	}
	r.Logger.Info("exported document",
		"format", format,
		"bytes", size,
		"diagrams", out.Diagrams,
		"duration", d)
}
