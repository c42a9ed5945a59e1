// Package typeset lays out parsed markdown blocks on paginated PDF pages.
//
// The typesetter keeps a running vertical cursor. Before any fragment is
// drawn, [Typesetter] checks that it fits above the bottom margin and
// starts a new page otherwise. Text is wrapped to the content width,
// lists and blockquotes are indented, code blocks get a background sized
// from the exact wrapped line count, and images are scaled to fit.
//
//	ts, err := typeset.New(typeset.DefaultLayout(), typeset.WithTitle("Project Documentation"))
//	report, err := ts.Render(ctx, markdown.Parse(text))
//	err = ts.Write(file)
//
// Fonts are the PDF core fonts (Helvetica, Courier), so no font files are
// required. Text is transcoded to cp1252 before measuring and drawing.
package typeset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"codeberg.org/go-pdf/fpdf"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/markdown"
)

// epsilon absorbs floating point drift when comparing cursor positions.
const epsilon = 1e-6

const (
	bodyFont = "Helvetica"
	codeFont = "Courier"

	// Courier glyphs are 600/1000 em wide.
	courierAdvance = 0.6
)

// Report summarises one render.
type Report struct {
	Pages   int // pages in the document
	Blocks  int // blocks drawn
	Skipped int // blocks of unknown type
	Lines   int // text and code lines drawn
	Images  int // images embedded

	CodeChunks []CodeChunk // per-page pieces of code blocks, in order
}

// CodeChunk describes the part of a code block that landed on one page.
type CodeChunk struct {
	Page   int     // 1-based page number
	Lines  int     // wrapped lines drawn over the background
	Height float64 // background height in mm
}

// Option configures a Typesetter.
type Option func(*Typesetter)

// WithTitle prints title centered above the first block and records it in
// the document metadata.
func WithTitle(title string) Option {
	return func(t *Typesetter) { t.title = title }
}

// WithPageNumbers draws the page number in the bottom margin.
func WithPageNumbers() Option {
	return func(t *Typesetter) { t.pageNumbers = true }
}

// WithImageLoader sets how image sources are fetched.
// The default is a DefaultLoader rooted at the working directory.
func WithImageLoader(l ImageLoader) Option {
	return func(t *Typesetter) { t.loader = l }
}

// WithLogger sets the logger used for skipped blocks and summaries.
func WithLogger(l *log.Logger) Option {
	return func(t *Typesetter) { t.logger = l }
}

// Typesetter renders blocks into a PDF. It is not safe for concurrent use;
// each call to Render starts a fresh document.
type Typesetter struct {
	layout      Layout
	title       string
	pageNumbers bool
	loader      ImageLoader
	logger      *log.Logger

	pdf    *fpdf.Fpdf
	tr     func(string) string
	y      float64
	report Report
}

// New validates the layout and returns a Typesetter.
func New(layout Layout, opts ...Option) (*Typesetter, error) {
	if err := layout.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid layout")
	}
	t := &Typesetter{
		layout: layout,
		loader: DefaultLoader{},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Render lays out blocks in order. Unknown block types are skipped. An
// image that cannot be loaded or decoded aborts the render with an
// IMAGE_DECODE_ERROR.
func (t *Typesetter) Render(ctx context.Context, blocks []markdown.Block) (*Report, error) {
	t.begin()

	if t.title != "" {
		t.writeText(t.title, textStyle{
			style: "B",
			size:  t.layout.HeadingSize(1),
			align: "C",
			gap:   t.layout.BlockGap * 2,
		})
	}

	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch b := b.(type) {
		case markdown.Heading:
			t.writeText(b.Text, textStyle{
				style: "B",
				size:  t.layout.HeadingSize(b.Level),
				gap:   t.layout.BlockGap,
			})
		case markdown.Paragraph:
			t.writeText(b.Text, textStyle{size: t.layout.BodySize, gap: t.layout.BlockGap})
		case markdown.UnorderedList:
			t.writeList(len(b.Items), func(i int) (string, string) { return "•", b.Items[i] })
		case markdown.OrderedList:
			t.writeList(len(b.Items), func(i int) (string, string) {
				return strconv.Itoa(b.Items[i].Index) + ".", b.Items[i].Text
			})
		case markdown.Blockquote:
			t.writeText(b.Text, textStyle{
				style:  "I",
				size:   t.layout.BodySize,
				indent: t.layout.QuoteIndent,
				bar:    true,
				gap:    t.layout.BlockGap * 2,
			})
		case markdown.Code:
			t.writeCode(b)
		case markdown.Image:
			if err := t.writeImage(ctx, b); err != nil {
				return nil, err
			}
		default:
			t.logger.Debug("skipping unsupported block", "type", fmt.Sprintf("%T", b))
			t.report.Skipped++
			continue
		}
		t.report.Blocks++
	}

	if t.pdf.Err() {
		return nil, errors.Wrap(errors.ErrCodeInternal, t.pdf.Error(), "typeset document")
	}
	t.report.Pages = t.pdf.PageNo()

	t.logger.Debug("typeset document",
		"pages", t.report.Pages,
		"blocks", t.report.Blocks,
		"lines", t.report.Lines,
		"images", t.report.Images)

	report := t.report
	return &report, nil
}

// Write serialises the last rendered document.
func (t *Typesetter) Write(w io.Writer) error {
	if t.pdf == nil {
		return errors.New(errors.ErrCodeInternal, "nothing rendered")
	}
	if err := t.pdf.Output(w); err != nil {
		return errors.Wrap(errors.ErrCodeExportIO, err, "write PDF")
	}
	return nil
}

// Render is a convenience wrapper that typesets blocks and returns the PDF
// bytes together with the report.
func Render(ctx context.Context, blocks []markdown.Block, layout Layout, opts ...Option) ([]byte, *Report, error) {
	t, err := New(layout, opts...)
	if err != nil {
		return nil, nil, err
	}
	report, err := t.Render(ctx, blocks)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := t.Write(&buf); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), report, nil
}

// =============================================================================
// Page state
// =============================================================================

func (t *Typesetter) begin() {
	l := t.layout
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: l.PageWidth, Ht: l.PageHeight},
	})
	pdf.SetMargins(l.MarginLeft, l.MarginTop, l.MarginRight)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(0)
	pdf.SetCreator("docsmith", true)
	if t.title != "" {
		pdf.SetTitle(t.title, true)
	}
	if t.pageNumbers {
		pdf.SetFooterFunc(func() {
			size := l.CaptionSize
			pdf.SetFont(bodyFont, "", size)
			pdf.SetTextColor(120, 120, 120)
			lh := l.LineHeight(size)
			pdf.SetXY(l.MarginLeft, l.PageHeight-(l.MarginBottom+lh)/2)
			pdf.CellFormat(l.ContentWidth(), lh, strconv.Itoa(pdf.PageNo()), "", 0, "C", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		})
	}

	t.pdf = pdf
	t.tr = pdf.UnicodeTranslatorFromDescriptor("")
	t.report = Report{}
	t.newPage()
}

func (t *Typesetter) newPage() {
	t.pdf.AddPage()
	t.y = t.layout.MarginTop
}

func (t *Typesetter) bottom() float64 {
	return t.layout.PageHeight - t.layout.MarginBottom
}

func (t *Typesetter) atTop() bool {
	return t.y <= t.layout.MarginTop+epsilon
}

// ensureSpace starts a new page when a fragment of height h would cross the
// bottom margin. A fragment taller than a whole page is drawn at the top of
// a fresh page and allowed to overflow.
func (t *Typesetter) ensureSpace(h float64) {
	if t.y+h > t.bottom()+epsilon && !t.atTop() {
		t.newPage()
	}
}

// =============================================================================
// Text
// =============================================================================

type textStyle struct {
	style  string  // fpdf font style: "", "B", "I"
	size   float64 // points
	indent float64 // mm from the left margin
	marker string  // drawn beside the first line, inside the indent
	align  string  // "L" (default) or "C"
	bar    bool    // quote bar in the indent
	gap    float64 // trailing gap in mm
}

// writeText wraps text and draws it line by line. Empty text still takes
// one line.
func (t *Typesetter) writeText(text string, s textStyle) {
	l := t.layout
	t.pdf.SetFont(bodyFont, s.style, s.size)
	lh := l.LineHeight(s.size)
	x := l.MarginLeft + s.indent
	w := l.ContentWidth() - s.indent
	align := s.align
	if align == "" {
		align = "L"
	}

	lines := wrapText(t.tr(text), w, t.pdf.GetStringWidth)
	for i, line := range lines {
		t.ensureSpace(lh)
		if i == 0 && s.marker != "" {
			t.pdf.SetXY(l.MarginLeft, t.y)
			t.pdf.CellFormat(s.indent-1.5, lh, t.tr(s.marker), "", 0, "R", false, 0, "")
		}
		if s.bar {
			t.pdf.SetFillColor(200, 200, 200)
			t.pdf.Rect(l.MarginLeft+s.indent/3, t.y, 0.8, lh, "F")
		}
		t.pdf.SetXY(x, t.y)
		t.pdf.CellFormat(w, lh, line, "", 0, align, false, 0, "")
		t.y += lh
		t.report.Lines++
	}
	t.y += s.gap
}

// writeList draws n items; item returns the marker and text of item i.
func (t *Typesetter) writeList(n int, item func(i int) (marker, text string)) {
	for i := range n {
		marker, text := item(i)
		t.writeText(text, textStyle{
			size:   t.layout.BodySize,
			indent: t.layout.ListIndent,
			marker: marker,
		})
	}
	t.y += t.layout.ListGap
}

// =============================================================================
// Code
// =============================================================================

// writeCode draws a code block in per-page chunks. Each chunk's background
// is exactly its line count times the line height plus padding on both
// sides, and the same wrapped lines are drawn over it.
func (t *Typesetter) writeCode(c markdown.Code) {
	l := t.layout
	size := l.CodeSize
	lh := l.LineHeight(size)
	pad := l.CodePadding
	inner := l.ContentWidth() - 2*pad
	cols := int(math.Floor(inner / (size * ptToMM * courierAdvance)))

	t.pdf.SetFont(codeFont, "", size)
	lines := wrapCode(c.Content, cols)
	for i, line := range lines {
		lines[i] = t.tr(line)
	}

	for start := 0; start < len(lines); {
		avail := int(math.Floor((t.bottom() - t.y - 2*pad + epsilon) / lh))
		if avail < 1 {
			if !t.atTop() {
				t.newPage()
				continue
			}
			avail = 1
		}
		chunk := lines[start:min(start+avail, len(lines))]
		h := float64(len(chunk))*lh + 2*pad

		t.ensureSpace(h)
		t.pdf.SetFillColor(244, 244, 244)
		t.pdf.Rect(l.MarginLeft, t.y, l.ContentWidth(), h, "F")
		for i, line := range chunk {
			t.pdf.SetXY(l.MarginLeft+pad, t.y+pad+float64(i)*lh)
			t.pdf.CellFormat(inner, lh, line, "", 0, "L", false, 0, "")
		}

		t.report.CodeChunks = append(t.report.CodeChunks, CodeChunk{
			Page:   t.pdf.PageNo(),
			Lines:  len(chunk),
			Height: h,
		})
		t.report.Lines += len(chunk)
		t.y += h
		start += len(chunk)
	}
	t.y += l.BlockGap
}

// =============================================================================
// Images
// =============================================================================

func (t *Typesetter) writeImage(ctx context.Context, img markdown.Image) error {
	l := t.layout
	data, err := t.loader.Load(ctx, img.Src)
	if err != nil {
		return errors.Wrap(errors.ErrCodeImageDecode, err, "load image %q", img.Alt)
	}
	dec, err := decodeImage(data)
	if err != nil {
		return errors.Wrap(errors.ErrCodeImageDecode, err, "decode image %q", img.Alt)
	}

	var captionH float64
	if img.Alt != "" {
		captionH = l.LineHeight(l.CaptionSize)
	}
	w, h := fitImage(dec.width, dec.height, l.ImageDPI, l.ContentWidth(), l.ContentHeight()-captionH)
	t.ensureSpace(h + captionH)

	t.report.Images++
	name := fmt.Sprintf("image-%d", t.report.Images)
	opts := fpdf.ImageOptions{ImageType: dec.kind}
	t.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(dec.data))
	if t.pdf.Err() {
		return errors.Wrap(errors.ErrCodeImageDecode, t.pdf.Error(), "embed image %q", img.Alt)
	}
	t.pdf.ImageOptions(name, l.MarginLeft+(l.ContentWidth()-w)/2, t.y, w, h, false, opts, 0, "")
	t.y += h

	if captionH > 0 {
		t.pdf.SetFont(bodyFont, "I", l.CaptionSize)
		t.pdf.SetXY(l.MarginLeft, t.y)
		t.pdf.CellFormat(l.ContentWidth(), captionH, t.tr(img.Alt), "", 0, "C", false, 0, "")
		t.y += captionH
		t.report.Lines++
	}
	t.y += l.BlockGap
	return nil
}
