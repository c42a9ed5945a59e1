// Package diagram renders mermaid-style flowchart sources to SVG and PNG.
//
// Rendering is a three step pipeline:
//
//  1. [Sanitize] quotes bracketed node labels that would otherwise break
//     the grammar.
//  2. An [Engine] turns diagram source into SVG. The default
//     [FlowchartEngine] parses the flowchart subset, converts it to DOT
//     and lays it out with an in-process Graphviz.
//  3. A [Rasterizer] draws the SVG at 2x over an opaque white background
//     and encodes it as PNG.
//
// [Renderer] ties the steps together: it tries the source as given, retries
// once with the sanitized source if that differs, and caches every
// successful render.
package diagram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"
)

// ErrEmpty is returned for a source with no diagram in it.
var ErrEmpty = errors.New("empty diagram source")

// Engine renders diagram source to SVG.
type Engine interface {
	// Name identifies the engine in cache keys and logs.
	Name() string

	// RenderSVG renders source. Syntax errors are returned as
	// *SyntaxError.
	RenderSVG(ctx context.Context, source string) ([]byte, error)
}

// FlowchartEngine renders the flowchart subset through Graphviz.
type FlowchartEngine struct{}

// NewFlowchartEngine returns the default engine.
func NewFlowchartEngine() *FlowchartEngine {
	return &FlowchartEngine{}
}

func (*FlowchartEngine) Name() string { return "flowchart" }

// RenderSVG parses source and lays it out with Graphviz.
func (*FlowchartEngine) RenderSVG(ctx context.Context, source string) ([]byte, error) {
	fc, err := ParseFlowchart(source)
	if err != nil {
		return nil, err
	}
	return RenderDOT(ctx, fc.DOT())
}

// RenderDOT lays out a DOT graph and returns SVG with unitless width and
// height. The Graphviz instance and parsed graph are released before
// returning, on every path.
func RenderDOT(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so width and height are the
// viewBox size in user units. Graphviz declares them in points.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	replaced := false
	return svgTagRe.ReplaceAllFunc(svg, func(tag []byte) []byte {
		if replaced {
			return tag
		}
		replaced = true
		return []byte(root)
	})
}
