package diagram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Fallback intrinsic size for an SVG without usable dimensions.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// RasterScale is the device pixel ratio rasters are drawn at.
const RasterScale = 2

// Rasterizer draws an SVG into a width x height PNG over opaque white.
type Rasterizer interface {
	Name() string
	Rasterize(ctx context.Context, svg []byte, width, height int) ([]byte, error)
}

var (
	svgRootRe     = regexp.MustCompile(`(?s)<svg\b[^>]*>`)
	widthAttrRe   = regexp.MustCompile(`\swidth\s*=\s*["']([^"']*)["']`)
	heightAttrRe  = regexp.MustCompile(`\sheight\s*=\s*["']([^"']*)["']`)
	viewBoxAttrRe = regexp.MustCompile(`\sviewBox\s*=\s*["']([^"']*)["']`)
	leadingNumRe  = regexp.MustCompile(`^\s*([0-9]*\.?[0-9]+)\s*(px|pt)?\s*$`)
)

// Dimensions returns the intrinsic pixel size of an SVG: the root
// element's width and height when both are plain numbers (optionally px or
// pt), else the viewBox size, else DefaultWidth x DefaultHeight.
func Dimensions(svg []byte) (int, int) {
	root := svgRootRe.Find(svg)
	if root == nil {
		return DefaultWidth, DefaultHeight
	}

	w, wok := numericAttr(widthAttrRe, root)
	h, hok := numericAttr(heightAttrRe, root)
	if wok && hok {
		return w, h
	}

	if m := viewBoxAttrRe.FindSubmatch(root); m != nil {
		fields := strings.FieldsFunc(string(m[1]), func(r rune) bool { return r == ' ' || r == ',' })
		if len(fields) == 4 {
			vw, err1 := strconv.ParseFloat(fields[2], 64)
			vh, err2 := strconv.ParseFloat(fields[3], 64)
			if err1 == nil && err2 == nil && vw > 0 && vh > 0 {
				return int(math.Ceil(vw)), int(math.Ceil(vh))
			}
		}
	}
	return DefaultWidth, DefaultHeight
}

func numericAttr(re *regexp.Regexp, root []byte) (int, bool) {
	m := re.FindSubmatch(root)
	if m == nil {
		return 0, false
	}
	n := leadingNumRe.FindSubmatch(m[1])
	if n == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(n[1]), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return int(math.Ceil(v)), true
}

// =============================================================================
// oksvg
// =============================================================================

// OKSVGRasterizer rasterizes in pure Go. It draws shapes and paths but not
// <text> elements, so labels are missing from its output.
type OKSVGRasterizer struct{}

func (OKSVGRasterizer) Name() string { return "oksvg" }

func (OKSVGRasterizer) Rasterize(ctx context.Context, svg []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	icon.Draw(rasterx.NewDasher(width, height, rasterx.NewScannerGV(width, height, rgba, rgba.Bounds())), 1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// rsvg-convert
// =============================================================================

// RSVGRasterizer shells out to rsvg-convert, which renders text.
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
type RSVGRasterizer struct{}

func (RSVGRasterizer) Name() string { return "rsvg" }

// RSVGAvailable reports whether rsvg-convert is on PATH.
func RSVGAvailable() bool {
	_, err := exec.LookPath("rsvg-convert")
	return err == nil
}

func (RSVGRasterizer) Rasterize(ctx context.Context, svg []byte, width, height int) ([]byte, error) {
	if !RSVGAvailable() {
		return nil, fmt.Errorf("PNG export with rsvg requires librsvg. Install with:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin")
	}

	cmd := exec.CommandContext(ctx, "rsvg-convert",
		"-f", "png",
		"-w", strconv.Itoa(width),
		"-h", strconv.Itoa(height),
		"-b", "white",
	)
	cmd.Stdin = bytes.NewReader(svg)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rsvg-convert: %v: %s", err, errBuf.String())
	}
	return out.Bytes(), nil
}

// DefaultRasterizer picks rsvg-convert when installed and oksvg otherwise.
func DefaultRasterizer() Rasterizer {
	if RSVGAvailable() {
		return RSVGRasterizer{}
	}
	return OKSVGRasterizer{}
}

// NewRasterizer returns the rasterizer for a config name: "auto", "oksvg"
// or "rsvg".
func NewRasterizer(name string) (Rasterizer, error) {
	switch name {
	case "", "auto":
		return DefaultRasterizer(), nil
	case "oksvg":
		return OKSVGRasterizer{}, nil
	case "rsvg":
		return RSVGRasterizer{}, nil
	default:
		return nil, fmt.Errorf("unknown rasterizer %q (must be auto, oksvg or rsvg)", name)
	}
}
