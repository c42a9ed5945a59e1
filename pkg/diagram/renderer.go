package diagram

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/docsmith/pkg/cache"
	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/observability"
)

// Result is a successful render.
type Result struct {
	SVG []byte
	// Source is the exact text that rendered: the input, or its sanitized
	// form when only that succeeded.
	Source    string
	Sanitized bool
	CacheHit  bool
}

// Raster is a PNG drawn at RasterScale over white.
type Raster struct {
	PNG    []byte
	Width  int // pixels, after scaling
	Height int
	Source string
}

// Renderer renders diagram sources with a sanitize retry and caching.
//
// The Renderer holds no per-render state, so one instance may be shared
// between goroutines.
type Renderer struct {
	Engine     Engine
	Rasterizer Rasterizer
	Cache      cache.Cache
	Keyer      cache.Keyer
	Logger     *log.Logger
}

// NewRenderer creates a renderer. Nil arguments fall back to the
// flowchart engine, the default rasterizer, a NullCache and log.Default().
func NewRenderer(engine Engine, rasterizer Rasterizer, c cache.Cache, logger *log.Logger) *Renderer {
	if engine == nil {
		engine = NewFlowchartEngine()
	}
	if rasterizer == nil {
		rasterizer = DefaultRasterizer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Renderer{
		Engine:     engine,
		Rasterizer: rasterizer,
		Cache:      c,
		Keyer:      cache.NewDefaultKeyer(),
		Logger:     logger,
	}
}

// Render renders source directly and, if that fails and sanitizing changes
// the text, once more with the sanitized text. When both fail the error
// has code RENDER_ERROR and wraps the last engine failure.
func (r *Renderer) Render(ctx context.Context, source string) (*Result, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.Wrap(errors.ErrCodeRender, ErrEmpty, "render diagram")
	}

	engine := r.Engine.Name()
	hooks := observability.Diagram()
	hooks.OnRenderStart(ctx, engine)
	start := time.Now()

	candidates := []string{source}
	if s := Sanitize(source); s != source {
		candidates = append(candidates, s)
	}

	var lastErr error
	for i, src := range candidates {
		if err := ctx.Err(); err != nil {
			hooks.OnRenderComplete(ctx, engine, false, time.Since(start), err)
			return nil, err
		}
		svg, hit, err := r.renderCached(ctx, src)
		if err != nil {
			r.Logger.Debug("diagram render failed", "engine", engine, "sanitized", i > 0, "error", err)
			lastErr = err
			continue
		}
		if i > 0 {
			r.Logger.Info("diagram rendered after sanitizing", "engine", engine)
		}
		hooks.OnRenderComplete(ctx, engine, i > 0, time.Since(start), nil)
		return &Result{SVG: svg, Source: src, Sanitized: i > 0, CacheHit: hit}, nil
	}

	err := errors.Wrap(errors.ErrCodeRender, lastErr, "render diagram")
	hooks.OnRenderComplete(ctx, engine, len(candidates) > 1, time.Since(start), err)
	return nil, err
}

func (r *Renderer) renderCached(ctx context.Context, src string) ([]byte, bool, error) {
	key := r.Keyer.DiagramKey(r.Engine.Name(), src)
	if data, ok, _ := r.Cache.Get(ctx, key); ok {
		observability.Cache().OnCacheHit(ctx, "diagram")
		return data, true, nil
	}
	observability.Cache().OnCacheMiss(ctx, "diagram")

	svg, err := r.Engine.RenderSVG(ctx, src)
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, key, svg, cache.TTLDiagram); err != nil {
		r.Logger.Warn("failed to cache diagram", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "diagram", len(svg))
	}
	return svg, false, nil
}

// Rasterize renders source and draws it at RasterScale times its intrinsic
// size. Render failures keep their RENDER_ERROR code.
func (r *Renderer) Rasterize(ctx context.Context, source string) (*Raster, error) {
	res, err := r.Render(ctx, source)
	if err != nil {
		return nil, err
	}
	png, w, h, err := r.RasterizeSVG(ctx, res.SVG)
	if err != nil {
		return nil, err
	}
	return &Raster{PNG: png, Width: w, Height: h, Source: res.Source}, nil
}

// RasterizeSVG draws an already rendered SVG at RasterScale.
func (r *Renderer) RasterizeSVG(ctx context.Context, svg []byte) ([]byte, int, int, error) {
	w, h := Dimensions(svg)
	w, h = w*RasterScale, h*RasterScale
	name := r.Rasterizer.Name()

	key := r.Keyer.RasterKey(name, cache.Hash(svg), RasterScale)
	if data, ok, _ := r.Cache.Get(ctx, key); ok {
		observability.Cache().OnCacheHit(ctx, "raster")
		return data, w, h, nil
	}
	observability.Cache().OnCacheMiss(ctx, "raster")

	start := time.Now()
	png, err := r.Rasterizer.Rasterize(ctx, svg, w, h)
	observability.Diagram().OnRasterize(ctx, name, w, h, time.Since(start), err)
	if err != nil {
		return nil, 0, 0, errors.Wrap(errors.ErrCodeRender, err, "rasterize diagram with %s", name)
	}
	if err := r.Cache.Set(ctx, key, png, cache.TTLRaster); err != nil {
		r.Logger.Warn("failed to cache raster", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "raster", len(png))
	}
	r.Logger.Debug("rasterized diagram", "rasterizer", name, "width", w, "height", h, "duration", time.Since(start))
	return png, w, h, nil
}
