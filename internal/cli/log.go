// Package cli implements the docsmith command-line interface.
//
// docsmith works on one generated document at a time: it imports the
// document into the session store, renders its diagram (repairing it
// through the generation service when it fails to parse), and exports it
// as markdown or PDF. The CLI is built using cobra and logs through
// charmbracelet/log.
//
// # Commands
//
//   - render, sanitize: render or fix a single diagram source
//   - export: write documentation.md and/or documentation.pdf
//   - serve: run the preview server
//   - doc, key: manage the stored document and provider API keys
//   - watch: print document update events
//   - cache, config: inspect local state
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context; with --verbose, library hooks also log
// render, repair, export and cache activity.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/docsmith/pkg/observability"
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs completion of an operation with its elapsed time.
// Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Exported 2 files (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// =============================================================================
// Debug Hooks
// =============================================================================

// logHooks reports library activity at debug level.
type logHooks struct {
	logger *log.Logger
}

// installHooks routes all library hooks to logger.
func installHooks(logger *log.Logger) {
	h := logHooks{logger: logger}
	observability.SetDiagramHooks(h)
	observability.SetRepairHooks(h)
	observability.SetExportHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h logHooks) OnRenderStart(_ context.Context, engine string) {
	h.logger.Debug("render start", "engine", engine)
}

func (h logHooks) OnRenderComplete(_ context.Context, engine string, sanitized bool, d time.Duration, err error) {
	h.logger.Debug("render done", "engine", engine, "sanitized", sanitized, "duration", d, "error", err)
}

func (h logHooks) OnRasterize(_ context.Context, rasterizer string, w, ht int, d time.Duration, err error) {
	h.logger.Debug("rasterize", "rasterizer", rasterizer, "width", w, "height", ht, "duration", d, "error", err)
}

func (h logHooks) OnRepairStart(_ context.Context, provider string) {
	h.logger.Debug("repair start", "provider", provider)
}

func (h logHooks) OnRepairComplete(_ context.Context, provider, outcome string, d time.Duration, err error) {
	h.logger.Debug("repair done", "provider", provider, "outcome", outcome, "duration", d, "error", err)
}

func (h logHooks) OnExportStart(_ context.Context, format string) {
	h.logger.Debug("export start", "format", format)
}

func (h logHooks) OnExportComplete(_ context.Context, format string, size int, d time.Duration, err error) {
	h.logger.Debug("export done", "format", format, "bytes", size, "duration", d, "error", err)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "error", err)
}
