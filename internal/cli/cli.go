package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/docsmith/internal/config"
	"github.com/matzehuels/docsmith/pkg/buildinfo"
	"github.com/matzehuels/docsmith/pkg/cache"
	"github.com/matzehuels/docsmith/pkg/diagram"
	"github.com/matzehuels/docsmith/pkg/events"
	"github.com/matzehuels/docsmith/pkg/export"
	"github.com/matzehuels/docsmith/pkg/repair"
	"github.com/matzehuels/docsmith/pkg/store"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *config.Config

	configPath string
	noCache    bool
}

// New creates a CLI with a default logger. Config is loaded before each
// command runs.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "docsmith",
		Short:        "docsmith renders, repairs and exports generated documentation",
		Long:         `docsmith takes documentation produced by a text generation service, renders its flowchart diagram (asking the service to fix the diagram when it does not parse), and exports the result as markdown or PDF.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/docsmith/config.toml)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the render cache")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.sanitizeCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.docCommand())
	root.AddCommand(c.keyCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads configuration and attaches the logger to the command context.
func (c *CLI) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.noCache {
		cfg.Cache.Disabled = true
	}
	c.Config = cfg

	if c.Logger.GetLevel() <= log.DebugLevel {
		installHooks(c.Logger)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger))
	return nil
}

// =============================================================================
// Session - per-command component wiring
// =============================================================================

// session holds the components one command works with. Fields are
// populated by openSession; close releases them in reverse order.
type session struct {
	cfg      *config.Config
	logger   *log.Logger
	store    store.Store
	docs     *store.Documents
	cache    cache.Cache
	bus      events.Bus
	renderer *diagram.Renderer

	closers []func() error
}

// openSession connects the configured store, cache and event bus.
func (c *CLI) openSession(ctx context.Context) (*session, error) {
	cfg := c.Config
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	s := &session{cfg: cfg, logger: loggerFromContext(ctx)}

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, err
	}
	s.store = st
	s.docs = store.NewDocuments(st)
	s.closers = append(s.closers, st.Close)

	// A redis store shares its connection with the bus; other backends
	// only see events from this process.
	if rs, ok := st.(*store.RedisStore); ok {
		s.bus = events.NewRedisBus(rs.Client(), s.logger)
	} else {
		s.bus = events.NewMemoryBus()
	}
	s.closers = append(s.closers, s.bus.Close)

	cc, owned, err := c.newCache(ctx, st)
	if err != nil {
		s.close()
		return nil, err
	}
	s.cache = cc
	if owned {
		s.closers = append(s.closers, cc.Close)
	}

	rasterizer, err := diagram.NewRasterizer(cfg.Diagram.Rasterizer)
	if err != nil {
		s.close()
		return nil, err
	}
	s.renderer = diagram.NewRenderer(nil, rasterizer, s.cache, s.logger)
	return s, nil
}

// newCache returns the configured render cache. owned is false when the
// cache shares the store's redis client. Failures to open the file cache
// fall back to no caching.
func (c *CLI) newCache(ctx context.Context, st store.Store) (cc cache.Cache, owned bool, err error) {
	cfg := c.Config
	if cfg == nil || cfg.Cache.Disabled {
		return cache.NewNullCache(), true, nil
	}
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		return cache.NewMemoryCache(), true, nil
	case config.CacheRedis:
		prefix := cfg.Store.RedisPrefix + "cache:"
		if rs, ok := st.(*store.RedisStore); ok {
			return cache.NewRedisCache(rs.Client(), prefix), false, nil
		}
		rs, err := store.DialRedis(ctx, cfg.Store.RedisAddr, "")
		if err != nil {
			return nil, false, err
		}
		return cache.NewRedisCache(rs.Client(), prefix), true, nil
	default:
		dir := cfg.Cache.Dir
		if dir == "" {
			if dir, err = config.CacheDir(); err != nil {
				return cache.NewNullCache(), true, nil
			}
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			loggerFromContext(ctx).Warn("render cache unavailable", "dir", dir, "error", err)
			return cache.NewNullCache(), true, nil
		}
		return fc, true, nil
	}
}

// coordinator returns a repair coordinator that reports to notifier.
func (s *session) coordinator(notifier repair.Notifier) *repair.Coordinator {
	gen := repair.NewHTTPGenerator(s.cfg.Repair.Endpoint, s.cfg.Repair.Timeout)
	coord := repair.NewCoordinator(s.docs, s.bus, gen, notifier, s.logger)
	coord.MaxChain = s.cfg.Repair.MaxChain
	return coord
}

// exporter returns an export runner using the configured PDF layout.
func (s *session) exporter() (*export.Runner, error) {
	layout, err := s.cfg.Layout()
	if err != nil {
		return nil, err
	}
	r := export.NewRunner(s.renderer, layout, s.logger)
	if s.cfg.PDF.Title != "" {
		r.Title = s.cfg.PDF.Title
	}
	return r, nil
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Debug("close", "error", err)
		}
	}
}
