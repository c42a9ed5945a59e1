// Package config loads docsmith settings.
//
// Settings are resolved in order, later sources winning:
//
//  1. built-in defaults ([Default])
//  2. the TOML file at $XDG_CONFIG_HOME/docsmith/config.toml
//  3. DOCSMITH_* environment variables, including those from a .env file
//     in the working directory
//  4. command-line flags, applied by the CLI after [Load]
//
// A minimal config file:
//
//	[repair]
//	endpoint = "http://localhost:8000/api/generate"
//	timeout = "60s"
//
//	[store]
//	backend = "redis"
//	redis_addr = "localhost:6379"
package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/docsmith/pkg/diagram"
	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/repair"
	"github.com/matzehuels/docsmith/pkg/store"
	"github.com/matzehuels/docsmith/pkg/typeset"
)

const appName = "docsmith"

// Config is the full set of settings.
type Config struct {
	Repair  Repair  `toml:"repair"`
	Store   Store   `toml:"store"`
	Cache   Cache   `toml:"cache"`
	Diagram Diagram `toml:"diagram"`
	PDF     PDF     `toml:"pdf"`
	Serve   Serve   `toml:"serve"`
}

// Repair configures the text generation service used to fix diagrams.
type Repair struct {
	Endpoint string        `toml:"endpoint"`
	Timeout  time.Duration `toml:"timeout"`
	// MaxChain caps how many successive repairs one diagram may go through.
	MaxChain int `toml:"max_chain"`
}

// Store selects the session store backend.
type Store struct {
	Backend         string `toml:"backend"`
	Dir             string `toml:"dir"`
	RedisAddr       string `toml:"redis_addr"`
	RedisPrefix     string `toml:"redis_prefix"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// Cache configures the render cache.
type Cache struct {
	// Backend is "file", "memory" or "redis". The redis cache shares the
	// store's redis_addr.
	Backend  string `toml:"backend"`
	Dir      string `toml:"dir"`
	Disabled bool   `toml:"disabled"`
}

// Diagram configures rendering.
type Diagram struct {
	Rasterizer string `toml:"rasterizer"`
}

// PDF configures the typeset export.
type PDF struct {
	PageSize string  `toml:"page_size"`
	Margin   float64 `toml:"margin"`
	FontSize float64 `toml:"font_size"`
	Title    string  `toml:"title"`
}

// Serve configures the preview server.
type Serve struct {
	Addr string `toml:"addr"`
}

// Cache backend names.
const (
	CacheFile   = "file"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Default returns the built-in settings.
func Default() Config {
	layout := typeset.DefaultLayout()
	return Config{
		Repair: Repair{
			Endpoint: repair.DefaultEndpoint,
			Timeout:  repair.DefaultTimeout,
			MaxChain: repair.MaxRepairChain,
		},
		Store: Store{
			Backend:     store.BackendFile,
			RedisAddr:   "localhost:6379",
			RedisPrefix: appName + ":",
		},
		Cache:   Cache{Backend: CacheFile},
		Diagram: Diagram{Rasterizer: "auto"},
		PDF: PDF{
			PageSize: "a4",
			Margin:   layout.MarginLeft,
			FontSize: layout.BodySize,
			Title:    "Project Documentation",
		},
		Serve: Serve{Addr: "localhost:8080"},
	}
}

// Dir returns the config directory, ~/.config/docsmith unless
// XDG_CONFIG_HOME is set.
func Dir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// CacheDir returns the cache directory, ~/.cache/docsmith unless
// XDG_CACHE_HOME is set.
func CacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load resolves settings from defaults, the config file and the
// environment. An empty path means the default location, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolve config path")
		}
		path = p
	}
	if err := cfg.decodeFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decodeFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.New(errors.ErrCodeInvalidInput, "unknown config key %q in %s", undecoded[0].String(), path)
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case store.BackendMemory, store.BackendFile, store.BackendRedis, store.BackendMongo:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "store.backend must be memory, file, redis or mongo (got %q)", c.Store.Backend)
	}
	switch c.Cache.Backend {
	case CacheFile, CacheMemory, CacheRedis:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "cache.backend must be file, memory or redis (got %q)", c.Cache.Backend)
	}
	if _, err := diagram.NewRasterizer(c.Diagram.Rasterizer); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "diagram.rasterizer")
	}
	if err := errors.ValidateURL(c.Repair.Endpoint); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "repair.endpoint")
	}
	if c.Repair.Timeout <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "repair.timeout must be positive")
	}
	if c.Repair.MaxChain < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "repair.max_chain must be at least 1")
	}
	if _, err := c.Layout(); err != nil {
		return err
	}
	return nil
}

// Layout returns the PDF layout described by the pdf section.
func (c *Config) Layout() (typeset.Layout, error) {
	l := typeset.DefaultLayout()
	w, h, err := typeset.PageSize(c.PDF.PageSize)
	if err != nil {
		return l, errors.Wrap(errors.ErrCodeInvalidInput, err, "pdf.page_size")
	}
	l.PageWidth, l.PageHeight = w, h
	if c.PDF.Margin < 0 {
		return l, errors.New(errors.ErrCodeInvalidInput, "pdf.margin must not be negative")
	}
	l.MarginLeft, l.MarginRight, l.MarginTop, l.MarginBottom = c.PDF.Margin, c.PDF.Margin, c.PDF.Margin, c.PDF.Margin
	if c.PDF.FontSize > 0 {
		scale := c.PDF.FontSize / l.BodySize
		l.BodySize = c.PDF.FontSize
		l.CodeSize *= scale
		l.CaptionSize *= scale
	}
	if err := l.Validate(); err != nil {
		return l, errors.Wrap(errors.ErrCodeInvalidInput, err, "pdf layout")
	}
	return l, nil
}

// StoreOptions returns the options for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:         c.Store.Backend,
		FileDir:         c.Store.Dir,
		RedisAddr:       c.Store.RedisAddr,
		RedisPrefix:     c.Store.RedisPrefix,
		MongoURI:        c.Store.MongoURI,
		MongoDatabase:   c.Store.MongoDatabase,
		MongoCollection: c.Store.MongoCollection,
	}
}

// Encode writes the settings as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
