package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/docsmith/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DOCSMITH_"

// lookupFunc has the signature of os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnv overrides settings from DOCSMITH_* variables. Empty values are
// ignored.
func (c *Config) applyEnv(lookup lookupFunc) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"REPAIR_ENDPOINT":  &c.Repair.Endpoint,
		"STORE_BACKEND":    &c.Store.Backend,
		"STORE_DIR":        &c.Store.Dir,
		"REDIS_ADDR":       &c.Store.RedisAddr,
		"REDIS_PREFIX":     &c.Store.RedisPrefix,
		"MONGO_URI":        &c.Store.MongoURI,
		"MONGO_DATABASE":   &c.Store.MongoDatabase,
		"MONGO_COLLECTION": &c.Store.MongoCollection,
		"CACHE_BACKEND":    &c.Cache.Backend,
		"CACHE_DIR":        &c.Cache.Dir,
		"RASTERIZER":       &c.Diagram.Rasterizer,
		"PAGE_SIZE":        &c.PDF.PageSize,
		"PDF_TITLE":        &c.PDF.Title,
		"SERVE_ADDR":       &c.Serve.Addr,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("REPAIR_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("REPAIR_TIMEOUT", v, err)
		}
		c.Repair.Timeout = d
	}
	if v, ok := get("REPAIR_MAX_CHAIN"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("REPAIR_MAX_CHAIN", v, err)
		}
		c.Repair.MaxChain = n
	}
	if v, ok := get("CACHE_DISABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("CACHE_DISABLED", v, err)
		}
		c.Cache.Disabled = b
	}
	if v, ok := get("PDF_MARGIN"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("PDF_MARGIN", v, err)
		}
		c.PDF.Margin = f
	}
	if v, ok := get("PDF_FONT_SIZE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("PDF_FONT_SIZE", v, err)
		}
		c.PDF.FontSize = f
	}
	return nil
}

func envError(name, value string, err error) error {
	return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s%s=%q", EnvPrefix, name, value)
}
