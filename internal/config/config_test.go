package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/typeset"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, "http://localhost:8000/api/generate", cfg.Repair.Endpoint)
	assert.Equal(t, 60*time.Second, cfg.Repair.Timeout)
	assert.Equal(t, 3, cfg.Repair.MaxChain)
	assert.Equal(t, "file", cfg.Store.Backend)
}

func TestLoadDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, appName), 0o755))
	writeConfig(t, filepath.Join(home, appName), "[serve]\naddr = \"0.0.0.0:9000\"\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Serve.Addr)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[repair]
endpoint = "https://gen.example.com/api/generate"
timeout = "15s"
max_chain = 1

[store]
backend = "redis"
redis_addr = "redis:6379"

[cache]
disabled = true

[diagram]
rasterizer = "oksvg"

[pdf]
page_size = "letter"
margin = 15
font_size = 12
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://gen.example.com/api/generate", cfg.Repair.Endpoint)
	assert.Equal(t, 15*time.Second, cfg.Repair.Timeout)
	assert.Equal(t, 1, cfg.Repair.MaxChain)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.StoreOptions().RedisAddr)
	assert.True(t, cfg.Cache.Disabled)
	assert.Equal(t, "oksvg", cfg.Diagram.Rasterizer)

	l, err := cfg.Layout()
	require.NoError(t, err)
	assert.Equal(t, typeset.PageLetter[0], l.PageWidth)
	assert.Equal(t, 15.0, l.MarginTop)
	assert.Equal(t, 12.0, l.BodySize)
	assert.Greater(t, l.CodeSize, typeset.DefaultLayout().CodeSize)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.Code
	}{
		{name: "bad toml", content: "[repair\n", code: errors.ErrCodeParse},
		{name: "unknown key", content: "[repair]\nendpiont = \"x\"\n", code: errors.ErrCodeInvalidInput},
		{name: "bad backend", content: "[store]\nbackend = \"sqlite\"\n", code: errors.ErrCodeInvalidInput},
		{name: "bad rasterizer", content: "[diagram]\nrasterizer = \"cairo\"\n", code: errors.ErrCodeInvalidInput},
		{name: "bad endpoint", content: "[repair]\nendpoint = \"ftp://x\"\n", code: errors.ErrCodeInvalidInput},
		{name: "zero chain", content: "[repair]\nmax_chain = 0\n", code: errors.ErrCodeInvalidInput},
		{name: "bad page", content: "[pdf]\npage_size = \"a3\"\n", code: errors.ErrCodeInvalidInput},
		{name: "huge margin", content: "[pdf]\nmargin = 200\n", code: errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath), "got %v", err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DOCSMITH_STORE_BACKEND", "memory")
	t.Setenv("DOCSMITH_REPAIR_TIMEOUT", "5s")
	t.Setenv("DOCSMITH_REPAIR_MAX_CHAIN", "2")
	t.Setenv("DOCSMITH_CACHE_DISABLED", "true")
	t.Setenv("DOCSMITH_PDF_MARGIN", "10")
	t.Setenv("DOCSMITH_SERVE_ADDR", " ")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 5*time.Second, cfg.Repair.Timeout)
	assert.Equal(t, 2, cfg.Repair.MaxChain)
	assert.True(t, cfg.Cache.Disabled)
	assert.Equal(t, 10.0, cfg.PDF.Margin)
	assert.Equal(t, "localhost:8080", cfg.Serve.Addr, "blank values are ignored")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[store]\nbackend = \"redis\"\n")
	t.Setenv("DOCSMITH_STORE_BACKEND", "mongo")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.Store.Backend)
}

func TestEnvErrors(t *testing.T) {
	for _, name := range []string{"REPAIR_TIMEOUT", "REPAIR_MAX_CHAIN", "CACHE_DISABLED", "PDF_MARGIN", "PDF_FONT_SIZE"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(func(key string) (string, bool) {
				if key == EnvPrefix+name {
					return "not-a-value", true
				}
				return "", false
			})
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "got %v", err)
		})
	}
}

func TestDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/custom-config")
	t.Setenv("XDG_CACHE_HOME", "/tmp/custom-cache")

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/custom-config", appName), dir)

	path, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/custom-config", appName, "config.toml"), path)

	cache, err := CacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/custom-cache", appName), cache)
}

func TestDirsDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", appName), dir)

	cache, err := CacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cache", appName), cache)
}

func TestEncode(t *testing.T) {
	cfg := Default()
	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	assert.Contains(t, buf.String(), "[repair]")
	assert.Contains(t, buf.String(), `endpoint = "http://localhost:8000/api/generate"`)
	assert.Contains(t, buf.String(), "[store]")
}
