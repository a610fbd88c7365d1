package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rescache.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileLoader(t *testing.T) {
	path := writeConfigFile(t, `
listeners:
  web:
    addr: ":8080"
upstreams:
  - name: backend
    addr: "http://localhost:9000"
    path: "/"
cache:
  maximum_body_size: 1048576
  use_case_sensitive_paths: true
  default_validity: "30s"
provider:
  backend: inmemory
  inmemory:
    size_limit: 1024
api:
  port: 9090
  debug: true
logging:
  level: debug
`)

	ldr, err := NewFileLoader(path)
	require.NoError(t, err)

	cfg := ldr.Config()
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.Endpoints["web"].Addr)
	require.Len(t, cfg.Upstreams, 1)
	assert.Equal(t, "backend", cfg.Upstreams[0].Name)

	assert.Equal(t, int64(1048576), cfg.Cache.MaximumBodySize)
	assert.True(t, cfg.Cache.UseCaseSensitivePaths)
	assert.Equal(t, "30s", cfg.Cache.DefaultValidity)

	assert.Equal(t, "inmemory", cfg.Provider.Backend)
	assert.Equal(t, uint64(1024), cfg.Provider.InMemory.SizeLimit)

	assert.Equal(t, 9090, cfg.API.Port)
	assert.True(t, cfg.API.Debug)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestFileLoaderRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, `
bogus_section:
  foo: bar
`)
	_, err := NewFileLoader(path)
	assert.Error(t, err)
}

func TestFileLoaderMissingFile(t *testing.T) {
	_, err := NewFileLoader(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestFileLoaderReload(t *testing.T) {
	path := writeConfigFile(t, "api:\n  port: 1\n")

	ldr, err := NewFileLoader(path)
	require.NoError(t, err)
	assert.Equal(t, 1, ldr.Config().API.Port)

	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 2\n"), 0o600))
	require.NoError(t, ldr.Load(context.Background()))
	assert.Equal(t, 2, ldr.Config().API.Port)
}
