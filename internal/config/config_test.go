package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-dicom-cards/container"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().WithDotEnv(false).WithLookup(noEnv).Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1, cfg.Batch.Workers)
	assert.Equal(t, container.DefaultLargeObjectSize, cfg.Parser.MaxObjectSize)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "dicomcards.toml", `
[batch]
workers = 4

[parser]
max_object_size = 1048576

[payload]
max_edge = 256
compression = "speed"

[log]
level = "debug"
format = "console"

[server]
addr = "127.0.0.1:9000"
shutdown_timeout = "3s"
`)

	cfg, err := NewLoader().WithDotEnv(false).WithLookup(noEnv).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, uint32(1048576), cfg.Parser.MaxObjectSize)
	assert.Equal(t, 256, cfg.Payload.MaxEdge)
	assert.Equal(t, "speed", cfg.Payload.Compression)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "partial.toml", "[payload]\nmax_edge = 64\n")

	cfg, err := NewLoader().WithDotEnv(false).WithLookup(noEnv).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Payload.MaxEdge)
	assert.Equal(t, 1, cfg.Batch.Workers)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "c.toml", "[batch]\nworkers = 2\n")
	env := envMap(map[string]string{
		EnvWorkers:   "8",
		EnvMaxEdge:   "128",
		EnvLogLevel:  "warn",
		EnvLogFormat: "console",
		EnvAddr:      ":7070",
	})

	cfg, err := NewLoader().WithDotEnv(false).WithLookup(env).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, 128, cfg.Payload.MaxEdge)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadDotEnv(t *testing.T) {
	dotenv := writeFile(t, "test.env", EnvMaxEdge+"=99\n")
	t.Setenv(EnvMaxEdge, "")
	require.NoError(t, os.Unsetenv(EnvMaxEdge))

	cfg, err := NewLoader().WithDotEnv(true, dotenv).Load("")
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Payload.MaxEdge)
}

func TestLoadMissingDotEnvIsFine(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.env")
	_, err := NewLoader().WithDotEnv(true, missing).WithLookup(noEnv).Load("")
	assert.NoError(t, err)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		target  error
	}{
		{"unknown key", "[batch]\nthreads = 2\n", nil, ErrUnknownKey},
		{"zero workers", "[batch]\nworkers = 0\n", nil, ErrInvalid},
		{"negative max edge", "[payload]\nmax_edge = -1\n", nil, ErrInvalid},
		{"bad compression", "[payload]\ncompression = \"ultra\"\n", nil, ErrInvalid},
		{"bad level", "[log]\nlevel = \"loud\"\n", nil, ErrInvalid},
		{"bad format", "[log]\nformat = \"xml\"\n", nil, ErrInvalid},
		{"bad workers env", "", map[string]string{EnvWorkers: "many"}, ErrInvalid},
		{"bad max edge env", "", map[string]string{EnvMaxEdge: "1.5"}, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "c.toml", tt.content)
			_, err := NewLoader().WithDotEnv(false).WithLookup(envMap(tt.env)).Load(path)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestLoadObjectSizeOutOfRange(t *testing.T) {
	for _, v := range []string{"-5", "4294967296"} {
		path := writeFile(t, "c.toml", "[parser]\nmax_object_size = "+v+"\n")
		_, err := NewLoader().WithDotEnv(false).WithLookup(noEnv).Load(path)
		assert.Error(t, err, v)
	}
}

func TestLoadSyntaxError(t *testing.T) {
	path := writeFile(t, "broken.toml", "[batch\nworkers = 1\n")
	_, err := NewLoader().WithDotEnv(false).WithLookup(noEnv).Load(path)
	assert.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeFile(t, "c.toml", "[server]\nshutdown_timeout = \"soon\"\n")
	_, err := NewLoader().WithDotEnv(false).WithLookup(noEnv).Load(path)
	assert.Error(t, err)
}

func TestConverter(t *testing.T) {
	cfg := Default()
	conv := cfg.Converter()
	assert.Len(t, conv.Container, 1)
	assert.Len(t, conv.Payload, 1)
	assert.Nil(t, conv.Registry)

	cfg.Payload.MaxEdge = 64
	cfg.Parser.MaxObjectSize = 0
	conv = cfg.Converter()
	assert.Empty(t, conv.Container)
	assert.Len(t, conv.Payload, 2)
}
