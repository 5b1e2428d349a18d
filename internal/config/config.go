// Package config loads dicomcards settings from a TOML file, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/cocosip/go-dicom-cards/card"
	"github.com/cocosip/go-dicom-cards/container"
	"github.com/cocosip/go-dicom-cards/internal/logging"
	"github.com/cocosip/go-dicom-cards/payload"
)

// Environment variables applied after the config file
const (
	EnvWorkers   = "DICOMCARDS_WORKERS"
	EnvLogLevel  = "DICOMCARDS_LOG_LEVEL"
	EnvLogFormat = "DICOMCARDS_LOG_FORMAT"
	EnvAddr      = "DICOMCARDS_ADDR"
	EnvMaxEdge   = "DICOMCARDS_MAX_EDGE"
)

var (
	ErrInvalid    = errors.New("invalid config")
	ErrUnknownKey = errors.New("unknown config key")
)

type Config struct {
	Batch   BatchConfig   `toml:"batch"`
	Parser  ParserConfig  `toml:"parser"`
	Payload PayloadConfig `toml:"payload"`
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
}

type BatchConfig struct {
	Workers int `toml:"workers"`
}

type ParserConfig struct {
	// MaxObjectSize bounds the size of element values read into memory
	MaxObjectSize uint32 `toml:"max_object_size"`
}

type PayloadConfig struct {
	// MaxEdge downscales previews whose longer side is larger; 0 keeps
	// the original size
	MaxEdge     int    `toml:"max_edge"`
	Compression string `toml:"compression"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// Duration reads a TOML string such as "10s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the settings used when nothing is configured
func Default() *Config {
	return &Config{
		Batch:   BatchConfig{Workers: 1},
		Parser:  ParserConfig{MaxObjectSize: container.DefaultLargeObjectSize},
		Payload: PayloadConfig{Compression: "default"},
		Log:     LogConfig{Level: "info", Format: logging.FormatJSON},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
		},
	}
}

// Loader builds a Config from its sources
type Loader struct {
	useDotEnv bool
	dotEnv    []string
	lookup    func(string) (string, bool)
}

// NewLoader creates a loader that reads .env and the process environment
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookup:    os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from .env files before reading
// the environment. With no filenames ".env" is used.
func (l *Loader) WithDotEnv(enabled bool, filenames ...string) *Loader {
	l.useDotEnv = enabled
	l.dotEnv = filenames
	return l
}

// WithLookup overrides the environment source (useful for tests)
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookup = lookup
	}
	return l
}

// Load reads path (skipped when empty) over the defaults, applies the
// environment and validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	if l.useDotEnv {
		if err := l.loadDotEnv(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if keys := md.Undecoded(); len(keys) > 0 {
			return nil, fmt.Errorf("%w in %s: %s", ErrUnknownKey, path, keys[0])
		}
	}

	if err := cfg.ApplyEnv(l.lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is NewLoader().Load(path)
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

func (l *Loader) loadDotEnv() error {
	files := l.dotEnv
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from the DICOMCARDS_* variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, EnvWorkers, v)
		}
		c.Batch.Workers = n
	}
	if v, ok := lookup(EnvMaxEdge); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, EnvMaxEdge, v)
		}
		c.Payload.MaxEdge = n
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := lookup(EnvAddr); ok {
		c.Server.Addr = v
	}
	return nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch {
	case c.Batch.Workers < 1:
		return fmt.Errorf("%w: batch.workers must be at least 1, got %d", ErrInvalid, c.Batch.Workers)
	case c.Payload.MaxEdge < 0:
		return fmt.Errorf("%w: payload.max_edge is negative", ErrInvalid)
	case c.Server.ShutdownTimeout.Duration < 0:
		return fmt.Errorf("%w: server.shutdown_timeout is negative", ErrInvalid)
	}
	if _, err := payload.ParseCompression(c.Payload.Compression); err != nil {
		return fmt.Errorf("%w: payload.compression: %v", ErrInvalid, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "", logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Converter returns the single-file pipeline settings. Call it on a
// validated Config.
func (c *Config) Converter() card.Converter {
	var conv card.Converter
	if c.Parser.MaxObjectSize > 0 {
		conv.Container = append(conv.Container, container.WithLargeObjectSize(c.Parser.MaxObjectSize))
	}
	if level, err := payload.ParseCompression(c.Payload.Compression); err == nil {
		conv.Payload = append(conv.Payload, payload.WithCompression(level))
	}
	if c.Payload.MaxEdge > 0 {
		conv.Payload = append(conv.Payload, payload.WithMaxEdge(c.Payload.MaxEdge))
	}
	return conv
}
