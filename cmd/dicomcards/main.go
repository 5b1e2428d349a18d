// Command dicomcards converts DICOM files into card records.
//
// Usage:
//
//	dicomcards [convert] [flags] paths...   write the batch result as JSON
//	dicomcards export -out dir [flags] paths...   write one PNG per card
//	dicomcards serve [flags]   serve the HTTP API
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/cocosip/go-dicom-cards/batch"
	"github.com/cocosip/go-dicom-cards/internal/config"
	"github.com/cocosip/go-dicom-cards/internal/logging"
	"github.com/cocosip/go-dicom-cards/internal/metrics"
	"github.com/cocosip/go-dicom-cards/internal/server"
	"github.com/cocosip/go-dicom-cards/payload"
)

const (
	exitOK    = 0
	exitUsage = 1
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := "convert"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "convert", "export", "serve":
			cmd, args = args[0], args[1:]
		case "help":
			usage(stderr)
			return exitOK
		}
	}

	var err error
	switch cmd {
	case "convert":
		err = convert(ctx, args, stdout, stderr)
	case "export":
		err = export(ctx, args, stdout, stderr)
	case "serve":
		err = serve(ctx, args, stderr)
	}
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "dicomcards %s: %v\n", cmd, err)
		}
		return exitUsage
	}
	return exitOK
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  dicomcards [convert] [-config file] [-workers n] [-max-edge n] paths...")
	fmt.Fprintln(w, "  dicomcards export -out dir [-config file] [-workers n] [-max-edge n] paths...")
	fmt.Fprintln(w, "  dicomcards serve [-config file] [-addr host:port]")
}

// common holds the flags shared by every command
type common struct {
	configPath string
	workers    int
	maxEdge    int
	logLevel   string
	logFormat  string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "TOML config file")
	fs.IntVar(&c.workers, "workers", 0, "files converted at once")
	fs.IntVar(&c.maxEdge, "max-edge", 0, "downscale previews to this longest edge")
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&c.logFormat, "log-format", "", "json or console")
}

// load reads the config and applies the flags that were set
func (c *common) load(fs *flag.FlagSet, extra func(name string, cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Batch.Workers = c.workers
		case "max-edge":
			cfg.Payload.MaxEdge = c.maxEdge
		case "log-level":
			cfg.Log.Level = c.logLevel
		case "log-format":
			cfg.Log.Format = c.logFormat
		default:
			if extra != nil {
				extra(f.Name, cfg)
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func newProcessor(cfg *config.Config, log zerolog.Logger, rec batch.Recorder) *batch.Processor {
	opts := []batch.Option{
		batch.WithLogger(log),
		batch.WithWorkers(cfg.Batch.Workers),
		batch.WithConverter(cfg.Converter()),
	}
	if rec != nil {
		opts = append(opts, batch.WithRecorder(rec))
	}
	return batch.New(opts...)
}

// runBatch converts the positional arguments of a parsed flag set
func (c *common) runBatch(ctx context.Context, fs *flag.FlagSet, stderr io.Writer) (*batch.Result, error) {
	if fs.NArg() == 0 {
		return nil, errors.New("no input files")
	}
	cfg, err := c.load(fs, nil)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return newProcessor(cfg, log, nil).Run(ctx, fs.Args())
}

func convert(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c common
	fs := newFlagSet("convert", stderr)
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := c.runBatch(ctx, fs, stderr)
	if err != nil {
		return err
	}
	return json.NewEncoder(stdout).Encode(res)
}

// export writes each card's preview as <fileName>.png under -out. Cards
// sharing a stem get a _1, _2 suffix in batch order.
func export(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		c   common
		out string
	)
	fs := newFlagSet("export", stderr)
	c.register(fs)
	fs.StringVar(&out, "out", "", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if out == "" {
		return errors.New("-out is required")
	}

	res, err := c.runBatch(ctx, fs, stderr)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	taken := make(map[string]bool, len(res.Records))
	for _, rec := range res.Records {
		name := filepath.Join(out, exportName(taken, rec.FileName))
		if err := writePNG(rec.ImgSrc, name); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		fmt.Fprintln(stdout, "wrote", name)
	}
	return nil
}

// exportName returns stem.png, or the first free stem_N.png when an earlier
// card in the batch already took that name.
func exportName(taken map[string]bool, stem string) string {
	name := stem + ".png"
	for n := 1; taken[name]; n++ {
		name = fmt.Sprintf("%s_%d.png", stem, n)
	}
	taken[name] = true
	return name
}

func writePNG(src, name string) error {
	data, err := payload.Bytes(src)
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

func serve(ctx context.Context, args []string, stderr io.Writer) error {
	var (
		c    common
		addr string
	)
	fs := newFlagSet("serve", stderr)
	c.register(fs)
	fs.StringVar(&addr, "addr", "", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.load(fs, func(name string, cfg *config.Config) {
		if name == "addr" {
			cfg.Server.Addr = addr
		}
	})
	if err != nil {
		return err
	}
	log, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration,
	}, newProcessor(cfg, log, m), server.WithLogger(log), server.WithGatherer(reg))
	return srv.Run(ctx)
}
