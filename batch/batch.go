// Package batch converts a list of DICOM files into card records, skipping
// files that fail without aborting the batch.
package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cocosip/go-dicom-cards/card"
)

// Result is the outcome of one batch. Records keep input order; Failed is
// true when at least one file was skipped.
type Result struct {
	ID       uuid.UUID     `json:"id"`
	Records  []card.Record `json:"cards"`
	Failed   bool          `json:"isError"`
	Failures []Failure     `json:"-"`
}

// Failure describes a skipped file
type Failure struct {
	Index int
	Path  string
	Err   error
}

// Kind names the pipeline stage that failed
func (f Failure) Kind() string {
	return card.Kind(f.Err)
}

// Recorder receives per-file and per-batch outcomes.
// *metrics.Metrics satisfies it.
type Recorder interface {
	FileConverted()
	FileSkipped(kind string)
	BatchFinished(d time.Duration)
}

// Processor runs batches. It is safe for concurrent use.
type Processor struct {
	log       zerolog.Logger
	workers   int
	converter card.Converter
	recorder  Recorder
}

// Option configures a Processor
type Option func(*Processor)

// WithLogger sets the logger for skip and summary lines
func WithLogger(log zerolog.Logger) Option {
	return func(p *Processor) {
		p.log = log
	}
}

// WithWorkers sets how many files are converted at once. Values below 1
// mean sequential.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n < 1 {
			n = 1
		}
		p.workers = n
	}
}

// WithConverter replaces the single-file pipeline configuration
func WithConverter(c card.Converter) Option {
	return func(p *Processor) {
		p.converter = c
	}
}

// WithRecorder sets the metrics sink
func WithRecorder(r Recorder) Option {
	return func(p *Processor) {
		p.recorder = r
	}
}

// New creates a sequential Processor with a no-op logger
func New(opts ...Option) *Processor {
	p := &Processor{
		log:     zerolog.Nop(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// outcome is the per-file slot written by exactly one worker
type outcome struct {
	rec *card.Record
	err error
}

// Run converts paths in order. Files that fail are skipped and listed in
// Failures. If ctx is cancelled before the batch completes, the partial
// result is dropped and ctx.Err() is returned.
func (p *Processor) Run(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	id := uuid.New()
	log := p.log.With().Str("batch_id", id.String()).Logger()

	outcomes := make([]outcome, len(paths))
	if err := p.convertAll(ctx, paths, outcomes); err != nil {
		log.Warn().Err(err).Int("files", len(paths)).Msg("batch cancelled")
		return nil, err
	}

	res := &Result{
		ID:      id,
		Records: make([]card.Record, 0, len(paths)),
	}
	for i, o := range outcomes {
		if o.err != nil {
			f := Failure{Index: i, Path: paths[i], Err: o.err}
			res.Failures = append(res.Failures, f)
			res.Failed = true
			log.Warn().
				Str("path", f.Path).
				Int("index", i).
				Str("kind", f.Kind()).
				Err(o.err).
				Msg("file skipped")
			if p.recorder != nil {
				p.recorder.FileSkipped(f.Kind())
			}
			continue
		}
		res.Records = append(res.Records, *o.rec)
		if p.recorder != nil {
			p.recorder.FileConverted()
		}
	}

	elapsed := time.Since(start)
	if p.recorder != nil {
		p.recorder.BatchFinished(elapsed)
	}
	log.Info().
		Int("files", len(paths)).
		Int("cards", len(res.Records)).
		Int("skipped", len(res.Failures)).
		Dur("elapsed", elapsed).
		Msg("batch finished")

	return res, nil
}

func (p *Processor) convertAll(ctx context.Context, paths []string, out []outcome) error {
	if p.workers <= 1 {
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = p.convert(path)
		}
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = p.convert(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Processor) convert(path string) outcome {
	rec, err := p.converter.Convert(path)
	return outcome{rec: rec, err: err}
}
