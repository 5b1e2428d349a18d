// Package server exposes batch conversion over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cocosip/go-dicom-cards/batch"
)

const defaultShutdownTimeout = 10 * time.Second

// StatusClientClosedRequest is logged when the caller went away mid-batch
const StatusClientClosedRequest = 499

// Config stores the listener settings
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server serves the cards API, health and metrics endpoints
type Server struct {
	cfg       Config
	processor *batch.Processor
	log       zerolog.Logger
	gatherer  prometheus.Gatherer
	router    *gin.Engine

	// stopCtx is cancelled once shutdown gives up on in-flight batches
	stopCtx context.Context
	stop    context.CancelFunc
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the access and lifecycle logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithGatherer sets the registry exposed on /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// New builds a server around processor
func New(cfg Config, processor *batch.Processor, opts ...Option) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	s := &Server{
		cfg:       cfg,
		processor: processor,
		log:       zerolog.Nop(),
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stopCtx, s.stop = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	api.POST("/cards", s.cards)
	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is done, then drains
// in-flight requests for up to the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		s.stop()
		done <- err
	}()

	s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.stop()
		return err
	}

	if err := <-done; err != nil {
		s.log.Warn().Err(err).Msg("shutdown timed out, cancelled in-flight batches")
		return err
	}
	s.log.Info().Msg("server stopped")
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type cardsRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

func (s *Server) cards(c *gin.Context) {
	var req cardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s.stopCtx.Err() != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	unhook := context.AfterFunc(s.stopCtx, cancel)
	defer unhook()

	res, err := s.processor.Run(ctx, req.Paths)
	if err != nil {
		if s.stopCtx.Err() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
			return
		}
		c.AbortWithStatus(StatusClientClosedRequest)
		return
	}
	c.JSON(http.StatusOK, res)
}
