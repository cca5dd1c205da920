// Package api provides the HTTP remote control of the metronome
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"go-metronome/debug"
	"go-metronome/patterns"
	"go-metronome/sequencer"
)

// @title go-metronome remote control
// @version 1.0
// @description Transport, tempo and pattern control of a running metronome
// @host localhost:8765
// @BasePath /api/v1

// PatternStore is the part of the pattern store the API uses
type PatternStore interface {
	Names(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) (patterns.Pattern, error)
	Put(ctx context.Context, p patterns.Pattern) error
	Delete(ctx context.Context, name string) error
}

// Server exposes an engine over HTTP
type Server struct {
	engine      *sequencer.Engine
	store       PatternStore
	instruments *sequencer.InstrumentIndex
	instrument  string
	events      *sequencer.Fanout
	router      *gin.Engine
}

// Options configures optional parts of the server
type Options struct {
	Store       PatternStore // nil disables the pattern routes
	Instruments *sequencer.InstrumentIndex
	Instrument  string            // names pattern rows
	Events      *sequencer.Fanout // nil disables /events
}

// New builds the router for engine
func New(engine *sequencer.Engine, opts Options) *Server {
	if opts.Instruments == nil {
		opts.Instruments = sequencer.DefaultInstruments()
	}
	s := &Server{
		engine:      engine,
		store:       opts.Store,
		instruments: opts.Instruments,
		instrument:  opts.Instrument,
		events:      opts.Events,
	}

	r := gin.New()
	r.Use(gin.Recovery(), logRequests())

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/state", s.state)
		v1.POST("/play", s.play)
		v1.POST("/stop", s.stop)
		v1.POST("/cont", s.cont)
		v1.PUT("/tempo", s.setTempo)
		v1.PUT("/timesig", s.setTimeSignature)
		v1.PUT("/pattern-mode", s.setPatternMode)
		v1.GET("/ports", s.ports)
		v1.GET("/instruments", s.listInstruments)
		v1.GET("/events", s.streamEvents)

		if s.store != nil {
			v1.GET("/patterns", s.listPatterns)
			v1.GET("/patterns/:name", s.getPattern)
			v1.PUT("/patterns/:name", s.putPattern)
			v1.DELETE("/patterns/:name", s.deletePattern)
			v1.POST("/patterns/:name/select", s.selectPattern)
			v1.GET("/patterns/:name/smf", s.exportSMF)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		debug.Log("api", "listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		debug.Log("api", "%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// statusFor maps engine and store errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, sequencer.ErrInvalidWhilePlaying), errors.Is(err, patterns.ErrExists):
		return http.StatusConflict
	case errors.Is(err, sequencer.ErrInvalidConfiguration), errors.Is(err, patterns.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, patterns.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sequencer.ErrDeviceUnavailable), errors.Is(err, sequencer.ErrConnection):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}
