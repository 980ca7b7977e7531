// Package server exposes the published snapshots, the selection and the
// service snapshot over HTTP, with a websocket feed of selection changes.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jondoveston/vmtop/internal/model"
	"github.com/jondoveston/vmtop/internal/pipeline"
)

// ServicesFetcher returns the backend's service snapshot and never fails.
type ServicesFetcher interface {
	Services(ctx context.Context) map[string]model.ServiceStatus
}

type Options struct {
	Refresher       *pipeline.Refresher
	Selection       *pipeline.Selection
	Services        ServicesFetcher
	Gatherer        prometheus.Gatherer
	RefreshInterval time.Duration
	Logger          *zap.Logger
}

type Server struct {
	engine    *gin.Engine
	refresher *pipeline.Refresher
	store     *pipeline.Store
	selection *pipeline.Selection
	services  ServicesFetcher
	hub       *Hub
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
	ctx       context.Context
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	s := &Server{
		engine:    gin.New(),
		refresher: opts.Refresher,
		store:     opts.Refresher.Store(),
		selection: opts.Selection,
		services:  opts.Services,
		hub:       NewHub(logger),
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		ctx:       context.Background(),
	}

	s.engine.Use(requestLogger(logger), gin.Recovery())
	s.routes(gatherer)

	s.store.Subscribe(func(r *pipeline.Result) {
		// the first non-empty list picks the default selection, which
		// broadcasts on its own
		if s.selection.SelectDefault(r.Entities) {
			return
		}
		s.hub.Broadcast(s.message("snapshot"))
	})
	s.selection.Subscribe(func(string) {
		s.hub.Broadcast(s.message("selection"))
	})

	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	s.engine.GET("/ws", s.websocket)

	api := s.engine.Group("/api")
	{
		api.GET("/entities", s.entities)
		api.GET("/snapshot", s.snapshot)
		api.GET("/snapshot/:id", s.snapshotEntity)
		api.GET("/selection", s.getSelection)
		api.PUT("/selection", s.putSelection)
		api.GET("/services", s.listServices)
		api.POST("/refresh", s.refresh)
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on addr and refreshes periodically until ctx ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.ctx = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return s.refresher.Run(gctx, s.interval)
	})
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) message(kind string) Message {
	res := s.store.Load()
	id, selected := s.selection.Current()
	bundle, found := s.selection.Derive(res.Snapshot)
	return Message{
		Type:      kind,
		Timestamp: s.now(),
		ID:        id,
		Selected:  selected,
		Found:     found,
		Entities:  res.Entities,
		Bundle:    bundle,
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
