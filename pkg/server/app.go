package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ChartDesk/internal/middleware"
	"ChartDesk/internal/usecase"
	xhttp "ChartDesk/pkg/http"
	applogger "ChartDesk/pkg/logger"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// Option configures App.
type Option func(*App)

// WithDesk runs the desk session alongside the HTTP API.
func WithDesk(d *usecase.Desk) Option { return func(a *App) { a.desk = d } }

// WithHub runs the /ws/feed broadcaster.
func WithHub(h *usecase.FeedHub) Option { return func(a *App) { a.hub = h } }

// WithPipeline runs the publish pipeline flusher.
func WithPipeline(p *middleware.PublishPipeline) Option { return func(a *App) { a.pipeline = p } }

// WithCloser registers a resource closed on shutdown, in reverse registration order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

// WithShutdownTimeout bounds Run's graceful shutdown (default 15s).
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// App encapsulates the entire application lifecycle.
type App struct {
	log             *applogger.Logger
	httpServer      *xhttp.Server
	desk            *usecase.Desk
	hub             *usecase.FeedHub
	pipeline        *middleware.PublishPipeline
	closers         []namedCloser
	shutdownTimeout time.Duration

	cancel context.CancelFunc
}

// New creates a new App instance with all dependencies. srv may be nil.
func New(log *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{
		log:             log.Component("app"),
		httpServer:      srv,
		shutdownTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches background workers, then the HTTP server, then the desk.
// The desk polls the market API, so it goes last.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
		a.log.Info("publish pipeline started")
	}
	if a.hub != nil {
		if err := a.hub.Start(ctx); err != nil {
			a.cancel()
			return fmt.Errorf("start feed hub: %w", err)
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.cancel()
			return fmt.Errorf("start http server: %w", err)
		}
	}
	if a.desk != nil {
		a.desk.Start(ctx)
	}
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		a.log.Error("app start failed", applogger.Error(err))
		_ = a.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown gracefully stops all services in reverse start order, then closes resources.
// It returns the first HTTP shutdown error; close errors are only logged.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	if a.desk != nil {
		a.desk.Stop()
	}

	var httpErr error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			httpErr = err
		}
	}

	if a.hub != nil {
		a.hub.Stop()
	}
	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return httpErr
}
