package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ChartDesk/pkg/http/middleware"
	applogger "ChartDesk/pkg/logger"
)

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string                `yaml:"host" default:"0.0.0.0"`
	Port            int                   `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration         `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration         `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration         `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration         `yaml:"slow_threshold" default:"1s"`
	CORS            bool                  `yaml:"cors" default:"true"`
	CORSConfig      middleware.CORSConfig `yaml:"cors_config"`
}

// Server wraps Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	log    *applogger.Logger
}

// NewServer creates a new HTTP server with Echo. Collectors are registered on reg
// and /metrics serves gatherer.
func NewServer(log *applogger.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer, handlers []Handler, opts ...ServerOption) *Server {
	if log == nil {
		log = applogger.Nop()
	}
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SlowThreshold:   time.Second,
		CORS:            true,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	log = log.Component("http")
	e.Use(middleware.Recover(log))
	e.Use(middleware.RequestLogging(log))
	if reg != nil {
		e.Use(middleware.Metrics(middleware.NewHTTPMetrics(reg), log, cfg.SlowThreshold))
	}

	if cfg.CORS {
		cors := cfg.CORSConfig
		if len(cors.AllowOrigins) == 0 {
			cors.AllowOrigins = []string{"*"}
		}
		if len(cors.AllowMethods) == 0 {
			cors.AllowMethods = []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodDelete,
				http.MethodOptions,
			}
		}
		if len(cors.AllowHeaders) == 0 {
			cors.AllowHeaders = []string{
				echo.HeaderOrigin,
				echo.HeaderContentType,
				echo.HeaderAccept,
			}
		}
		e.Use(middleware.CORS(cors))
	}

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return &Server{
		echo:   e,
		config: cfg,
		log:    log,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start starts the HTTP server in the background.
func (s *Server) Start() error {
	addr := s.Addr()
	go func() {
		s.log.Info("http server listening", applogger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// WithConfig replaces the whole configuration.
func WithConfig(c ServerConfig) ServerOption {
	return func(cfg *ServerConfig) {
		*cfg = c
	}
}

// WithHost sets server host.
func WithHost(host string) ServerOption {
	return func(c *ServerConfig) {
		c.Host = host
	}
}

// WithPort sets server port.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) {
		c.Port = port
	}
}

// WithCORS enables/disables CORS.
func WithCORS(enabled bool) ServerOption {
	return func(c *ServerConfig) {
		c.CORS = enabled
	}
}
