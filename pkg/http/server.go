package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/http/middleware"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler registers a route tree on the server's echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	host         string
	port         int
	readTimeout  time.Duration
	writeTimeout time.Duration
	corsEnabled  bool
	metricsPath  string // empty disables the scrape endpoint

	logger        *applogger.Logger
	slowThreshold time.Duration
}

// WithHost sets the bind host.
func WithHost(host string) ServerOption {
	return func(c *serverConfig) { c.host = host }
}

// WithPort sets the bind port.
func WithPort(port int) ServerOption {
	return func(c *serverConfig) { c.port = port }
}

// WithTimeouts sets read and write timeouts. The shutdown argument is
// accepted for config symmetry; Stop honors its caller's context instead.
func WithTimeouts(read, write, _ time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}

// WithCORS toggles permissive CORS handling.
func WithCORS(enabled bool) ServerOption {
	return func(c *serverConfig) { c.corsEnabled = enabled }
}

// WithMetricsPath mounts promhttp at path. Empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(c *serverConfig) { c.metricsPath = path }
}

// WithRequestMetrics enables per-request Prometheus metrics plus structured
// request logging. Requests slower than slowThreshold log at warn.
func WithRequestMetrics(l *applogger.Logger, slowThreshold time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.logger = l
		c.slowThreshold = slowThreshold
	}
}

// Server hosts the reporting API on echo.
type Server struct {
	e    *echo.Echo
	addr string
	log  *applogger.Logger
}

// NewServer assembles the echo instance: recovery first, then metrics and
// request logging, CORS, application routes, and finally the scrape
// endpoint.
func NewServer(h Handler, opts ...ServerOption) *Server {
	cfg := serverConfig{
		host:         "0.0.0.0",
		port:         8080,
		readTimeout:  10 * time.Second,
		writeTimeout: 10 * time.Second,
		corsEnabled:  true,
		metricsPath:  "/metrics",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.readTimeout
	e.Server.WriteTimeout = cfg.writeTimeout

	e.Use(middleware.Recover(cfg.logger))
	if cfg.logger != nil {
		e.Use(middleware.Metrics(cfg.logger, cfg.slowThreshold))
		e.Use(middleware.RequestLogging(cfg.logger))
	}
	if cfg.corsEnabled {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodOptions,
			},
			AllowHeaders: []string{
				echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			},
		}))
	}

	if h != nil {
		h.RegisterRoutes(e)
	}
	if cfg.metricsPath != "" {
		e.GET(cfg.metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	return &Server{
		e:    e,
		addr: fmt.Sprintf("%s:%d", cfg.host, cfg.port),
		log:  cfg.logger,
	}
}

// Start begins serving in the background and returns immediately.
func (s *Server) Start() error {
	go func() {
		if s.log != nil {
			s.log.Info("http server listening", applogger.String("addr", s.addr))
		}
		if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.log != nil {
				s.log.Error("http server stopped", applogger.Error(err))
			}
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.e.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo { return s.e }
