package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/f1predict/f1predict/internal/api/middleware"
	"github.com/f1predict/f1predict/internal/buildinfo"
	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/observability"
	"github.com/f1predict/f1predict/internal/prediction"
	"github.com/f1predict/f1predict/internal/season"
)

// Predictor produces predictions for a Grand Prix by name.
type Predictor interface {
	Predict(ctx context.Context, trackName string) (*prediction.Prediction, error)
	ModelVersion() string
}

// Server is the HTTP server for the prediction API.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	// Dependencies
	build     buildinfo.BuildInfo
	catalog   *season.Catalog
	predictor Predictor
	metrics   *observability.Metrics

	// Lifecycle management
	wg        sync.WaitGroup
	startTime time.Time
	serveErr  chan error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithConfig replaces the configuration derived from settings.
func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithBuildInfo sets the build metadata reported by / and /health.
func WithBuildInfo(info buildinfo.BuildInfo) ServerOption {
	return func(s *Server) {
		s.build = info
	}
}

// WithCatalog sets the season catalog; season.Default is used otherwise.
func WithCatalog(c *season.Catalog) ServerOption {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithPredictor sets the prediction service. Without one the prediction
// endpoints answer 503 and /health reports models_loaded=false.
func WithPredictor(p Predictor) ServerOption {
	return func(s *Server) {
		s.predictor = p
	}
}

// WithMetrics enables request metrics and, when configured, /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New creates a Server. settings may be nil when WithConfig is given.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	s := &Server{
		startTime: time.Now(),
		serveErr:  make(chan error, 1),
	}
	if settings != nil {
		s.config = ConfigFromSettings(settings)
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if s.catalog == nil {
		s.catalog = season.Default()
	}
	if s.build == nil {
		s.build = &buildinfo.Context{}
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = s.config.Debug
	s.echo.JSONSerializer = jsonSerializer{}
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", s.config.Address()),
		logger.Bool("metrics", s.metricsEndpointEnabled()),
		logger.Bool("models_loaded", s.predictor != nil))

	return s, nil
}

// setupMiddleware configures the echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.log.Error("panic recovered",
				logger.Error(err),
				logger.String("path", c.Request().URL.Path),
				logger.String("stack", string(stack)))
			return err
		},
	}))

	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log.Module("access"), func(c echo.Context) bool {
		return c.Path() == "/metrics"
	}))

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	s.echo.Use(mw.NewCORS(s.config.AllowedOrigins))
	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewAPIHeaders())
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/", s.root)
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/tracks", s.listTracks)
	s.echo.GET("/drivers", s.listDrivers)
	s.echo.POST("/predict/qualifying", s.predictQualifying)
	s.echo.GET("/predict_all/:race", s.predictAllLegacy)

	if s.metricsEndpointEnabled() {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) metricsEndpointEnabled() bool {
	return s.metrics != nil && s.config.MetricsEnabled
}

// Start begins serving HTTP requests in a background goroutine and returns
// immediately. Errors other than a clean shutdown are reported by Err.
func (s *Server) Start() {
	s.wg.Go(func() {
		if err := s.startBlocking(); err != nil {
			s.log.Error("server error", logger.Error(err))
			s.serveErr <- err
		}
	})
	s.log.Info("HTTP server starting", logger.String("address", s.config.Address()))
}

// startBlocking serves until the server is shut down.
func (s *Server) startBlocking() error {
	err := s.echo.Start(s.config.Address())
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("address", s.config.Address()).
			Build()
	}
	return nil
}

// Err delivers the error that stopped the server, if it stopped on its own.
func (s *Server) Err() <-chan error {
	return s.serveErr
}

// Shutdown gracefully stops the server. In-flight requests get until ctx
// ends, or the configured shutdown timeout when ctx has no deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("operation", "shutdown").
			Build()
	}

	s.wg.Wait()
	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets tests and embedders drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Addr returns the bound listener address once the server is accepting
// connections, or nil.
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}
