package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	api "github.com/GriffinCanCode/stagingfs/internal/api/http"
	"github.com/GriffinCanCode/stagingfs/internal/api/middleware"
	"github.com/GriffinCanCode/stagingfs/internal/auth"
	"github.com/GriffinCanCode/stagingfs/internal/domain/sandbox"
	"github.com/GriffinCanCode/stagingfs/internal/domain/search"
	"github.com/GriffinCanCode/stagingfs/internal/domain/upload"
	"github.com/GriffinCanCode/stagingfs/internal/domain/walker"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/config"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/stagingfs/internal/providers/filesystem"
)

// Name identifies the service in banners, logs and traces.
const Name = "stagingfs"

// Version is overridden at build time.
var Version = "dev"

// multipartMemory is the part of an upload form held in memory; the rest
// spills to the OS temp dir until the request ends.
const multipartMemory = 8 << 20

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	handler http.Handler
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	http    *http.Server
}

// Option customises a Server.
type Option func(*options)

type options struct {
	logger *logging.Logger
	fs     filesystem.FS
	authn  auth.Authenticator
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFS replaces the on-disk filesystem rooted at the storage root.
func WithFS(fsys filesystem.FS) Option {
	return func(o *options) { o.fs = fsys }
}

// WithAuthenticator replaces the authenticator selected by the auth mode.
func WithAuthenticator(authn auth.Authenticator) Option {
	return func(o *options) { o.authn = authn }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	logger.Info("Initializing server",
		zap.String("addr", cfg.Addr()),
		zap.String("storage_root", cfg.Storage.Root),
		zap.String("auth_mode", cfg.Auth.Mode),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New(Name, logger.Logger)

	fsys := o.fs
	if fsys == nil {
		if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage root: %w", err)
		}
		fsys = filesystem.NewOS(cfg.Storage.Root)
	}

	resolver := sandbox.NewResolver(cfg.Storage.Root)
	walk := walker.New(fsys,
		walker.Options{
			Concurrency: cfg.Storage.WalkConcurrency,
			MarkerName:  cfg.Storage.MarkerName,
		},
		walker.WithLogger(logger.Logger),
		walker.WithMetrics(metrics),
	)
	engine := search.New(walk,
		search.WithLogger(logger.Logger),
		search.WithMetrics(metrics),
	)
	publisher := upload.NewPublisher(fsys, resolver,
		upload.Options{
			MarkerName:   cfg.Storage.MarkerName,
			MaxFiles:     cfg.Storage.MaxUploads,
			MaxFileBytes: cfg.Storage.MaxUploadBytes,
		},
		upload.WithLogger(logger.Logger),
		upload.WithMetrics(metrics),
	)

	setup := authSetup{authn: o.authn}
	if setup.authn == nil {
		var err error
		setup, err = newAuthenticator(cfg, logger, metrics)
		if err != nil {
			tracer.Close()
			return nil, err
		}
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = multipartMemory

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(logging.AccessLog(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))

		if rc := cfg.RateLimit; rc.GlobalRPS > 0 {
			burst := rc.GlobalBurst
			if burst == 0 {
				burst = rc.GlobalRPS
			}
			logger.Info("Global rate limiting enabled",
				zap.Int("rps", rc.GlobalRPS),
				zap.Int("burst", burst),
			)
			router.Use(middleware.GlobalRateLimit(middleware.RateLimitConfig{
				RequestsPerSecond: rc.GlobalRPS,
				Burst:             burst,
			}))
		}
	}

	handlers := api.NewHandlers(
		api.ServiceInfo{
			Name:        Name,
			Version:     Version,
			StorageRoot: cfg.Storage.Root,
			AuthMode:    cfg.Auth.Mode,
		},
		api.Deps{
			FS:              fsys,
			Resolver:        resolver,
			Walker:          walk,
			Search:          engine,
			Publisher:       publisher,
			Metrics:         metrics,
			Logger:          logger.Logger,
			MarkerName:      cfg.Storage.MarkerName,
			MaxRequestBytes: requestLimit(publisher.MaxFiles(), cfg.Storage.MaxUploadBytes),
			AuthBreaker:     setup.breaker,
		},
	)

	// Public routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/test-service", handlers.TestService)
	router.GET("/metrics", gin.WrapH(monitoring.Handler(metrics)))

	guarded := []gin.HandlerFunc{
		middleware.PathGuard(),
		middleware.Auth(setup.authn, middleware.AuthOptions{
			Mode:     cfg.Auth.Mode,
			DevToken: setup.devToken,
			Metrics:  metrics,
			Logger:   logger.Logger,
		}),
	}
	for _, group := range []*gin.RouterGroup{router.Group("/", guarded...), router.Group("/v0", guarded...)} {
		group.GET("/list/*path", handlers.List)
		group.GET("/search/*query", handlers.Search)
		group.GET("/stat/*path", handlers.Stat)
		group.POST("/upload", handlers.Upload)
		group.DELETE("/file/*path", handlers.DeleteFile)
	}

	var handler http.Handler = router
	if cfg.Server.Gzip {
		handler = gzhttp.GzipHandler(router)
	}

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		handler: handler,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		tracer:  tracer,
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          zap.NewStdLog(logger.Named("http")),
		},
	}, nil
}

// authSetup is the credential check selected by the auth mode.
type authSetup struct {
	authn auth.Authenticator
	// devToken is injected into unauthenticated requests in dev mode.
	devToken string
	// breaker guards the session service in remote mode.
	breaker *resilience.Breaker
}

// newAuthenticator builds the credential check for cfg.Auth.Mode.
func newAuthenticator(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (authSetup, error) {
	ac := cfg.Auth
	switch ac.Mode {
	case config.AuthRemote:
		rc := auth.DefaultRemoteConfig()
		rc.BaseURL = ac.URL
		rc.Timeout = ac.Timeout.Duration
		rc.IdentityProvider = ac.IdentityProvider
		rc.RequestsPerSecond = ac.RequestsPerSec
		remote := auth.NewRemote(rc,
			auth.WithRemoteLogger(logger.Named("auth")),
			auth.WithBreakerObserver(func(name string, from, to resilience.State) {
				metrics.SetBreakerState(name, int(to))
				logger.Warn("auth breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}),
		)
		metrics.SetBreakerState(auth.BreakerName, int(resilience.StateClosed))
		return authSetup{
			authn:   auth.NewCached(remote, ac.CacheSize, ac.CacheTTL.Duration, metrics),
			breaker: remote.Breaker(),
		}, nil

	case config.AuthJWT:
		j, err := auth.NewJWT([]byte(ac.JWTSecret), ac.JWTIssuer)
		if err != nil {
			return authSetup{}, fmt.Errorf("failed to configure jwt auth: %w", err)
		}
		return authSetup{authn: auth.NewCached(j, ac.CacheSize, ac.CacheTTL.Duration, metrics)}, nil

	case config.AuthDev:
		token, err := auth.LoadDevToken(ac.DevTokenFile)
		if err != nil {
			return authSetup{}, fmt.Errorf("failed to load dev token: %w", err)
		}
		dev, err := auth.NewDev(token, ac.DevUser)
		if err != nil {
			return authSetup{}, err
		}
		logger.Warn("Development authentication enabled", zap.String("user", ac.DevUser))
		return authSetup{authn: dev, devToken: dev.Token()}, nil

	default:
		return authSetup{}, fmt.Errorf("unknown auth mode %q", ac.Mode)
	}
}

// requestLimit bounds a whole upload body: every file at its limit plus
// room for the multipart framing.
func requestLimit(maxFiles int, maxFileBytes int64) int64 {
	if maxFileBytes <= 0 {
		return 0
	}
	return int64(maxFiles)*maxFileBytes + 1<<20
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on the configured address until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled. At most
// Server.MaxConns connections are served at once when it is positive.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.config.Server.MaxConns)
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout.Duration)
	defer cancel()
	return s.Close(shutdownCtx)
}

// Close gracefully shuts down the server
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Graceful shutdown failed", zap.Error(err))
		err = fmt.Errorf("failed to shut down http server: %w", err)
	}

	s.tracer.Close()
	_ = s.logger.Sync()

	return err
}
