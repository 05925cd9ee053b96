package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/stagingfs/internal/api/middleware"
	"github.com/GriffinCanCode/stagingfs/internal/auth"
	"github.com/GriffinCanCode/stagingfs/internal/domain/sandbox"
	"github.com/GriffinCanCode/stagingfs/internal/domain/search"
	"github.com/GriffinCanCode/stagingfs/internal/domain/upload"
	"github.com/GriffinCanCode/stagingfs/internal/domain/walker"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/stagingfs/internal/providers/filesystem"
)

// ServiceInfo is reported by the banner and health endpoints.
type ServiceInfo struct {
	Name        string
	Version     string
	StorageRoot string
	AuthMode    string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	info      ServiceInfo
	fs        filesystem.FS
	resolver  *sandbox.Resolver
	walker    *walker.Walker
	search    *search.Engine
	publisher *upload.Publisher
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	marker    string
	maxBody   int64
	breaker   *resilience.Breaker
}

// Deps are the components the handlers drive.
type Deps struct {
	FS         filesystem.FS
	Resolver   *sandbox.Resolver
	Walker     *walker.Walker
	Search     *search.Engine
	Publisher  *upload.Publisher
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
	MarkerName string
	// MaxRequestBytes caps an upload request body; zero means unlimited.
	MaxRequestBytes int64
	// AuthBreaker, when set, is reported by Health.
	AuthBreaker *resilience.Breaker
}

// NewHandlers creates a new handler set
func NewHandlers(info ServiceInfo, deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	marker := deps.MarkerName
	if marker == "" {
		marker = walker.DefaultMarkerName
	}
	return &Handlers{
		info:      info,
		fs:        deps.FS,
		resolver:  deps.Resolver,
		walker:    deps.Walker,
		search:    deps.Search,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    logger,
		marker:    marker,
		maxBody:   deps.MaxRequestBytes,
		breaker:   deps.AuthBreaker,
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": h.info.Name,
		"version": h.info.Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":       "healthy",
		"storage_root": h.info.StorageRoot,
		"auth_mode":    h.info.AuthMode,
		"stats":        h.metrics.Snapshot(),
	}
	if h.breaker != nil {
		state := h.breaker.State()
		body["auth_breaker"] = state.String()
		// Requests still succeed from the cache while the session service is out.
		if state == resilience.StateOpen {
			body["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, body)
}

// TestService is a liveness probe kept for existing monitors.
func (h *Handlers) TestService(c *gin.Context) {
	c.String(http.StatusOK, "This is just a test. This is only a test.")
}

// caller returns the authenticated identity or aborts with 401.
func (h *Handlers) caller(c *gin.Context) (auth.Identity, bool) {
	id, ok := middleware.Identity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": middleware.MsgAuthRequired})
	}
	return id, ok
}

// provision initialises the caller's home. Failure is logged and the
// request carries on; the operation itself reports any lasting problem.
func (h *Handlers) provision(c *gin.Context, id auth.Identity) {
	if err := h.publisher.EnsureHome(c.Request.Context(), id.Username, id.LinkedIDs); err != nil {
		h.logger.Warn("home initialisation failed",
			zap.String("user", id.Username),
			zap.Error(err),
		)
	}
}
