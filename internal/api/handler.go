package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"catalog-service/internal/auth"
	"catalog-service/internal/service"
	"catalog-service/internal/store"
	"catalog-service/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router
type Options struct {
	CORSOrigins []string
	// RequestTimeout bounds every route except /scrapper/bulk
	RequestTimeout time.Duration
	// IngestTimeout bounds /scrapper/bulk; zero means no bound
	IngestTimeout time.Duration
	// Identity may be nil, in which case auth routes are not mounted
	// and comment/review creation is open.
	Identity auth.IdentityProvider
	// Readiness lists extra dependencies beyond the catalog
	Readiness map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	catalog *service.CatalogService
	ingest  *service.IngestService
	opts    Options
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog *service.CatalogService, ingest *service.IngestService, opts Options) *Handler {
	return &Handler{
		catalog: catalog,
		ingest:  ingest,
		opts:    opts,
		logger:  util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(corsMiddleware(h.opts.CORSOrigins))

	// Bounded by IngestTimeout rather than RequestTimeout.
	router.POST("/scrapper/bulk", timeoutMiddleware(h.opts.IngestTimeout), h.ingestBatch)

	api := router.Group("", timeoutMiddleware(h.opts.RequestTimeout))

	api.GET("/", h.root)
	api.GET("/health", h.healthCheck)
	api.GET("/ready", h.readinessCheck)

	api.GET("/metrics", gin.WrapH(promhttp.Handler()))

	writeAuth := func(c *gin.Context) { c.Next() }
	if h.opts.Identity != nil {
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", h.login)
			authGroup.POST("/register", h.register)
		}
		writeAuth = auth.Middleware(h.opts.Identity, true)
	}

	products := api.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/:id", h.getProduct)
		products.POST("", h.createProduct)
		products.POST("/createAll", h.createProductsBulk)
	}

	prices := api.Group("/prices")
	{
		prices.POST("", h.recordPrice)
		prices.GET("/product/:id", h.listPrices)
	}

	stores := api.Group("/stores")
	{
		stores.GET("", h.listStores)
		stores.GET("/:id", h.getStore)
		stores.POST("", h.createStore)
	}

	comments := api.Group("/comments")
	{
		comments.GET("/:product_id", h.listComments)
		comments.POST("", writeAuth, h.createComment)
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("/:store_id", h.listReviews)
		reviews.POST("", writeAuth, h.createReview)
	}
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"msg": "Hello World"})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings the catalog and any extra dependencies
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	record := func(name string, err error) {
		if err != nil {
			ready = false
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}

	record("catalog", h.catalog.Ping(ctx))
	for name, p := range h.opts.Readiness {
		record(name, p.Ping(ctx))
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}

	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// respondError maps service and store errors onto HTTP responses
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Product not found"})
	case errors.Is(err, service.ErrStoreNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Store not found"})
	case errors.Is(err, service.ErrInvalidInput):
		validationError(c, "Invalid request", err)
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"detail": "Already exists", "error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"detail": "Request timed out"})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

func validationError(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cors.New(cfg)
}

// timeoutMiddleware bounds the request context. A zero timeout leaves it as is.
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
