package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "bytebattle-backend/docs"
	"bytebattle-backend/internal/common/cache"
	"bytebattle-backend/internal/common/middleware"
	challengehttp "bytebattle-backend/internal/features/challenge/delivery/http"
	notificationhttp "bytebattle-backend/internal/features/notification/delivery/http"
	participationhttp "bytebattle-backend/internal/features/participation/delivery/http"
	settlementhttp "bytebattle-backend/internal/features/settlement/delivery/http"
	userhttp "bytebattle-backend/internal/features/user/delivery/http"
	httpmw "bytebattle-backend/internal/http/middleware"
	"bytebattle-backend/internal/platform/identity"
)

const serviceName = "bytebattle-backend"

// HealthCheck is one dependency probed by /ready.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handlers struct {
	Users          *userhttp.UserHandler
	Challenges     *challengehttp.ChallengeHandler
	Participations *participationhttp.ParticipationHandler
	Settlements    *settlementhttp.SettlementHandler
	Notifications  *notificationhttp.NotificationHandler
}

type Options struct {
	Logger   *zap.Logger
	Origin   string
	Identity identity.Provider
	Users    middleware.UserLookup
	// Nil disables response caching.
	Cache    *cache.CacheService
	CacheTTL time.Duration
	Checks   []HealthCheck
	Swagger  bool
}

// NewRouter builds the gin engine with middlewares and all API routes.
func NewRouter(opts Options, h Handlers) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler(opts.Logger))
	router.Use(middleware.HandleErrors(opts.Logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{opts.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After", "X-Cache"}
	router.Use(cors.New(corsConfig))

	registerProbes(router, opts.Checks)
	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Authenticate(opts.Identity, opts.Users))

	var cached []gin.HandlerFunc
	if opts.Cache != nil {
		v1.Use(httpmw.InvalidateOnWrite(opts.Cache))
		cached = append(cached, httpmw.RedisCache(opts.Cache, opts.CacheTTL))
	}

	h.Users.RegisterRoutes(v1)
	h.Challenges.RegisterRoutes(v1, cached...)
	h.Participations.RegisterRoutes(v1, cached...)
	h.Settlements.RegisterRoutes(v1)
	h.Notifications.RegisterRoutes(v1)

	return router
}

func registerProbes(router *gin.Engine, checks []HealthCheck) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	// Liveness probe
	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Readiness probe
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   check.Name + " unavailable",
					"details": err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
}
