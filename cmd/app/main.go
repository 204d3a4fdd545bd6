package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bytebattle-backend/internal/common/cache"
	"bytebattle-backend/internal/common/config"
	"bytebattle-backend/internal/common/logger"
	challengehttp "bytebattle-backend/internal/features/challenge/delivery/http"
	challengedoc "bytebattle-backend/internal/features/challenge/repository/document"
	challengeservice "bytebattle-backend/internal/features/challenge/service"
	notificationhttp "bytebattle-backend/internal/features/notification/delivery/http"
	notificationmodels "bytebattle-backend/internal/features/notification/models"
	"bytebattle-backend/internal/features/notification/queue"
	notificationdoc "bytebattle-backend/internal/features/notification/repository/document"
	notificationservice "bytebattle-backend/internal/features/notification/service"
	participationhttp "bytebattle-backend/internal/features/participation/delivery/http"
	participationdoc "bytebattle-backend/internal/features/participation/repository/document"
	participationservice "bytebattle-backend/internal/features/participation/service"
	settlementhttp "bytebattle-backend/internal/features/settlement/delivery/http"
	settlementservice "bytebattle-backend/internal/features/settlement/service"
	userhttp "bytebattle-backend/internal/features/user/delivery/http"
	userdoc "bytebattle-backend/internal/features/user/repository/document"
	userservice "bytebattle-backend/internal/features/user/service"
	apphttp "bytebattle-backend/internal/http"
	"bytebattle-backend/internal/platform/docstore"
	"bytebattle-backend/internal/platform/docstore/memstore"
	"bytebattle-backend/internal/platform/docstore/redisstore"
	"bytebattle-backend/internal/platform/identity"
	"bytebattle-backend/internal/platform/postgres"
	"bytebattle-backend/internal/platform/redis"
	"bytebattle-backend/internal/workers"
)

// @title           ByteBattle API
// @version         1.0
// @description     Paid coding challenges: entries, manual payment confirmation, results and settlement.

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token issued by /auth/login, sent as "Bearer <token>"

// @tag.name users
// @tag.description Registration, login and profiles

// @tag.name challenges
// @tag.description Coding challenges

// @tag.name participations
// @tag.description Entries, payments and submissions

// @tag.name notifications
// @tag.description Per-user notifications

// @tag.name admin
// @tag.description Administration

const serviceName = "bytebattle-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(serviceName, cfg.Debug)
	zlog, err := logger.NewZap(serviceName, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Starting ByteBattle backend",
		zap.String("version", "1.0.0"),
		zap.Bool("debug", cfg.Debug),
		zap.String("store", cfg.Store.Driver),
		zap.String("queue", cfg.Notifications.Queue),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis нужен для redis-хранилища, очереди уведомлений и кэша ответов
	var redisClient *redis.Client
	if cfg.Store.Driver == "redis" || cfg.Notifications.Queue == "redis" {
		redisClient, err = redis.Open(ctx, cfg)
		if err != nil {
			zlog.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var checks []apphttp.HealthCheck
	var baseStore docstore.Store
	switch cfg.Store.Driver {
	case "redis":
		baseStore = redisstore.New(redisClient.Client, redisstore.WithMaxRetries(cfg.Store.TxRetries))
	case "postgres":
		postgresClient, err := postgres.NewClient(cfg)
		if err != nil {
			zlog.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer postgresClient.Close()
		checks = append(checks, apphttp.HealthCheck{Name: "postgres", Check: postgresClient.HealthCheck})

		baseStore, err = postgresClient.DocumentStore(ctx, cfg)
		if err != nil {
			zlog.Fatal("Failed to prepare document store", zap.Error(err))
		}
	case "memory":
		zlog.Warn("Using in-memory store, data is lost on restart")
		baseStore = memstore.New()
	default:
		zlog.Fatal("Unknown store driver", zap.String("driver", cfg.Store.Driver))
	}
	store := docstore.WithTimeout(baseStore, cfg.Store.Timeout)
	checks = append(checks, apphttp.HealthCheck{Name: "store", Check: store.Ping})
	if redisClient != nil {
		checks = append(checks, apphttp.HealthCheck{Name: "redis", Check: redisClient.HealthCheck})
	}

	// Репозитории
	userRepository := userdoc.NewUserRepository(store)
	challengeRepository := challengedoc.NewChallengeRepository(store)
	participationRepository := participationdoc.NewParticipationRepository(store)
	notificationRepository := notificationdoc.NewNotificationRepository(store)

	provider := identity.NewLocalProvider(store, cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// Очередь уведомлений: продюсеры пишут в sink, потребитель раскладывает по пользователям
	var notificationSvc notificationservice.NotificationService
	handle := func(ctx context.Context, event notificationmodels.Event) error {
		return notificationSvc.Handle(ctx, event)
	}

	var eventQueue queue.Queue
	var localQueue *queue.LocalQueue
	switch cfg.Notifications.Queue {
	case "redis":
		eventQueue = queue.NewRedisStreamQueue(redisClient.Client, cfg.Notifications.Stream, 100000)
	case "local":
		localQueue = queue.NewLocalQueue(handle, cfg.Notifications.Workers, 1024)
		eventQueue = localQueue
	default:
		zlog.Fatal("Unknown notification queue", zap.String("queue", cfg.Notifications.Queue))
	}
	sink := notificationservice.NewSink(eventQueue, cfg.Notifications.PublishTimeout, zlog.Named("notifications"))

	// Сервисы
	userSvc := userservice.NewUserService(userRepository, provider, cfg.Auth.AdminEmails, zlog.Named("users"))
	challengeSvc := challengeservice.NewChallengeService(challengeRepository, store, zlog.Named("challenges"))
	participationSvc := participationservice.NewParticipationService(
		participationRepository, challengeRepository, userRepository, challengeSvc, store, sink, zlog.Named("participations"))
	settlementSvc := settlementservice.NewSettlementService(
		challengeRepository, participationRepository, userRepository, store, sink, zlog.Named("settlement"))
	notificationSvc = notificationservice.NewNotificationService(
		notificationRepository, userRepository, participationSvc, zlog.Named("notifications"))

	zlog.Info("Services initialized")

	// Фоновые воркеры
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	workersDone := make(chan struct{})

	if localQueue != nil {
		localQueue.Start(workerCtx)
	}
	if cfg.Notifications.Queue == "redis" {
		streamWorker := workers.NewRedisStreamWorker(redisClient.Client, workers.StreamConfig{
			Stream:   cfg.Notifications.Stream,
			Group:    cfg.Notifications.Group,
			Consumer: cfg.Notifications.Consumer,
		}, handle)
		go func() {
			defer close(workersDone)
			streamWorker.Start(workerCtx)
		}()
	} else {
		close(workersDone)
	}

	var responseCache *cache.CacheService
	if redisClient != nil && cfg.Cache.TTL > 0 {
		responseCache = cache.NewCacheService(redisClient.Client)
	}

	var lifecycle *workers.LifecycleWorker
	if cfg.Lifecycle.Enabled {
		lifecycle = workers.NewLifecycleWorker(challengeRepository, challengeSvc, settlementSvc, cfg.Lifecycle.Interval, cfg.Lifecycle.AutoSettle)
		if responseCache != nil {
			lifecycle.WithResponseCache(responseCache)
		}
		if err := lifecycle.Start(workerCtx); err != nil {
			zlog.Fatal("Failed to start lifecycle worker", zap.Error(err))
		}
	}

	// Настраиваем Gin
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := apphttp.Options{
		Logger:   zlog,
		Origin:   cfg.Server.Origin,
		Identity: provider,
		Users:    userSvc,
		CacheTTL: cfg.Cache.TTL,
		Checks:   checks,
		Swagger:  true,
	}
	if responseCache != nil {
		opts.Cache = responseCache
	}
	router := apphttp.NewRouter(opts, apphttp.Handlers{
		Users:          userhttp.NewUserHandler(userSvc),
		Challenges:     challengehttp.NewChallengeHandler(challengeSvc),
		Participations: participationhttp.NewParticipationHandler(participationSvc),
		Settlements:    settlementhttp.NewSettlementHandler(settlementSvc),
		Notifications:  notificationhttp.NewNotificationHandler(notificationSvc),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("Starting HTTP server", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	// Сначала останавливаем продюсеров, потом дочитываем очередь
	if lifecycle != nil {
		if err := lifecycle.Stop(); err != nil {
			zlog.Error("Failed to stop lifecycle worker", zap.Error(err))
		}
	}
	if localQueue != nil {
		localQueue.Close()
	}
	cancelWorkers()
	<-workersDone

	zlog.Info("Server exited")
}
