package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-service/config"
	"catalog-service/internal/api"
	"catalog-service/internal/auth"
	"catalog-service/internal/broker"
	"catalog-service/internal/media"
	"catalog-service/internal/redisclient"
	"catalog-service/internal/service"
	"catalog-service/internal/store"
	"catalog-service/internal/util"
	"catalog-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting catalog service",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer("catalog-service", cfg.Server.Env, cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	repo, closeRepo := openRepository(cfg.Database, logger)
	defer closeRepo()

	readiness := map[string]api.Pinger{}

	var redisClient *redisclient.Client
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		readiness["redis"] = redisClient
		logger.Info("Redis connected")
	}

	var publisher broker.Publisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))
	}

	stager := newImageStager(cfg, redisClient, logger)

	catalogService := service.NewCatalogService(repo, publisher)
	ingestService := service.NewIngestService(repo, stager, publisher,
		service.WithStageTimeout(cfg.Ingest.StageTimeout))

	opts := api.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		IngestTimeout:  cfg.Server.IngestTimeout,
		Readiness:      readiness,
	}
	if cfg.Auth.Enabled() {
		var cache auth.TokenCache
		if redisClient != nil {
			cache = redisClient
		}
		identity := auth.NewAuth0Client(auth.Config{
			Domain:        cfg.Auth.Domain,
			Audience:      cfg.Auth.Audience,
			ClientID:      cfg.Auth.ClientID,
			ClientSecret:  cfg.Auth.ClientSecret,
			Realm:         cfg.Auth.Realm,
			Issuer:        cfg.Auth.Issuer,
			Algorithms:    cfg.Auth.Algorithms,
			TokenCacheTTL: cfg.Auth.TokenCacheTTL,
		}, cache)
		defer identity.Close()
		opts.Identity = identity
		logger.Info("Auth0 enabled", zap.String("domain", cfg.Auth.Domain))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var batchWorker *worker.BatchWorker
	if cfg.Kafka.Enabled {
		var claimer worker.BatchClaimer
		if redisClient != nil {
			claimer = redisClient
		}
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicBatches, cfg.Kafka.ConsumerGroup)
		batchWorker = worker.NewBatchWorker(consumer, ingestService, claimer, cfg.Ingest.BatchClaimTTL)
		go func() {
			if err := batchWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Batch worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(catalogService, ingestService, opts)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if batchWorker != nil {
		if err := batchWorker.Stop(); err != nil {
			logger.Error("Error stopping batch worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// openRepository connects to Postgres, or returns the in-memory catalog
// for DATABASE_URL=memory://
func openRepository(cfg config.DatabaseConfig, logger *zap.Logger) (store.Repository, func()) {
	if cfg.InMemory() {
		logger.Warn("Using in-memory catalog, data is lost on restart")
		return store.NewMemoryStore(), func() {}
	}

	db, err := store.NewStore(cfg.URL, store.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("Database connected")

	if cfg.AutoMigrate {
		if err := db.Migrate(); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		logger.Info("Database migrations applied")
	}

	return db, func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}
	}
}

// newImageStager returns nil when object storage is disabled, in which case
// scraped image URLs are stored as-is.
func newImageStager(cfg *config.Config, redisClient *redisclient.Client, logger *zap.Logger) service.ImageStager {
	if !cfg.Storage.Enabled {
		return nil
	}

	storage, err := media.NewS3Storage(context.Background(), media.S3Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Endpoint:        cfg.Storage.Endpoint,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	fetcher := media.NewFetcher(media.FetcherConfig{
		Attempts:      cfg.Ingest.ImageAttempts,
		Backoff:       cfg.Ingest.ImageBackoff,
		Timeout:       cfg.Ingest.ImageTimeout,
		RatePerSecond: cfg.Ingest.ImageRatePerSecond,
	}, logger)

	var failures media.FailureCache
	if redisClient != nil {
		failures = redisClient
	}

	logger.Info("Image staging enabled", zap.String("bucket", cfg.Storage.Bucket))
	return media.NewStager(fetcher, storage, failures, cfg.Ingest.FailedImageTTL, logger)
}
