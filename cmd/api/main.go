package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/api/handlers"
	"github.com/AkhilKas/patient-comm-assistant/internal/cache/redis"
	"github.com/AkhilKas/patient-comm-assistant/internal/ingestion"
	"github.com/AkhilKas/patient-comm-assistant/internal/metrics"
	"github.com/AkhilKas/patient-comm-assistant/internal/middleware/ratelimit"
	"github.com/AkhilKas/patient-comm-assistant/internal/middleware/security"
	"github.com/AkhilKas/patient-comm-assistant/internal/middleware/validation"
	"github.com/AkhilKas/patient-comm-assistant/internal/model"
	"github.com/AkhilKas/patient-comm-assistant/internal/query"
	"github.com/AkhilKas/patient-comm-assistant/internal/readability"
	"github.com/AkhilKas/patient-comm-assistant/internal/retrieval"
	"github.com/AkhilKas/patient-comm-assistant/internal/simplify"
	"github.com/AkhilKas/patient-comm-assistant/internal/vector"
	"github.com/AkhilKas/patient-comm-assistant/pkg/config"
	appLogger "github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Patient Communication Assistant API Server")

	metrics.Init()

	modelClient := model.NewClient(
		cfg.Model.APIKey,
		cfg.Model.GenerationModel,
		cfg.Model.EmbeddingModel,
		cfg.Model.Temperature,
		cfg.Model.MaxTokens,
		cfg.Model.TimeoutSec,
		cfg.Model.MaxConcurrent,
	)

	var embedder vector.Embedder = modelClient
	if cfg.Cache.Enabled {
		cacheClient, err := redis.NewClient(
			cfg.Cache.Host,
			cfg.Cache.Port,
			cfg.Cache.Password,
			cfg.Cache.DB,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Embedding cache unavailable, continuing without it", zap.Error(err))
		} else {
			embedder = redis.NewCachedEmbedder(modelClient, cacheClient)
			appLogger.Info("Embedding cache enabled",
				zap.String("host", cfg.Cache.Host),
				zap.Int("port", cfg.Cache.Port),
			)
		}
	}

	var store *vector.Store
	if cfg.Index.PersistPath != "" {
		store, err = vector.NewStore(cfg.Index.PersistPath)
		if err != nil {
			appLogger.Fatal("Failed to open index store", zap.Error(err))
		}
		defer store.Close()
	}

	index, err := vector.NewIndex(embedder, store)
	if err != nil {
		appLogger.Fatal("Failed to initialize index", zap.Error(err))
	}
	metrics.ChunksIndexed.Set(float64(index.Stats().TotalChunks))

	chunker := ingestion.NewChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	processor := ingestion.NewProcessor(index, chunker)
	retriever := retrieval.NewRetriever(index, cfg.Retrieval.MinScore)
	scorer := readability.NewScorer(cfg.Readability.TargetGradeLevel, cfg.Readability.MinReadingEase)
	engine := simplify.NewEngine(modelClient, scorer, cfg.Simplifier.MaxRetries, cfg.Simplifier.EntityCheck)
	orchestrator := query.NewOrchestrator(retriever, modelClient, engine, scorer)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	documentHandler := handlers.NewDocumentHandler(processor)
	queryHandler := handlers.NewQueryHandler(orchestrator, index, cfg.Retrieval.DefaultResults)
	textHandler := handlers.NewTextHandler(engine, scorer)
	adminHandler := handlers.NewAdminHandler(index)
	wsHandler := handlers.NewWebSocketHandler(orchestrator, cfg.Retrieval.DefaultResults)

	api := app.Group("/api/v1")

	api.Post("/documents", documentHandler.UploadDocument)
	api.Post("/ask", queryHandler.HandleAsk)
	api.Post("/simplify", textHandler.HandleSimplify)
	api.Post("/readability", textHandler.HandleReadability)
	api.Delete("/index", adminHandler.ClearIndex)
	api.Get("/stats", adminHandler.GetStats)
	api.Get("/health", adminHandler.HealthCheck)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.ShutdownWithContext(shutdownCtx)
	appLogger.Info("Server stopped")
}
