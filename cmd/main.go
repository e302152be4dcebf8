package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finrag-backend/internal/ai"
	"finrag-backend/internal/config"
	"finrag-backend/internal/index"
	"finrag-backend/internal/logger"
	"finrag-backend/internal/telemetry"
	"finrag-backend/internal/websearch"
	"finrag-backend/middleware"
	"finrag-backend/routes"
	"finrag-backend/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, AI calls will fail until it is configured")
	}

	// Tracing is optional; the service runs fine without a collector
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("finrag-backend", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Failed to initialize tracer", "error", err)
		} else {
			defer shutdown()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Redis is optional; without it rate limiting is disabled
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	ctx := context.Background()
	aiClient, err := ai.NewClient(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Failed to create AI client:", err)
	}
	defer aiClient.Close()

	store := index.NewStore(cfg.VectorIndexDir)

	chunker := services.NewChunkingService(cfg.MaxChunkSize, cfg.ChunkOverlap)
	extractor := services.NewPDFExtractor()
	indexer := services.NewIndexer(extractor, chunker, aiClient, store, metrics)
	searcher := websearch.NewClient(cfg)
	answers := services.NewAnswerService(cfg, store, aiClient, searcher, aiClient, metrics)

	maintenance := services.NewMaintenanceService(cfg, store)
	if err := maintenance.Start(); err != nil {
		logger.Warn("Failed to start maintenance scheduler", "error", err)
	}
	defer maintenance.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	router.MaxMultipartMemory = cfg.MaxFileSize

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Setup routes
	routes.SetupUploadRoutes(router, cfg, indexer)
	routes.SetupChatRoutes(router, answers)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
