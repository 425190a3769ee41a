package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trajectory-analytics/backend/internal/graph"
	"trajectory-analytics/backend/internal/trajectory"
	"trajectory-analytics/backend/pkg/config"
	"trajectory-analytics/backend/pkg/logger"
)

const discoveryTimeout = 10 * time.Second

var _ trajectory.SchemaSource = (*graph.Repository)(nil)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting query API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	schema := loadSchema(context.Background(), cfg, log)

	srvState, err := newServer(schema, log)
	if err != nil {
		log.Fatal("Invalid schema", zap.Error(err))
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(srvState)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// loadSchema discovers the schema from Neo4j when enabled, and falls back to
// the configured base runs when discovery is off or the database is
// unreachable.
func loadSchema(ctx context.Context, cfg *config.Config, log *zap.Logger) trajectory.Schema {
	fallback := trajectory.DefaultSchema(cfg.BaseRuns)
	if !cfg.DiscoverSchema {
		log.Info("Schema discovery disabled", zap.Strings("runs", cfg.BaseRuns))
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Warn("Neo4j unreachable, using base runs", zap.Error(err), zap.Strings("runs", cfg.BaseRuns))
		return fallback
	}
	repo := graph.NewRepository(driver, graph.WithDatabase(cfg.Neo4jDatabase))
	defer repo.Close(context.Background())

	schema, err := trajectory.NewDiscoverer(repo, logger.Named("discovery")).Discover(ctx)
	if err != nil {
		log.Warn("Schema discovery failed, using base runs", zap.Error(err), zap.Strings("runs", cfg.BaseRuns))
		return fallback
	}
	return schema
}
