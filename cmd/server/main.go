package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	httpapi "github.com/findirfin/ringil/internal/adapters/api/http"
	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/factory"
	"github.com/findirfin/ringil/internal/pkg/httputil"
	"github.com/findirfin/ringil/internal/pkg/logutil"
	"github.com/findirfin/ringil/pkg/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := factory.NewLogger(cfg.Logging)
	logutil.SetGlobalLogger(logger)

	logger.Info("Starting Ringil server", logutil.Fields{
		"host":           cfg.Server.Host,
		"port":           cfg.Server.Port,
		"export_backend": cfg.Export.Backend,
	})

	ctx := context.Background()
	container, err := factory.NewServiceFactory(logger).Initialize(ctx, factory.InitializationOptions{
		Config:                *cfg,
		ValidateConfiguration: true,
		EnableHealthChecks:    true,
		EnableWebSocket:       true,
	})
	if err != nil {
		logger.Fatal("Failed to initialize services", logutil.Fields{"error": err})
	}

	// Initialize HTTP server
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	checks := make(map[string]httpapi.HealthCheck)
	for name, check := range container.HealthChecks() {
		checks[name] = check
	}

	middleware := httputil.DefaultMiddlewareConfig
	middleware.EnableCORS = cfg.Server.CORSEnabled

	apiHandlers := httpapi.NewAPIHandlers(httpapi.Dependencies{
		Store:      container.Store,
		Models:     container.Models,
		Metrics:    container.Metrics,
		Hub:        container.Hub,
		Exports:    container.Exports,
		Checks:     checks,
		Logger:     logger,
		Middleware: &middleware,
	})
	apiHandlers.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logutil.Info("Server listening", logutil.Fields{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.Fatal("Failed to start server", logutil.Fields{"error": err})
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logutil.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logutil.Warn("Server forced to shutdown", logutil.Fields{"error": err})
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		logutil.Error("Service shutdown failed", logutil.Fields{"error": err})
	}

	logutil.Info("Server exited")
}
