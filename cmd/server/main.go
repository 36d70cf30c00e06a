// @title NeuroSelfTrack API
// @version 1.0
// @description Session store, EEG analysis and dashboard insights for personal cognitive tracking.
// @license.name MIT
// @host localhost:8080
// @BasePath /
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/config"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/monitoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Structured logging setup
	level := monitoring.ParseLevel(cfg.LogLevel)
	logger := monitoring.NewLogger(level)
	slog.SetDefault(logger.Logger)
	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := newServer(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer srv.close()

	// Retention purge (runs daily)
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := srv.purgeExpired(ctx, now); err != nil {
					slog.Error("Retention purge failed", "error", err)
				}
				cancel()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gzhttp.GzipHandler(srv.setupRouter()),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "data_dir", cfg.DataDir, "cache", srv.results.Backend())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}
