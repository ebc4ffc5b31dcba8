package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ngo-report-api/bootstrap"
	"ngo-report-api/config"

	"github.com/gin-gonic/gin"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		config.Logger.WithError(err).Fatal("Failed to load configuration")
	}

	logFile, _ := config.InitLogging(settings.Environment)
	if logFile != nil {
		defer logFile.Close()
	}

	if settings.GinMode == gin.ReleaseMode || settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := bootstrap.New(settings)
	if err != nil {
		config.Logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer app.Close()

	if settings.Database.AutoMigrate {
		if err := app.Migrate(); err != nil {
			config.Logger.WithError(err).Fatal("Failed to apply migrations")
		}
	}

	router, err := app.NewRouter()
	if err != nil {
		config.Logger.WithError(err).Fatal("Failed to build router")
	}

	server := &http.Server{
		Addr:              ":" + settings.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		config.Logger.WithFields(map[string]interface{}{
			"port":        settings.ServerPort,
			"environment": settings.Environment,
			"ingest_mode": app.Dispatcher.Mode(),
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			config.Logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Inline uploads finish on their own context; give them time to do so.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		config.Logger.WithError(err).Error("Graceful shutdown failed")
	}
	config.Logger.Info("Server stopped")
}
