package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/filemgr/api/swagger"
	"github.com/noah-isme/filemgr/internal/app"
	"github.com/noah-isme/filemgr/internal/handler"
	internalmiddleware "github.com/noah-isme/filemgr/internal/middleware"
	"github.com/noah-isme/filemgr/pkg/config"
	"github.com/noah-isme/filemgr/pkg/logger"
	corsmiddleware "github.com/noah-isme/filemgr/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/filemgr/pkg/middleware/requestid"
)

// @title File Manager Catalog API
// @version 1.0.0
// @description Product ingest, metadata schema management and paged catalog queries
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to initialise catalog", "error", err)
	}
	defer application.Close()
	application.StartBackground(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(internalmiddleware.Metrics(application.Metrics, "/health"))

	// A typed nil would defeat the handler's disabled check.
	exports := handler.NewExportHandler(nil)
	if application.Exports != nil {
		exports = handler.NewExportHandler(application.Exports)
	}

	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Products: handler.NewProductHandler(application.CatalogService),
		Schema:   handler.NewSchemaHandler(application.SchemaService),
		Exports:  exports,
		Metrics:  handler.NewMetricsHandler(application.Metrics, application.DB),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env,
			"catalog_variant", cfg.Catalog.Variant, "validation_backend", cfg.Validation.Backend,
			"exports", cfg.Exports.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
