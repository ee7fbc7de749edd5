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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sameerreddy213/certmaker-api/api/swagger"
	"github.com/sameerreddy213/certmaker-api/internal/handler"
	"github.com/sameerreddy213/certmaker-api/internal/middleware"
	"github.com/sameerreddy213/certmaker-api/internal/repository"
	"github.com/sameerreddy213/certmaker-api/internal/service"
	"github.com/sameerreddy213/certmaker-api/pkg/cache"
	"github.com/sameerreddy213/certmaker-api/pkg/config"
	"github.com/sameerreddy213/certmaker-api/pkg/convert"
	"github.com/sameerreddy213/certmaker-api/pkg/database"
	"github.com/sameerreddy213/certmaker-api/pkg/jobs"
	"github.com/sameerreddy213/certmaker-api/pkg/logger"
	corsmiddleware "github.com/sameerreddy213/certmaker-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sameerreddy213/certmaker-api/pkg/middleware/requestid"
	"github.com/sameerreddy213/certmaker-api/pkg/storage"
)

// @title CertMaker API
// @version 1.0.0
// @description Batch certificate generation from DOCX/PPTX templates and spreadsheets
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}

	templateStore, err := storage.NewLocalStorage(cfg.Storage.TemplatesDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare template storage", "error", err)
	}
	uploadStore, err := storage.NewLocalStorage(cfg.Storage.UploadsDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}
	outputStore, err := storage.NewLocalStorage(cfg.Storage.OutputDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare output storage", "error", err)
	}

	validate := validator.New()
	converter := convert.NewLibreOffice(cfg.Converter.Binary, cfg.Converter.Timeout, logr)

	userRepo := repository.NewUserRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	templateSvc := service.NewTemplateService(templateRepo, templateStore, logr, service.TemplateServiceConfig{
		MaxFileSize: cfg.Storage.MaxUploadBytes,
	})
	batchSvc := service.NewBatchService(batchRepo, certRepo, templateRepo, uploadStore, outputStore, converter, logr, service.BatchServiceConfig{
		MaxFileSize: cfg.Storage.MaxUploadBytes,
	})
	batchSvc.SetMetrics(metricsSvc)

	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled {
		dashboardSvc = service.NewDashboardService(templateRepo, batchRepo, certRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
		batchSvc.SetStatsInvalidator(dashboardSvc)
	}

	queue := jobs.NewQueue("generation", batchSvc.ProcessJob, jobs.QueueConfig{
		Workers:    cfg.Generation.Workers,
		BufferSize: cfg.Generation.QueueBuffer,
		Logger:     logr,
	})
	batchSvc.AttachQueue(queue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// The queue gets its own context so a shutdown signal does not cancel
	// in-flight generation runs; Stop below drains them instead.
	queue.Start(context.Background())

	authHandler := handler.NewAuthHandler(authSvc)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	certHandler := handler.NewCertificateHandler(batchSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

		protected := api.Group("", middleware.JWT(authSvc))
		{
			templates := protected.Group("/templates")
			templates.POST("", templateHandler.Upload)
			templates.GET("", templateHandler.List)
			templates.GET("/:id", templateHandler.Get)
			templates.PUT("/:id", templateHandler.Update)
			templates.DELETE("/:id", templateHandler.Delete)

			batches := protected.Group("/batches")
			batches.POST("/generate", batchHandler.Generate)
			batches.GET("", batchHandler.List)
			batches.GET("/:batchId/status", batchHandler.Status)
			batches.GET("/:batchId/details", batchHandler.Details)
			batches.GET("/:batchId/download-zip", batchHandler.DownloadZip)

			certificates := protected.Group("/certificates")
			certificates.GET("/:id", certHandler.Get)
			certificates.GET("/:id/download", certHandler.Download)
			certificates.GET("/:id/view", certHandler.View)

			if dashboardSvc != nil {
				protected.GET("/dashboard/stats", handler.NewDashboardHandler(dashboardSvc).Stats)
			}
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	queue.Stop()
}
