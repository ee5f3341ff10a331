package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutor-class-api/api/swagger"
	"github.com/noah-isme/tutor-class-api/internal/handler"
	"github.com/noah-isme/tutor-class-api/internal/ledger"
	"github.com/noah-isme/tutor-class-api/internal/middleware"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/repository"
	"github.com/noah-isme/tutor-class-api/internal/service"
	"github.com/noah-isme/tutor-class-api/pkg/cache"
	"github.com/noah-isme/tutor-class-api/pkg/config"
	"github.com/noah-isme/tutor-class-api/pkg/database"
	"github.com/noah-isme/tutor-class-api/pkg/export"
	"github.com/noah-isme/tutor-class-api/pkg/jobs"
	"github.com/noah-isme/tutor-class-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-class-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-class-api/pkg/middleware/requestid"
)

// @title Tutor Class API
// @version 1.0.0
// @description Class scheduling, join gating and billing ledger for tutoring sessions.
// @BasePath /api/v1
// @schemes http https
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
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheSvc *service.CacheService
	var cacheRepo *repository.CacheRepository
	if cfg.Reports.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, report cache disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, true)
		}
	}

	classRepo := repository.NewClassRepository(db)
	occurrenceRepo := repository.NewOccurrenceRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), jobs.Config{
		Workers:    2,
		BufferSize: 256,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}, logr)
	auditSvc.Start(context.Background())
	defer auditSvc.Stop()

	tokenSvc := service.NewTokenService(cfg.JWT, cfg.Bridge)
	billingSvc := service.NewBillingService(ledgerRepo, classRepo, occurrenceRepo, ledger.Terms{
		TaxRate:         cfg.Billing.TaxRate,
		PlatformFee:     cfg.Billing.PlatformFee,
		PaymentTermDays: cfg.Billing.PaymentTermDays,
	}, cfg.Scheduling.Location, cacheSvc, metrics, validate, logr)
	classSvc := service.NewClassService(classRepo, occurrenceRepo, billingSvc, service.ClassServiceConfig{
		Location:              cfg.Scheduling.Location,
		LookaheadDays:         cfg.Scheduling.LookaheadDays,
		GenerationHorizonDays: cfg.Scheduling.GenerationHorizonDays,
		DefaultJoinWindow:     cfg.Scheduling.DefaultJoinWindow,
		DefaultCurrency:       cfg.Billing.DefaultCurrency,
	}, metrics, validate, logr)
	joinSvc := service.NewJoinService(classRepo, occurrenceRepo, ledgerRepo, tokenSvc, service.JoinServiceConfig{
		Location:          cfg.Scheduling.Location,
		LookaheadDays:     cfg.Scheduling.LookaheadDays,
		DefaultJoinWindow: cfg.Scheduling.DefaultJoinWindow,
	}, metrics, validate, logr)
	exportSvc := service.NewExportService(export.NewCSVExporter(), export.NewPDFExporter())
	reportSvc := service.NewReportService(ledgerRepo, cacheSvc, exportSvc, metrics, service.ReportServiceConfig{
		Location: cfg.Scheduling.Location,
		CacheTTL: cfg.Reports.CacheTTL,
	}, validate, logr)

	checks := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if cacheRepo != nil {
		checks["redis"] = cacheRepo.Ping
	}

	classHandler := handler.NewClassHandler(classSvc)
	joinHandler := handler.NewJoinHandler(joinSvc)
	billingHandler := handler.NewBillingHandler(billingSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	writers := middleware.RequireRoles(models.RoleAdmin, models.RoleTutor)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(auditSvc, logr, action, resource)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))

	classes := api.Group("/classes")
	classes.POST("", writers, audit(models.AuditActionClassCreate, "class"), classHandler.Create)
	classes.PUT("/:id", writers, audit(models.AuditActionClassReschedule, "class"), classHandler.Update)
	classes.GET("/:id", classHandler.Get)
	classes.GET("/:id/next-occurrence", classHandler.NextOccurrence)
	classes.GET("/:id/occurrences", classHandler.ListOccurrences)
	classes.POST("/:id/occurrences/:date/cancel", writers, audit(models.AuditActionOccurrenceCancel, "class"), classHandler.CancelOccurrence)
	classes.POST("/:id/occurrences/:date/complete", writers, audit(models.AuditActionOccurrenceDone, "class"), classHandler.CompleteOccurrence)
	classes.POST("/:id/join", joinHandler.Join)
	classes.POST("/:id/billing", writers, audit(models.AuditActionBillingRealize, "class"), billingHandler.Realize)
	classes.PATCH("/:id/billing/status", writers, audit(models.AuditActionBillingStatus, "class"), billingHandler.UpdateClassStatus)

	api.POST("/availability/check", writers, classHandler.CheckAvailability)

	ledgerGroup := api.Group("/ledger")
	ledgerGroup.GET("", billingHandler.List)
	ledgerGroup.GET("/:id", billingHandler.Get)
	ledgerGroup.POST("/:id/discounts", writers, audit(models.AuditActionLedgerDiscount, "ledger_entry"), billingHandler.ApplyDiscount)
	ledgerGroup.POST("/:id/adjustments", writers, audit(models.AuditActionLedgerAdjustment, "ledger_entry"), billingHandler.ApplyAdjustment)
	ledgerGroup.POST("/:id/pay", writers, audit(models.AuditActionLedgerPayment, "ledger_entry"), billingHandler.MarkPaid)
	ledgerGroup.POST("/:id/void", writers, audit(models.AuditActionLedgerVoid, "ledger_entry"), billingHandler.Void)

	reports := api.Group("/reports", writers)
	reports.GET("/ledger", reportHandler.LedgerSummary)
	reports.GET("/ledger/export", reportHandler.LedgerExport)

	api.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
