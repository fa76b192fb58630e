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
	"go.uber.org/zap"

	_ "github.com/noah-isme/compliance-api/api/swagger"
	"github.com/noah-isme/compliance-api/internal/handler"
	"github.com/noah-isme/compliance-api/internal/middleware"
	"github.com/noah-isme/compliance-api/internal/repository"
	"github.com/noah-isme/compliance-api/internal/service"
	"github.com/noah-isme/compliance-api/pkg/cache"
	"github.com/noah-isme/compliance-api/pkg/config"
	"github.com/noah-isme/compliance-api/pkg/database"
	"github.com/noah-isme/compliance-api/pkg/jobs"
	"github.com/noah-isme/compliance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/compliance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/compliance-api/pkg/middleware/requestid"
	"github.com/noah-isme/compliance-api/pkg/notify"
	"github.com/noah-isme/compliance-api/pkg/storage"
)

// @title Field Compliance API
// @version 1.0.0
// @description Worker compliance status, sealed snapshots, public verification and compliance-gated dispatch.
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "compliance-api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "compliance:", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Compliance.SnapshotCacheTTL, logr, cfg.Compliance.SnapshotCacheEnabled && redisClient != nil)

	store := repository.NewStore(db)
	validate := validator.New()
	policy := service.Policy{
		SnapshotFreshness:    cfg.Compliance.SnapshotFreshness,
		ExpiringWindow:       cfg.Compliance.ExpiringWindow,
		OverrideMinReasonLen: cfg.Compliance.OverrideMinReasonLen,
		VerifyBaseURL:        cfg.Compliance.PublicVerifyBaseURL,
	}

	sender, err := notify.New(cfg.Notify, logr)
	if err != nil {
		logr.Fatal("failed to configure notifications", zap.Error(err))
	}

	var signer *storage.SignedURLSigner
	notifyOpts := []service.NotificationServiceOption{service.WithNotificationMetrics(metrics)}
	if cfg.Compliance.CertificateSecret != "" {
		signer = storage.NewSignedURLSigner(cfg.Compliance.CertificateSecret, cfg.Compliance.CertificateLinkTTL)
		notifyOpts = append(notifyOpts, service.WithCertificateLinks(signer, cfg.Compliance.CertificateLinkBase))
	}
	notifications := service.NewNotificationService(store, sender, logr, notifyOpts...)
	queue := jobs.NewQueue("notifications", notifications.HandleJob, jobs.QueueConfig{
		Workers:      cfg.Notify.Workers,
		MaxRetries:   cfg.Notify.Retries,
		RetryDelay:   cfg.Notify.RetryDelay,
		Logger:       logr,
		OnDeadLetter: notifications.HandleDeadLetter,
	})
	notifications.SetQueue(queue)

	complianceSvc := service.NewComplianceService(store, policy, validate, logr, service.WithComplianceMetrics(metrics))
	snapshotSvc := service.NewSnapshotService(store, policy, validate, logr,
		service.WithSnapshotCache(cacheSvc),
		service.WithSnapshotMetrics(metrics),
	)
	verificationSvc := service.NewVerificationService(store, policy, logr,
		service.WithVerificationCache(cacheSvc),
		service.WithVerificationMetrics(metrics),
	)
	dispatchSvc := service.NewDispatchService(store, policy, validate, logr,
		service.WithDispatchNotifier(notifications),
		service.WithDispatchCache(cacheSvc),
		service.WithDispatchMetrics(metrics),
	)
	documentSvc := service.NewCompanyDocumentService(store, validate, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	handlers := handler.Handlers{
		Compliance:      handler.NewComplianceHandler(complianceSvc),
		Snapshot:        handler.NewSnapshotHandler(snapshotSvc),
		Verification:    handler.NewVerificationHandler(verificationSvc),
		Dispatch:        handler.NewDispatchHandler(dispatchSvc),
		CompanyDocument: handler.NewCompanyDocumentHandler(documentSvc),
		Metrics:         handler.NewMetricsHandler(metrics, db),
	}
	if signer != nil {
		handlers.CertificateLink = handler.NewCertificateLinkHandler(signer, snapshotSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, handler.VerifyPathPrefix, handler.CertificatePathPrefix))

	handler.RegisterRoutes(r, cfg.APIPrefix, authSvc, handlers)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(context.Background())

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

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	queue.Stop()
	logr.Info("server stopped")
}
