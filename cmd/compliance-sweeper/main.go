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
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/compliance-api/internal/repository"
	"github.com/noah-isme/compliance-api/internal/service"
	"github.com/noah-isme/compliance-api/pkg/config"
	"github.com/noah-isme/compliance-api/pkg/database"
	"github.com/noah-isme/compliance-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "compliance-sweeper")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	complianceSvc := service.NewComplianceService(repository.NewStore(db), service.Policy{
		SnapshotFreshness:    cfg.Compliance.SnapshotFreshness,
		ExpiringWindow:       cfg.Compliance.ExpiringWindow,
		OverrideMinReasonLen: cfg.Compliance.OverrideMinReasonLen,
		VerifyBaseURL:        cfg.Compliance.PublicVerifyBaseURL,
	}, validator.New(), logr, service.WithComplianceMetrics(metrics))

	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sweep.Timeout)
		defer cancel()
		logr.Info("starting compliance sweep")
		if _, err := complianceSvc.SweepActiveWorkers(ctx); err != nil {
			logr.Error("compliance sweep failed", zap.Error(err))
		}
	}

	digest := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sweep.Timeout)
		defer cancel()
		digests, err := complianceSvc.ExpiringDigests(ctx)
		if err != nil {
			logr.Error("expiring digest failed", zap.Error(err))
			return
		}
		for _, d := range digests {
			logr.Info("expiring certifications",
				zap.String("company_id", d.CompanyID),
				zap.String("company", d.CompanyName),
				zap.Int("expired", d.Expired),
				zap.Int("expiring", d.Expiring),
			)
		}
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(cfg.Sweep.Schedule, sweep); err != nil {
		logr.Fatal("failed to schedule compliance sweep", zap.String("schedule", cfg.Sweep.Schedule), zap.Error(err))
	}
	if _, err := c.AddFunc(cfg.Sweep.DigestSchedule, digest); err != nil {
		logr.Fatal("failed to schedule expiring digest", zap.String("schedule", cfg.Sweep.DigestSchedule), zap.Error(err))
	}

	if cfg.Sweep.RunOnStart {
		sweep()
	}

	c.Start()
	logr.Info("compliance sweeper scheduled",
		zap.String("sweep", cfg.Sweep.Schedule),
		zap.String("digest", cfg.Sweep.DigestSchedule),
	)

	var metricsSrv *http.Server
	if cfg.Sweep.MetricsPort > 0 {
		if cfg.Env == config.EnvProduction {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		router.Use(gin.Recovery())
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Sweep.MetricsPort),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logr.Error("metrics listener failed", zap.Error(err))
			}
		}()
		logr.Info("sweeper metrics listening", zap.String("addr", metricsSrv.Addr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	<-c.Stop().Done()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logr.Warn("metrics listener shutdown failed", zap.Error(err))
		}
	}
	logr.Info("compliance sweeper stopped")
}
