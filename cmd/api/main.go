package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"go.uber.org/zap"

	"github.com/referralguard/referral-integrity-backend/internal/api/rest"
	"github.com/referralguard/referral-integrity-backend/internal/domain/id"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/cache"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/config"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/database"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/notify"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/repository"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/riskclient"
	"github.com/referralguard/referral-integrity-backend/internal/infrastructure/telemetry"
	"github.com/referralguard/referral-integrity-backend/internal/metrics"
	svcaccount "github.com/referralguard/referral-integrity-backend/internal/service/account"
	"github.com/referralguard/referral-integrity-backend/internal/service/alerting"
	"github.com/referralguard/referral-integrity-backend/internal/service/anomaly"
	"github.com/referralguard/referral-integrity-backend/internal/service/behavior"
	"github.com/referralguard/referral-integrity-backend/internal/service/review"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	slog.SetDefault(logger)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create zap logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.ServiceVersion = cfg.Version
	telemetryCfg.Environment = cfg.Environment
	telemetryCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telemetryCfg.Enabled = cfg.Telemetry.Enabled
	telemetryCfg.SamplingRate = cfg.Telemetry.SamplingRate

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telemetryCfg)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown telemetry", "error", err)
		}
	}()

	pool, err := database.NewPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	redisClient, err := cache.NewRedisClient(&cfg.Redis, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	reg, err := metrics.NewRegistry("referral-integrity-backend")
	if err != nil {
		log.Fatalf("Failed to create metrics registry: %v", err)
	}

	// Storage
	patterns := repository.NewPatternRepository(pool.Pgx())
	alerts := repository.NewAlertRepository(pool.Pgx())
	cases := repository.NewReviewCaseRepository(pool.Pgx())
	freezes := repository.NewFreezeRepository(pool.Pgx())
	rewards := repository.NewRewardRecoveryRepository(pool.Pgx())

	// External collaborators
	notifier := notify.NewWebhookNotifier(&cfg.Notification, zapLogger)
	riskOracle := riskclient.NewClient(&cfg.RiskService, zapLogger)
	cooldown := cache.NewAlertCooldown(redisClient, cfg.Detection.AlertCooldown, zapLogger)

	// Services
	ids := id.NewGenerator()
	behaviorSvc := behavior.NewAnalyzer(patterns, logger)
	anomalySvc := anomaly.NewDetector(patterns, cooldown, anomaly.DetectionRules{
		MinHistory:       cfg.Detection.MinHistory,
		HistoryLimit:     cfg.Detection.HistoryLimit,
		VelocityMaxCount: cfg.Detection.VelocityMaxCount,
		VelocityWindow:   cfg.Detection.VelocityWindow,
		DeviationDelta:   cfg.Detection.DeviationDelta,
	}, reg, logger)
	alertSvc := alerting.NewStore(alerts, notifier, ids, logger)
	reviewSvc := review.NewManager(cases, ids, logger)
	accountSvc := svcaccount.NewManager(freezes, cases, riskOracle, rewards, notifier, logger)

	handler := rest.NewHandler(behaviorSvc, anomalySvc, alertSvc, reviewSvc, accountSvc, reg, logger)
	server := rest.NewServer(cfg, handler, logger, pool)

	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
