package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookinglink/bookinglink/cmd/mainconfig"
	"github.com/bookinglink/bookinglink/internal/api/router"
	"github.com/bookinglink/bookinglink/internal/app/bootstrap"
	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/availability"
	"github.com/bookinglink/bookinglink/internal/booking"
	"github.com/bookinglink/bookinglink/internal/clinic"
	"github.com/bookinglink/bookinglink/internal/compliance"
	appconfig "github.com/bookinglink/bookinglink/internal/config"
	"github.com/bookinglink/bookinglink/internal/export"
	"github.com/bookinglink/bookinglink/internal/http/handlers"
	"github.com/bookinglink/bookinglink/internal/observability/metrics"
	"github.com/bookinglink/bookinglink/internal/reminders"
	"github.com/bookinglink/bookinglink/internal/rules"
	"github.com/bookinglink/bookinglink/internal/schedule"
	"github.com/bookinglink/bookinglink/pkg/clock"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bookinglink API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	apptRepo := appointments.NewRepository(dynamoClient, cfg.BookingTable, logger)
	scheduleStore := schedule.NewStore(dynamoClient, cfg.BookingTable, logger)
	settingsStore := clinic.NewStore(dynamoClient, cfg.BookingTable, logger)
	ruleStore := rules.NewStore(dynamoClient, cfg.BookingTable, logger)
	auditService := compliance.NewAuditService(dynamoClient, cfg.BookingTable, logger)
	jobStore := reminders.NewJobStore(dynamoClient, cfg.BookingTable, logger)

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	slotCache := bootstrap.BuildSlotCache(redisClient, cfg, logger)

	availabilitySvc := availability.NewService(scheduleStore, apptRepo, settingsStore, slotCache, logger)
	evaluator := rules.NewEvaluator(ruleStore, apptRepo, logger)

	var scheduler *reminders.Scheduler
	if cfg.ReminderQueueURL != "" {
		queue := reminders.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ReminderQueueURL)
		scheduler = reminders.NewScheduler(jobStore, queue, bookingMetrics, clock.Real{}, logger)
	} else {
		logger.Warn("REMINDER_QUEUE_URL not set, reminders disabled")
	}

	bookingSvc := booking.NewService(
		apptRepo,
		scheduleStore,
		settingsStore,
		evaluator,
		schedulerOrNil(scheduler),
		cacheOrNil(slotCache),
		auditService,
		bookingMetrics,
		clock.Real{},
		logger,
	)

	var exporter *export.Exporter
	if cfg.ExportBucket != "" {
		exporter = export.NewExporter(s3.NewFromConfig(awsCfg), cfg.ExportBucket, apptRepo, logger)
	}

	routerCfg := &router.Config{
		Logger:             logger,
		Slots:              handlers.NewSlotsHandler(availabilitySvc, logger),
		Appointments:       handlers.NewAppointmentsHandler(bookingSvc, apptRepo, logger),
		Schedules:          handlers.NewSchedulesHandler(scheduleStore, cacheOrNil(slotCache), auditService, logger),
		Types:              handlers.NewTypesHandler(apptRepo, logger),
		Settings:           handlers.NewSettingsHandler(settingsStore, auditService, logger),
		Rules:              handlers.NewRulesHandler(ruleStore, auditService, logger),
		Export:             handlers.NewExportHandler(exporterOrNil(exporter), auditService, logger),
		Audit:              handlers.NewAuditHandler(auditService, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AuthSecret:         cfg.AuthJWTSecret,
		CORSAllowedOrigins: bootstrap.CORSOrigins(cfg),
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// schedulerOrNil keeps a typed nil from sneaking into the booking
// service's interface field.
func schedulerOrNil(s *reminders.Scheduler) booking.ReminderScheduler {
	if s == nil {
		return nil
	}
	return s
}

func cacheOrNil(c *availability.SlotCache) booking.CacheInvalidator {
	if c == nil {
		return nil
	}
	return c
}

func exporterOrNil(e *export.Exporter) handlers.ExportRunner {
	if e == nil {
		return nil
	}
	return e
}
