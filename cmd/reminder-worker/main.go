package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bookinglink/bookinglink/cmd/mainconfig"
	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/internal/clinic"
	appconfig "github.com/bookinglink/bookinglink/internal/config"
	"github.com/bookinglink/bookinglink/internal/notify"
	"github.com/bookinglink/bookinglink/internal/observability/metrics"
	"github.com/bookinglink/bookinglink/internal/reminders"
	"github.com/bookinglink/bookinglink/pkg/clock"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.ReminderQueueURL == "" {
		logger.Error("REMINDER_QUEUE_URL is required")
		os.Exit(1)
	}

	awsConfig, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue := reminders.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.ReminderQueueURL)
	dynamoClient := dynamodb.NewFromConfig(awsConfig)
	jobStore := reminders.NewJobStore(dynamoClient, cfg.BookingTable, logger)
	apptRepo := appointments.NewRepository(dynamoClient, cfg.BookingTable, logger)
	settingsStore := clinic.NewStore(dynamoClient, cfg.BookingTable, logger)
	contacts := notify.NewDirectory(dynamoClient, cfg.BookingTable, logger)

	notifier := notify.NewService(
		buildEmailSender(awsConfig, cfg, logger),
		nil, // no SMS gateway configured, the stub logs instead
		contacts,
		settingsStore,
		logger,
	)

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	worker := reminders.NewWorker(
		queue,
		jobStore,
		apptRepo,
		notifier,
		bookingMetrics,
		clock.Real{},
		logger,
		reminders.WithWorkerCount(cfg.WorkerCount),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down reminder worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("reminder worker stopped")
	case <-doneCtx.Done():
		logger.Error("reminder worker shutdown timed out", "error", doneCtx.Err())
	}
}

// buildEmailSender prefers SendGrid, falls back to SES, then to the
// logging stub.
func buildEmailSender(awsConfig aws.Config, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if cfg.SendGridAPIKey != "" {
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	if cfg.SESFromEmail != "" {
		return notify.NewSESSender(sesv2.NewFromConfig(awsConfig), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	return nil
}
