package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camagru/camagru/internal/config"
	"github.com/camagru/camagru/internal/database"
	"github.com/camagru/camagru/internal/events"
	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/mailer"
	"github.com/camagru/camagru/internal/metrics"
	"github.com/camagru/camagru/internal/queue"
	"github.com/camagru/camagru/internal/scheduler"
	"github.com/camagru/camagru/pkg/models"
	"github.com/joho/godotenv"
)

const activityGroup = "camagru-worker"

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger = logger.WithComponent("worker")

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	repo := database.NewRepository(db)

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to queue")
	}
	defer q.Close()

	mail := mailer.New(cfg.Mail)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	sched := scheduler.NewScheduler(logger,
		scheduler.TokenCleanup(repo, cfg.Auth.VerificationTTL, cfg.Scheduler.CleanupInterval, logger),
		scheduler.Task{
			Name:     "email_queue_depth",
			Interval: 30 * time.Second,
			Run: func(context.Context) error {
				depth, err := q.Depth()
				if err != nil {
					return err
				}
				metrics.UpdateEmailQueueDepth(depth)
				return nil
			},
		},
	)
	if err := sched.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}
	defer sched.Stop()

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Events.Enabled && len(cfg.Events.Brokers) > 0 {
		consumer := events.NewConsumer(cfg.Events, activityGroup)
		defer consumer.Close()
		go consumeActivity(ctx, consumer, logger)
	}

	emailHandler := func(ctx context.Context, job *models.EmailJob) error {
		err := mail.Send(ctx, job)
		metrics.RecordEmailSent(string(job.Kind), err)
		logger.LogEmail(string(job.Kind), job.To, err)
		return err
	}

	logger.Info("Worker started, waiting for e-mails...")
	if err := q.ConsumeEmails(ctx, emailHandler); err != nil {
		logger.WithError(err).Fatal("Failed to consume e-mails")
	}

	<-ctx.Done()
	logger.Info("Worker stopped")
}

// consumeActivity turns the activity stream into logs and counters
func consumeActivity(ctx context.Context, consumer *events.Consumer, logger *logging.Logger) {
	handler := func(_ context.Context, event events.Event) error {
		metrics.RecordEventConsumed(event.Type)
		logger.WithUserID(event.UserID).WithPhotoID(event.PhotoID).
			WithField("event", event.Type).
			Debug("Activity event")
		return nil
	}
	onError := func(err error) {
		metrics.RecordError("events", "consume")
		logger.WithError(err).Warn("Skipping activity event")
	}

	if err := consumer.Run(ctx, handler, onError); err != nil {
		logger.WithError(err).Error("Activity consumer stopped")
	}
}
