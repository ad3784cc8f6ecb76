// The worker runs the background half of the platform: the outbox
// processor that publishes appointment events to Redis, and the sweep
// that sends reminders, auto-completes finished appointments and
// cancels expired unpaid holds.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/getmebooked/booking-api/config"
	"github.com/getmebooked/booking-api/internal/email"
	"github.com/getmebooked/booking-api/internal/repository/postgres"
	"github.com/getmebooked/booking-api/internal/scheduler"
	eventService "github.com/getmebooked/booking-api/internal/service/event"
	notificationService "github.com/getmebooked/booking-api/internal/service/notification"
	"github.com/getmebooked/booking-api/pkg/clock"
	"github.com/getmebooked/booking-api/pkg/logger"
	"github.com/getmebooked/booking-api/pkg/messaging"
	redisBroker "github.com/getmebooked/booking-api/pkg/messaging/redis"
	"github.com/getmebooked/booking-api/pkg/metrics"
	"github.com/getmebooked/booking-api/pkg/worker"
)

// workerConfig comes entirely from the environment: the worker ships
// as a sidecar container and carries no config file.
type workerConfig struct {
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"getmebooked"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`

	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	OutboxBatchSize  int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxPollEvery  time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	OutboxRetries    int           `envconfig:"OUTBOX_RETRY_ATTEMPTS" default:"3"`
	OutboxRetryDelay time.Duration `envconfig:"OUTBOX_RETRY_DELAY" default:"1s"`
	HealthListenAddr string        `envconfig:"HEALTH_ADDR" default:":8081"`
}

func main() {
	var cfg workerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	l := logger.NewLogger(nil)

	db, err := postgres.NewDB(config.DatabaseConfig{
		Host:                   cfg.DBHost,
		Port:                   cfg.DBPort,
		User:                   cfg.DBUser,
		Password:               cfg.DBPassword,
		Name:                   cfg.DBName,
		SSLMode:                cfg.DBSSLMode,
		MaxOpenConns:           10,
		MaxIdleConns:           5,
		ConnMaxLifetimeMinutes: 30,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisBroker.NewRedisBroker(redisBroker.Config{URL: cfg.RedisURL}, &l.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	appointmentRepo := postgres.NewAppointmentRepository(db)
	businessRepo := postgres.NewBusinessRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.NewMetrics("getmebooked", "worker")
	clk := clock.New(nil)

	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, l)
	notifier := notificationService.NewService(notificationRepo, emailSvc, broker, l)
	events := eventService.NewService(outboxRepo, l)

	sweeper := scheduler.NewSweeper(appointmentRepo, businessRepo, notifier, events, clk, m, l, cfg.SweepInterval)
	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.OutboxBatchSize,
		PollInterval:  cfg.OutboxPollEvery,
		RetryAttempts: cfg.OutboxRetries,
		RetryDelay:    cfg.OutboxRetryDelay,
	}, l, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Start(ctx)
	go processor.Start(ctx)
	go serveHealth(cfg.HealthListenAddr, l, broker)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down worker")
	cancel()
}

func serveHealth(addr string, l *logger.Logger, _ messaging.Broker) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	if err := http.ListenAndServe(addr, mux); err != nil {
		l.Error(err, "health server failed")
		os.Exit(1)
	}
}
