package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/getmebooked/booking-api/config"
	"github.com/getmebooked/booking-api/internal/email"
	"github.com/getmebooked/booking-api/internal/handler"
	appointmentHandler "github.com/getmebooked/booking-api/internal/handler/appointment"
	bookingHandler "github.com/getmebooked/booking-api/internal/handler/booking"
	businessHandler "github.com/getmebooked/booking-api/internal/handler/business"
	paymentHandler "github.com/getmebooked/booking-api/internal/handler/payment"
	"github.com/getmebooked/booking-api/internal/middleware"
	"github.com/getmebooked/booking-api/internal/payment"
	"github.com/getmebooked/booking-api/internal/repository/postgres"
	"github.com/getmebooked/booking-api/internal/router"
	"github.com/getmebooked/booking-api/internal/scheduler"
	availabilityService "github.com/getmebooked/booking-api/internal/service/availability"
	bookingService "github.com/getmebooked/booking-api/internal/service/booking"
	depositService "github.com/getmebooked/booking-api/internal/service/deposit"
	directoryService "github.com/getmebooked/booking-api/internal/service/directory"
	eventService "github.com/getmebooked/booking-api/internal/service/event"
	notificationService "github.com/getmebooked/booking-api/internal/service/notification"
	"github.com/getmebooked/booking-api/pkg/clock"
	"github.com/getmebooked/booking-api/pkg/logger"
	"github.com/getmebooked/booking-api/pkg/messaging"
	redisBroker "github.com/getmebooked/booking-api/pkg/messaging/redis"
	"github.com/getmebooked/booking-api/pkg/metrics"
	"github.com/getmebooked/booking-api/pkg/token"
	"github.com/getmebooked/booking-api/pkg/validator"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	l := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := validator.Register(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	// Repositories
	businessRepo := postgres.NewBusinessRepository(db)
	staffRepo := postgres.NewStaffRepository(db)
	serviceRepo := postgres.NewServiceRepository(db)
	clientRepo := postgres.NewClientRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.NewMetrics("getmebooked", "api")
	clk := clock.New(nil)

	// The broker is optional: without Redis, push notifications are
	// skipped and outbox events wait for the worker.
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &l.ZL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	emailSvc := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, l)

	gateway := payment.New(payment.Config{
		Sandbox:    cfg.Payment.Sandbox,
		Passphrase: cfg.Payment.Passphrase,
		ReturnURL:  cfg.Payment.ReturnURL,
		CancelURL:  cfg.Payment.CancelURL,
		NotifyURL:  cfg.Payment.NotifyURL,
	})

	tokens := token.NewService(cfg.TokenSecret)

	// Services
	availabilitySvc := availabilityService.NewService(businessRepo, staffRepo, serviceRepo, appointmentRepo, clk, m)
	depositSvc := depositService.NewService(clientRepo, m)
	notifier := notificationService.NewService(notificationRepo, emailSvc, broker, l)
	events := eventService.NewService(outboxRepo, l)
	directorySvc := directoryService.NewService(businessRepo, staffRepo, serviceRepo, clientRepo, notificationRepo, l)
	bookingSvc := bookingService.NewService(
		businessRepo, staffRepo, serviceRepo, clientRepo, appointmentRepo,
		availabilitySvc, depositSvc, notifier, events, gateway, tokens,
		clk, m, l,
		bookingService.Config{PublicBaseURL: cfg.PublicBaseURL},
	)

	// Handlers
	h := handler.NewHandler(db)
	bookingH := bookingHandler.NewHandler(bookingSvc, availabilitySvc, directorySvc)
	appointmentH := appointmentHandler.NewHandler(bookingSvc)
	businessH := businessHandler.NewHandler(directorySvc)
	paymentH := paymentHandler.NewHandler(bookingSvc, gateway, l)

	r := router.NewRouter(bookingH, appointmentH, businessH, paymentH, h, router.RouterConfig{
		RateLimit:     rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:     cfg.RateLimit.Burst,
		CORSConfig:    middleware.DefaultCORSConfig(),
		MetricsPrefix: "getmebooked_http",
	})
	r.Setup()

	// The in-process sweeper covers deploys that run without the
	// dedicated worker binary.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweeper := scheduler.NewSweeper(appointmentRepo, businessRepo, notifier, events, clk, m, l, cfg.Scheduler.SweepInterval)
	go sweeper.Start(sweepCtx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		l.Info("starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(err, "forced shutdown")
	}
	if broker != nil {
		if err := broker.Close(); err != nil {
			l.Error(err, "failed to close broker")
		}
	}
}
