package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wellhavenhq/telehealth-platform/internal/api/router"
	"github.com/wellhavenhq/telehealth-platform/internal/availability"
	"github.com/wellhavenhq/telehealth-platform/internal/bookings"
	appconfig "github.com/wellhavenhq/telehealth-platform/internal/config"
	"github.com/wellhavenhq/telehealth-platform/internal/credits"
	"github.com/wellhavenhq/telehealth-platform/internal/events"
	"github.com/wellhavenhq/telehealth-platform/internal/housekeeping"
	"github.com/wellhavenhq/telehealth-platform/internal/notify"
	"github.com/wellhavenhq/telehealth-platform/internal/observability/metrics"
	"github.com/wellhavenhq/telehealth-platform/internal/patients"
	"github.com/wellhavenhq/telehealth-platform/internal/payments"
	"github.com/wellhavenhq/telehealth-platform/internal/therapists"
	"github.com/wellhavenhq/telehealth-platform/internal/workflow"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telehealth-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	// Repositories and directories
	therapistDir := therapists.NewPostgresDirectory(pool)
	patientDir := patients.NewPostgresDirectory(pool)
	availRepo := availability.NewPostgresRepository(pool)
	bookingRepo := bookings.NewPostgresRepository(pool)
	creditRepo := credits.NewPostgresRepository(pool)
	outbox := events.NewOutboxStore(pool)
	processed := events.NewProcessedStore(pool)

	bookingMetrics := metrics.NewBookingMetrics(nil)

	// Optional Redis slot cache
	var slotCache *availability.SlotCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable, slot cache disabled", "error", err)
		} else {
			slotCache = availability.NewSlotCache(redisClient, cfg.SlotCacheTTL, logger)
		}
	}

	// Core services
	resolver := availability.NewResolver(availRepo, bookingRepo, therapistDir, logger)
	guard := bookings.NewGuard(bookingRepo, logger)
	ledger := credits.NewLedger(creditRepo, logger)

	workflowOpts := []workflow.Option{
		workflow.WithEventSink(outbox),
		workflow.WithMetrics(bookingMetrics),
	}
	if slotCache != nil {
		workflowOpts = append(workflowOpts, workflow.WithSlotCache(slotCache))
	}
	bookingWorkflow := workflow.New(resolver, ledger, guard, logger, workflowOpts...)

	// Payments
	checkout := payments.NewStripeCheckoutService(
		cfg.StripeSecretKey,
		cfg.CheckoutSuccessURL,
		cfg.CheckoutCancelURL,
		logger,
	).WithDryRun(cfg.StripeDryRun)
	stripeWebhook := payments.NewStripeWebhookHandler(
		cfg.StripeWebhookSecret,
		ledger,
		processed,
		outbox,
		bookingMetrics,
		logger,
	)

	// Notifications ride the outbox. Without a SendGrid key the stub
	// sender keeps the pipeline observable in development.
	var sender notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	}
	dispatcher := notify.NewDispatcher(sender, patientDir, therapistDir, logger)
	deliverer := events.NewDeliverer(outbox, dispatcher, logger).WithInterval(cfg.OutboxPollEvery)
	go deliverer.Start(ctx)

	// Expire abandoned payment holds
	sweeper := housekeeping.NewWorker(
		bookingRepo,
		guard,
		ledger,
		ledger,
		cfg.BookingHoldTimeout,
		logger,
		housekeeping.WithMetrics(bookingMetrics),
	)
	go sweeper.Run(ctx, cfg.HousekeepingEvery)

	routerCfg := &router.Config{
		Logger:              logger,
		AvailabilityHandler: availability.NewHandler(resolver, slotCache, logger),
		BookingHandler:      workflow.NewHandler(bookingWorkflow, logger),
		AdminBookings:       bookings.NewHandler(guard, logger),
		CreditsHandler:      credits.NewHandler(ledger, logger),
		CheckoutHandler:     payments.NewHandler(ledger, checkout, logger),
		StripeWebhook:       stripeWebhook,
		MetricsHandler:      promhttp.Handler(),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  splitOrigins(cfg.CORSAllowedOrigins),
		RateLimitPerSec:     cfg.RateLimitPerSecond,
		RateLimitBurst:      cfg.RateLimitBurst,
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
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
