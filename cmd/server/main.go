package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkrell/selene/internal"
	"github.com/mkrell/selene/internal/email"
	"github.com/mkrell/selene/internal/events"
	"github.com/mkrell/selene/internal/handler"
	"github.com/mkrell/selene/internal/middleware"
	"github.com/mkrell/selene/internal/notify"
	"github.com/mkrell/selene/internal/payment"
	"github.com/mkrell/selene/internal/postgres"
	"github.com/mkrell/selene/internal/service"
	"github.com/mkrell/selene/internal/telemetry"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Msg("starting selene")

	// database/sql connection just for migrations; the application itself
	// runs on the pgx pool.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := internal.RunMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	sqlDB.Close()
	logger.Info().Msg("database migrations applied")

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connection pool failed: %w", err)
	}
	defer pool.Close()

	catalog := postgres.NewCatalogStore(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	var gateway payment.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe.SecretKey)
		logger.Info().Msg("stripe gateway initialized")
	} else {
		// Local development without gateway credentials.
		gateway = payment.NewMockGateway()
		logger.Warn().Msg("no STRIPE_SECRET_KEY set, using mock payment gateway")
	}

	var publisher events.Publisher = events.NopPublisher{}
	var worker *notify.Worker
	if cfg.NATS.Enabled {
		natsPub, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			// Notifications are best-effort; the shop must not stay down
			// because the event bus is.
			logger.Error().Err(err).Msg("NATS connection failed, notifications disabled")
		} else {
			defer natsPub.Close()
			publisher = natsPub

			sender := email.NewSMTPSender(email.SMTPConfig{
				Host:     cfg.Email.Host,
				Port:     cfg.Email.Port,
				Username: cfg.Email.Username,
				Password: cfg.Email.Password,
				From:     cfg.Email.From,
				FromName: cfg.Email.FromName,
			}, logger)

			worker = notify.NewWorker(natsPub.Conn(), sender, cfg.Currency, logger)
			if err := worker.Start(); err != nil {
				return fmt.Errorf("notify worker failed to start: %w", err)
			}
			defer worker.Stop()
			logger.Info().Msg("notification worker started")
		}
	}

	metrics := telemetry.NewMetrics("selene")
	httpMetrics := middleware.NewHTTPMetrics("selene")

	orderService := service.NewOrderService(catalog, orderRepo, gateway, publisher, metrics, logger, service.OrderConfig{
		BaseURL:  cfg.BaseURL,
		Currency: cfg.Currency,
	})
	productService := service.NewProductService(catalog, logger)

	e := handler.NewRouter(handler.RouterConfig{
		Checkout:       handler.NewCheckoutHandler(orderService),
		Webhook:        handler.NewWebhookHandler(orderService, cfg.Stripe.WebhookSecret, metrics, logger),
		Admin:          handler.NewAdminHandler(orderService, productService),
		AdminJWTSecret: cfg.Admin.JWTSecret,
		HTTPMetrics:    httpMetrics,
		Logger:         logger,
		Healthcheck: func(c echo.Context) error {
			pingCtx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(pingCtx); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unreachable")
			}
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		},
	})

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info().Str("addr", addr).Msg("http server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Error().Err(err).Msg("fatal")
		os.Exit(1)
	}
}
