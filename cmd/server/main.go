package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"

	"github.com/iliyamo/ticket-sales/internal/booking"
	"github.com/iliyamo/ticket-sales/internal/config"
	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/handler"
	"github.com/iliyamo/ticket-sales/internal/middleware"
	"github.com/iliyamo/ticket-sales/internal/queue"
	"github.com/iliyamo/ticket-sales/internal/repository"
	"github.com/iliyamo/ticket-sales/internal/router"
	"github.com/iliyamo/ticket-sales/internal/service"
	"github.com/iliyamo/ticket-sales/internal/sms"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	migrate := pflag.Bool("migrate", true, "apply embedded database migrations at startup")
	seedAdmin := pflag.Bool("seed-admin", true, "create the ADMIN_EMAIL account when missing")
	pflag.Parse()

	if err := run(*envFile, *migrate, *seedAdmin); err != nil {
		fmt.Fprintln(os.Stderr, "ticket-sales:", err)
		os.Exit(1)
	}
}

func run(envFile string, migrate, seedAdmin bool) error {
	// A missing .env is normal outside development.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if migrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	days := repository.NewEventDayRepo(db)
	sessions := repository.NewSessionRepo(db)
	tickets := repository.NewTicketRepo(db)

	if seedAdmin && cfg.AdminEmail != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if created {
			logger.Info("admin account created", "email", cfg.AdminEmail)
		}
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	dispatcher, err := newDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	var notifier booking.Notifier = dispatcher
	var publisher *service.Publisher
	if cfg.AMQPEnabled {
		publisher = service.NewPublisher(cfg.RabbitMQURL, logger)
		notifier = publisher
	}

	svc := booking.NewService(sessions, tickets,
		booking.WithLogger(logger),
		booking.WithNotifier(notifier),
		booking.WithPendingTTL(cfg.PendingTTL),
		booking.WithMaxAttempts(cfg.BookingMaxAttempts),
		booking.WithIsolation(sql.LevelReadCommitted),
	)
	reaper := booking.NewReaper(svc, tokens, cfg.ReapInterval, logger)
	go reaper.Run(ctx)

	consumerDone := make(chan struct{})
	if cfg.AMQPEnabled {
		go func() {
			defer close(consumerDone)
			if err := queue.StartNotificationConsumer(ctx, cfg.RabbitMQURL, dispatcher, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("notification consumer stopped", "error", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	rl := config.LoadRateLimitConfig()
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e, db)
	router.RegisterPublic(e,
		handler.NewBrowseHandler(days, sessions, logger),
		handler.NewAvailabilityHandler(svc.Calculator(), logger),
		cache,
	)
	router.RegisterBookings(e, handler.NewBookingHandler(svc, logger),
		middleware.NewTokenBucket(rl.WithPrefix(rl.Prefix+":booking"), rdb, logger))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, logger), cfg.JWTSecret,
		middleware.NewTokenBucket(rl.WithPrefix(rl.Prefix+":auth"), rdb, logger))
	router.RegisterAdmin(e, handler.NewAdminHandler(days, sessions, tickets, svc, reaper, logger), cfg.JWTSecret)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr(), "env", cfg.Env, "amqp", cfg.AMQPEnabled, "sms_provider", cfg.SMS.Provider)
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// In-flight notifications finish before their transport is closed.
	svc.Wait()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn("close publisher", "error", err)
		}
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("notification consumer did not stop in time")
	}
	return nil
}

// newDispatcher builds the SMS pipeline: templates plus the configured
// provider.
func newDispatcher(cfg config.Config, logger *slog.Logger) (*queue.Dispatcher, error) {
	var templates *sms.Templates
	var err error
	if cfg.SMS.TemplatesFile != "" {
		templates, err = sms.LoadTemplates(cfg.SMS.TemplatesFile)
	} else {
		templates, err = sms.DefaultTemplates()
	}
	if err != nil {
		return nil, fmt.Errorf("sms templates: %w", err)
	}
	var sender sms.Sender
	switch cfg.SMS.Provider {
	case "http":
		sender = sms.NewHTTPSender(cfg.SMS.APIURL, cfg.SMS.APIKey, cfg.SMS.From, &http.Client{Timeout: 10 * time.Second})
	default:
		sender = sms.NewLogSender(cfg.SMS.LogPath)
	}
	return queue.NewDispatcher(sender, templates, logger), nil
}
