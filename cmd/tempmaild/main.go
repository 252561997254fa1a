// Command tempmaild serves the disposable-mailbox REST API.
//
// It binds owners (identified by the X-Owner-ID header) to temporary
// addresses on a Mail.tm-compatible provider, keeps the bindings in an
// in-memory directory with TTL expiry, and optionally archives viewed
// messages in PostgreSQL and publishes session events over Redis.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/pro004/tempmail"
	"github.com/pro004/tempmail/archive/postgres"
	"github.com/pro004/tempmail/config"
	"github.com/pro004/tempmail/httpapi"
	"github.com/pro004/tempmail/mailtm"
	"github.com/pro004/tempmail/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tempmaild:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	mail := mailtm.New(
		mailtm.WithBaseURL(cfg.Mail.BaseURL),
		mailtm.WithTimeout(cfg.Mail.Timeout),
		mailtm.WithLogger(logger),
	)

	opts := []tempmail.Option{
		tempmail.WithMailClient(mail),
		tempmail.WithLogger(logger),
		tempmail.WithTTL(cfg.Sessions.TTL),
		tempmail.WithSweepInterval(cfg.Sessions.SweepInterval),
		tempmail.WithMaxConcurrentRemote(cfg.Sessions.MaxConcurrentRemote),
		tempmail.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}

	if cfg.Database.Enabled {
		db, err := sqlx.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		opts = append(opts, tempmail.WithArchive(
			postgres.New(db, postgres.WithLogger(logger)),
		))
		logger.Info("message archive enabled", "host", cfg.Database.Host)
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
		defer rdb.Close()
		opts = append(opts, tempmail.WithRedisClient(rdb))
		logger.Info("redis event transport enabled", "addr", cfg.Redis.Addr())
	}

	svc, err := tempmail.NewService(opts...)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	ctx := context.Background()
	if err := svc.Connect(ctx); err != nil {
		return fmt.Errorf("connect service: %w", err)
	}
	defer svc.Close(ctx)

	app := fiber.New(fiber.Config{
		AppName:               "tempmail",
		DisableStartupMessage: true,
	})
	httpapi.SetupRoutes(app, httpapi.NewHandler(svc, mail, logger), ratelimit.New(nil))

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
		logger.Info("http api listening", "addr", addr)
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
