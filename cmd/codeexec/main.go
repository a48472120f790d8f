// Command codeexec is the single binary for the execution service: it
// exposes three subcommands (api, worker, migrate) that share the same
// configuration loading and process wiring.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeexec/engine/internal/admission"
	"github.com/codeexec/engine/internal/catalogue"
	"github.com/codeexec/engine/internal/config"
	"github.com/codeexec/engine/internal/ephemeral"
	"github.com/codeexec/engine/internal/httpapi"
	"github.com/codeexec/engine/internal/logging"
	"github.com/codeexec/engine/internal/queue"
	"github.com/codeexec/engine/internal/repair"
	"github.com/codeexec/engine/internal/runner"
	"github.com/codeexec/engine/internal/store"
	"github.com/codeexec/engine/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

const (
	jobStream        = "codeexec:jobs"
	jobConsumerGroup = "codeexec:workers"
	recoveryInterval = 5 * time.Second
	recoveryMaxAge   = 30 * time.Second
	repairInterval   = 30 * time.Second
	maxTimeLimit     = 60 * time.Second
)

func main() {
	cmd := &cli.Command{
		Name:  "codeexec",
		Usage: "multi-tenant code execution service",
		Commands: []*cli.Command{
			{Name: "api", Usage: "run the HTTP API server", Action: runAPI},
			{Name: "worker", Usage: "run the execution worker pool", Action: runWorker},
			{Name: "migrate", Usage: "apply the database schema and seed languages", Action: runMigrate},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("codeexec: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.LogLevel, true)
	return cfg, nil
}

func runAPI(ctx context.Context, _ *cli.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer st.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	events := ephemeral.New(redisClient)
	q := queue.New(redisClient, jobStream, jobConsumerGroup)
	admitter := admission.New(st, q, events)

	srv := httpapi.New(st, admitter, events, httpapi.Config{
		DefaultTimeLimitMs: cfg.DefaultTimeLimitMs,
		DefaultMemoryMB:    cfg.DefaultMemoryLimitMB,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: srv,
	}

	sweeper := repair.New(st, maxTimeLimit)
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sweeper.Run(sweepCtx, repairInterval)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api: listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-sigCtx.Done():
		slog.Info("api: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("api: shutdown error", "error", err)
		}
	}
	return nil
}

func runWorker(ctx context.Context, _ *cli.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer st.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	events := ephemeral.New(redisClient)
	q := queue.New(redisClient, jobStream, jobConsumerGroup)

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	cat := catalogue.Default()
	run := runner.New(cat, os.TempDir())
	pool := worker.New(workerID, st, q, run, events, cfg.MaxConcurrentExecutions)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q.StartRecovery(sigCtx, recoveryInterval, recoveryMaxAge)

	slog.Info("worker: starting", "id", workerID, "concurrency", cfg.MaxConcurrentExecutions)
	pool.Run(sigCtx)
	slog.Info("worker: stopped")
	return nil
}

func runMigrate(ctx context.Context, _ *cli.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	cat := catalogue.Default()
	if err := st.SeedLanguages(ctx, cat.SeedLanguages()); err != nil {
		return fmt.Errorf("seed languages: %w", err)
	}

	slog.Info("migrate: schema applied and languages seeded")
	return nil
}
