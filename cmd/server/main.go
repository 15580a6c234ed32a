// Package main is the entry point for the progression engine service.
//
// The service owns plan and stage lifecycles, badge evaluation, the cache
// coherence layer, and the periodic sweeps that promote time-gated entities.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/exhale-hub/exhale-backend/config"
	"github.com/exhale-hub/exhale-backend/internal/application/eventhandler"
	"github.com/exhale-hub/exhale-backend/internal/application/saga"
	"github.com/exhale-hub/exhale-backend/internal/domain/badge"
	"github.com/exhale-hub/exhale-backend/internal/infrastructure/messaging"
	"github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/postgres"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
	"github.com/exhale-hub/exhale-backend/internal/infrastructure/scheduler"
	"github.com/exhale-hub/exhale-backend/internal/infrastructure/scheduler/jobs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting progression engine",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Infrastructure ────────────────────────────────────────────────────

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(ctx, conn); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	cache, err := rediscache.NewCache(rediscache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer cache.Close()

	coherence := rediscache.NewCoherence(cache, logger)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		Logger:         logger,
		EnableMetrics:  true,
	})
	defer bus.Close()

	dispatcher := messaging.NewLogDispatcher(logger)

	// ── Repositories ──────────────────────────────────────────────────────

	planRepo := postgres.NewPlanRepository(conn, logger)
	stageRepo := postgres.NewStageRepository(conn, logger)
	badgeRepo := postgres.NewBadgeRepository(conn, logger)
	userBadgeRepo := postgres.NewUserBadgeRepository(conn, logger)

	// ── Application ───────────────────────────────────────────────────────

	registry, err := badge.NewRegistry(logger, badge.DefaultEvaluators()...)
	if err != nil {
		return fmt.Errorf("build evaluator registry: %w", err)
	}

	badgeFlow := saga.NewBadgeFlow(
		badgeRepo, userBadgeRepo, registry, coherence, dispatcher, bus, logger)

	triggers := eventhandler.NewBadgeTriggers(badgeFlow, logger)
	if err := triggers.RegisterAll(bus); err != nil {
		return fmt.Errorf("register badge triggers: %w", err)
	}

	// ── Scheduler ─────────────────────────────────────────────────────────

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:        logger,
		EnableMetrics: true,
	})

	if cfg.Scheduler.Enabled {
		planSweep := jobs.NewActivateDuePlansJob(planRepo, coherence, bus, dispatcher, logger)
		stageSweep := jobs.NewActivateDueStagesJob(stageRepo, coherence, bus, logger)

		if err := sched.Register(planSweep, scheduler.NewIntervalSchedule(cfg.Scheduler.ActivatePlansInterval)); err != nil {
			return fmt.Errorf("register plan sweep: %w", err)
		}
		if err := sched.Register(stageSweep, scheduler.NewIntervalSchedule(cfg.Scheduler.ActivateStagesInterval)); err != nil {
			return fmt.Errorf("register stage sweep: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	} else {
		logger.Warn("scheduler disabled, time-gated transitions will not run")
	}

	logger.Info("progression engine started")

	// ── Shutdown ──────────────────────────────────────────────────────────

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			logger.Error("scheduler stop failed", "error", err)
		}
	}

	logger.Info("progression engine stopped")
	return nil
}

// newLogger builds the process logger from observability config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
