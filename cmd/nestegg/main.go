package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"nestegg/internal/amqp"
	"nestegg/internal/clock"
	"nestegg/internal/config"
	"nestegg/internal/core"
	"nestegg/internal/custody"
	apphttp "nestegg/internal/http"
	"nestegg/internal/ledger"
	"nestegg/internal/log"
	"nestegg/internal/services"
	"nestegg/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentApp})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	ticks := clock.NewWallSource(time.Unix(cfg.GenesisUnix, 0).UTC(), cfg.TickInterval)
	schedule := clock.NewSchedule(cfg.TicksPerMonth)
	vault := custody.NewVault()

	engine, err := ledger.New(ledger.Params{
		MinBudgetAmount:  cfg.MinBudgetAmount,
		MinGoalAmount:    cfg.MinGoalAmount,
		AchievementBonus: cfg.AchievementBonus,
		Admin:            core.Principal(cfg.AdminPrincipal),
	}, ticks, schedule, vault)
	if err != nil {
		logger.Error("Failed to construct ledger", log.FieldError, err)
		os.Exit(1)
	}

	snap, err := repo.LoadSnapshot(context.Background())
	if err != nil {
		logger.Error("Failed to load ledger state", log.FieldError, err)
		os.Exit(1)
	}
	if err := engine.Restore(snap); err != nil {
		logger.Error("Stored ledger state failed verification", log.FieldError, err)
		os.Exit(1)
	}
	if err := vault.Restore(snap.TotalHeld()); err != nil {
		logger.Error("Failed to restore custody total", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Ledger state restored",
		"balances", len(snap.Balances),
		"budgets", len(snap.Budgets),
		"journal_entries", len(snap.Journal),
		"goals", len(snap.Goals),
		log.FieldTick, ticks.Now())

	// The broker is optional: without it expenses still commit locally and the
	// catch-up worker picks them up from the pending markers.
	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewLedgerService(engine, repo, publisher)
	defer svc.Close()

	srv := apphttp.NewServer(":"+cfg.Port, svc)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting nestegg server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
