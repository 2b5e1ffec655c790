// Command server runs the stresslab HTTP API: portfolio stress testing,
// Monte Carlo and historical simulation, optimization and scenario storage.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stresslab/internal/clients/scenarioai"
	"github.com/aristath/stresslab/internal/config"
	"github.com/aristath/stresslab/internal/database"
	"github.com/aristath/stresslab/internal/modules/calculations"
	"github.com/aristath/stresslab/internal/modules/correlation"
	"github.com/aristath/stresslab/internal/modules/hedging"
	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/aristath/stresslab/internal/modules/market"
	"github.com/aristath/stresslab/internal/modules/optimization"
	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/aristath/stresslab/internal/modules/simulation"
	"github.com/aristath/stresslab/internal/modules/snapshots"
	"github.com/aristath/stresslab/internal/scheduler"
	"github.com/aristath/stresslab/internal/server"
	"github.com/aristath/stresslab/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Int("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("starting stresslab")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fatal error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	historyDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		return err
	}
	defer historyDB.Close()

	scenarioDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("scenarios.db"),
		Profile: database.ProfileResults,
		Name:    "scenarios",
	})
	if err != nil {
		return err
	}
	defer scenarioDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		return err
	}
	defer cacheDB.Close()

	priceRepo := history.NewPriceRepository(historyDB.Conn(), log)
	if err := priceRepo.InitSchema(); err != nil {
		return err
	}
	scenarioRepo := scenarios.NewRepository(scenarioDB.Conn(), log)
	if err := scenarioRepo.InitSchema(); err != nil {
		return err
	}
	paramCache := calculations.NewParamCache(cacheDB.Conn(), calculations.DefaultTTL, log)
	if err := paramCache.InitSchema(); err != nil {
		return err
	}

	if added, err := scenarioRepo.LoadPredefined(); err != nil {
		log.Warn().Err(err).Msg("failed to load predefined scenarios")
	} else if added > 0 {
		log.Info().Int("added", added).Msg("loaded predefined scenarios")
	}

	corrEngine := correlation.NewEngine(log)
	simEngine := simulation.NewEngine(corrEngine, log)

	aiClient, err := scenarioai.New(scenarioai.Config{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIAPIKey,
		BaseURL:  cfg.AIBaseURL,
	}, log)
	if err != nil {
		return err
	}
	if !aiClient.Enabled() {
		log.Info().Msg("AI scenario generation disabled, no API key configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader, err := snapshots.New(ctx, cfg.SnapshotBucket, cfg.SnapshotPrefix, log)
	if err != nil {
		return err
	}

	sched := scheduler.New(log)
	if err := sched.AddJob("0 3 * * *", scheduler.JobFunc{
		JobName: "purge-parameter-cache",
		Fn: func() error {
			purged, err := paramCache.Purge()
			if err != nil {
				return err
			}
			log.Info().Int64("purged", purged).Msg("parameter cache purged")
			return nil
		},
	}); err != nil {
		return err
	}
	if uploader.Enabled() {
		if err := sched.AddJob("30 3 * * *", scheduler.JobFunc{
			JobName: "upload-scenario-snapshot",
			Fn: func() error {
				uploadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				key, err := uploader.UploadFile(uploadCtx, scenarioDB.Path())
				if err != nil {
					return err
				}
				log.Info().Str("key", key).Msg("scenario database archived")
				return nil
			},
		}); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		SimEngine:    simEngine,
		Optimizer:    optimization.NewOptimizer(log),
		Estimator:    market.NewEstimator(corrEngine),
		PriceRepo:    priceRepo,
		Ingestor:     history.NewIngestor(priceRepo, log),
		ParamCache:   paramCache,
		ScenarioRepo: scenarioRepo,
		ScenarioSvc:  scenarios.NewService(scenarioRepo, simEngine, log),
		HedgePlanner: hedging.NewPlanner(log),
		AIClient:     aiClient,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
