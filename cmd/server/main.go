package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shadedclan/killboard/internal/clients/pubg"
	"github.com/shadedclan/killboard/internal/config"
	"github.com/shadedclan/killboard/internal/database"
	"github.com/shadedclan/killboard/internal/locking"
	"github.com/shadedclan/killboard/internal/modules/leaderboard"
	"github.com/shadedclan/killboard/internal/modules/matches"
	"github.com/shadedclan/killboard/internal/modules/roster"
	"github.com/shadedclan/killboard/internal/modules/stats"
	kbsync "github.com/shadedclan/killboard/internal/modules/sync"
	"github.com/shadedclan/killboard/internal/scheduler"
	"github.com/shadedclan/killboard/internal/server"
	"github.com/shadedclan/killboard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("clan", cfg.ClanID).Str("shard", cfg.Shard).Msg("Starting killboard")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Repositories and services.
	rosterRepo := roster.NewRepository(db.Conn(), log)
	matchRepo := matches.NewRepository(db.Conn(), log)
	snapRepo := leaderboard.NewSnapshotRepository(db.Conn(), log)
	stateRepo := kbsync.NewStateRepository(db.Conn(), log)
	lockMgr := locking.NewManager(db.Conn(), log)
	board := leaderboard.NewService(db.Conn(), log)

	for name, init := range map[string]func() error{
		"roster":    rosterRepo.Init,
		"matches":   matchRepo.Init,
		"snapshots": snapRepo.Init,
		"state":     stateRepo.Init,
		"locks":     lockMgr.Init,
	} {
		if err := init(); err != nil {
			log.Fatal().Err(err).Str("schema", name).Msg("Failed to initialize schema")
		}
	}

	apiClient := pubg.NewClient(cfg.APIKey, cfg.Shard, pubg.Options{
		RPM:        cfg.APIRequestsPerMinute,
		MaxRetries: cfg.MaxRetries,
	}, log)

	syncJob := kbsync.NewJob(kbsync.Config{
		Client:    apiClient,
		Roster:    rosterRepo,
		Matches:   matchRepo,
		Board:     board,
		Snapshots: snapRepo,
		State:     stateRepo,
		Locks:     lockMgr,
		ClanID:    cfg.ClanID,
		Platform:  cfg.Shard,
		LockTTL:   cfg.LockTTL,
	}, log)

	// Background sync schedule.
	sched := scheduler.New(log)
	schedule := fmt.Sprintf("@every %s", cfg.SyncInterval)
	if err := sched.AddJob(schedule, scheduler.NewWeeklySyncJob(syncJob, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register sync job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Cfg:       cfg,
		DevMode:   cfg.DevMode,
		Board:     board,
		Snapshots: snapRepo,
		Roster:    rosterRepo,
		Matches:   matchRepo,
		State:     stateRepo,
		Locks:     lockMgr,
		SyncJob:   syncJob,
		Stats:     stats.NewService(apiClient, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Str("sync_interval", cfg.SyncInterval.String()).
		Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
