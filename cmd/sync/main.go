// Command sync runs one sync cycle and exits. Intended for cron or manual
// invocation alongside (or instead of) the server's internal scheduler.
//
// Exit codes: 0 on success or when another run already holds the lock,
// 1 on any fatal error.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shadedclan/killboard/internal/clients/pubg"
	"github.com/shadedclan/killboard/internal/config"
	"github.com/shadedclan/killboard/internal/database"
	"github.com/shadedclan/killboard/internal/locking"
	"github.com/shadedclan/killboard/internal/modules/leaderboard"
	"github.com/shadedclan/killboard/internal/modules/matches"
	"github.com/shadedclan/killboard/internal/modules/roster"
	kbsync "github.com/shadedclan/killboard/internal/modules/sync"
	"github.com/shadedclan/killboard/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	if cfg.APIKey == "" {
		log.Error().Msg("PUBG_API_KEY is required")
		return 1
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		return 1
	}
	defer db.Close()

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
			log.Error().Err(err).Str("schema", name).Msg("Failed to initialize schema")
			return 1
		}
	}

	apiClient := pubg.NewClient(cfg.APIKey, cfg.Shard, pubg.Options{
		RPM:        cfg.APIRequestsPerMinute,
		MaxRetries: cfg.MaxRetries,
	}, log)

	job := kbsync.NewJob(kbsync.Config{
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := job.Run(ctx); err != nil {
		if errors.Is(err, locking.ErrLockHeld) {
			log.Info().Msg("Sync already running elsewhere, nothing to do")
			return 0
		}
		log.Error().Err(err).Msg("Sync failed")
		return 1
	}

	return 0
}
