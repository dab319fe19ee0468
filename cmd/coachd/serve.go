package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/growcoach/coachd/internal/ai"
	"github.com/growcoach/coachd/internal/coach"
	"github.com/growcoach/coachd/internal/config"
	"github.com/growcoach/coachd/internal/logging"
	"github.com/growcoach/coachd/internal/queue"
	"github.com/growcoach/coachd/internal/server"
	"github.com/growcoach/coachd/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the coaching server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		// Tokens won't survive a restart without a configured secret.
		cfg.JWTSecret = randomSecret()
		logging.Warnf("[Serve] No jwt_secret configured, generated an ephemeral one")
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	gw, err := ai.New(cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.Model, cfg.Provider.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to create model gateway: %w", err)
	}
	logging.Infof("[Serve] Using provider %s", gw.ID())

	q := queue.NewKeyed(cfg.Session.SaveQueueWorkers)
	orchestrator := coach.New(st, gw, q, cfg.Session)

	var cr *cron.Cron
	if cfg.Janitor.Enabled {
		cr = cron.New()
		_, err := cr.AddFunc(cfg.Janitor.Schedule, func() {
			cutoff := time.Now().AddDate(0, 0, -cfg.Janitor.MaxIdleDays)
			n, err := st.DeactivateIdle(context.Background(), cutoff)
			if err != nil {
				logging.Errorf("[Janitor] Sweep failed: %v", err)
				return
			}
			if n > 0 {
				logging.Infof("[Janitor] Deactivated %d idle sessions", n)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid janitor schedule %q: %w", cfg.Janitor.Schedule, err)
		}
		cr.Start()
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := server.New(cfg, st, orchestrator).Run(ctx)

	if cr != nil {
		cr.Stop()
	}
	// Let in-flight background saves land before the database closes.
	q.Close()
	return runErr
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
