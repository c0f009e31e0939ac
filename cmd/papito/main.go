package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/valueadders/papito/internal/adapters/discord"
	"github.com/valueadders/papito/internal/adapters/relay"
	"github.com/valueadders/papito/internal/config"
	"github.com/valueadders/papito/internal/coordinator"
	"github.com/valueadders/papito/internal/gate"
	"github.com/valueadders/papito/internal/learning"
	"github.com/valueadders/papito/internal/logging"
	"github.com/valueadders/papito/internal/platform"
	"github.com/valueadders/papito/internal/statusapi"
	"github.com/valueadders/papito/internal/value"
)

// analyzeInterval is how often accumulated feedback is re-analyzed.
const analyzeInterval = 6 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "papito:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: cfg.LogConsole,
	})
	log.Info().Msg("starting papito")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := learning.NewStore(ctx, filepath.Join(cfg.DataDir, "learning.json"))
	if err != nil {
		return fmt.Errorf("open learning store: %w", err)
	}

	scoring := value.DefaultScoringConfig()
	calc := value.NewCalculator(scoring, logging.For(log, "value"))
	g := gate.New(calc, logging.For(log, "gate"))
	learner := learning.NewLearner(scoring, store, logging.For(log, "learn"))
	g.SetLearner(learner)
	defer func() {
		if err := learner.Close(); err != nil {
			log.Warn().Err(err).Msg("learning state flush failed")
		}
	}()

	coord := coordinator.New(g, logging.For(log, "coord"))
	coord.SetLearner(learner)
	if cfg.DiscordToken != "" {
		coord.RegisterAdapter(discord.New(cfg.DiscordToken, logging.For(log, "discord")), coordinator.PriorityHigh)
	}
	if cfg.NATSURL != "" {
		coord.RegisterAdapter(relay.New(relay.Options{
			URL:   cfg.NATSURL,
			Token: cfg.NATSToken,
			Poll:  cfg.RelayPoll,
		}, logging.For(log, "relay")), coordinator.PriorityMedium)
	}

	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	applyPolicy(policy, scoring, coord)
	go func() {
		err := config.WatchPolicy(ctx, cfg.PolicyPath, logging.For(log, "policy"), func(p *config.Policy) {
			applyPolicy(p, scoring, coord)
		})
		if err != nil {
			log.Warn().Err(err).Msg("policy watcher stopped")
		}
	}()

	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	defer coord.Stop()

	api := statusapi.New(cfg.HTTPAddr, calc, g, learner, coord, logging.For(log, "statusapi"))
	errCh := make(chan error, 1)
	go func() {
		if err := api.Start(); err != nil {
			errCh <- err
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("status api shutdown failed")
		}
	}()

	go analyzeLoop(ctx, learner)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
	case err := <-errCh:
		log.Error().Err(err).Msg("status api failed")
		cancel()
	case <-ctx.Done():
	}

	log.Info().Msg("papito exited cleanly")
	return nil
}

// analyzeLoop periodically distills feedback into insights and applies
// the confident ones.
func analyzeLoop(ctx context.Context, learner *learning.Learner) {
	ticker := time.NewTicker(analyzeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, ins := range learner.Analyze(now) {
				if ins.Confidence >= 0.7 {
					learner.ApplyInsight(ins)
				}
			}
		}
	}
}

// applyPolicy pushes file-driven overrides into the live components.
func applyPolicy(p *config.Policy, scoring *value.ScoringConfig, coord *coordinator.Coordinator) {
	for at, threshold := range p.Thresholds {
		scoring.SetThreshold(value.ActionType(at), threshold)
	}
	for dest, priority := range p.Destinations {
		coord.SetPriority(platform.Destination(dest), coordinator.Priority(priority))
	}
	coord.SetEngagementCap(p.MaxEngagementsPerHour)
}
