package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/statussync/internal/config"
	"github.com/syntrixbase/statussync/internal/core/identity"
	"github.com/syntrixbase/statussync/internal/core/realtime"
	"github.com/syntrixbase/statussync/internal/core/realtime/memory"
	"github.com/syntrixbase/statussync/internal/core/realtime/nats"
	"github.com/syntrixbase/statussync/internal/core/realtime/pusher"
	"github.com/syntrixbase/statussync/internal/fetch"
	"github.com/syntrixbase/statussync/internal/logging"
)

var (
	watchTeam     string
	watchNoPush   bool
	watchInterval time.Duration
	watchJSON     bool
)

// demoInterval paces the events published by the memory provider.
var demoInterval = 3 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print status changes for the team until interrupted",
	Long: `watch activates a realtime session for the configured team and prints
connectivity changes, pushed events and polled snapshots.

Send SIGHUP to force a reconnect of the push channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			return err
		}
		if err := applyWatchFlags(cmd, cfg); err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Console.Level = "debug"
		}

		if err := logging.Initialize(cfg.Logging); err != nil {
			return err
		}
		defer logging.Shutdown()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		p := newPrinter(cmd.OutOrStdout(), watchJSON, cfg.Realtime.PollingInterval)
		return runWatch(ctx, cfg, p, hup)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchTeam, "team", "", "team id to watch (overrides identity.team_id)")
	watchCmd.Flags().BoolVar(&watchNoPush, "no-push", false, "skip the push channel and only poll")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "polling interval, 0 disables polling (overrides realtime.polling_interval)")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "print one JSON object per line")
}

func applyWatchFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("team") {
		cfg.Identity.TeamID = watchTeam
	}
	if flags.Changed("no-push") && watchNoPush {
		cfg.Realtime.EnablePushChannel = false
	}
	if flags.Changed("interval") {
		if watchInterval < 0 {
			return fmt.Errorf("--interval must not be negative")
		}
		cfg.Realtime.PollingInterval = watchInterval
	}
	return nil
}

type closingProvider interface {
	realtime.Provider
	Close() error
}

func newProvider(cfg config.RealtimeConfig) (closingProvider, error) {
	switch cfg.Provider {
	case config.ProviderPusher:
		return pusher.NewProvider(cfg.Pusher), nil
	case config.ProviderNATS:
		return nats.NewProvider(cfg.NATS), nil
	case config.ProviderMemory:
		return memory.NewHub(), nil
	}
	return nil, fmt.Errorf("unknown realtime provider %q", cfg.Provider)
}

// runWatch blocks until ctx is done. Each value on reconnect restarts the
// push channel.
func runWatch(ctx context.Context, cfg *config.Config, p *printer, reconnect <-chan os.Signal) error {
	provider, err := newProvider(cfg.Realtime)
	if err != nil {
		return err
	}
	defer provider.Close()

	id, err := identity.New(cfg.Identity.Config)
	if err != nil {
		return err
	}

	client, err := fetch.NewClient(cfg.API.Config)
	if err != nil {
		return err
	}
	defer client.Close()

	refetcher := fetch.NewRefetcher(client, cfg.API.Kinds(), p.snapshot)

	opts := realtime.DefaultOptions()
	opts.EnablePushChannel = cfg.Realtime.EnablePushChannel
	opts.PollingInterval = cfg.Realtime.PollingInterval
	opts.OnApplicationStatusChange = p.event(realtime.ApplicationStatusChanged)
	opts.OnDatabaseStatusChange = p.event(realtime.DatabaseStatusChanged)
	opts.OnServiceStatusChange = p.event(realtime.ServiceStatusChanged)
	opts.OnServerStatusChange = p.event(realtime.ServerReachabilityChanged)
	opts.OnDeploymentCreated = p.event(realtime.DeploymentCreated)
	opts.OnDeploymentFinished = p.event(realtime.DeploymentFinished)
	opts.OnConnectionChange = p.connection
	opts.OnPollTick = refetcher.Tick

	session := realtime.Activate(ctx, provider, id, opts)
	defer session.Deactivate()

	logger := slog.Default().With("session_id", session.ID())
	logger.Info("Watching", "provider", cfg.Realtime.Provider, "push", opts.EnablePushChannel, "polling_interval", opts.PollingInterval)

	if hub, ok := provider.(*memory.Hub); ok {
		if team, ok := id.TeamID(); ok {
			go publishDemo(ctx, hub, realtime.TeamScope(team), demoInterval)
		}
	}

	for {
		select {
		case <-ctx.Done():
			st := session.Status()
			logger.Info("Stopping", "state", st.State)
			return nil
		case <-reconnect:
			logger.Debug("Reconnect requested")
			session.Reconnect()
		}
	}
}
