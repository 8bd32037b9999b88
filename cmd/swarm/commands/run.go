package commands

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/swarm/internal/node"
	"github.com/dyluth/swarm/internal/printer"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a swarm node until interrupted",
	Long: `Run a swarm node in the foreground.

Starts the synchronization loop and the health server (GET /healthz and
GET /status on health_addr). SIGINT or SIGTERM stops the node after the
current cycle completes.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	local, cache := s.pingers()
	health := node.NewHealthServer(s.node, local, cache, cfg.HealthAddr)
	if err := health.Start(); err != nil {
		return printer.ErrorWithContext(
			"failed to start health server",
			err.Error(),
			map[string]string{"Address": cfg.HealthAddr},
			[]string{"Choose a free port with health_addr or SWARM_HEALTH_ADDR"},
		)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		health.Shutdown(shutdownCtx)
	}()

	if err := s.node.Start(ctx); err != nil {
		return err
	}

	printer.Success("Node '%s' running (store: %s, health: %s)\n", cfg.PeerID, s.store.Local().Path(), cfg.HealthAddr)
	if s.cache != nil {
		printer.Info("  Mirroring to %s via %s gossip\n", cfg.RemoteCacheAddr(), cfg.GossipTransport)
	}

	<-ctx.Done()
	log.Printf("[Node] Shutdown signal received, stopping %s", cfg.PeerID)
	s.node.Stop()

	st := s.node.Status()
	printer.Success("Node stopped after %s: %d gossip rounds, %d persisted\n",
		st.Uptime, st.Gossip.Attempts, st.Gossip.Succeeded)
	return nil
}
