package commands

import (
	"fmt"

	"github.com/dyluth/swarm/internal/printer"
	"github.com/dyluth/swarm/internal/scaffold"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	forceInit     bool
	initPeerID    string
	initStoreDir  string
	initRedisHost string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter swarm.yml in the current directory",
	Long: `Initialize a swarm node in the current directory.

Creates:
  • swarm.yml - node configuration
  • data/     - local state store directory (see --store)

A peer id is generated when --peer-id is omitted. Passing --redis selects
the Redis gossip transport and mirror.

Use --force to overwrite an existing swarm.yml.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing swarm.yml")
	initCmd.Flags().StringVar(&initPeerID, "peer-id", "", "Peer id (default: node_<random>)")
	initCmd.Flags().StringVar(&initStoreDir, "store", "data", "Local store directory")
	initCmd.Flags().StringVar(&initRedisHost, "redis", "", "Remote cache host (empty disables the mirror)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceInit {
		if err := scaffold.CheckExisting("."); err != nil {
			return printer.Error("node already initialized", err.Error(), nil)
		}
	}

	opts := scaffold.Options{
		PeerID:    initPeerID,
		StoreDir:  initStoreDir,
		RedisHost: initRedisHost,
	}
	if opts.PeerID == "" {
		opts.PeerID = "node_" + uuid.NewString()[:8]
	}

	if err := scaffold.Initialize(".", opts, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess(opts)
	return nil
}
