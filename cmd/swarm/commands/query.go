package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/swarm/internal/printer"
	"github.com/spf13/cobra"
)

var (
	querySyncCycles int
	queryTimeout    time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query <text>...",
	Short: "Ask a transient node a single query",
	Long: `Start a transient node over the configured store, run a few
synchronization cycles so it has entropy history, then answer one query.

Examples:
  swarm query chaos
  swarm query "are you conscious?" --sync 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&querySyncCycles, "sync", 1, "Synchronization cycles to run before answering")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 30*time.Second, "Give up after this long")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	s, err := openStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	for i := 0; i < querySyncCycles; i++ {
		if _, err := s.node.SyncOnce(ctx); err != nil {
			printer.Warning("sync cycle %d failed: %v\n", i+1, err)
		}
	}

	resp, err := s.node.ProcessQuery(ctx, strings.Join(args, " "))
	if err != nil {
		return printer.Error(
			"query cancelled",
			err.Error(),
			[]string{"Raise --timeout"},
		)
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp)
	return nil
}
