package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "swarm - self-synchronizing gossip node",
	Long: `swarm runs a node of a self-synchronizing swarm.

Each node periodically seals a fresh state, gossips it to a sample of peers
and persists it once enough peers acknowledge. Client queries are answered by
a recursion-bounded resolver that adapts to the node's entropy.

Configuration is read from swarm.yml (see --config); every field can be
overridden with a SWARM_* environment variable.`,
	Version: version,
	// Show help instead of silently succeeding without a subcommand
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	// The printer package prints formatted errors itself
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "swarm.yml", "Path to swarm.yml (SWARM_* env alone is used when the file is absent)")
}
