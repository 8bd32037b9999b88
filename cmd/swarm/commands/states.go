package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/swarm/internal/hoard"
	"github.com/dyluth/swarm/internal/printer"
	"github.com/dyluth/swarm/internal/store"
	"github.com/spf13/cobra"
)

var (
	statesOutputFormat string
	statesSince        string
	statesUntil        string
	statesPrefix       string
	statesLimit        int
)

var statesCmd = &cobra.Command{
	Use:   "states [STATE_ID]",
	Short: "Inspect the states persisted in the local store",
	Long: `Inspect the local state table in list or get mode.

List Mode (no STATE_ID):
  Displays stored states as a table or JSONL stream.

Get Mode (with STATE_ID):
  Displays a single state as pretty-printed JSON.
  Accepts a unique id prefix of at least 6 characters.

Examples:
  # Newest 20 states as a table
  swarm states --limit 20

  # Everything from the last hour as JSONL
  swarm states --output=jsonl --since=1h

  # One state by short id
  swarm states 3fa9c2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStates,
}

func init() {
	statesCmd.Flags().StringVarP(&statesOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	statesCmd.Flags().StringVar(&statesSince, "since", "", "Show states after time (duration or RFC3339)")
	statesCmd.Flags().StringVar(&statesUntil, "until", "", "Show states before time (duration or RFC3339)")
	statesCmd.Flags().StringVar(&statesPrefix, "prefix", "", "Only ids starting with this prefix")
	statesCmd.Flags().IntVar(&statesLimit, "limit", 0, "Only the newest N states (0 = all)")
	rootCmd.AddCommand(statesCmd)
}

func runStates(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	isGetMode := len(args) > 0

	var outputFormat hoard.OutputFormat
	if !isGetMode {
		switch statesOutputFormat {
		case "default":
			outputFormat = hoard.OutputFormatDefault
		case "jsonl":
			outputFormat = hoard.OutputFormatJSONL
		default:
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", statesOutputFormat),
				[]string{"Valid formats: default, jsonl"},
			)
		}
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	local, err := store.OpenLocal(cfg.LocalStoreLocation, cfg.PeerID)
	if err != nil {
		return printer.ErrorWithContext(
			"failed to open local store",
			err.Error(),
			map[string]string{"Location": cfg.LocalStoreLocation},
			nil,
		)
	}
	defer local.Close()

	out := cmd.OutOrStdout()

	if isGetMode {
		err := hoard.GetState(ctx, local, args[0], out)
		switch {
		case err == nil:
			return nil
		case hoard.IsNotFound(err):
			return printer.Error(
				"state not found",
				err.Error(),
				[]string{"List stored states:\n  swarm states"},
			)
		case hoard.IsAmbiguous(err):
			return printer.Error("ambiguous state id", hoard.FormatAmbiguous(err.(*hoard.AmbiguousError)), nil)
		default:
			return printer.Error("failed to get state", err.Error(), nil)
		}
	}

	since, until, err := hoard.ParseRange(statesSince, statesUntil)
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), []string{"Use a duration like 1h30m or RFC3339"})
	}

	filters := &hoard.FilterCriteria{Since: since, Until: until, IDPrefix: statesPrefix}
	return hoard.ListStates(ctx, local, cfg.PeerID, outputFormat, filters, statesLimit, out)
}
