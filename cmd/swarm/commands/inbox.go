package commands

import (
	"context"
	"time"

	"github.com/dyluth/swarm/internal/hoard"
	"github.com/dyluth/swarm/internal/printer"
	"github.com/dyluth/swarm/internal/watch"
	"github.com/dyluth/swarm/pkg/replica"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	inboxPeer  string
	inboxWait  time.Duration
	inboxMin   int
	inboxJSONL bool
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Show the states gossiped to a peer over Redis",
	Long: `List the records other nodes pushed to a peer's Redis inbox
(gossip_transport: redis). Defaults to this node's own peer id.

With --wait, polls until at least --min records are present.`,
	RunE: runInbox,
}

func init() {
	inboxCmd.Flags().StringVar(&inboxPeer, "peer", "", "Peer whose inbox to read (default: configured peer_id)")
	inboxCmd.Flags().DurationVar(&inboxWait, "wait", 0, "Poll up to this long for --min records")
	inboxCmd.Flags().IntVar(&inboxMin, "min", 1, "Records to wait for with --wait")
	inboxCmd.Flags().BoolVar(&inboxJSONL, "jsonl", false, "Output line-delimited JSON")
	rootCmd.AddCommand(inboxCmd)
}

func runInbox(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.RemoteCacheHost == "" {
		return printer.Error(
			"no remote cache configured",
			"Inboxes live in Redis, but remote_cache_host is empty.",
			[]string{"Set remote_cache_host or SWARM_REMOTE_CACHE_HOST"},
		)
	}

	peer := inboxPeer
	if peer == "" {
		peer = cfg.PeerID
	}

	cache, err := replica.NewCache(&redis.Options{Addr: cfg.RemoteCacheAddr()}, cfg.PeerID)
	if err != nil {
		return err
	}
	defer cache.Close()

	ctx := context.Background()
	var records []replica.StateRecord
	if inboxWait > 0 {
		records, err = watch.PollInbox(ctx, cache, peer, inboxMin, watch.DefaultPollInterval, inboxWait)
	} else {
		records, err = cache.Inbox(ctx, peer)
	}
	if err != nil {
		return printer.ErrorWithContext(
			"failed to read inbox",
			err.Error(),
			map[string]string{"Peer": peer, "Address": cfg.RemoteCacheAddr()},
			nil,
		)
	}

	if inboxJSONL {
		return hoard.FormatJSONL(cmd.OutOrStdout(), records)
	}
	hoard.FormatTable(cmd.OutOrStdout(), records, peer)
	return nil
}
