// Package watch polls a peer's gossip inbox.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/swarm/pkg/replica"
)

// DefaultPollInterval is how often PollInbox re-reads the inbox.
const DefaultPollInterval = 200 * time.Millisecond

// InboxReader reads the records gossiped to a peer. *replica.Cache satisfies it.
type InboxReader interface {
	Inbox(ctx context.Context, peer string) ([]replica.StateRecord, error)
}

// PollInbox polls peer's inbox until it holds at least want records and
// returns them, newest first. It gives up after timeout.
func PollInbox(ctx context.Context, src InboxReader, peer string, want int, interval, timeout time.Duration) ([]replica.StateRecord, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	// Check once up front so an already-full inbox returns immediately.
	records, err := src.Inbox(ctx, peer)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	if len(records) >= want {
		return records, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return records, fmt.Errorf("timeout waiting for %d inbox records after %v (have %d)", want, timeout, len(records))

		case <-ticker.C:
			records, err = src.Inbox(ctx, peer)
			if err != nil {
				return nil, fmt.Errorf("failed to read inbox: %w", err)
			}
			if len(records) >= want {
				return records, nil
			}
		}
	}
}
