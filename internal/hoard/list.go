// Package hoard lists and inspects the state records a node has persisted locally.
package hoard

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/swarm/pkg/replica"
)

// OutputFormat specifies how to format the state list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table with truncated payloads
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// Lister is the read side of the local store.
type Lister interface {
	List(ctx context.Context, limit int) ([]replica.StateRecord, error)
}

// FilterCriteria narrows a listing. All filters are ANDed together.
type FilterCriteria struct {
	Since    time.Time // zero = no lower bound
	Until    time.Time // zero = no upper bound
	IDPrefix string    // empty = no filter
}

func (fc *FilterCriteria) matches(r replica.StateRecord) bool {
	if !fc.Since.IsZero() && r.CreatedAt.Before(fc.Since) {
		return false
	}
	if !fc.Until.IsZero() && r.CreatedAt.After(fc.Until) {
		return false
	}
	if fc.IDPrefix != "" && !strings.HasPrefix(r.ID, fc.IDPrefix) {
		return false
	}
	return true
}

// ListStates writes up to limit of the newest records held by src, filtered
// and then sorted oldest first. limit <= 0 lists everything.
func ListStates(ctx context.Context, src Lister, peerID string, format OutputFormat, filters *FilterCriteria, limit int, w io.Writer) error {
	records, err := src.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list states: %w", err)
	}

	if filters != nil {
		kept := records[:0]
		for _, r := range records {
			if filters.matches(r) {
				kept = append(kept, r)
			}
		}
		records = kept
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	switch format {
	case OutputFormatDefault:
		FormatTable(w, records, peerID)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, records); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}

// ParseTime parses a time value: a Go duration ("1h30m") meaning
// that long before now, or an RFC3339 timestamp.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return time.Now().Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid time value: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", value)
}

// ParseRange parses --since and --until. Empty flags yield zero times.
func ParseRange(since, until string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error

	if since != "" {
		if from, err = ParseTime(since); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if to, err = ParseTime(until); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--since must be before --until")
	}
	return from, to, nil
}
