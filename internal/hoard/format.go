package hoard

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/swarm/pkg/replica"
)

// FormatTable writes state records as a table: ID, SIZE, AGE and a hex
// preview of the sealed payload. Returns the number of records formatted.
func FormatTable(w io.Writer, records []replica.StateRecord, peerID string) int {
	if len(records) == 0 {
		fmt.Fprintf(w, "No states found for peer '%s'\n", peerID)
		return 0
	}

	fmt.Fprintf(w, "States for peer '%s':\n\n", peerID)

	fmt.Fprintf(w, "%-12s %-8s %-8s %s\n", "ID", "SIZE", "AGE", "PAYLOAD")
	fmt.Fprintf(w, "%-12s %-8s %-8s %s\n", "------------", "--------", "--------", "------------------------")

	for _, r := range records {
		fmt.Fprintf(w, "%-12s %-8s %-8s %s\n",
			formatID(r.ID),
			formatSize(len(r.Payload)),
			formatAge(r.CreatedAt),
			formatPayload(r.Payload),
		)
	}

	countMsg := "state"
	if len(records) != 1 {
		countMsg = "states"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(records), countMsg)

	return len(records)
}

// FormatJSONL writes records as line-delimited JSON, one object per line.
func FormatJSONL(w io.Writer, records []replica.StateRecord) error {
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal state to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes one record as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, record replica.StateRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// formatID truncates a content hash to 12 characters.
func formatID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func formatSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fK", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fM", float64(n)/(1024*1024))
	}
}

// formatPayload shows the first 12 bytes of the sealed payload as hex.
func formatPayload(payload []byte) string {
	if len(payload) == 0 {
		return "-"
	}
	if len(payload) > 12 {
		return hex.EncodeToString(payload[:12]) + "..."
	}
	return hex.EncodeToString(payload)
}

// formatAge renders t relative to now: "12s ago", "3m ago", "2h ago", "4d ago".
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
