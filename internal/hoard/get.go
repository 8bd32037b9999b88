package hoard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/swarm/internal/store"
	"github.com/dyluth/swarm/pkg/replica"
)

// MinPrefixLength is the shortest id prefix GetState will resolve.
const MinPrefixLength = 6

// idLength is the length of a hex SHA-256 content id.
const idLength = 64

// Getter is the lookup side of the local store.
type Getter interface {
	Lister
	Get(ctx context.Context, id string) (replica.StateRecord, error)
}

// GetState resolves id (a full content hash or a unique prefix of at least
// MinPrefixLength characters) and writes the record as pretty JSON.
func GetState(ctx context.Context, src Getter, id string, w io.Writer) error {
	fullID, err := ResolveID(ctx, src, id)
	if err != nil {
		return err
	}

	rec, err := src.Get(ctx, fullID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{ID: id}
		}
		return fmt.Errorf("failed to fetch state: %w", err)
	}

	if err := FormatSingleJSON(w, rec); err != nil {
		return fmt.Errorf("failed to format state: %w", err)
	}
	return nil
}

// ResolveID expands a short id prefix to the full content hash.
// Full-length ids are returned as-is.
func ResolveID(ctx context.Context, src Lister, id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if len(id) == idLength {
		return id, nil
	}
	if len(id) < MinPrefixLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinPrefixLength, len(id))
	}

	records, err := src.List(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("failed to search for state: %w", err)
	}

	var matches []string
	for _, r := range records {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ID: id}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{Prefix: id, Matches: matches}
	}
}

// NotFoundError indicates no state matched.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("state with ID '%s' not found", e.ID)
}

// AmbiguousError indicates several states share the prefix.
type AmbiguousError struct {
	Prefix  string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d states", e.Prefix, len(e.Matches))
}

// FormatAmbiguous lists up to 10 matches for display.
func FormatAmbiguous(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d states:\n", err.Prefix, len(err.Matches))

	shown := min(len(err.Matches), 10)
	for _, m := range err.Matches[:shown] {
		fmt.Fprintf(&b, "  %s\n", m)
	}
	if len(err.Matches) > shown {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-shown)
	}
	b.WriteString("\nUse a longer prefix to uniquely identify the state.")
	return b.String()
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAmbiguous reports whether err is an AmbiguousError.
func IsAmbiguous(err error) bool {
	var ae *AmbiguousError
	return errors.As(err, &ae)
}
