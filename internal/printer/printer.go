// Package printer renders user-facing CLI output with color.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Users can disable with NO_COLOR
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Print(msg)
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow with a warning prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Print(msg)
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Field prints an aligned "label: value" line with a bold label.
func Field(label string, value any) {
	bold.Printf("  %-18s", label+":")
	fmt.Printf(" %v\n", value)
}

// Error prints title, explanation and suggestions to stderr and returns a
// bare error carrying the title for cobra (which runs with SilenceErrors).
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value context lines, printed sorted by key.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	writeError(os.Stderr, title, explanation, context, suggestions)
	return fmt.Errorf("%s", title)
}

func writeError(w io.Writer, title, explanation string, context map[string]string, suggestions []string) {
	red.Fprintf(w, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(w, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(w, "\n")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, context[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(w, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(w, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
}
