// Package scaffold writes a starter swarm.yml and store directory.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dyluth/swarm/internal/config"
	"github.com/dyluth/swarm/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// ConfigFile is the file Initialize writes.
const ConfigFile = "swarm.yml"

// Options fill the swarm.yml template.
type Options struct {
	PeerID    string
	StoreDir  string // relative paths are kept relative to the project dir
	RedisHost string // empty disables the remote cache
}

// Initialize writes dir/swarm.yml and creates the store directory.
// With force an existing swarm.yml is replaced. The written file is loaded
// back through config.Load before Initialize reports success.
func Initialize(dir string, opts Options, force bool) error {
	path := filepath.Join(dir, ConfigFile)

	if force {
		if _, err := os.Stat(path); err == nil {
			printer.Warning("Removing existing %s...\n", ConfigFile)
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", ConfigFile, err)
			}
		}
	}

	content, err := render(opts)
	if err != nil {
		return err
	}

	storeDir := opts.StoreDir
	if !filepath.IsAbs(storeDir) {
		storeDir = filepath.Join(dir, storeDir)
	}
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", storeDir, err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ConfigFile, err)
	}

	if _, err := config.Load(path); err != nil {
		return fmt.Errorf("created %s does not load: %w", ConfigFile, err)
	}
	return nil
}

func render(opts Options) ([]byte, error) {
	if opts.PeerID == "" {
		return nil, fmt.Errorf("peer id is required")
	}
	if opts.StoreDir == "" {
		opts.StoreDir = "data"
	}

	raw, err := templatesFS.ReadFile("templates/swarm.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read swarm.yml template: %w", err)
	}
	tmpl, err := template.New(ConfigFile).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse swarm.yml template: %w", err)
	}

	transport := config.TransportSimulated
	if opts.RedisHost != "" {
		transport = config.TransportRedis
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		Options
		Transport      string
		MaxTotalStates int
	}{opts, transport, config.DefaultMaxTotalStates})
	if err != nil {
		return nil, fmt.Errorf("failed to render swarm.yml: %w", err)
	}
	return buf.Bytes(), nil
}

// PrintSuccess prints what Initialize created and what to do next.
func PrintSuccess(opts Options) {
	printer.Success("Initialized swarm node '%s'\n", opts.PeerID)
	fmt.Println("\nCreated:")
	fmt.Printf("  ✓ %s\n", ConfigFile)
	fmt.Printf("  ✓ %s/\n", opts.StoreDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Review swarm.yml")
	fmt.Println("  2. Run 'swarm run' to start the node")
	fmt.Println("  3. Try 'swarm query chaos'")
}
