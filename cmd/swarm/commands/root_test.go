package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/swarm/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the real root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute()
	return buf.String(), err
}

// envConfig points the CLI at a config file that does not exist and a store
// under a temp dir, so configuration comes from SWARM_* alone.
func envConfig(t *testing.T) (cfgFlag string, storeDir string) {
	t.Helper()
	storeDir = t.TempDir()
	t.Setenv("SWARM_PEER_ID", "cli-node")
	t.Setenv("SWARM_LOCAL_STORE_LOCATION", storeDir)
	return filepath.Join(t.TempDir(), "missing.yml"), storeDir
}

// TestRootCommand_ShowsHelpWhenNoSubcommand tests that the root command
// shows help instead of silently succeeding when invoked without a subcommand
func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "swarm")
}

// TestRootCommand_RejectsUnknownFlags tests that unknown flags
// passed to the root command cause an error instead of being silently ignored
func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, err := execute(t, "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestQueryCommand(t *testing.T) {
	cfgFlag, _ := envConfig(t)

	out, err := execute(t, "--config", cfgFlag, "query", "--sync", "2", "chaos")
	require.NoError(t, err)
	assert.Contains(t, out, "Chaos hums")
	assert.Contains(t, out, "Recursion at scale micro")
}

func TestQueryCommand_MissingConfig(t *testing.T) {
	t.Setenv("SWARM_PEER_ID", "")
	t.Setenv("SWARM_LOCAL_STORE_LOCATION", "")

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yml"), "query", "chaos")
	require.Error(t, err)
	assert.Equal(t, "invalid configuration", err.Error())
}

func TestSimulateCommand_JSON(t *testing.T) {
	cfgFlag, _ := envConfig(t)

	out, err := execute(t, "--config", cfgFlag, "simulate", "--nodes", "2", "--queries", "3", "--dir", t.TempDir(), "--json")
	require.NoError(t, err)

	var result node.SimulationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Nodes)
	assert.Equal(t, 1.0, result.SuccessRate)
}

func TestStatesCommand(t *testing.T) {
	cfgFlag, _ := envConfig(t)

	// A generic query triggers a chaos write into the local store.
	_, err := execute(t, "--config", cfgFlag, "query", "--sync", "0", "hello")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfgFlag, "states", "--output", "jsonl")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines[0], "chaos write persisted")

	var rec struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))

	out, err = execute(t, "--config", cfgFlag, "states", rec.ID[:8])
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)

	_, err = execute(t, "--config", cfgFlag, "states", "--output", "xml")
	assert.EqualError(t, err, "invalid output format")
}
