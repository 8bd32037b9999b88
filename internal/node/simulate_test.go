package node

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyluth/swarm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simConfig(t *testing.T) *config.SwarmConfig {
	cfg := &config.SwarmConfig{PeerID: "sim", LocalStoreLocation: t.TempDir()}
	cfg.ApplyDefaults()
	return cfg
}

func TestSimulate(t *testing.T) {
	cfg := simConfig(t)

	result, err := Simulate(context.Background(), cfg, 3, 10)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Nodes)
	assert.Equal(t, 10, result.Queries)
	assert.Equal(t, 1.0, result.SuccessRate)
	assert.GreaterOrEqual(t, result.AvgFractalDim, 1.0)
	assert.LessOrEqual(t, result.AvgFractalDim, 10.0)
	assert.LessOrEqual(t, result.Stability, 1.0)

	files, err := filepath.Glob(filepath.Join(cfg.LocalStoreLocation, "states_sim_*.sqlite"))
	require.NoError(t, err)
	assert.Len(t, files, 3, "one store file per simulated node")
}

func TestSimulate_ZeroQueries(t *testing.T) {
	result, err := Simulate(context.Background(), simConfig(t), 2, 0)
	require.NoError(t, err)
	assert.Zero(t, result.SuccessRate)
}

func TestSimulate_Validation(t *testing.T) {
	_, err := Simulate(context.Background(), nil, 1, 1)
	assert.Error(t, err)

	_, err = Simulate(context.Background(), simConfig(t), 0, 1)
	assert.Error(t, err)

	_, err = Simulate(context.Background(), simConfig(t), 1, -1)
	assert.Error(t, err)
}

func TestSimulate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := simConfig(t)
	_, err := Simulate(ctx, cfg, 2, 5)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(cfg.LocalStoreLocation)
	assert.NoError(t, statErr)
}
