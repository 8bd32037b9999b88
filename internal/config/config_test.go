package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to swarm.yml in a temp dir and returns its path
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swarm.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	path := writeConfig(t, `
peer_id: node-1
local_store_location: /tmp/swarm
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "node-1", cfg.PeerID)
	assert.Equal(t, DefaultRemoteCachePort, cfg.RemoteCachePort)
	assert.Equal(t, DefaultReplicationFactorFloor, cfg.ReplicationFactorFloor)
	assert.Equal(t, DefaultQuerySemaphoreLimit, cfg.QuerySemaphoreLimit)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval)
	assert.Equal(t, DefaultShardBuckets, cfg.ShardBuckets)
	assert.Equal(t, DefaultHistoryCapacity, cfg.HistoryCapacity)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, TransportSimulated, cfg.GossipTransport)
	assert.Equal(t, 0, cfg.MaxTotalStates, "zero retention means unlimited")
	assert.Equal(t, "", cfg.RemoteCacheAddr())
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
peer_id: node-7
local_store_location: /var/lib/swarm
remote_cache_host: redis.internal
remote_cache_port: 6380
replication_factor_floor: 20
max_total_states: 5000
query_semaphore_limit: 64
sync_interval: 2s
shard_buckets: 256
history_capacity: 500
max_depth: 3
global_peers: 100
initial_active_nodes: 40
gossip_transport: redis
health_addr: 127.0.0.1:9090
cache_timeout: 750ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.RemoteCacheAddr())
	assert.Equal(t, 20, cfg.ReplicationFactorFloor)
	assert.Equal(t, 5000, cfg.MaxTotalStates)
	assert.Equal(t, 64, cfg.QuerySemaphoreLimit)
	assert.Equal(t, 2*time.Second, cfg.SyncInterval)
	assert.Equal(t, 256, cfg.ShardBuckets)
	assert.Equal(t, 500, cfg.HistoryCapacity)
	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, 100, cfg.GlobalPeers)
	assert.Equal(t, 40, cfg.InitialActiveNodes)
	assert.Equal(t, TransportRedis, cfg.GossipTransport)
	assert.Equal(t, "127.0.0.1:9090", cfg.HealthAddr)
	assert.Equal(t, 750*time.Millisecond, cfg.CacheTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
peer_id: from-file
local_store_location: /tmp/swarm
max_depth: 4
`)
	t.Setenv("SWARM_PEER_ID", "from-env")
	t.Setenv("SWARM_SYNC_INTERVAL", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.PeerID)
	assert.Equal(t, time.Second, cfg.SyncInterval)
	assert.Equal(t, 4, cfg.MaxDepth, "file value survives when env var is unset")
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "peer_id: [unterminated"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("SWARM_MAX_DEPTH", "not-an-int")
		_, err := Load(writeConfig(t, "peer_id: a\nlocal_store_location: /tmp\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse env:")
	})

	t.Run("validation failure", func(t *testing.T) {
		_, err := Load(writeConfig(t, "local_store_location: /tmp\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "peer_id is required")
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SWARM_PEER_ID", "env-node")
	t.Setenv("SWARM_LOCAL_STORE_LOCATION", "/tmp/env")
	t.Setenv("SWARM_REMOTE_CACHE_HOST", "localhost")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-node", cfg.PeerID)
	assert.Equal(t, "localhost:6379", cfg.RemoteCacheAddr())
}

func TestValidate(t *testing.T) {
	valid := func() *SwarmConfig {
		cfg := &SwarmConfig{PeerID: "node-1", LocalStoreLocation: "/tmp"}
		cfg.ApplyDefaults()
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*SwarmConfig)
		wantErr string
	}{
		{"empty peer id", func(c *SwarmConfig) { c.PeerID = " " }, "peer_id is required"},
		{"peer id with colon", func(c *SwarmConfig) { c.PeerID = "a:b" }, "must not contain"},
		{"empty store", func(c *SwarmConfig) { c.LocalStoreLocation = "" }, "local_store_location is required"},
		{"bad port", func(c *SwarmConfig) { c.RemoteCachePort = 70000 }, "remote_cache_port"},
		{"zero replication floor", func(c *SwarmConfig) { c.ReplicationFactorFloor = -1 }, "replication_factor_floor"},
		{"negative retention", func(c *SwarmConfig) { c.MaxTotalStates = -5 }, "max_total_states"},
		{"zero semaphore", func(c *SwarmConfig) { c.QuerySemaphoreLimit = -1 }, "query_semaphore_limit"},
		{"too few buckets", func(c *SwarmConfig) { c.ShardBuckets = 100 }, "shard_buckets must be >= 160"},
		{"bad depth", func(c *SwarmConfig) { c.MaxDepth = -1 }, "max_depth"},
		{"bad transport", func(c *SwarmConfig) { c.GossipTransport = "carrier-pigeon" }, "invalid gossip_transport"},
		{"redis transport without cache", func(c *SwarmConfig) { c.GossipTransport = TransportRedis }, "requires remote_cache_host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "got %q", err.Error())
		})
	}
}
