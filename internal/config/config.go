package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Gossip transport names accepted by gossip_transport.
const (
	TransportSimulated = "simulated"
	TransportRedis     = "redis"
)

// Defaults applied to fields left empty by swarm.yml and the environment.
const (
	DefaultRemoteCachePort        = 6379
	DefaultReplicationFactorFloor = 16
	DefaultMaxTotalStates         = 100000
	DefaultQuerySemaphoreLimit    = 500
	DefaultSyncInterval           = 500 * time.Millisecond
	DefaultShardBuckets           = 160
	DefaultHistoryCapacity        = 1000
	DefaultMaxDepth               = 5
	DefaultGlobalPeers            = 10000
	DefaultInitialActiveNodes     = 1000
	DefaultHealthAddr             = ":8080"
	DefaultCacheTimeout           = 2 * time.Second

	// MinShardBuckets is the smallest bucket count a node will route across
	MinShardBuckets = 160
)

// SwarmConfig represents the top-level swarm.yml configuration.
// It is loaded once at startup and treated as immutable afterwards.
//
// An empty RemoteCacheHost disables the remote mirror. MaxTotalStates bounds
// local retention, with 0 meaning unlimited. QuerySemaphoreLimit is the
// admission floor.
type SwarmConfig struct {
	PeerID                 string        `yaml:"peer_id" env:"SWARM_PEER_ID"`
	LocalStoreLocation     string        `yaml:"local_store_location" env:"SWARM_LOCAL_STORE_LOCATION"`
	RemoteCacheHost        string        `yaml:"remote_cache_host" env:"SWARM_REMOTE_CACHE_HOST"`
	RemoteCachePort        int           `yaml:"remote_cache_port" env:"SWARM_REMOTE_CACHE_PORT"`
	ReplicationFactorFloor int           `yaml:"replication_factor_floor" env:"SWARM_REPLICATION_FACTOR_FLOOR"`
	MaxTotalStates         int           `yaml:"max_total_states" env:"SWARM_MAX_TOTAL_STATES"`
	QuerySemaphoreLimit    int           `yaml:"query_semaphore_limit" env:"SWARM_QUERY_SEMAPHORE_LIMIT"`
	SyncInterval           time.Duration `yaml:"sync_interval" env:"SWARM_SYNC_INTERVAL"`
	ShardBuckets           int           `yaml:"shard_buckets" env:"SWARM_SHARD_BUCKETS"`
	HistoryCapacity        int           `yaml:"history_capacity" env:"SWARM_HISTORY_CAPACITY"`
	MaxDepth               int           `yaml:"max_depth" env:"SWARM_MAX_DEPTH"`
	GlobalPeers            int           `yaml:"global_peers" env:"SWARM_GLOBAL_PEERS"`
	InitialActiveNodes     int           `yaml:"initial_active_nodes" env:"SWARM_INITIAL_ACTIVE_NODES"`
	GossipTransport        string        `yaml:"gossip_transport" env:"SWARM_GOSSIP_TRANSPORT"`
	HealthAddr             string        `yaml:"health_addr" env:"SWARM_HEALTH_ADDR"`
	CacheTimeout           time.Duration `yaml:"cache_timeout" env:"SWARM_CACHE_TIMEOUT"`
}

// Load reads swarm.yml from path, applies SWARM_* environment overrides and
// defaults, then validates the result.
func Load(path string) (*SwarmConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg SwarmConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a configuration from SWARM_* environment variables alone.
// Used when no swarm.yml is present.
func FromEnv() (*SwarmConfig, error) {
	var cfg SwarmConfig
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ParseEnv overlays environment variables onto target.
// Fields whose variable is unset keep their current value.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
// MaxTotalStates is left alone: zero means unlimited retention.
func (c *SwarmConfig) ApplyDefaults() {
	if c.RemoteCachePort == 0 {
		c.RemoteCachePort = DefaultRemoteCachePort
	}
	if c.ReplicationFactorFloor == 0 {
		c.ReplicationFactorFloor = DefaultReplicationFactorFloor
	}
	if c.QuerySemaphoreLimit == 0 {
		c.QuerySemaphoreLimit = DefaultQuerySemaphoreLimit
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.ShardBuckets == 0 {
		c.ShardBuckets = DefaultShardBuckets
	}
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.GlobalPeers == 0 {
		c.GlobalPeers = DefaultGlobalPeers
	}
	if c.InitialActiveNodes == 0 {
		c.InitialActiveNodes = DefaultInitialActiveNodes
	}
	if c.GossipTransport == "" {
		c.GossipTransport = TransportSimulated
	}
	if c.HealthAddr == "" {
		c.HealthAddr = DefaultHealthAddr
	}
	if c.CacheTimeout == 0 {
		c.CacheTimeout = DefaultCacheTimeout
	}
}

// Validate performs strict validation on the configuration
func (c *SwarmConfig) Validate() error {
	if strings.TrimSpace(c.PeerID) == "" {
		return fmt.Errorf("peer_id is required")
	}
	if strings.ContainsAny(c.PeerID, " \t\n/:") {
		return fmt.Errorf("peer_id %q must not contain whitespace, '/' or ':'", c.PeerID)
	}

	if strings.TrimSpace(c.LocalStoreLocation) == "" {
		return fmt.Errorf("local_store_location is required")
	}

	if c.RemoteCachePort < 1 || c.RemoteCachePort > 65535 {
		return fmt.Errorf("remote_cache_port must be between 1 and 65535, got %d", c.RemoteCachePort)
	}

	if c.ReplicationFactorFloor < 1 {
		return fmt.Errorf("replication_factor_floor must be >= 1, got %d", c.ReplicationFactorFloor)
	}

	if c.MaxTotalStates < 0 {
		return fmt.Errorf("max_total_states must be >= 0 (0 = unlimited), got %d", c.MaxTotalStates)
	}

	if c.QuerySemaphoreLimit < 1 {
		return fmt.Errorf("query_semaphore_limit must be >= 1, got %d", c.QuerySemaphoreLimit)
	}

	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive, got %s", c.SyncInterval)
	}

	if c.ShardBuckets < MinShardBuckets {
		return fmt.Errorf("shard_buckets must be >= %d, got %d", MinShardBuckets, c.ShardBuckets)
	}

	if c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity must be >= 1, got %d", c.HistoryCapacity)
	}

	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be >= 1, got %d", c.MaxDepth)
	}

	if c.GlobalPeers < 0 {
		return fmt.Errorf("global_peers must be >= 0, got %d", c.GlobalPeers)
	}

	if c.InitialActiveNodes < 0 {
		return fmt.Errorf("initial_active_nodes must be >= 0, got %d", c.InitialActiveNodes)
	}

	if c.GossipTransport != TransportSimulated && c.GossipTransport != TransportRedis {
		return fmt.Errorf("invalid gossip_transport: %s (must be '%s' or '%s')", c.GossipTransport, TransportSimulated, TransportRedis)
	}

	if c.GossipTransport == TransportRedis && c.RemoteCacheHost == "" {
		return fmt.Errorf("gossip_transport '%s' requires remote_cache_host", TransportRedis)
	}

	if c.CacheTimeout <= 0 {
		return fmt.Errorf("cache_timeout must be positive, got %s", c.CacheTimeout)
	}

	return nil
}

// RemoteCacheAddr returns host:port of the remote cache, or "" when disabled.
func (c *SwarmConfig) RemoteCacheAddr() string {
	if c.RemoteCacheHost == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.RemoteCacheHost, c.RemoteCachePort)
}
