package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/dyluth/swarm/internal/config"
	"github.com/dyluth/swarm/internal/gossip"
	"github.com/dyluth/swarm/internal/node"
	"github.com/dyluth/swarm/internal/peers"
	"github.com/dyluth/swarm/internal/printer"
	"github.com/dyluth/swarm/internal/store"
	"github.com/dyluth/swarm/pkg/replica"
	"github.com/redis/go-redis/v9"
)

// loadConfig reads path, falling back to the environment when the file does not exist.
func loadConfig(path string) (*config.SwarmConfig, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": path},
			[]string{"Fix the file, or override fields with SWARM_* environment variables"},
		)
	}

	cfg, err = config.FromEnv()
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			fmt.Sprintf("%s not found and the environment is incomplete: %v", path, err),
			[]string{
				fmt.Sprintf("Create %s with at least peer_id and local_store_location", path),
				"Set SWARM_PEER_ID and SWARM_LOCAL_STORE_LOCATION",
			},
		)
	}
	return cfg, nil
}

// stack is a node together with the resources it was built from.
type stack struct {
	cfg      *config.SwarmConfig
	registry *peers.Registry
	store    *store.Store
	cache    *replica.Cache // nil without remote_cache_host
	node     *node.Node
}

// openStack opens the local store, the optional Redis cache and a node over them.
func openStack(ctx context.Context, cfg *config.SwarmConfig) (*stack, error) {
	local, err := store.OpenLocal(cfg.LocalStoreLocation, cfg.PeerID)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"failed to open local store",
			err.Error(),
			map[string]string{"Location": cfg.LocalStoreLocation},
			[]string{"Check local_store_location exists and is writable"},
		)
	}

	s := &stack{cfg: cfg, registry: peers.NewRegistry()}

	var mirror store.Mirror
	if cfg.RemoteCacheHost != "" {
		cache, err := replica.NewCache(&redis.Options{Addr: cfg.RemoteCacheAddr()}, cfg.PeerID)
		if err != nil {
			local.Close()
			return nil, fmt.Errorf("failed to create cache client: %w", err)
		}
		if err := cache.Ping(ctx); err != nil {
			cache.Close()
			local.Close()
			return nil, printer.ErrorWithContext(
				"remote cache not accessible",
				err.Error(),
				map[string]string{"Address": cfg.RemoteCacheAddr()},
				[]string{"Start Redis", "Unset remote_cache_host to run without a mirror"},
			)
		}
		s.cache = cache
		mirror = cache
	}
	s.store = store.New(store.NewShards(cfg.ShardBuckets), local, mirror, cfg.CacheTimeout)

	var transport gossip.Transport
	if cfg.GossipTransport == config.TransportRedis {
		if s.cache == nil {
			s.Close()
			return nil, printer.Error(
				"redis gossip requires a remote cache",
				"gossip_transport is 'redis' but remote_cache_host is empty.",
				[]string{"Set remote_cache_host", "Use gossip_transport: simulated"},
			)
		}
		transport = gossip.NewRedisTransport(s.cache, cfg.CacheTimeout)
	}

	n, err := node.New(cfg, node.Deps{
		Registry:  s.registry,
		Store:     s.store,
		Transport: transport,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create node: %w", err)
	}
	s.node = n
	return s, nil
}

// pingers returns the health probes, leaving cache nil when unconfigured.
func (s *stack) pingers() (local, cache node.Pinger) {
	local = s.store.Local()
	if s.cache != nil {
		cache = s.cache
	}
	return local, cache
}

// Close tears the stack down in reverse order.
func (s *stack) Close() {
	if s.node != nil {
		s.node.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	s.registry.Close()
}
