// Package replica provides the shared record types and Redis schema patterns
// used by swarm nodes to replicate state.
//
// # Overview
//
// Each swarm node produces one StateRecord per synchronization cycle (and one per
// chaos event raised by the query resolver). A record is an opaque, encrypted
// payload identified by the hex SHA-256 of that payload. Records are immutable:
// a later cycle supersedes a record, it never updates it.
//
// The Cache type is the remote half of a node's durable storage. It mirrors
// records into Redis with plain SET calls and also carries the per-peer inbox
// lists used by the Redis gossip transport.
//
// # Usage Example
//
//	import "github.com/dyluth/swarm/pkg/replica"
//
//	cache, err := replica.NewCache(&redis.Options{Addr: "localhost:6379"}, "node-1")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cache.Close()
//
//	rec := replica.NewStateRecord(sealed, time.Now())
//	if err := cache.Set(ctx, rec.ID, rec.Payload); err != nil {
//		log.Printf("mirror failed: %v", err)
//	}
//
// # Redis Schema
//
// All Redis keys follow the pattern: swarm:{peer_id}:{entity}[:{id}]
//
// States: swarm:{peer_id}:state:{state_id}
// Inbox:  swarm:{peer_id}:inbox
//
// Keys are namespaced by peer id so several nodes can share one Redis server.
package replica
