package replica

import "fmt"

// Redis key pattern helpers
//
// Key pattern: swarm:{peer_id}:{entity}[:{id}]

// StateKey returns the Redis key for a mirrored state.
// Pattern: swarm:{peer_id}:state:{state_id}
func StateKey(peerID, stateID string) string {
	return fmt.Sprintf("swarm:%s:state:%s", peerID, stateID)
}

// InboxKey returns the Redis list key holding records gossiped to a peer.
// Pattern: swarm:{peer_id}:inbox
func InboxKey(peerID string) string {
	return fmt.Sprintf("swarm:%s:inbox", peerID)
}

// InboxLimit bounds the length of every inbox list.
const InboxLimit = 64
