package replica

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StateRecord is an immutable replicated unit of node state.
// The ID is the content hash of Payload, so two records with the same payload
// are the same record.
type StateRecord struct {
	ID        string    `json:"id"`         // hex SHA-256 of Payload
	Payload   []byte    `json:"payload"`    // opaque encrypted bytes
	CreatedAt time.Time `json:"created_at"` // when the record was produced
}

// NewStateRecord builds a record whose ID is the content hash of payload.
func NewStateRecord(payload []byte, createdAt time.Time) StateRecord {
	return StateRecord{
		ID:        ContentID(payload),
		Payload:   payload,
		CreatedAt: createdAt.UTC(),
	}
}

// ContentID returns the hex SHA-256 of payload.
func ContentID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Validate checks that the record is internally consistent.
func (r StateRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(r.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// StateKind identifies what produced a State.
type StateKind string

const (
	// StateKindSync is produced once per synchronization cycle
	StateKindSync StateKind = "sync"

	// StateKindChaos is produced by a resolver-triggered chaos event
	StateKindChaos StateKind = "chaos"
)

// State is the plaintext carried inside a StateRecord payload before sealing.
type State struct {
	ID        string    `json:"id"`        // UUID of this state
	Kind      StateKind `json:"kind"`      // sync or chaos
	Entropy   float64   `json:"entropy"`   // entropy level when produced
	Data      string    `json:"data"`      // free-form marker
	Timestamp int64     `json:"timestamp"` // unix seconds
}

// NewState creates a plaintext state with a fresh UUID.
func NewState(kind StateKind, entropy float64, data string, now time.Time) State {
	return State{
		ID:        uuid.New().String(),
		Kind:      kind,
		Entropy:   entropy,
		Data:      data,
		Timestamp: now.Unix(),
	}
}

// Validate checks the plaintext state.
func (s State) Validate() error {
	if _, err := uuid.Parse(s.ID); err != nil {
		return fmt.Errorf("id must be a valid UUID: %w", err)
	}
	if s.Kind != StateKindSync && s.Kind != StateKindChaos {
		return fmt.Errorf("invalid kind: %q", s.Kind)
	}
	return nil
}
