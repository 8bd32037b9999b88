package replica

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStateRecord(t *testing.T) {
	now := time.Now()
	a := NewStateRecord([]byte("same"), now)
	b := NewStateRecord([]byte("same"), now.Add(time.Second))
	c := NewStateRecord([]byte("other"), now)

	assert.Equal(t, a.ID, b.ID, "identical payloads share a content id")
	assert.NotEqual(t, a.ID, c.ID)
	assert.Len(t, a.ID, 64)
	assert.NoError(t, a.Validate())
}

func TestStateRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  StateRecord
		wantErr string
	}{
		{"missing id", StateRecord{Payload: []byte("x"), CreatedAt: time.Now()}, "id is required"},
		{"missing payload", StateRecord{ID: "abc", CreatedAt: time.Now()}, "payload is required"},
		{"missing time", StateRecord{ID: "abc", Payload: []byte("x")}, "created_at is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStateValidate(t *testing.T) {
	s := NewState(StateKindSync, 12.5, "orbit", time.Now())
	assert.NoError(t, s.Validate())

	s.Kind = "bogus"
	assert.Error(t, s.Validate())

	s = NewState(StateKindChaos, 0, "orbit", time.Now())
	s.ID = "not-a-uuid"
	assert.Error(t, s.Validate())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "swarm:node-1:state:abc", StateKey("node-1", "abc"))
	assert.Equal(t, "swarm:peer-9:inbox", InboxKey("peer-9"))
}
