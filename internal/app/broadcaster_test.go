package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyRoomFanOut(t *testing.T) {
	reg := NewSessionRegistry(&fakeWorker{})
	b := NewBroadcaster(reg)

	alice := &fakeSignal{}
	bob := &fakeSignal{}
	carol := &fakeSignal{}
	joinPeer(t, reg, "lobby", "alice", "Alice")
	joinPeer(t, reg, "lobby", "bob", "Bob")
	joinPeer(t, reg, "garden", "carol", "Carol")
	reg.BindSignal("alice", alice)
	reg.BindSignal("bob", bob)
	reg.BindSignal("carol", carol)

	b.NotifyRoom("lobby", "p-1", "Alice", "alice")

	assert.Empty(t, alice.sent(), "the producing peer is not told about itself")
	assert.Empty(t, carol.sent(), "other rooms hear nothing")

	frames := bob.sent()
	require.Len(t, frames, 1, "each other peer gets exactly one event")

	var evt struct {
		Type       string `json:"type"`
		ProducerID string `json:"producerID"`
		Name       string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(frames[0], &evt))
	assert.Equal(t, "new-producer", evt.Type)
	assert.Equal(t, "p-1", evt.ProducerID)
	assert.Equal(t, "Alice", evt.Name)
}

func TestNotifyRoomBestEffort(t *testing.T) {
	reg := NewSessionRegistry(&fakeWorker{})
	b := NewBroadcaster(reg)

	stuck := &fakeSignal{failSend: true}
	healthy := &fakeSignal{}
	joinPeer(t, reg, "lobby", "alice", "Alice")
	joinPeer(t, reg, "lobby", "bob", "Bob")
	joinPeer(t, reg, "lobby", "carol", "Carol")
	reg.BindSignal("bob", stuck)
	reg.BindSignal("carol", healthy)

	// One peer with a full send queue must not block delivery to the rest.
	b.NotifyRoom("lobby", "p-1", "Alice", "alice")
	assert.Len(t, healthy.sent(), 1)
}

func TestCatchUpReplaysExistingProducers(t *testing.T) {
	reg := NewSessionRegistry(&fakeWorker{})
	b := NewBroadcaster(reg)

	joinPeer(t, reg, "lobby", "alice", "Alice")
	require.NoError(t, reg.AddProducer("alice", &fakeProducer{id: "p-a"}))

	joinPeer(t, reg, "lobby", "bob", "Bob")
	bob := &fakeSignal{}
	b.CatchUp("lobby", "bob", bob)

	frames := bob.sent()
	require.Len(t, frames, 1)
	var evt struct {
		Type       string `json:"type"`
		ProducerID string `json:"producerID"`
	}
	require.NoError(t, json.Unmarshal(frames[0], &evt))
	assert.Equal(t, "new-producer", evt.Type)
	assert.Equal(t, "p-a", evt.ProducerID)
}

func TestListExistingExcludesRequester(t *testing.T) {
	reg := NewSessionRegistry(&fakeWorker{})
	b := NewBroadcaster(reg)

	joinPeer(t, reg, "lobby", "alice", "Alice")
	joinPeer(t, reg, "lobby", "bob", "Bob")
	require.NoError(t, reg.AddProducer("alice", &fakeProducer{id: "p-a"}))
	require.NoError(t, reg.AddProducer("bob", &fakeProducer{id: "p-b"}))

	got := b.ListExisting("lobby", "alice")
	require.Len(t, got, 1)
	assert.Equal(t, "p-b", got[0].ProducerID)
}
