package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
	"github.com/ubaish01/commune-backend/internal/domain"
)

// Broadcaster handles producer discovery: telling a room about a new stream
// and answering a client's "what is already here" query.
type Broadcaster struct {
	Registry *SessionRegistry
}

func NewBroadcaster(reg *SessionRegistry) *Broadcaster {
	return &Broadcaster{Registry: reg}
}

// ListExisting answers an explicit get-producers query, never including the
// requester's own productions.
func (b *Broadcaster) ListExisting(roomName domain.RoomName, excluding domain.ConnID) []ProducerInfo {
	return b.Registry.OtherProducers(roomName, excluding)
}

type newProducerEvent struct {
	Type       string `json:"type"`
	ProducerID string `json:"producerID"`
	Name       string `json:"name"`
}

// NotifyRoom pushes a new-producer event to every other live peer in the
// room. Delivery is best-effort: no acknowledgement, no retry. A peer that
// misses it will see the stream on its next get-producers query.
func (b *Broadcaster) NotifyRoom(roomName domain.RoomName, producerID, producingName string, excluding domain.ConnID) {
	frame, err := json.Marshal(newProducerEvent{
		Type:       "new-producer",
		ProducerID: producerID,
		Name:       producingName,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcaster").Msg("marshal new-producer")
		return
	}

	sent := 0
	for _, peer := range b.Registry.PeersInRoom(roomName, excluding) {
		if peer.Signal == nil {
			continue
		}
		if err := peer.Signal.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.broadcaster").
				Str("conn", string(peer.ConnID)).Msg("dropped new-producer notification")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.broadcaster").Str("room", string(roomName)).
		Str("producer", producerID).Int("sent_to", sent).Msg("notified room")
}

// CatchUp replays the room's existing producers to one peer as new-producer
// events, so a joiner hears about every stream it was not around for.
func (b *Broadcaster) CatchUp(roomName domain.RoomName, connID domain.ConnID, conn core.SignalConnection) {
	for _, info := range b.Registry.OtherProducers(roomName, connID) {
		frame, err := json.Marshal(newProducerEvent{
			Type:       "new-producer",
			ProducerID: info.ProducerID,
			Name:       info.Name,
		})
		if err != nil {
			log.Error().Err(err).Str("module", "app.broadcaster").Msg("marshal new-producer")
			return
		}
		if err := conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.broadcaster").
				Str("conn", string(connID)).Msg("dropped catch-up notification")
			return
		}
	}
}
