package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
	"github.com/ubaish01/commune-backend/internal/domain"
)

// ProducerInfo is the discovery view of a producer: just enough for another
// client to decide to consume it.
type ProducerInfo struct {
	ProducerID string `json:"producerID"`
	Name       string `json:"name"`
}

// PeerSnapshot is a read-only view of a room member used for fan-out.
type PeerSnapshot struct {
	ConnID domain.ConnID
	Name   string
	Signal core.SignalConnection
}

// RemovedResources holds the media handles released by RemoveConnection so
// the caller can close the underlying engine objects outside the lock.
type RemovedResources struct {
	Transports []core.Transport
	Producers  []core.Producer
	Consumers  []core.Consumer
}

func (r RemovedResources) Empty() bool {
	return len(r.Transports) == 0 && len(r.Producers) == 0 && len(r.Consumers) == 0
}

type roomEntry struct {
	router core.Router
	peers  map[domain.ConnID]struct{}
}

type peerEntry struct {
	roomName   domain.RoomName
	details    domain.PeerDetails
	transports map[string]struct{}
	producers  map[string]struct{}
	consumers  map[string]struct{}
}

type transportEntry struct {
	connID    domain.ConnID
	roomName  domain.RoomName
	recvSide  bool
	transport core.Transport
}

type producerEntry struct {
	connID   domain.ConnID
	roomName domain.RoomName
	details  domain.PeerDetails
	producer core.Producer
}

type consumerEntry struct {
	connID   domain.ConnID
	roomName domain.RoomName
	consumer core.Consumer
}

// SessionRegistry is the authoritative in-memory store of rooms, peers,
// transports, producers and consumers. One mutex guards every collection;
// multi-step mutations are atomic relative to each other.
type SessionRegistry struct {
	worker core.Worker

	mu         sync.Mutex
	rooms      map[domain.RoomName]*roomEntry
	peers      map[domain.ConnID]*peerEntry
	signals    map[domain.ConnID]core.SignalConnection
	transports map[string]*transportEntry
	producers  map[string]*producerEntry
	consumers  map[string]*consumerEntry
}

func NewSessionRegistry(worker core.Worker) *SessionRegistry {
	return &SessionRegistry{
		worker:     worker,
		rooms:      make(map[domain.RoomName]*roomEntry),
		peers:      make(map[domain.ConnID]*peerEntry),
		signals:    make(map[domain.ConnID]core.SignalConnection),
		transports: make(map[string]*transportEntry),
		producers:  make(map[string]*producerEntry),
		consumers:  make(map[string]*consumerEntry),
	}
}

// BindSignal attaches the messaging transport of a freshly accepted
// connection. No peer state exists until the connection joins a room.
func (r *SessionRegistry) BindSignal(connID domain.ConnID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals[connID] = conn
	log.Info().Str("module", "app.registry").Str("conn", string(connID)).Msg("bound signal")
}

// UnbindSignal drops the messaging transport binding. Safe to call twice.
func (r *SessionRegistry) UnbindSignal(connID domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.signals, connID)
	log.Info().Str("module", "app.registry").Str("conn", string(connID)).Msg("unbound signal")
}

// CreateOrJoinRoom returns the room's routing context, creating the room on
// first join. Re-adding an already-member connection is a no-op, but a
// connection whose peer record lives in a different room is rejected before
// any membership or room state is touched. The lock is held across router
// creation so two first-joiners cannot race a second routing context into
// existence.
func (r *SessionRegistry) CreateOrJoinRoom(ctx context.Context, roomName domain.RoomName, connID domain.ConnID) (core.Router, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if peer, ok := r.peers[connID]; ok && peer.roomName != roomName {
		return nil, ErrDuplicateConnection
	}

	room, ok := r.rooms[roomName]
	if !ok {
		router, err := r.worker.CreateRouter(ctx)
		if err != nil {
			return nil, err
		}
		room = &roomEntry{router: router, peers: make(map[domain.ConnID]struct{})}
		r.rooms[roomName] = room
		log.Info().Str("module", "app.registry").Str("room", string(roomName)).Str("router", router.ID()).Msg("room created")
	}
	room.peers[connID] = struct{}{}
	return room.router, nil
}

// RegisterPeer creates the peer record for a joined connection.
func (r *SessionRegistry) RegisterPeer(connID domain.ConnID, roomName domain.RoomName, details domain.PeerDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[connID]; ok {
		return ErrDuplicateConnection
	}
	r.peers[connID] = &peerEntry{
		roomName:   roomName,
		details:    details,
		transports: make(map[string]struct{}),
		producers:  make(map[string]struct{}),
		consumers:  make(map[string]struct{}),
	}
	log.Info().Str("module", "app.registry").Str("conn", string(connID)).Str("room", string(roomName)).Str("name", details.Name).Msg("peer registered")
	return nil
}

// AddTransport records a transport under its owning peer. Registering a
// second send-side transport evicts the tracked one, which is returned so
// the caller can close it; a connection keeps at most one send transport.
func (r *SessionRegistry) AddTransport(connID domain.ConnID, t core.Transport, recvSide bool) (replaced core.Transport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	peer, ok := r.peers[connID]
	if !ok {
		return nil, ErrNotJoined
	}
	if !recvSide {
		for id := range peer.transports {
			entry := r.transports[id]
			if entry != nil && !entry.recvSide {
				replaced = entry.transport
				delete(r.transports, id)
				delete(peer.transports, id)
			}
		}
	}
	r.transports[t.ID()] = &transportEntry{
		connID:    connID,
		roomName:  peer.roomName,
		recvSide:  recvSide,
		transport: t,
	}
	peer.transports[t.ID()] = struct{}{}
	return replaced, nil
}

// AddProducer records a producer, snapshotting the peer's display details at
// creation time so discovery never has to re-join peer state.
func (r *SessionRegistry) AddProducer(connID domain.ConnID, p core.Producer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	peer, ok := r.peers[connID]
	if !ok {
		return ErrNotJoined
	}
	r.producers[p.ID()] = &producerEntry{
		connID:   connID,
		roomName: peer.roomName,
		details:  peer.details,
		producer: p,
	}
	peer.producers[p.ID()] = struct{}{}
	return nil
}

// AddConsumer records a consumer. A nil consumer is the engine's
// "could not create" result and is a no-op, not an error.
func (r *SessionRegistry) AddConsumer(connID domain.ConnID, c core.Consumer) error {
	if c == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	peer, ok := r.peers[connID]
	if !ok {
		return ErrNotJoined
	}
	r.consumers[c.ID()] = &consumerEntry{
		connID:   connID,
		roomName: peer.roomName,
		consumer: c,
	}
	peer.consumers[c.ID()] = struct{}{}
	return nil
}

// RemoveConnection atomically removes every entity owned by the connection
// and its room membership, returning the released media handles. The room
// record itself stays, even when it becomes empty. Calling it again for the
// same connection returns an empty set.
func (r *SessionRegistry) RemoveConnection(connID domain.ConnID) RemovedResources {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed RemovedResources
	peer, ok := r.peers[connID]
	if !ok {
		return removed
	}

	for id := range peer.consumers {
		if entry, ok := r.consumers[id]; ok {
			removed.Consumers = append(removed.Consumers, entry.consumer)
			delete(r.consumers, id)
		}
	}
	for id := range peer.producers {
		if entry, ok := r.producers[id]; ok {
			removed.Producers = append(removed.Producers, entry.producer)
			delete(r.producers, id)
		}
	}
	for id := range peer.transports {
		if entry, ok := r.transports[id]; ok {
			removed.Transports = append(removed.Transports, entry.transport)
			delete(r.transports, id)
		}
	}

	delete(r.peers, connID)
	if room, ok := r.rooms[peer.roomName]; ok {
		delete(room.peers, connID)
	}

	log.Info().Str("module", "app.registry").Str("conn", string(connID)).
		Int("transports", len(removed.Transports)).
		Int("producers", len(removed.Producers)).
		Int("consumers", len(removed.Consumers)).
		Msg("connection removed")
	return removed
}

// SendTransport returns the single send-side transport of a connection.
func (r *SessionRegistry) SendTransport(connID domain.ConnID) (core.Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	peer, ok := r.peers[connID]
	if !ok {
		return nil, ErrNotJoined
	}
	for id := range peer.transports {
		if entry, ok := r.transports[id]; ok && !entry.recvSide {
			return entry.transport, nil
		}
	}
	return nil, ErrNoSendTransport
}

// RecvTransport resolves a receive-side transport owned by the connection.
func (r *SessionRegistry) RecvTransport(connID domain.ConnID, transportID string) (core.Transport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.transports[transportID]
	if !ok || !entry.recvSide || entry.connID != connID {
		return nil, false
	}
	return entry.transport, true
}

// RouterFor returns the routing context of the peer's room.
func (r *SessionRegistry) RouterFor(connID domain.ConnID) (core.Router, domain.RoomName, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	peer, ok := r.peers[connID]
	if !ok {
		return nil, "", ErrNotJoined
	}
	room, ok := r.rooms[peer.roomName]
	if !ok {
		return nil, "", ErrNotJoined
	}
	return room.router, peer.roomName, nil
}

// PeerDetails returns the display metadata and room of a joined connection.
func (r *SessionRegistry) PeerDetails(connID domain.ConnID) (domain.PeerDetails, domain.RoomName, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	peer, ok := r.peers[connID]
	if !ok {
		return domain.PeerDetails{}, "", ErrNotJoined
	}
	return peer.details, peer.roomName, nil
}

// OtherProducers lists producers in a room excluding the given connection's own.
func (r *SessionRegistry) OtherProducers(roomName domain.RoomName, excluding domain.ConnID) []ProducerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProducerInfo, 0, len(r.producers))
	for id, entry := range r.producers {
		if entry.roomName != roomName || entry.connID == excluding {
			continue
		}
		out = append(out, ProducerInfo{ProducerID: id, Name: entry.details.Name})
	}
	return out
}

// PeersInRoom snapshots the live members of a room, excluding one connection,
// together with their signal connections for fan-out.
func (r *SessionRegistry) PeersInRoom(roomName domain.RoomName, excluding domain.ConnID) []PeerSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomName]
	if !ok {
		return nil
	}
	out := make([]PeerSnapshot, 0, len(room.peers))
	for connID := range room.peers {
		if connID == excluding {
			continue
		}
		peer, ok := r.peers[connID]
		if !ok {
			continue
		}
		out = append(out, PeerSnapshot{
			ConnID: connID,
			Name:   peer.details.Name,
			Signal: r.signals[connID],
		})
	}
	return out
}

// ConsumerByID looks up a live consumer.
func (r *SessionRegistry) ConsumerByID(consumerID string) (core.Consumer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.consumers[consumerID]
	if !ok {
		return nil, false
	}
	return entry.consumer, true
}

// RemoveConsumerPair removes a consumer and its paired receive transport in
// one step. Used by the producer-closed relay; the mutex makes the removal
// exactly-once, so only the first caller gets handles to close.
func (r *SessionRegistry) RemoveConsumerPair(consumerID, transportID string) (core.Consumer, core.Transport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	centry, ok := r.consumers[consumerID]
	if !ok {
		return nil, nil, false
	}
	delete(r.consumers, consumerID)
	if peer, ok := r.peers[centry.connID]; ok {
		delete(peer.consumers, consumerID)
	}

	var transport core.Transport
	if tentry, ok := r.transports[transportID]; ok {
		transport = tentry.transport
		delete(r.transports, transportID)
		if peer, ok := r.peers[tentry.connID]; ok {
			delete(peer.transports, transportID)
		}
	}
	return centry.consumer, transport, true
}

// RemoveTransport drops a transport from the registry, returning its handle.
// Used when a transport handshake fails and the transport must die.
func (r *SessionRegistry) RemoveTransport(transportID string) (core.Transport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.transports[transportID]
	if !ok {
		return nil, false
	}
	delete(r.transports, transportID)
	if peer, ok := r.peers[entry.connID]; ok {
		delete(peer.transports, transportID)
	}
	return entry.transport, true
}
