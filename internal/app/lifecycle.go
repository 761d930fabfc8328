package app

import (
	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
	"github.com/ubaish01/commune-backend/internal/domain"
)

// Lifecycle owns connection setup and teardown. A connection is inert until
// it joins a room; teardown must release everything the peer owned and is
// the only signal a departing client ever sends.
type Lifecycle struct {
	Registry *SessionRegistry
}

func NewLifecycle(reg *SessionRegistry) *Lifecycle {
	return &Lifecycle{Registry: reg}
}

// OnConnect binds the signaling transport. No session state is created yet.
func (l *Lifecycle) OnConnect(connID domain.ConnID, conn core.SignalConnection) {
	l.Registry.BindSignal(connID, conn)
}

// OnDisconnect purges the registry and closes the released media handles.
// Consumers first, then producers, then transports, matching the dependency
// order. Idempotent: a second call, or a disconnect before any join, finds
// nothing to remove.
func (l *Lifecycle) OnDisconnect(connID domain.ConnID) {
	removed := l.Registry.RemoveConnection(connID)
	l.Registry.UnbindSignal(connID)

	if removed.Empty() {
		log.Debug().Str("module", "app.lifecycle").Str("conn", string(connID)).Msg("disconnect with no owned resources")
		return
	}
	for _, c := range removed.Consumers {
		c.Close()
	}
	for _, p := range removed.Producers {
		p.Close()
	}
	for _, t := range removed.Transports {
		t.Close()
	}
	log.Info().Str("module", "app.lifecycle").Str("conn", string(connID)).Msg("peer disconnected, resources released")
}
