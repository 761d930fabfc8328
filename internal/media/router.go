package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
)

// Router is the per-room routing context. It owns the codec configuration
// and tracks the producers available for consumption within the room.
type Router struct {
	id   string
	api  *webrtc.API
	caps core.RTPCapabilities

	mu         sync.Mutex
	producers  map[string]*Producer
	transports map[string]*Transport
	closed     bool
}

func (r *Router) ID() string { return r.id }

func (r *Router) RTPCapabilities() core.RTPCapabilities { return r.caps }

// CreateTransport builds one ICE/DTLS path and gathers its candidates.
// Gathering respects ctx so a stalled network stack cannot hang the caller
// forever.
func (r *Router) CreateTransport(ctx context.Context) (core.Transport, error) {
	gatherer, err := r.api.NewICEGatherer(webrtc.ICEGatherOptions{})
	if err != nil {
		return nil, fmt.Errorf("ice gatherer: %w", err)
	}
	ice := r.api.NewICETransport(gatherer)
	dtls, err := r.api.NewDTLSTransport(ice, nil)
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("dtls transport: %w", err)
	}

	gatherDone := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gatherDone)
		}
	})
	if err := gatherer.Gather(); err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("ice gather: %w", err)
	}
	select {
	case <-gatherDone:
	case <-ctx.Done():
		_ = gatherer.Close()
		return nil, fmt.Errorf("ice gather: %w", ctx.Err())
	}

	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("local candidates: %w", err)
	}
	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("local ice parameters: %w", err)
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("local dtls parameters: %w", err)
	}

	t := &Transport{
		id:       uuid.NewString(),
		router:   r,
		gatherer: gatherer,
		ice:      ice,
		dtls:     dtls,
		params: core.TransportParams{
			ICEParameters:  iceParams,
			ICECandidates:  candidates,
			DTLSParameters: dtlsParams,
		},
		producers: make(map[string]*Producer),
		consumers: make(map[string]*Consumer),
	}
	t.params.ID = t.id

	// A DTLS teardown kills the transport and everything on it.
	dtls.OnStateChange(func(s webrtc.DTLSTransportState) {
		if s == webrtc.DTLSTransportStateClosed || s == webrtc.DTLSTransportStateFailed {
			log.Info().Str("module", "media.transport").Str("transport", t.id).
				Str("dtls_state", s.String()).Msg("dtls ended, closing transport")
			t.Close()
		}
	})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = gatherer.Close()
		return nil, fmt.Errorf("router closed")
	}
	r.transports[t.id] = t
	r.mu.Unlock()

	log.Info().Str("module", "media.router").Str("router", r.id).Str("transport", t.id).Msg("transport created")
	return t, nil
}

// CanConsume reports whether an endpoint with the given capabilities can
// receive the producer's stream: some offered codec must match the
// producer's codec in mime type and clock rate.
func (r *Router) CanConsume(producerID string, caps core.RTPCapabilities) bool {
	r.mu.Lock()
	producer, ok := r.producers[producerID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	want := codecForKind(producer.kind)
	for _, c := range caps.Codecs {
		if strings.EqualFold(c.MimeType, want.MimeType) && c.ClockRate == want.ClockRate {
			return true
		}
	}
	return false
}

func (r *Router) registerProducer(p *Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[p.id] = p
}

func (r *Router) unregisterProducer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, id)
}

func (r *Router) producer(id string) (*Producer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.producers[id]
	return p, ok
}

func (r *Router) unregisterTransport(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transports, id)
}

func (r *Router) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	transports := make([]*Transport, 0, len(r.transports))
	for _, t := range r.transports {
		transports = append(transports, t)
	}
	r.mu.Unlock()

	for _, t := range transports {
		t.Close()
	}
}
