package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
)

// Transport is one negotiated ICE/DTLS path for a single peer.
type Transport struct {
	id       string
	router   *Router
	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	params   core.TransportParams

	mu        sync.Mutex
	closed    bool
	producers map[string]*Producer
	consumers map[string]*Consumer
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) Params() core.TransportParams { return t.params }

// Connect starts ICE with the client's credentials and runs the DTLS
// handshake. The server side is always the controlled agent; the client
// initiates connectivity checks against our candidates, so we never need
// its candidate list up front.
func (t *Transport) Connect(_ context.Context, params core.ConnectParams) error {
	role := webrtc.ICERoleControlled
	if err := t.ice.Start(nil, params.ICEParameters, &role); err != nil {
		return fmt.Errorf("ice start: %w", err)
	}
	if err := t.dtls.Start(params.DTLSParameters); err != nil {
		return fmt.Errorf("dtls start: %w", err)
	}
	log.Info().Str("module", "media.transport").Str("transport", t.id).Msg("transport connected")
	return nil
}

// Produce attaches an RTP receiver for an incoming stream and starts the
// relay loop feeding attached consumers.
func (t *Transport) Produce(_ context.Context, kind core.MediaKind, rtpParameters core.RTPParameters) (core.Producer, error) {
	receiver, err := t.router.api.NewRTPReceiver(codecTypeOf(kind), t.dtls)
	if err != nil {
		return nil, fmt.Errorf("rtp receiver: %w", err)
	}

	var ssrc webrtc.SSRC
	if len(rtpParameters.Encodings) > 0 {
		ssrc = rtpParameters.Encodings[0].SSRC
	}
	err = receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{
			{RTPCodingParameters: webrtc.RTPCodingParameters{SSRC: ssrc}},
		},
	})
	if err != nil {
		_ = receiver.Stop()
		return nil, fmt.Errorf("rtp receive: %w", err)
	}

	p := &Producer{
		id:        uuid.NewString(),
		kind:      kind,
		receiver:  receiver,
		transport: t,
		consumers: make(map[string]*Consumer),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = receiver.Stop()
		return nil, fmt.Errorf("transport closed")
	}
	t.producers[p.id] = p
	t.mu.Unlock()
	t.router.registerProducer(p)

	go p.relayLoop()

	log.Info().Str("module", "media.transport").Str("transport", t.id).
		Str("producer", p.id).Str("kind", string(kind)).Msg("producer created")
	return p, nil
}

// Consume attaches an RTP sender fed from the producer's relay. The consumer
// starts paused; no packets flow until Resume.
func (t *Transport) Consume(_ context.Context, producerID string, caps core.RTPCapabilities, paused bool) (core.Consumer, error) {
	producer, ok := t.router.producer(producerID)
	if !ok {
		return nil, fmt.Errorf("producer %s not found", producerID)
	}
	if !t.router.CanConsume(producerID, caps) {
		// The engine-level guard; callers normally check CanConsume first.
		return nil, nil
	}

	local, err := webrtc.NewTrackLocalStaticRTP(codecForKind(producer.kind), string(producer.kind), producerID)
	if err != nil {
		return nil, fmt.Errorf("local track: %w", err)
	}
	sender, err := t.router.api.NewRTPSender(local, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("rtp sender: %w", err)
	}
	if err := sender.Send(sender.GetParameters()); err != nil {
		_ = sender.Stop()
		return nil, fmt.Errorf("rtp send: %w", err)
	}

	c := &Consumer{
		id:         uuid.NewString(),
		producerID: producerID,
		kind:       producer.kind,
		track:      local,
		sender:     sender,
		params:     fromSendParameters(sender.GetParameters()),
		transport:  t,
	}
	c.paused.Store(paused)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = sender.Stop()
		return nil, fmt.Errorf("transport closed")
	}
	t.consumers[c.id] = c
	t.mu.Unlock()
	producer.attach(c)

	log.Info().Str("module", "media.transport").Str("transport", t.id).
		Str("consumer", c.id).Str("producer", producerID).Msg("consumer created")
	return c, nil
}

// Close tears the path down and closes every producer and consumer riding
// on it. Idempotent.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	producers := make([]*Producer, 0, len(t.producers))
	for _, p := range t.producers {
		producers = append(producers, p)
	}
	consumers := make([]*Consumer, 0, len(t.consumers))
	for _, c := range t.consumers {
		consumers = append(consumers, c)
	}
	t.producers = make(map[string]*Producer)
	t.consumers = make(map[string]*Consumer)
	t.mu.Unlock()

	for _, p := range producers {
		p.transportClosed()
	}
	for _, c := range consumers {
		c.transportClosed()
	}

	_ = t.dtls.Stop()
	_ = t.ice.Stop()
	_ = t.gatherer.Close()
	t.router.unregisterTransport(t.id)
	log.Info().Str("module", "media.transport").Str("transport", t.id).Msg("transport closed")
}

func (t *Transport) removeProducer(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.producers, id)
}

func (t *Transport) removeConsumer(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.consumers, id)
}
