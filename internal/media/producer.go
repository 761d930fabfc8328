package media

import (
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
)

// Producer is an incoming stream from one peer, fanned out to the consumers
// attached to it by other peers' transports.
type Producer struct {
	id        string
	kind      core.MediaKind
	receiver  *webrtc.RTPReceiver
	transport *Transport

	mu               sync.Mutex
	closed           bool
	consumers        map[string]*Consumer
	onTransportClose []func()
}

func (p *Producer) ID() string { return p.id }

func (p *Producer) Kind() core.MediaKind { return p.kind }

func (p *Producer) OnTransportClose(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTransportClose = append(p.onTransportClose, fn)
}

func (p *Producer) attach(c *Consumer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consumers[c.id] = c
	c.producer = p
}

func (p *Producer) detach(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.consumers, id)
}

// relayLoop reads RTP from the remote track and forwards each packet to
// every attached, unpaused consumer. Exits when the receiver stops.
func (p *Producer) relayLoop() {
	track := p.receiver.Track()
	if track == nil {
		return
	}
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "media.producer").Str("producer", p.id).Msg("relay loop ended")
			return
		}
		p.forward(pkt)
	}
}

func (p *Producer) forward(pkt *rtp.Packet) {
	p.mu.Lock()
	snapshot := make([]*Consumer, 0, len(p.consumers))
	for _, c := range p.consumers {
		snapshot = append(snapshot, c)
	}
	p.mu.Unlock()

	for _, c := range snapshot {
		c.writeRTP(pkt)
	}
}

// Close stops the stream and notifies every attached consumer that its
// producer is gone. Exactly-once.
func (p *Producer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	consumers := make([]*Consumer, 0, len(p.consumers))
	for _, c := range p.consumers {
		consumers = append(consumers, c)
	}
	p.consumers = make(map[string]*Consumer)
	p.mu.Unlock()

	_ = p.receiver.Stop()
	p.router().unregisterProducer(p.id)
	p.transport.removeProducer(p.id)

	for _, c := range consumers {
		c.producerClosed()
	}
	log.Info().Str("module", "media.producer").Str("producer", p.id).Msg("producer closed")
}

// transportClosed is invoked by the owning transport's teardown.
func (p *Producer) transportClosed() {
	p.mu.Lock()
	handlers := append([]func(){}, p.onTransportClose...)
	p.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
	p.Close()
}

func (p *Producer) router() *Router { return p.transport.router }
