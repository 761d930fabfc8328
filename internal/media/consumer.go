package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
)

// Consumer is one peer's receiving end of another peer's producer. Created
// paused; packets flow only after Resume.
type Consumer struct {
	id         string
	producerID string
	kind       core.MediaKind
	track      *webrtc.TrackLocalStaticRTP
	sender     *webrtc.RTPSender
	params     core.RTPParameters
	transport  *Transport
	producer   *Producer

	paused atomic.Bool

	mu               sync.Mutex
	closed           bool
	onProducerClose  []func()
	onTransportClose []func()
}

func (c *Consumer) ID() string { return c.id }

func (c *Consumer) ProducerID() string { return c.producerID }

func (c *Consumer) Kind() core.MediaKind { return c.kind }

func (c *Consumer) RTPParameters() core.RTPParameters { return c.params }

func (c *Consumer) Resume() error {
	c.paused.Store(false)
	log.Debug().Str("module", "media.consumer").Str("consumer", c.id).Msg("consumer resumed")
	return nil
}

func (c *Consumer) OnProducerClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProducerClose = append(c.onProducerClose, fn)
}

func (c *Consumer) OnTransportClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTransportClose = append(c.onTransportClose, fn)
}

func (c *Consumer) writeRTP(pkt *rtp.Packet) {
	if c.paused.Load() {
		return
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if err := c.track.WriteRTP(pkt); err != nil {
		log.Debug().Err(err).Str("module", "media.consumer").Str("consumer", c.id).Msg("write rtp")
	}
}

// Close stops the outgoing stream. Exactly-once.
func (c *Consumer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.sender.Stop()
	if c.producer != nil {
		c.producer.detach(c.id)
	}
	c.transport.removeConsumer(c.id)
	log.Info().Str("module", "media.consumer").Str("consumer", c.id).Msg("consumer closed")
}

// producerClosed relays the upstream teardown to registered handlers.
// Handlers are responsible for closing the consumer and its transport.
func (c *Consumer) producerClosed() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	handlers := append([]func(){}, c.onProducerClose...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (c *Consumer) transportClosed() {
	c.mu.Lock()
	handlers := append([]func(){}, c.onTransportClose...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
	c.Close()
}
