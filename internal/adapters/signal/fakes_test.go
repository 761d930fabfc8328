package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/ubaish01/commune-backend/internal/core"
)

// fakeEngine hands out deterministic ids and lets tests reach into the
// objects the handlers created.
type fakeEngine struct {
	mu         sync.Mutex
	seq        int
	canConsume func(producerID string, caps core.RTPCapabilities) bool
	consumeErr error
	consumeNil bool

	// observed when a consumer gets its producer-close relay attached
	onProducerCloseWired func(c *fakeConsumer)

	transports []*fakeTransport
	producers  []*fakeProducer
	consumers  []*fakeConsumer
}

func (e *fakeEngine) nextID(prefix string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return fmt.Sprintf("%s-%d", prefix, e.seq)
}

func (e *fakeEngine) CreateRouter(context.Context) (core.Router, error) {
	return &fakeRouter{engine: e, id: e.nextID("router")}, nil
}

func (e *fakeEngine) Close() {}

func (e *fakeEngine) lastTransport() *fakeTransport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transports[len(e.transports)-1]
}

func (e *fakeEngine) lastProducer() *fakeProducer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.producers[len(e.producers)-1]
}

func (e *fakeEngine) lastConsumer() *fakeConsumer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consumers[len(e.consumers)-1]
}

type fakeRouter struct {
	engine *fakeEngine
	id     string
}

func (r *fakeRouter) ID() string { return r.id }

func (r *fakeRouter) RTPCapabilities() core.RTPCapabilities {
	return core.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
	}}
}

func (r *fakeRouter) CreateTransport(context.Context) (core.Transport, error) {
	t := &fakeTransport{engine: r.engine, id: r.engine.nextID("transport")}
	r.engine.mu.Lock()
	r.engine.transports = append(r.engine.transports, t)
	r.engine.mu.Unlock()
	return t, nil
}

func (r *fakeRouter) CanConsume(producerID string, caps core.RTPCapabilities) bool {
	if r.engine.canConsume == nil {
		return true
	}
	return r.engine.canConsume(producerID, caps)
}

type fakeTransport struct {
	engine *fakeEngine

	mu        sync.Mutex
	id        string
	connected int
	closed    int
}

func (t *fakeTransport) ID() string { return t.id }

func (t *fakeTransport) Params() core.TransportParams {
	return core.TransportParams{ID: t.id}
}

func (t *fakeTransport) Connect(_ context.Context, _ core.ConnectParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected++
	return nil
}

func (t *fakeTransport) Produce(_ context.Context, kind core.MediaKind, _ core.RTPParameters) (core.Producer, error) {
	p := &fakeProducer{id: t.engine.nextID("producer"), kind: kind}
	t.engine.mu.Lock()
	t.engine.producers = append(t.engine.producers, p)
	t.engine.mu.Unlock()
	return p, nil
}

func (t *fakeTransport) Consume(_ context.Context, producerID string, _ core.RTPCapabilities, paused bool) (core.Consumer, error) {
	if t.engine.consumeErr != nil {
		return nil, t.engine.consumeErr
	}
	if t.engine.consumeNil {
		return nil, nil
	}
	c := &fakeConsumer{id: t.engine.nextID("consumer"), producerID: producerID, paused: paused, engine: t.engine}
	t.engine.mu.Lock()
	t.engine.consumers = append(t.engine.consumers, c)
	t.engine.mu.Unlock()
	return c, nil
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
}

func (t *fakeTransport) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeProducer struct {
	mu     sync.Mutex
	id     string
	kind   core.MediaKind
	closed int
}

func (p *fakeProducer) ID() string              { return p.id }
func (p *fakeProducer) Kind() core.MediaKind    { return p.kind }
func (p *fakeProducer) OnTransportClose(func()) {}

func (p *fakeProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

func (p *fakeProducer) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeConsumer struct {
	engine *fakeEngine

	mu              sync.Mutex
	id              string
	producerID      string
	paused          bool
	closed          int
	onProducerClose []func()
}

func (c *fakeConsumer) ID() string              { return c.id }
func (c *fakeConsumer) ProducerID() string      { return c.producerID }
func (c *fakeConsumer) Kind() core.MediaKind    { return core.KindAudio }
func (c *fakeConsumer) OnTransportClose(func()) {}

func (c *fakeConsumer) RTPParameters() core.RTPParameters {
	return core.RTPParameters{MID: "0"}
}

func (c *fakeConsumer) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	return nil
}

func (c *fakeConsumer) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *fakeConsumer) OnProducerClose(fn func()) {
	c.mu.Lock()
	c.onProducerClose = append(c.onProducerClose, fn)
	c.mu.Unlock()
	if c.engine != nil && c.engine.onProducerCloseWired != nil {
		c.engine.onProducerCloseWired(c)
	}
}

// fireProducerClose simulates the engine noticing the upstream producer die.
func (c *fakeConsumer) fireProducerClose() {
	c.mu.Lock()
	handlers := append([]func(){}, c.onProducerClose...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (c *fakeConsumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *fakeConsumer) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sent() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) drain() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.frames
	c.frames = nil
	return out
}
