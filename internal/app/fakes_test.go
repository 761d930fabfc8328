package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/ubaish01/commune-backend/internal/core"
)

type fakeWorker struct {
	mu      sync.Mutex
	created int
	err     error
}

func (w *fakeWorker) CreateRouter(context.Context) (core.Router, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	w.created++
	return &fakeRouter{id: fmt.Sprintf("router-%d", w.created)}, nil
}

func (w *fakeWorker) Close() {}

type fakeRouter struct {
	id         string
	canConsume func(producerID string, caps core.RTPCapabilities) bool
}

func (r *fakeRouter) ID() string { return r.id }

func (r *fakeRouter) RTPCapabilities() core.RTPCapabilities {
	return core.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
	}}
}

func (r *fakeRouter) CreateTransport(context.Context) (core.Transport, error) {
	return &fakeTransport{id: fmt.Sprintf("%s-transport", r.id)}, nil
}

func (r *fakeRouter) CanConsume(producerID string, caps core.RTPCapabilities) bool {
	if r.canConsume == nil {
		return true
	}
	return r.canConsume(producerID, caps)
}

type fakeTransport struct {
	mu      sync.Mutex
	id      string
	closed  int
	connect error
}

func (t *fakeTransport) ID() string                   { return t.id }
func (t *fakeTransport) Params() core.TransportParams { return core.TransportParams{ID: t.id} }

func (t *fakeTransport) Connect(context.Context, core.ConnectParams) error { return t.connect }

func (t *fakeTransport) Produce(context.Context, core.MediaKind, core.RTPParameters) (core.Producer, error) {
	return &fakeProducer{id: t.id + "-producer"}, nil
}

func (t *fakeTransport) Consume(context.Context, string, core.RTPCapabilities, bool) (core.Consumer, error) {
	return nil, nil
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

func (p *fakeProducer) ID() string           { return p.id }
func (p *fakeProducer) Kind() core.MediaKind { return p.kind }
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
	mu         sync.Mutex
	id         string
	producerID string
	closed     int
	resumed    bool
}

func (c *fakeConsumer) ID() string                        { return c.id }
func (c *fakeConsumer) ProducerID() string                { return c.producerID }
func (c *fakeConsumer) Kind() core.MediaKind              { return core.KindAudio }
func (c *fakeConsumer) RTPParameters() core.RTPParameters { return core.RTPParameters{} }
func (c *fakeConsumer) OnProducerClose(func())            {}
func (c *fakeConsumer) OnTransportClose(func())           {}

func (c *fakeConsumer) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumed = true
	return nil
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

type fakeSignal struct {
	mu       sync.Mutex
	frames   []core.Frame
	failSend bool
}

func (s *fakeSignal) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend {
		return fmt.Errorf("slow consumer")
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSignal) Close() {}

func (s *fakeSignal) sent() []core.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}
