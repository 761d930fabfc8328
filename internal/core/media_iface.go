package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaKind is the media type of a producer or consumer.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// RTPCapabilities describes which codecs an endpoint (router or client)
// can handle. Routers advertise theirs on join; clients send theirs on consume.
type RTPCapabilities struct {
	Codecs           []webrtc.RTPCodecCapability           `json:"codecs"`
	HeaderExtensions []webrtc.RTPHeaderExtensionCapability `json:"headerExtensions,omitempty"`
}

// RTPParameters describes one concrete media stream (codec + encodings).
type RTPParameters struct {
	MID              string                               `json:"mid,omitempty"`
	Codecs           []webrtc.RTPCodecParameters          `json:"codecs"`
	HeaderExtensions []webrtc.RTPHeaderExtensionParameter `json:"headerExtensions,omitempty"`
	Encodings        []webrtc.RTPCodingParameters         `json:"encodings,omitempty"`
}

// TransportParams is everything a client needs to connect to a server-side
// transport: its id plus the server's ICE and DTLS negotiation material.
type TransportParams struct {
	ID             string                `json:"id"`
	ICEParameters  webrtc.ICEParameters  `json:"iceParameters"`
	ICECandidates  []webrtc.ICECandidate `json:"iceCandidates"`
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
}

// ConnectParams carries the client's half of the transport handshake.
// ICEParameters are required because the server-side ICE transport must be
// started with remote credentials; it is not an ICE-lite endpoint.
type ConnectParams struct {
	DTLSParameters webrtc.DTLSParameters `json:"dtlsParameters"`
	ICEParameters  webrtc.ICEParameters  `json:"iceParameters"`
}

// Worker is the media engine entry point. One per process.
type Worker interface {
	// CreateRouter creates a routing context for a new room.
	CreateRouter(ctx context.Context) (Router, error)
	Close()
}

// Router is the per-room routing context negotiating codecs and
// producer/consumer compatibility.
type Router interface {
	ID() string
	RTPCapabilities() RTPCapabilities
	CreateTransport(ctx context.Context) (Transport, error)
	CanConsume(producerID string, caps RTPCapabilities) bool
}

// Transport is one negotiated ICE/DTLS path for a single peer, carrying
// either outbound (produce) or inbound (consume) media.
type Transport interface {
	ID() string
	Params() TransportParams
	Connect(ctx context.Context, params ConnectParams) error
	Produce(ctx context.Context, kind MediaKind, rtpParameters RTPParameters) (Producer, error)
	// Consume returns (nil, nil) when the engine could not create a consumer
	// for the producer; callers must treat a nil consumer as "not created".
	Consume(ctx context.Context, producerID string, caps RTPCapabilities, paused bool) (Consumer, error)
	Close()
}

// Producer is a media stream originating from one peer.
type Producer interface {
	ID() string
	Kind() MediaKind
	Close()
	OnTransportClose(func())
}

// Consumer is one peer's receiving end of another peer's producer.
// It is created paused and starts forwarding after Resume.
type Consumer interface {
	ID() string
	ProducerID() string
	Kind() MediaKind
	RTPParameters() RTPParameters
	Resume() error
	Close()
	OnProducerClose(func())
	OnTransportClose(func())
}
