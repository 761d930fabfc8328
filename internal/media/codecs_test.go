package media

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubaish01/commune-backend/internal/core"
)

func TestCodecForKind(t *testing.T) {
	audio := codecForKind(core.KindAudio)
	assert.Equal(t, webrtc.MimeTypeOpus, audio.MimeType)
	assert.Equal(t, uint32(48000), audio.ClockRate)
	assert.Equal(t, uint16(2), audio.Channels)

	video := codecForKind(core.KindVideo)
	assert.Equal(t, webrtc.MimeTypeVP8, video.MimeType)
	assert.Equal(t, uint32(90000), video.ClockRate)
}

func TestCodecTypeOf(t *testing.T) {
	assert.Equal(t, webrtc.RTPCodecTypeAudio, codecTypeOf(core.KindAudio))
	assert.Equal(t, webrtc.RTPCodecTypeVideo, codecTypeOf(core.KindVideo))
}

func TestRouterCapabilitiesCoverBothKinds(t *testing.T) {
	caps := routerCapabilities()
	require.Len(t, caps.Codecs, 2)

	mimes := []string{caps.Codecs[0].MimeType, caps.Codecs[1].MimeType}
	assert.Contains(t, mimes, webrtc.MimeTypeOpus)
	assert.Contains(t, mimes, webrtc.MimeTypeVP8)
}

func TestFromSendParameters(t *testing.T) {
	in := webrtc.RTPSendParameters{
		RTPParameters: webrtc.RTPParameters{
			Codecs: []webrtc.RTPCodecParameters{
				{RTPCodecCapability: codecForKind(core.KindAudio), PayloadType: 111},
			},
		},
		Encodings: []webrtc.RTPEncodingParameters{
			{RTPCodingParameters: webrtc.RTPCodingParameters{RID: "a", SSRC: 1234}},
		},
	}

	out := fromSendParameters(in)
	require.Len(t, out.Codecs, 1)
	assert.Equal(t, webrtc.PayloadType(111), out.Codecs[0].PayloadType)
	require.Len(t, out.Encodings, 1)
	assert.Equal(t, webrtc.SSRC(1234), out.Encodings[0].SSRC)
}

func TestCanConsume(t *testing.T) {
	r := &Router{
		id:         "r1",
		caps:       routerCapabilities(),
		producers:  make(map[string]*Producer),
		transports: make(map[string]*Transport),
	}
	r.registerProducer(&Producer{id: "p-audio", kind: core.KindAudio, consumers: make(map[string]*Consumer)})

	opus := core.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: "Audio/OPUS", ClockRate: 48000, Channels: 2},
	}}
	assert.True(t, r.CanConsume("p-audio", opus), "mime match is case-insensitive")

	vp8Only := core.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
	}}
	assert.False(t, r.CanConsume("p-audio", vp8Only))

	wrongClock := core.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeOpus, ClockRate: 8000},
	}}
	assert.False(t, r.CanConsume("p-audio", wrongClock))

	assert.False(t, r.CanConsume("no-such-producer", opus))
}
