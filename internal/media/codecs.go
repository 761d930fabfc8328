package media

import (
	"github.com/pion/webrtc/v4"

	"github.com/ubaish01/commune-backend/internal/core"
)

// defaultCodecs is the negotiable codec set for every router:
// opus for audio, VP8 for video.
func defaultCodecs() []webrtc.RTPCodecParameters {
	return []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: 111,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeVP8,
				ClockRate:   90000,
				SDPFmtpLine: "x-google-start-bitrate=1000",
			},
			PayloadType: 96,
		},
	}
}

func routerCapabilities() core.RTPCapabilities {
	codecs := defaultCodecs()
	caps := core.RTPCapabilities{Codecs: make([]webrtc.RTPCodecCapability, 0, len(codecs))}
	for _, c := range codecs {
		caps.Codecs = append(caps.Codecs, c.RTPCodecCapability)
	}
	return caps
}

func codecTypeOf(kind core.MediaKind) webrtc.RTPCodecType {
	if kind == core.KindVideo {
		return webrtc.RTPCodecTypeVideo
	}
	return webrtc.RTPCodecTypeAudio
}

// codecForKind picks the router codec matching a media kind.
func codecForKind(kind core.MediaKind) webrtc.RTPCodecCapability {
	for _, c := range defaultCodecs() {
		if kind == core.KindVideo && c.MimeType == webrtc.MimeTypeVP8 {
			return c.RTPCodecCapability
		}
		if kind == core.KindAudio && c.MimeType == webrtc.MimeTypeOpus {
			return c.RTPCodecCapability
		}
	}
	return webrtc.RTPCodecCapability{}
}

// fromSendParameters converts pion sender parameters to the wire shape.
func fromSendParameters(p webrtc.RTPSendParameters) core.RTPParameters {
	out := core.RTPParameters{
		Codecs:           p.Codecs,
		HeaderExtensions: p.HeaderExtensions,
	}
	for _, e := range p.Encodings {
		out.Encodings = append(out.Encodings, e.RTPCodingParameters)
	}
	return out
}
