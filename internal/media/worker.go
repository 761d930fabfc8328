// Package media implements the engine facade on top of pion's ORTC API:
// one Worker per process, one Router per room, ICE/DTLS transports per peer,
// RTPReceiver-backed producers and RTPSender-backed consumers.
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

type WorkerConfig struct {
	RTCMinPort  uint16
	RTCMaxPort  uint16
	AnnouncedIP string
}

// Worker is the process-wide media engine entry point. It carries the
// network settings every router inherits.
type Worker struct {
	settings webrtc.SettingEngine

	mu      sync.Mutex
	routers map[string]*Router
	closed  bool
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	se := webrtc.SettingEngine{}
	if cfg.RTCMinPort != 0 || cfg.RTCMaxPort != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.RTCMinPort, cfg.RTCMaxPort); err != nil {
			return nil, fmt.Errorf("rtc port range: %w", err)
		}
	}
	if cfg.AnnouncedIP != "" {
		se.SetNAT1To1IPs([]string{cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}
	log.Info().Str("module", "media.worker").
		Uint16("rtc_min_port", cfg.RTCMinPort).
		Uint16("rtc_max_port", cfg.RTCMaxPort).
		Str("announced_ip", cfg.AnnouncedIP).
		Msg("worker created")
	return &Worker{
		settings: se,
		routers:  make(map[string]*Router),
	}, nil
}

// CreateRouter builds a routing context with the default codec set.
func (w *Worker) CreateRouter(_ context.Context) (core.Router, error) {
	me := &webrtc.MediaEngine{}
	for _, codec := range defaultCodecs() {
		kind := webrtc.RTPCodecTypeAudio
		if codec.MimeType == webrtc.MimeTypeVP8 {
			kind = webrtc.RTPCodecTypeVideo
		}
		if err := me.RegisterCodec(codec, kind); err != nil {
			return nil, fmt.Errorf("register codec %s: %w", codec.MimeType, err)
		}
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(w.settings))

	r := &Router{
		id:         uuid.NewString(),
		api:        api,
		caps:       routerCapabilities(),
		producers:  make(map[string]*Producer),
		transports: make(map[string]*Transport),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, fmt.Errorf("worker closed")
	}
	w.routers[r.id] = r
	log.Info().Str("module", "media.worker").Str("router", r.id).Msg("router created")
	return r, nil
}

// Close tears down every router. Only called on process shutdown; there is
// no partial recovery for a dead engine.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	routers := make([]*Router, 0, len(w.routers))
	for _, r := range w.routers {
		routers = append(routers, r)
	}
	w.routers = make(map[string]*Router)
	w.mu.Unlock()

	for _, r := range routers {
		r.close()
	}
	log.Info().Str("module", "media.worker").Msg("worker closed")
}
