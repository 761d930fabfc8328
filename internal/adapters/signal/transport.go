package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
	"github.com/ubaish01/commune-backend/internal/domain"
)

func (ctl *SignalWSController) handleCreateTransport(
	connID domain.ConnID,
	conn core.SignalConnection,
	data []byte,
) {
	type createPayload struct {
		Type     string `json:"type"`
		CID      uint64 `json:"cid"`
		Consumer bool   `json:"consumer"`
	}
	var p createPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create-transport payload")
		return
	}

	router, roomName, err := ctl.Registry.RouterFor(connID)
	if err != nil {
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}

	ctx, cancel := ctl.mediaCtx()
	defer cancel()
	transport, err := router.CreateTransport(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("create transport")
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}

	replaced, err := ctl.Registry.AddTransport(connID, transport, p.Consumer)
	if err != nil {
		transport.Close()
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}
	if replaced != nil {
		log.Warn().Str("module", "signal").Str("conn", string(connID)).Msg("replacing existing send transport")
		replaced.Close()
	}

	log.Info().Str("module", "signal").Str("conn", string(connID)).
		Str("room", string(roomName)).Str("transport", transport.ID()).
		Bool("consumer", p.Consumer).Msg("transport created")

	resp := struct {
		Params core.TransportParams `json:"params"`
	}{
		Params: transport.Params(),
	}
	ctl.sendReply(conn, p.CID, resp)
}

// handleTransportConnect finishes the handshake on the send transport.
// There is no reply; a handshake failure is fatal to that transport.
func (ctl *SignalWSController) handleTransportConnect(connID domain.ConnID, data []byte) {
	var p core.ConnectParams
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad transport-connect payload")
		return
	}

	transport, err := ctl.Registry.SendTransport(connID)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("transport-connect without send transport")
		return
	}

	ctx, cancel := ctl.mediaCtx()
	defer cancel()
	if err := transport.Connect(ctx, p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).
			Str("transport", transport.ID()).Msg("send transport handshake failed, closing it")
		if t, ok := ctl.Registry.RemoveTransport(transport.ID()); ok {
			t.Close()
		}
	}
}

// handleRecvConnect finishes the handshake on a specific receive transport.
// A missing transport is a recoverable late/duplicate message: silent no-op.
func (ctl *SignalWSController) handleRecvConnect(connID domain.ConnID, data []byte) {
	type recvConnectPayload struct {
		core.ConnectParams
		ServerConsumerTransportID string `json:"serverConsumerTransportId"`
	}
	var p recvConnectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad transport-recv-connect payload")
		return
	}

	transport, ok := ctl.Registry.RecvTransport(connID, p.ServerConsumerTransportID)
	if !ok {
		log.Debug().Str("module", "signal").Str("conn", string(connID)).
			Str("transport", p.ServerConsumerTransportID).Msg("recv-connect for unknown transport, ignoring")
		return
	}

	ctx, cancel := ctl.mediaCtx()
	defer cancel()
	if err := transport.Connect(ctx, p.ConnectParams); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).
			Str("transport", transport.ID()).Msg("recv transport handshake failed, closing it")
		if t, ok := ctl.Registry.RemoveTransport(transport.ID()); ok {
			t.Close()
		}
	}
}
