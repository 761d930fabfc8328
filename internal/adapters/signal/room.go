package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/app"
	"github.com/ubaish01/commune-backend/internal/core"
	"github.com/ubaish01/commune-backend/internal/domain"
)

func (ctl *SignalWSController) handleJoinRoom(
	connID domain.ConnID,
	conn core.SignalConnection,
	data []byte,
) {
	type joinPayload struct {
		Type     string `json:"type"`
		CID      uint64 `json:"cid"`
		RoomName string `json:"roomName"`
		Name     string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join-room payload")
		return
	}
	if p.RoomName == "" {
		ctl.sendErrorReply(conn, p.CID, "empty room name")
		return
	}
	details, err := domain.NewPeerDetails(p.Name)
	if err != nil {
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}

	roomName := domain.RoomName(p.RoomName)
	ctx, cancel := ctl.mediaCtx()
	defer cancel()
	router, err := ctl.Registry.CreateOrJoinRoom(ctx, roomName, connID)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("room", p.RoomName).Msg("create or join room")
		ctl.sendErrorReply(conn, p.CID, err.Error())
		if errors.Is(err, app.ErrDuplicateConnection) {
			conn.Close()
		}
		return
	}

	if err := ctl.Registry.RegisterPeer(connID, roomName, details); err != nil {
		// A duplicate registration means the lifecycle bookkeeping is broken;
		// this connection cannot continue, others are unaffected.
		if errors.Is(err, app.ErrDuplicateConnection) {
			log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("duplicate peer, closing connection")
			ctl.sendErrorReply(conn, p.CID, err.Error())
			conn.Close()
			return
		}
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(connID)).
		Str("room", p.RoomName).Str("name", details.Name).Msg("joined room")

	resp := struct {
		RTPCapabilities core.RTPCapabilities `json:"rtpCapabilities"`
	}{
		RTPCapabilities: router.RTPCapabilities(),
	}
	ctl.sendReply(conn, p.CID, resp)

	// A joiner was not around for earlier new-producer events; replay them
	// after the join reply so it can start consuming right away.
	ctl.Broadcast.CatchUp(roomName, connID, conn)
}

func (ctl *SignalWSController) handleGetProducers(
	connID domain.ConnID,
	conn core.SignalConnection,
	data []byte,
) {
	type getPayload struct {
		Type string `json:"type"`
		CID  uint64 `json:"cid"`
	}
	var p getPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad get-producers payload")
		return
	}

	_, roomName, err := ctl.Registry.PeerDetails(connID)
	if err != nil {
		ctl.sendErrorReply(conn, p.CID, err.Error())
		return
	}

	list := ctl.Broadcast.ListExisting(roomName, connID)
	if list == nil {
		list = []app.ProducerInfo{}
	}
	ctl.sendReply(conn, p.CID, list)
}
