package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/core"
	"github.com/ubaish01/commune-backend/internal/domain"
)

// Inbound event names. Clients address the server with these; the reply to
// an event carrying a correlation id comes back as a "response" frame.
const (
	evtJoinRoom          = "join-room"
	evtCreateTransport   = "create-transport"
	evtTransportConnect  = "transport-connect"
	evtTransportProduce  = "transport-produce"
	evtRecvConnect       = "transport-recv-connect"
	evtConsume           = "consume"
	evtConsumerResume    = "consumer-resume"
	evtGetProducers      = "get-producers"
	evtConnectionSuccess = "connection-success"
	evtProducerClosed    = "producer-closed"
	evtResponse          = "response"
)

type connectionSuccessEvent struct {
	Type     string `json:"type"`
	SocketID string `json:"socketId"`
}

type producerClosedEvent struct {
	Type             string `json:"type"`
	RemoteProducerID string `json:"remoteProducerId"`
}

type responseFrame struct {
	Type string `json:"type"`
	CID  uint64 `json:"cid"`
	Data any    `json:"data"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump processes one inbound event to completion before reading the
// next: the per-connection serialization rule. Pongs for writePump's pings
// refresh the read deadline; a peer that stops answering is torn down.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, connID domain.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
		cancel()
		ctl.Lifecycle.OnDisconnect(connID)
		c.Close()
	}()

	if ctl.PingPeriod > 0 {
		pongWait := ctl.PingPeriod * 10 / 9
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(connID, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(connID domain.ConnID, c core.SignalConnection, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case evtJoinRoom:
		ctl.handleJoinRoom(connID, c, data)
	case evtCreateTransport:
		ctl.handleCreateTransport(connID, c, data)
	case evtTransportConnect:
		ctl.handleTransportConnect(connID, data)
	case evtTransportProduce:
		ctl.handleProduce(connID, c, data)
	case evtRecvConnect:
		ctl.handleRecvConnect(connID, data)
	case evtConsume:
		ctl.handleConsume(connID, c, data)
	case evtConsumerResume:
		ctl.handleConsumerResume(connID, data)
	case evtGetProducers:
		ctl.handleGetProducers(connID, c, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendEvent(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendEvent marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendReply(c core.SignalConnection, cid uint64, data any) {
	ctl.sendEvent(c, responseFrame{Type: evtResponse, CID: cid, Data: data})
}

func (ctl *SignalWSController) sendErrorReply(c core.SignalConnection, cid uint64, msg string) {
	ctl.sendReply(c, cid, errorPayload{Error: msg})
}

// mediaCtx bounds a media engine round trip.
func (ctl *SignalWSController) mediaCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), ctl.MediaTimeout)
}
