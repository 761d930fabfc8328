package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ubaish01/commune-backend/internal/app"
	"github.com/ubaish01/commune-backend/internal/core"
	"github.com/ubaish01/commune-backend/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// SignalWSController translates inbound protocol events into registry
// operations and media engine calls, one connection at a time. A connection's
// events are serialized by its read pump; registry mutations are serialized
// by the registry's own lock.
type SignalWSController struct {
	Registry  *app.SessionRegistry
	Lifecycle *app.Lifecycle
	Broadcast *app.Broadcaster

	// MediaTimeout bounds every media engine round trip.
	MediaTimeout time.Duration
	ReadLimit    int64
	PingPeriod   time.Duration
}

func NewSignalWSController(reg *app.SessionRegistry, lc *app.Lifecycle, bc *app.Broadcaster) *SignalWSController {
	return &SignalWSController{
		Registry:     reg,
		Lifecycle:    lc,
		Broadcast:    bc,
		MediaTimeout: 10 * time.Second,
		ReadLimit:    32768,
		PingPeriod:   54 * time.Second,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.Mutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the HTTP request and runs the connection until it
// dies. Each connection gets a fresh id; nothing but the signal binding
// exists until the client joins a room.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	connID := domain.ConnID(uuid.NewString())
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("new WS connection")

	ctl.Lifecycle.OnConnect(connID, conn)
	ctl.sendEvent(conn, connectionSuccessEvent{Type: evtConnectionSuccess, SocketID: string(connID)})

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, connID, conn)
}
