package chat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 256
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Client is one realtime socket. Room membership and the closed flag are
// guarded by the hub lock.
type Client struct {
	ID     string
	UserID int64

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	state   atomic.Int32
	cancel  context.CancelFunc
	log     *zap.Logger

	rooms  map[string]struct{}
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, id string, userID int64, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      id,
		UserID:  userID,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: limiter,
		log:     hub.log.With(zap.String("socket_id", id), zap.Int64("user_id", userID)),
		rooms:   make(map[string]struct{}),
	}
}

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// readPump decodes frames and hands each event to the relay in arrival order.
func (c *Client) readPump(ctx context.Context, relay *Relay, maxSize int64) {
	defer func() {
		c.hub.Unregister(context.WithoutCancel(ctx), c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Info("socket read failed", zap.Error(err))
			}
			return
		}
		if c.State() == StateTerminated {
			return
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.hub.metrics.dropped.Inc()
			c.log.Warn("rate limit exceeded, dropping event")
			continue
		}
		ev, err := Decode(raw)
		if err != nil {
			c.hub.metrics.dropped.Inc()
			c.log.Debug("undecodable event", zap.Error(err))
			continue
		}
		relay.Handle(ctx, c, ev)
	}
}

// writePump drains the send channel, one frame per event, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
