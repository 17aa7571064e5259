// Package chat is the realtime side of Speaky: socket sessions, room
// membership and the relay of chat events between the parties of an
// accepted connection.
package chat

import (
	"context"
	"sync"

	"github.com/kayesmahmud/Speaky/pkg/presence"
	"go.uber.org/zap"
)

// Hub owns room membership for the sockets on this process and fans room
// events out to them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}
	presence *presence.Tracker
	broker   Broker
	metrics  *Metrics
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewHub wires the hub. A nil broker means single-instance delivery.
func NewHub(tracker *presence.Tracker, broker Broker, metrics *Metrics, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if tracker == nil {
		tracker = presence.NewTracker(nil, log)
	}
	return &Hub{
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
		presence: tracker,
		broker:   broker,
		metrics:  metrics,
		log:      log,
	}
}

func (h *Hub) Presence() *presence.Tracker { return h.presence }

// Register admits an authenticated socket and records its presence.
func (h *Hub) Register(ctx context.Context, c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	c.setState(StateAuthenticated)
	if h.presence.Register(ctx, c.UserID, c.ID) {
		h.log.Info("user online", zap.Int64("user_id", c.UserID))
	}
	h.metrics.connections.Set(float64(total))
	h.metrics.onlineUsers.Set(float64(h.presence.OnlineCount()))
}

// Unregister drops the socket from every room, closes its send channel and
// releases its presence. Calling it twice is harmless.
func (h *Hub) Unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	c.closed = true
	close(c.send)
	total := len(h.clients)
	h.mu.Unlock()

	c.setState(StateTerminated)
	if c.cancel != nil {
		c.cancel()
	}
	if h.presence.Unregister(ctx, c.UserID, c.ID) {
		h.log.Info("user offline", zap.Int64("user_id", c.UserID))
	}
	h.metrics.connections.Set(float64(total))
	h.metrics.onlineUsers.Set(float64(h.presence.OnlineCount()))
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, room)
}

// removeFromRoom requires h.mu held for writing.
func (h *Hub) removeFromRoom(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// RoomSize counts the local sockets in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish sends ev to the room, through the broker when there is one.
func (h *Hub) Publish(ctx context.Context, ev RoomEvent) error {
	if h.broker == nil {
		h.deliver(ev)
		return nil
	}
	return h.broker.Publish(ctx, ev)
}

// SendTo queues a frame for a single socket.
func (h *Hub) SendTo(c *Client, frame []byte) {
	if !h.trySend(c, frame) {
		h.dropSlow([]*Client{c})
	}
}

func (h *Hub) deliver(ev RoomEvent) {
	frame, err := Encode(ev.Event, ev.Data)
	if err != nil {
		h.log.Error("encode room event", zap.String("event", ev.Event), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[ev.Room]))
	for c := range h.rooms[ev.Room] {
		if ev.Except != "" && c.ID == ev.Except {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, c := range targets {
		if !h.trySend(c, frame) {
			slow = append(slow, c)
		}
	}
	h.dropSlow(slow)
}

func (h *Hub) trySend(c *Client, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (h *Hub) dropSlow(clients []*Client) {
	for _, c := range clients {
		c.log.Warn("send buffer full, dropping socket")
		h.metrics.dropped.Inc()
		h.Unregister(context.Background(), c)
	}
}

// Run consumes the broker until ctx ends, then closes every socket. A broker
// failure stops the hub at once and is returned, since no room event could be
// delivered after it.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker != nil {
		if err := h.broker.Consume(ctx, h.deliver); err != nil && ctx.Err() == nil {
			h.log.Error("broker consume failed", zap.Error(err))
			h.shutdown()
			return err
		}
	}
	<-ctx.Done()
	h.shutdown()
	return nil
}

func (h *Hub) shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(context.Background(), c)
	}
	h.wg.Wait()
	if h.broker != nil {
		if err := h.broker.Close(); err != nil {
			h.log.Warn("broker close", zap.Error(err))
		}
	}
	h.log.Info("hub stopped", zap.Int("closed_sockets", len(clients)))
}

// start launches a registered socket's pumps; shutdown waits for them.
func (h *Hub) start(ctx context.Context, c *Client, relay *Relay, maxSize int64) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump(ctx, relay, maxSize)
	}()
}
