package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kayesmahmud/Speaky/pkg/access"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Error messages sent to the caller in an error event.
const (
	MsgJoinDenied     = "Access denied to this chat"
	MsgAccessDenied   = "Access denied"
	MsgInvalidType    = "Invalid message type"
	MsgEmptyContent   = "Message content is required"
	MsgContentTooLong = "Message content is too long"
	MsgSendFailed     = "Failed to send message"
)

const DefaultMaxContent = 2000

// Store is the data-access surface the relay needs.
type Store interface {
	access.ConnectionFinder
	CreateMessage(ctx context.Context, nm model.NewMessage) (*model.Message, error)
	UpdateManyMessages(ctx context.Context, f store.MessageFilter, patch store.MessagePatch) ([]int64, error)
}

// Relay turns inbound events into store writes and room broadcasts.
type Relay struct {
	hub        *Hub
	store      Store
	access     *access.Checker
	maxContent int
	now        func() time.Time
}

func NewRelay(hub *Hub, s Store, maxContent int) *Relay {
	if maxContent <= 0 {
		maxContent = DefaultMaxContent
	}
	return &Relay{
		hub:        hub,
		store:      s,
		access:     access.NewChecker(s),
		maxContent: maxContent,
		now:        time.Now,
	}
}

// Handle dispatches one event. Failures the caller should see are sent back
// as error events; the returned error is for logging.
func (r *Relay) Handle(ctx context.Context, c *Client, ev Event) error {
	if c.State() != StateAuthenticated {
		return nil
	}
	r.hub.metrics.events.WithLabelValues(ev.Kind().String()).Inc()

	var err error
	switch e := ev.(type) {
	case JoinRoom:
		err = r.Join(ctx, c, e.ConnectionID)
	case LeaveRoom:
		r.Leave(c, e.ConnectionID)
	case SendMessage:
		_, err = r.SendMessage(ctx, c, e)
	case Typing:
		err = r.Typing(ctx, c, e)
	case MarkRead:
		_, err = r.MarkRead(ctx, c, e)
	}
	if err != nil {
		c.log.Info("event failed", zap.Stringer("event", ev.Kind()), zap.Error(err))
	}
	return err
}

func (r *Relay) Join(ctx context.Context, c *Client, connectionID int64) error {
	if _, err := r.authorize(ctx, c, connectionID); err != nil {
		r.sendError(c, MsgJoinDenied)
		return err
	}
	r.hub.Join(c, model.RoomName(connectionID))
	c.log.Debug("joined room", zap.Int64("connection_id", connectionID))
	return nil
}

func (r *Relay) Leave(c *Client, connectionID int64) {
	r.hub.Leave(c, model.RoomName(connectionID))
}

// SendMessage persists and broadcasts to the whole room, sender included.
func (r *Relay) SendMessage(ctx context.Context, c *Client, e SendMessage) (*model.Message, error) {
	if _, err := r.authorize(ctx, c, e.ConnectionID); err != nil {
		r.sendError(c, MsgAccessDenied)
		return nil, err
	}
	typ, ok := model.ParseMessageType(e.Type)
	if !ok {
		r.sendError(c, MsgInvalidType)
		return nil, errors.Errorf("chat: message type %q", e.Type)
	}
	if strings.TrimSpace(e.Content) == "" {
		r.sendError(c, MsgEmptyContent)
		return nil, errors.New("chat: empty content")
	}
	if utf8.RuneCountInString(e.Content) > r.maxContent {
		r.sendError(c, MsgContentTooLong)
		return nil, errors.New("chat: content too long")
	}

	msg, err := r.store.CreateMessage(ctx, model.NewMessage{
		ConnectionID: e.ConnectionID,
		SenderID:     c.UserID,
		Content:      e.Content,
		Type:         typ,
	})
	if err != nil {
		r.sendError(c, MsgSendFailed)
		return nil, errors.Wrap(err, "chat: persist message")
	}
	r.hub.metrics.messagesSent.Inc()

	if err := r.broadcast(ctx, e.ConnectionID, "", EventNewMessage, model.FormatMessage(msg)); err != nil {
		return msg, err
	}
	return msg, nil
}

// Typing relays to the room minus the typing socket. Sockets outside the
// room are ignored.
func (r *Relay) Typing(ctx context.Context, c *Client, e Typing) error {
	if !r.hub.InRoom(c, model.RoomName(e.ConnectionID)) {
		return nil
	}
	return r.broadcast(ctx, e.ConnectionID, c.ID, EventUserTyping, model.TypingPayload{
		UserID:       c.UserID,
		IsTyping:     e.IsTyping,
		ConnectionID: e.ConnectionID,
	})
}

// MarkRead flips unread messages from the other party and sends a receipt to
// the rest of the room. Denied calls are dropped without an error event.
func (r *Relay) MarkRead(ctx context.Context, c *Client, e MarkRead) ([]int64, error) {
	if _, err := r.authorize(ctx, c, e.ConnectionID); err != nil {
		return nil, err
	}
	readAt := r.now().UTC()
	filter := store.MessageFilter{
		ConnectionIDs: []int64{e.ConnectionID},
		SenderNot:     c.UserID,
		UnreadOnly:    true,
		RestrictIDs:   e.MessageIDs != nil,
		IDs:           e.MessageIDs,
	}
	ids, err := r.store.UpdateManyMessages(ctx, filter, store.MessagePatch{ReadAt: readAt})
	if err != nil {
		return nil, errors.Wrap(err, "chat: mark read")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err = r.broadcast(ctx, e.ConnectionID, c.ID, EventMessagesRead, model.ReadReceiptPayload{
		ConnectionID: e.ConnectionID,
		ReadBy:       c.UserID,
		ReadAt:       model.FormatTime(readAt),
		MessageIDs:   ids,
	})
	return ids, err
}

func (r *Relay) authorize(ctx context.Context, c *Client, connectionID int64) (*model.Connection, error) {
	conn, err := r.access.Authorize(ctx, c.UserID, connectionID)
	if errors.Is(err, access.ErrAccessDenied) {
		r.hub.metrics.accessDenied.Inc()
	}
	return conn, err
}

func (r *Relay) broadcast(ctx context.Context, connectionID int64, except, event string, data interface{}) error {
	ev, err := NewRoomEvent(model.RoomName(connectionID), except, event, data)
	if err != nil {
		return err
	}
	return r.hub.Publish(ctx, ev)
}

func (r *Relay) sendError(c *Client, message string) {
	frame, err := Encode(EventError, model.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	r.hub.SendTo(c, frame)
}
