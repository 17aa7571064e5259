package chat

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Kind enumerates the inbound events a socket may send.
type Kind int

const (
	KindJoinRoom Kind = iota + 1
	KindLeaveRoom
	KindSendMessage
	KindTyping
	KindMarkRead
)

var kindNames = map[string]Kind{
	"join_room":    KindJoinRoom,
	"leave_room":   KindLeaveRoom,
	"send_message": KindSendMessage,
	"typing":       KindTyping,
	"mark_read":    KindMarkRead,
}

func (k Kind) String() string {
	for name, v := range kindNames {
		if v == k {
			return name
		}
	}
	return "unknown"
}

// Outbound event names.
const (
	EventError        = "error"
	EventNewMessage   = "new_message"
	EventUserTyping   = "user_typing"
	EventMessagesRead = "messages_read"
)

var (
	ErrUnknownEvent = errors.New("chat: unknown event")
	ErrBadEnvelope  = errors.New("chat: malformed event")
)

// Event is an inbound event. The set of implementations is closed.
type Event interface {
	Kind() Kind
	sealed()
}

type JoinRoom struct {
	ConnectionID int64 `json:"connectionId"`
}

type LeaveRoom struct {
	ConnectionID int64 `json:"connectionId"`
}

type SendMessage struct {
	ConnectionID int64  `json:"connectionId"`
	Content      string `json:"content"`
	Type         string `json:"type,omitempty"`
}

type Typing struct {
	ConnectionID int64 `json:"connectionId"`
	IsTyping     bool  `json:"isTyping"`
}

// MarkRead with a nil MessageIDs marks every unread partner message; a
// non-nil list restricts the update to those ids.
type MarkRead struct {
	ConnectionID int64   `json:"connectionId"`
	MessageIDs   []int64 `json:"messageIds,omitempty"`
}

func (JoinRoom) Kind() Kind    { return KindJoinRoom }
func (LeaveRoom) Kind() Kind   { return KindLeaveRoom }
func (SendMessage) Kind() Kind { return KindSendMessage }
func (Typing) Kind() Kind      { return KindTyping }
func (MarkRead) Kind() Kind    { return KindMarkRead }

func (JoinRoom) sealed()    {}
func (LeaveRoom) sealed()   {}
func (SendMessage) sealed() {}
func (Typing) sealed()      {}
func (MarkRead) sealed()    {}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode parses one websocket frame.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(ErrBadEnvelope, err.Error())
	}
	kind, ok := kindNames[env.Event]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", env.Event)
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("{}")
	}

	var ev Event
	var err error
	switch kind {
	case KindJoinRoom:
		var e JoinRoom
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case KindLeaveRoom:
		var e LeaveRoom
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case KindSendMessage:
		var e SendMessage
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case KindTyping:
		var e Typing
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case KindMarkRead:
		var e MarkRead
		err = json.Unmarshal(env.Data, &e)
		ev = e
	}
	if err != nil {
		return nil, errors.Wrapf(ErrBadEnvelope, "%s: %v", env.Event, err)
	}
	return ev, nil
}

// Encode builds an outbound frame.
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "chat: encode %s", event)
	}
	return json.Marshal(envelope{Event: event, Data: raw})
}
