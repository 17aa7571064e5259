package model

import "time"

// TimeLayout is the wire format for timestamps: RFC 3339, UTC, milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// MessagePayload is the wire shape of a message.
type MessagePayload struct {
	ID           int64       `json:"id"`
	ConnectionID int64       `json:"connection_id"`
	SenderID     int64       `json:"sender_id"`
	Content      string      `json:"content"`
	Type         MessageType `json:"type"`
	CreatedAt    string      `json:"created_at"`
	IsFlagged    bool        `json:"is_flagged"`
	IsRead       bool        `json:"is_read"`
	ReadAt       *string     `json:"read_at"`
}

func FormatMessage(m *Message) MessagePayload {
	p := MessagePayload{
		ID:           m.ID,
		ConnectionID: m.ConnectionID,
		SenderID:     m.SenderID,
		Content:      m.Content,
		Type:         m.Type,
		CreatedAt:    FormatTime(m.CreatedAt),
		IsFlagged:    m.IsFlagged,
		IsRead:       m.IsRead,
	}
	if m.ReadAt != nil {
		s := FormatTime(*m.ReadAt)
		p.ReadAt = &s
	}
	return p
}

type TypingPayload struct {
	UserID       int64 `json:"userId"`
	IsTyping     bool  `json:"isTyping"`
	ConnectionID int64 `json:"connectionId"`
}

type ReadReceiptPayload struct {
	ConnectionID int64   `json:"connectionId"`
	ReadBy       int64   `json:"readBy"`
	ReadAt       string  `json:"readAt"`
	MessageIDs   []int64 `json:"messageIds"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
