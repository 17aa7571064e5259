package model

import "time"

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
)

// ParseMessageType maps an empty type to text and rejects unknown ones.
func ParseMessageType(s string) (MessageType, bool) {
	switch MessageType(s) {
	case "", TypeText:
		return TypeText, true
	case TypeImage:
		return TypeImage, true
	}
	return "", false
}

type Message struct {
	ID           int64
	ConnectionID int64
	SenderID     int64
	Content      string
	Type         MessageType
	CreatedAt    time.Time
	IsRead       bool
	ReadAt       *time.Time
	IsFlagged    bool
}

// NewMessage holds the fields a sender supplies; the store fills in the rest.
type NewMessage struct {
	ConnectionID int64
	SenderID     int64
	Content      string
	Type         MessageType
}

type Correction struct {
	ID            int64
	MessageID     int64
	CorrectorID   int64
	OriginalText  string
	CorrectedText string
	Explanation   *string
	CreatedAt     time.Time
}

type NewCorrection struct {
	MessageID     int64
	CorrectorID   int64
	OriginalText  string
	CorrectedText string
	Explanation   *string
}
