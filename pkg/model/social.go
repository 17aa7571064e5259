package model

import (
	"strconv"
	"time"
)

type ConnectionStatus string

const (
	StatusPending  ConnectionStatus = "pending"
	StatusAccepted ConnectionStatus = "accepted"
	StatusBlocked  ConnectionStatus = "blocked"
)

func (s ConnectionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusBlocked:
		return true
	}
	return false
}

// Connection is the durable pairing between two users. Its id names the
// chat room of the pair.
type Connection struct {
	ID        int64            `json:"id"`
	UserAID   int64            `json:"user_a"`
	UserBID   int64            `json:"user_b"`
	Status    ConnectionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

func (c *Connection) HasParty(userID int64) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// Partner returns the other party, or 0 if userID is not a party.
func (c *Connection) Partner(userID int64) int64 {
	switch userID {
	case c.UserAID:
		return c.UserBID
	case c.UserBID:
		return c.UserAID
	}
	return 0
}

// RoomName is the broadcast group for a connection id.
func RoomName(connectionID int64) string {
	return "connection_" + strconv.FormatInt(connectionID, 10)
}

// User carries the fields the chat core mirrors presence into.
type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	IsOnline   bool      `json:"is_online"`
	LastActive time.Time `json:"last_active"`
}

type UserPatch struct {
	IsOnline   *bool
	LastActive *time.Time
}
