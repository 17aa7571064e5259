// Package store is the data-access layer behind the chat core. Memory keeps
// everything in process; Postgres is backed by pgx.
package store

import (
	"time"

	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: already exists")
)

// ConnectionFilter matches a connection by id. Party and Status narrow the
// match when set.
type ConnectionFilter struct {
	ID     int64
	Party  int64
	Status model.ConnectionStatus
}

func (f ConnectionFilter) matches(c *model.Connection) bool {
	if f.ID != 0 && c.ID != f.ID {
		return false
	}
	if f.Party != 0 && !c.HasParty(f.Party) {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}

// MessageFilter selects messages for bulk updates and counts. IDs only apply
// when RestrictIDs is set, so an empty list selects nothing.
type MessageFilter struct {
	ConnectionIDs []int64
	SenderNot     int64
	UnreadOnly    bool
	RestrictIDs   bool
	IDs           []int64
}

func (f MessageFilter) matches(m *model.Message) bool {
	if len(f.ConnectionIDs) > 0 && !contains(f.ConnectionIDs, m.ConnectionID) {
		return false
	}
	if f.SenderNot != 0 && m.SenderID == f.SenderNot {
		return false
	}
	if f.UnreadOnly && m.IsRead {
		return false
	}
	if f.RestrictIDs && !contains(f.IDs, m.ID) {
		return false
	}
	return true
}

// MessagePatch is the only mutation messages allow: flipping read state.
type MessagePatch struct {
	ReadAt time.Time
}

// CorrectionFilter lists corrections on one message, or on every message a
// user sent. Results are newest first.
type CorrectionFilter struct {
	MessageID     int64
	MessageSender int64
	Limit         int
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
