package main

import (
	"context"
	"net/http"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/pkg/errors"
)

// presenceSource answers presence lookups. presence.RedisMirror serves it
// when Redis is configured, otherwise the durable user fields do.
type presenceSource interface {
	IsOnline(ctx context.Context, userID int64) (bool, error)
	LastSeen(ctx context.Context, userID int64) (time.Time, error)
}

type userGetter interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

type storePresence struct {
	users userGetter
}

func (p storePresence) IsOnline(ctx context.Context, userID int64) (bool, error) {
	u, err := p.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsOnline, nil
}

func (p storePresence) LastSeen(ctx context.Context, userID int64) (time.Time, error) {
	u, err := p.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return u.LastActive, nil
}

type presenceResponse struct {
	UserID   int64   `json:"user_id"`
	Online   bool    `json:"online"`
	LastSeen *string `json:"last_seen"`
}

// userPresence never 404s: a user nobody has seen is simply offline.
func (s *server) userPresence(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	online, err := s.presence.IsOnline(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := presenceResponse{UserID: id, Online: online}
	seen, err := s.presence.LastSeen(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !seen.IsZero() {
		formatted := model.FormatTime(seen)
		resp.LastSeen = &formatted
	}
	writeJSON(w, http.StatusOK, resp)
}
