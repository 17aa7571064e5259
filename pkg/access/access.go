// Package access holds the one rule every chat operation shares: a user may
// act on a connection only if they are a party to it and it is accepted.
package access

import (
	"context"

	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/pkg/errors"
)

var ErrAccessDenied = errors.New("access denied")

type ConnectionFinder interface {
	FindConnection(ctx context.Context, f store.ConnectionFilter) (*model.Connection, error)
}

type Checker struct {
	conns ConnectionFinder
}

func NewChecker(conns ConnectionFinder) *Checker {
	return &Checker{conns: conns}
}

// Authorize returns the connection when userID may use it. A missing
// connection, a non-party caller and a non-accepted status all come back as
// ErrAccessDenied; other store errors pass through wrapped.
func (c *Checker) Authorize(ctx context.Context, userID, connectionID int64) (*model.Connection, error) {
	if userID <= 0 || connectionID <= 0 {
		return nil, ErrAccessDenied
	}
	conn, err := c.conns.FindConnection(ctx, store.ConnectionFilter{
		ID:     connectionID,
		Party:  userID,
		Status: model.StatusAccepted,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, errors.Wrap(err, "access: find connection")
	}
	return conn, nil
}
