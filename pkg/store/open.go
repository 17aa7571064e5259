package store

import (
	"context"

	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/pkg/errors"
)

// Backend is the surface both store implementations share.
type Backend interface {
	CreateUser(ctx context.Context, name string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, patch model.UserPatch) error
	CreateConnection(ctx context.Context, a, b int64) (*model.Connection, error)
	UpdateConnectionStatus(ctx context.Context, id int64, status model.ConnectionStatus) error
	FindConnection(ctx context.Context, f ConnectionFilter) (*model.Connection, error)
	ListConnectionIDs(ctx context.Context, userID int64, status model.ConnectionStatus) ([]int64, error)
	CreateMessage(ctx context.Context, nm model.NewMessage) (*model.Message, error)
	FindMessage(ctx context.Context, id int64) (*model.Message, error)
	ListMessages(ctx context.Context, connectionID int64) ([]model.Message, error)
	UpdateManyMessages(ctx context.Context, f MessageFilter, patch MessagePatch) ([]int64, error)
	CountMessages(ctx context.Context, f MessageFilter) (int, error)
	CreateCorrection(ctx context.Context, nc model.NewCorrection) (*model.Correction, error)
	FindCorrection(ctx context.Context, id int64) (*model.Correction, error)
	ListCorrections(ctx context.Context, f CorrectionFilter) ([]model.Correction, error)
	DeleteCorrection(ctx context.Context, id int64) error
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*Postgres)(nil)
)

// Open returns the backend named by driver ("memory" or "postgres") and a
// function that releases it. Postgres is migrated before it is returned.
func Open(ctx context.Context, driver, databaseURL string) (Backend, func(), error) {
	switch driver {
	case "", "memory":
		return NewMemory(), func() {}, nil
	case "postgres":
		pg, err := NewPostgres(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, errors.Errorf("store: unknown driver %q", driver)
	}
}
