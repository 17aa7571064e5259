// Package messages serves conversation history and read state over REST.
package messages

import (
	"context"
	"strings"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/access"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/pkg/errors"
)

var ErrInvalid = errors.New("messages: invalid message")

type Store interface {
	access.ConnectionFinder
	ListConnectionIDs(ctx context.Context, userID int64, status model.ConnectionStatus) ([]int64, error)
	CreateMessage(ctx context.Context, nm model.NewMessage) (*model.Message, error)
	ListMessages(ctx context.Context, connectionID int64) ([]model.Message, error)
	UpdateManyMessages(ctx context.Context, f store.MessageFilter, patch store.MessagePatch) ([]int64, error)
	CountMessages(ctx context.Context, f store.MessageFilter) (int, error)
}

type Service struct {
	store      Store
	access     *access.Checker
	maxContent int
	now        func() time.Time
}

func NewService(s Store, maxContent int) *Service {
	return &Service{store: s, access: access.NewChecker(s), maxContent: maxContent, now: time.Now}
}

// History returns a conversation oldest first.
func (s *Service) History(ctx context.Context, userID, connectionID int64) ([]model.MessagePayload, error) {
	if _, err := s.access.Authorize(ctx, userID, connectionID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, connectionID)
	if err != nil {
		return nil, errors.Wrap(err, "messages: history")
	}
	out := make([]model.MessagePayload, 0, len(msgs))
	for i := range msgs {
		out = append(out, model.FormatMessage(&msgs[i]))
	}
	return out, nil
}

// Send stores a message without a realtime broadcast.
func (s *Service) Send(ctx context.Context, userID, connectionID int64, content, typ string) (*model.MessagePayload, error) {
	if _, err := s.access.Authorize(ctx, userID, connectionID); err != nil {
		return nil, err
	}
	mt, ok := model.ParseMessageType(typ)
	if !ok {
		return nil, errors.Wrapf(ErrInvalid, "type %q", typ)
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.Wrap(ErrInvalid, "content is required")
	}
	if s.maxContent > 0 && len([]rune(content)) > s.maxContent {
		return nil, errors.Wrap(ErrInvalid, "content is too long")
	}
	m, err := s.store.CreateMessage(ctx, model.NewMessage{ConnectionID: connectionID, SenderID: userID, Content: content, Type: mt})
	if err != nil {
		return nil, errors.Wrap(err, "messages: send")
	}
	p := model.FormatMessage(m)
	return &p, nil
}

// MarkRead marks every unread message from the partner and returns how many
// changed.
func (s *Service) MarkRead(ctx context.Context, userID, connectionID int64) (int, error) {
	if _, err := s.access.Authorize(ctx, userID, connectionID); err != nil {
		return 0, err
	}
	ids, err := s.store.UpdateManyMessages(ctx, partnerUnread(userID, connectionID), store.MessagePatch{ReadAt: s.now().UTC()})
	if err != nil {
		return 0, errors.Wrap(err, "messages: mark read")
	}
	return len(ids), nil
}

func (s *Service) UnreadCount(ctx context.Context, userID, connectionID int64) (int, error) {
	if _, err := s.access.Authorize(ctx, userID, connectionID); err != nil {
		return 0, err
	}
	n, err := s.store.CountMessages(ctx, partnerUnread(userID, connectionID))
	return n, errors.Wrap(err, "messages: unread count")
}

// TotalUnread counts unread partner messages across every accepted
// connection of userID.
func (s *Service) TotalUnread(ctx context.Context, userID int64) (int, error) {
	ids, err := s.store.ListConnectionIDs(ctx, userID, model.StatusAccepted)
	if err != nil {
		return 0, errors.Wrap(err, "messages: list connections")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.store.CountMessages(ctx, store.MessageFilter{ConnectionIDs: ids, SenderNot: userID, UnreadOnly: true})
	return n, errors.Wrap(err, "messages: total unread")
}

func partnerUnread(userID, connectionID int64) store.MessageFilter {
	return store.MessageFilter{ConnectionIDs: []int64{connectionID}, SenderNot: userID, UnreadOnly: true}
}
