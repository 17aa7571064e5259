package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/pkg/errors"
)

// Memory is an in-process store. It is used for development and tests.
type Memory struct {
	mu          sync.RWMutex
	now         func() time.Time
	users       map[int64]*model.User
	connections map[int64]*model.Connection
	messages    []*model.Message
	corrections map[int64]*model.Correction
	lastID      struct{ user, connection, message, correction int64 }
}

func NewMemory() *Memory {
	return &Memory{
		now:         time.Now,
		users:       make(map[int64]*model.User),
		connections: make(map[int64]*model.Connection),
		corrections: make(map[int64]*model.Correction),
	}
}

func (s *Memory) CreateUser(_ context.Context, name string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID.user++
	u := &model.User{ID: s.lastID.user, Name: name, LastActive: s.now()}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *Memory) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Memory) UpdateUser(_ context.Context, id int64, patch model.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "user %d", id)
	}
	if patch.IsOnline != nil {
		u.IsOnline = *patch.IsOnline
	}
	if patch.LastActive != nil {
		u.LastActive = *patch.LastActive
	}
	return nil
}

// CreateConnection records a pending request from userA to userB.
func (s *Memory) CreateConnection(_ context.Context, userA, userB int64) (*model.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.connections {
		if c.HasParty(userA) && c.HasParty(userB) {
			return nil, ErrConflict
		}
	}
	s.lastID.connection++
	c := &model.Connection{
		ID:        s.lastID.connection,
		UserAID:   userA,
		UserBID:   userB,
		Status:    model.StatusPending,
		CreatedAt: s.now(),
	}
	s.connections[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *Memory) UpdateConnectionStatus(_ context.Context, id int64, status model.ConnectionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "connection %d", id)
	}
	c.Status = status
	return nil
}

func (s *Memory) FindConnection(_ context.Context, f ConnectionFilter) (*model.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f.ID != 0 {
		c, ok := s.connections[f.ID]
		if !ok || !f.matches(c) {
			return nil, ErrNotFound
		}
		cp := *c
		return &cp, nil
	}
	ids := make([]int64, 0, len(s.connections))
	for id := range s.connections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if c := s.connections[id]; f.matches(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListConnectionIDs returns the ids of userID's connections in status.
func (s *Memory) ListConnectionIDs(_ context.Context, userID int64, status model.ConnectionStatus) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for _, c := range s.connections {
		if c.HasParty(userID) && c.Status == status {
			ids = append(ids, c.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Memory) CreateMessage(_ context.Context, nm model.NewMessage) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[nm.ConnectionID]; !ok {
		return nil, errors.Wrapf(ErrNotFound, "connection %d", nm.ConnectionID)
	}
	typ := nm.Type
	if typ == "" {
		typ = model.TypeText
	}
	s.lastID.message++
	m := &model.Message{
		ID:           s.lastID.message,
		ConnectionID: nm.ConnectionID,
		SenderID:     nm.SenderID,
		Content:      nm.Content,
		Type:         typ,
		CreatedAt:    s.now(),
	}
	s.messages = append(s.messages, m)
	cp := *m
	return &cp, nil
}

func (s *Memory) FindMessage(_ context.Context, id int64) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListMessages returns a connection's messages in creation order.
func (s *Memory) ListMessages(_ context.Context, connectionID int64) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Message
	for _, m := range s.messages {
		if m.ConnectionID == connectionID {
			out = append(out, *m)
		}
	}
	return out, nil
}

// UpdateManyMessages marks every matching message read and returns the ids
// it changed.
func (s *Memory) UpdateManyMessages(_ context.Context, f MessageFilter, patch MessagePatch) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	readAt := patch.ReadAt
	var ids []int64
	for _, m := range s.messages {
		if !f.matches(m) {
			continue
		}
		m.IsRead = true
		m.ReadAt = &readAt
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *Memory) CountMessages(_ context.Context, f MessageFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages {
		if f.matches(m) {
			n++
		}
	}
	return n, nil
}

func (s *Memory) CreateCorrection(_ context.Context, nc model.NewCorrection) (*model.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID.correction++
	c := &model.Correction{
		ID:            s.lastID.correction,
		MessageID:     nc.MessageID,
		CorrectorID:   nc.CorrectorID,
		OriginalText:  nc.OriginalText,
		CorrectedText: nc.CorrectedText,
		Explanation:   nc.Explanation,
		CreatedAt:     s.now(),
	}
	s.corrections[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *Memory) FindCorrection(_ context.Context, id int64) (*model.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.corrections[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Memory) ListCorrections(_ context.Context, f CorrectionFilter) ([]model.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	senders := make(map[int64]int64, len(s.messages))
	for _, m := range s.messages {
		senders[m.ID] = m.SenderID
	}
	var out []model.Correction
	for _, c := range s.corrections {
		if f.MessageID != 0 && c.MessageID != f.MessageID {
			continue
		}
		if f.MessageSender != 0 && senders[c.MessageID] != f.MessageSender {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Memory) DeleteCorrection(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.corrections[id]; !ok {
		return ErrNotFound
	}
	delete(s.corrections, id)
	return nil
}
