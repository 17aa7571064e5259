// Package correction lets a conversation partner propose a corrected version
// of a message. Each correction is returned with its word diff against the
// original text.
package correction

import (
	"context"
	"strings"

	"github.com/kayesmahmud/Speaky/pkg/diff"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/pkg/errors"
)

var (
	ErrForbidden  = errors.New("correction: access denied")
	ErrOwnMessage = errors.New("correction: cannot correct your own message")
	ErrNotAuthor  = errors.New("correction: only the corrector may delete it")
	ErrInvalid    = errors.New("correction: corrected text is required")
)

// MineLimit caps how many corrections of the caller's messages are listed.
const MineLimit = 50

type Store interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	FindMessage(ctx context.Context, id int64) (*model.Message, error)
	FindConnection(ctx context.Context, f store.ConnectionFilter) (*model.Connection, error)
	CreateCorrection(ctx context.Context, nc model.NewCorrection) (*model.Correction, error)
	FindCorrection(ctx context.Context, id int64) (*model.Correction, error)
	ListCorrections(ctx context.Context, f store.CorrectionFilter) ([]model.Correction, error)
	DeleteCorrection(ctx context.Context, id int64) error
}

type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type MessageRef struct {
	ID           int64  `json:"id"`
	Content      string `json:"content"`
	ConnectionID int64  `json:"connection_id"`
}

// View is the wire shape of a correction.
type View struct {
	ID            int64          `json:"id"`
	MessageID     int64          `json:"message_id"`
	CorrectorID   int64          `json:"corrector_id"`
	OriginalText  string         `json:"original_text"`
	CorrectedText string         `json:"corrected_text"`
	Explanation   *string        `json:"explanation"`
	CreatedAt     string         `json:"created_at"`
	Corrector     *Person        `json:"corrector,omitempty"`
	Message       *MessageRef    `json:"message,omitempty"`
	Diff          []diff.Segment `json:"diff"`
}

type Create struct {
	MessageID     int64   `json:"message_id"`
	CorrectedText string  `json:"corrected_text"`
	Explanation   *string `json:"explanation,omitempty"`
}

type Service struct {
	store Store
}

func NewService(s Store) *Service {
	return &Service{store: s}
}

// Create records userID's correction of a message in one of their
// conversations. The original text is snapshotted from the message.
func (s *Service) Create(ctx context.Context, userID int64, in Create) (*View, error) {
	if strings.TrimSpace(in.CorrectedText) == "" {
		return nil, ErrInvalid
	}
	msg, err := s.partyMessage(ctx, userID, in.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID == userID {
		return nil, ErrOwnMessage
	}

	c, err := s.store.CreateCorrection(ctx, model.NewCorrection{
		MessageID:     msg.ID,
		CorrectorID:   userID,
		OriginalText:  msg.Content,
		CorrectedText: in.CorrectedText,
		Explanation:   in.Explanation,
	})
	if err != nil {
		return nil, errors.Wrap(err, "correction: create")
	}
	return s.view(ctx, c), nil
}

// ForMessage lists corrections on a message, newest first.
func (s *Service) ForMessage(ctx context.Context, userID, messageID int64) ([]View, error) {
	if _, err := s.partyMessage(ctx, userID, messageID); err != nil {
		return nil, err
	}
	list, err := s.store.ListCorrections(ctx, store.CorrectionFilter{MessageID: messageID})
	if err != nil {
		return nil, errors.Wrap(err, "correction: list")
	}
	out := make([]View, 0, len(list))
	for i := range list {
		out = append(out, *s.view(ctx, &list[i]))
	}
	return out, nil
}

// Mine lists the latest corrections others made to userID's messages.
func (s *Service) Mine(ctx context.Context, userID int64) ([]View, error) {
	list, err := s.store.ListCorrections(ctx, store.CorrectionFilter{MessageSender: userID, Limit: MineLimit})
	if err != nil {
		return nil, errors.Wrap(err, "correction: list mine")
	}
	out := make([]View, 0, len(list))
	for i := range list {
		v := s.view(ctx, &list[i])
		if m, err := s.store.FindMessage(ctx, list[i].MessageID); err == nil {
			v.Message = &MessageRef{ID: m.ID, Content: m.Content, ConnectionID: m.ConnectionID}
		}
		out = append(out, *v)
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, userID, correctionID int64) error {
	c, err := s.store.FindCorrection(ctx, correctionID)
	if err != nil {
		return err
	}
	if c.CorrectorID != userID {
		return ErrNotAuthor
	}
	return s.store.DeleteCorrection(ctx, correctionID)
}

// partyMessage loads a message and checks userID is a party to its
// connection. Any status is accepted, matching who could have seen it.
func (s *Service) partyMessage(ctx context.Context, userID, messageID int64) (*model.Message, error) {
	msg, err := s.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	_, err = s.store.FindConnection(ctx, store.ConnectionFilter{ID: msg.ConnectionID, Party: userID})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, errors.Wrap(err, "correction: find connection")
	}
	return msg, nil
}

func (s *Service) view(ctx context.Context, c *model.Correction) *View {
	v := &View{
		ID:            c.ID,
		MessageID:     c.MessageID,
		CorrectorID:   c.CorrectorID,
		OriginalText:  c.OriginalText,
		CorrectedText: c.CorrectedText,
		Explanation:   c.Explanation,
		CreatedAt:     model.FormatTime(c.CreatedAt),
		Diff:          diff.ComputeWordDiff(c.OriginalText, c.CorrectedText),
	}
	if v.Diff == nil {
		v.Diff = []diff.Segment{}
	}
	if u, err := s.store.GetUser(ctx, c.CorrectorID); err == nil {
		v.Corrector = &Person{ID: u.ID, Name: u.Name}
	}
	return v
}
