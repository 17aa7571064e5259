package correction

import (
	"context"
	"testing"

	"github.com/kayesmahmud/Speaky/pkg/diff"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/pkg/errors"
)

type fixture struct {
	svc     *Service
	store   *store.Memory
	a, b, c *model.User
	msg     *model.Message
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	f := fixture{svc: NewService(s), store: s}
	f.a, _ = s.CreateUser(ctx, "ana")
	f.b, _ = s.CreateUser(ctx, "ben")
	f.c, _ = s.CreateUser(ctx, "cai")
	conn, _ := s.CreateConnection(ctx, f.a.ID, f.b.ID)
	_ = s.UpdateConnectionStatus(ctx, conn.ID, model.StatusAccepted)
	f.msg, _ = s.CreateMessage(ctx, model.NewMessage{ConnectionID: conn.ID, SenderID: f.a.ID, Content: "I go to school"})
	return f
}

func TestCreateRendersDiff(t *testing.T) {
	f := setup(t)
	why := "past tense"
	v, err := f.svc.Create(context.Background(), f.b.ID, Create{MessageID: f.msg.ID, CorrectedText: "I went to school", Explanation: &why})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.OriginalText != "I go to school" || v.CorrectorID != f.b.ID || v.Explanation == nil || *v.Explanation != why {
		t.Fatalf("view = %+v", v)
	}
	if v.Corrector == nil || v.Corrector.Name != "ben" {
		t.Fatalf("corrector = %+v", v.Corrector)
	}
	want := []diff.Segment{
		{Type: diff.Equal, Text: "I "},
		{Type: diff.Delete, Text: "go"},
		{Type: diff.Insert, Text: "went"},
		{Type: diff.Equal, Text: " to school"},
	}
	if len(v.Diff) != len(want) {
		t.Fatalf("diff = %+v", v.Diff)
	}
	for i := range want {
		if v.Diff[i] != want[i] {
			t.Fatalf("diff[%d] = %+v, want %+v", i, v.Diff[i], want[i])
		}
	}
}

func TestCreateRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.a.ID, Create{MessageID: f.msg.ID, CorrectedText: "I went"}); !errors.Is(err, ErrOwnMessage) {
		t.Fatalf("own message: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.c.ID, Create{MessageID: f.msg.ID, CorrectedText: "I went"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsider: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.b.ID, Create{MessageID: f.msg.ID, CorrectedText: "  "}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("blank: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.b.ID, Create{MessageID: 404, CorrectedText: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing message: %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first, _ := f.svc.Create(ctx, f.b.ID, Create{MessageID: f.msg.ID, CorrectedText: "I went to school"})
	second, _ := f.svc.Create(ctx, f.b.ID, Create{MessageID: f.msg.ID, CorrectedText: "I am going to school"})

	list, err := f.svc.ForMessage(ctx, f.a.ID, f.msg.ID)
	if err != nil || len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("ForMessage() = %+v, %v", list, err)
	}
	if _, err := f.svc.ForMessage(ctx, f.c.ID, f.msg.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsider list: %v", err)
	}

	mine, err := f.svc.Mine(ctx, f.a.ID)
	if err != nil || len(mine) != 2 || mine[0].Message == nil || mine[0].Message.Content != "I go to school" {
		t.Fatalf("Mine() = %+v, %v", mine, err)
	}
	if others, _ := f.svc.Mine(ctx, f.b.ID); len(others) != 0 {
		t.Fatalf("b has no corrected messages, got %+v", others)
	}

	if err := f.svc.Delete(ctx, f.a.ID, first.ID); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("delete by non-author: %v", err)
	}
	if err := f.svc.Delete(ctx, f.b.ID, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.svc.Delete(ctx, f.b.ID, first.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
