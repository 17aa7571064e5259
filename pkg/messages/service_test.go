package messages

import (
	"context"
	"testing"

	"github.com/kayesmahmud/Speaky/pkg/access"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/pkg/errors"
)

func setup(t *testing.T) (*Service, *store.Memory, *model.User, *model.User, *model.Connection) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	a, _ := s.CreateUser(ctx, "ana")
	b, _ := s.CreateUser(ctx, "ben")
	conn, _ := s.CreateConnection(ctx, a.ID, b.ID)
	_ = s.UpdateConnectionStatus(ctx, conn.ID, model.StatusAccepted)
	return NewService(s, 10), s, a, b, conn
}

func TestHistoryAndUnread(t *testing.T) {
	svc, _, a, b, conn := setup(t)
	ctx := context.Background()

	for _, text := range []string{"hola", "que tal"} {
		if _, err := svc.Send(ctx, a.ID, conn.ID, text, ""); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if _, err := svc.Send(ctx, b.ID, conn.ID, "bien", "text"); err != nil {
		t.Fatal(err)
	}

	hist, err := svc.History(ctx, b.ID, conn.ID)
	if err != nil || len(hist) != 3 || hist[0].Content != "hola" || hist[2].SenderID != b.ID {
		t.Fatalf("History() = %+v, %v", hist, err)
	}

	if n, _ := svc.UnreadCount(ctx, b.ID, conn.ID); n != 2 {
		t.Fatalf("b unread = %d, want 2", n)
	}
	if n, _ := svc.UnreadCount(ctx, a.ID, conn.ID); n != 1 {
		t.Fatalf("a unread = %d, want 1", n)
	}
	if n, _ := svc.TotalUnread(ctx, b.ID); n != 2 {
		t.Fatalf("b total unread = %d", n)
	}

	marked, err := svc.MarkRead(ctx, b.ID, conn.ID)
	if err != nil || marked != 2 {
		t.Fatalf("MarkRead() = %d, %v", marked, err)
	}
	if n, _ := svc.TotalUnread(ctx, b.ID); n != 0 {
		t.Fatalf("b total unread after read = %d", n)
	}
	if n, _ := svc.UnreadCount(ctx, a.ID, conn.ID); n != 1 {
		t.Fatal("marking b's side touched a's unread messages")
	}

	hist, _ = svc.History(ctx, a.ID, conn.ID)
	if !hist[0].IsRead || hist[0].ReadAt == nil || hist[2].IsRead {
		t.Fatalf("read flags = %+v", hist)
	}
}

func TestTotalUnreadIgnoresPendingConnections(t *testing.T) {
	svc, s, a, b, conn := setup(t)
	ctx := context.Background()
	c, _ := s.CreateUser(ctx, "cai")
	pending, _ := s.CreateConnection(ctx, c.ID, b.ID)
	_, _ = s.CreateMessage(ctx, model.NewMessage{ConnectionID: pending.ID, SenderID: c.ID, Content: "hey"})
	_, _ = svc.Send(ctx, a.ID, conn.ID, "hola", "")

	if n, _ := svc.TotalUnread(ctx, b.ID); n != 1 {
		t.Fatalf("total unread = %d, want 1", n)
	}
	if n, _ := svc.TotalUnread(ctx, 999); n != 0 {
		t.Fatalf("user without connections = %d", n)
	}
}

func TestAccessAndValidation(t *testing.T) {
	svc, s, a, _, conn := setup(t)
	ctx := context.Background()
	c, _ := s.CreateUser(ctx, "cai")

	if _, err := svc.History(ctx, c.ID, conn.ID); !errors.Is(err, access.ErrAccessDenied) {
		t.Fatalf("outsider history: %v", err)
	}
	if _, err := svc.MarkRead(ctx, c.ID, conn.ID); !errors.Is(err, access.ErrAccessDenied) {
		t.Fatalf("outsider mark read: %v", err)
	}
	for _, tc := range []struct{ content, typ string }{{"", ""}, {"hi", "gif"}, {"far too long text", ""}} {
		if _, err := svc.Send(ctx, a.ID, conn.ID, tc.content, tc.typ); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Send(%q, %q) = %v", tc.content, tc.typ, err)
		}
	}
}
