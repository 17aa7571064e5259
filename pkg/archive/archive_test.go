package archive

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/chat"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type memWriter struct {
	mu      sync.Mutex
	records []Record
	fail    int
}

func (w *memWriter) Save(_ context.Context, r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail > 0 {
		w.fail--
		return errors.New("scylla unavailable")
	}
	w.records = append(w.records, r)
	return nil
}

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func roomEvent(t *testing.T, event string, data interface{}) []byte {
	t.Helper()
	ev, err := chat.NewRoomEvent(model.RoomName(7), "", event, data)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(ev)
	return raw
}

func TestHandle(t *testing.T) {
	w := &memWriter{}
	a := New(&fakeReader{}, w, zap.NewNop())
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 123e6, time.UTC)
	msg := model.FormatMessage(&model.Message{ID: 11, ConnectionID: 7, SenderID: 3, Content: "hola", Type: model.TypeText, CreatedAt: created})

	if err := a.Handle(ctx, roomEvent(t, chat.EventNewMessage, msg)); err != nil {
		t.Fatalf("Handle(new_message): %v", err)
	}
	if err := a.Handle(ctx, roomEvent(t, chat.EventUserTyping, model.TypingPayload{UserID: 3})); !errors.Is(err, ErrSkip) {
		t.Fatalf("typing: %v", err)
	}
	if err := a.Handle(ctx, []byte("{")); !errors.Is(err, ErrSkip) {
		t.Fatalf("garbage: %v", err)
	}

	if len(w.records) != 1 {
		t.Fatalf("records = %+v", w.records)
	}
	r := w.records[0]
	if r.ID != 11 || r.ConnectionID != 7 || r.SenderID != 3 || r.Content != "hola" || r.Type != "text" || !r.CreatedAt.Equal(created) {
		t.Fatalf("record = %+v", r)
	}
}

func TestRunRetriesAndCommits(t *testing.T) {
	w := &memWriter{fail: 2}
	reader := &fakeReader{msgs: make(chan kafka.Message, 4)}
	a := New(reader, w, zap.NewNop())
	a.retry = time.Millisecond

	msg := model.FormatMessage(&model.Message{ID: 1, ConnectionID: 7, SenderID: 3, Content: "hi", Type: model.TypeText, CreatedAt: time.Now()})
	reader.msgs <- kafka.Message{Offset: 10, Value: roomEvent(t, chat.EventNewMessage, msg)}
	reader.msgs <- kafka.Message{Offset: 11, Value: roomEvent(t, chat.EventUserTyping, model.TypingPayload{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(reader.commits()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if got := reader.commits(); len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Fatalf("commits = %v", got)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.records) != 1 {
		t.Fatalf("records = %+v", w.records)
	}
}
