// Package archive copies chat messages from the room event stream into
// ScyllaDB for long-term history.
package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gocql/gocql"
	"github.com/kayesmahmud/Speaky/pkg/chat"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const GroupID = "archiver"

type Record struct {
	ConnectionID int64
	ID           int64
	SenderID     int64
	Content      string
	Type         string
	CreatedAt    time.Time
}

type Writer interface {
	Save(ctx context.Context, r Record) error
}

// Reader is the part of *kafka.Reader the archiver uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaReader(brokers []string, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
}

type ScyllaWriter struct {
	session *gocql.Session
}

func NewScyllaWriter(session *gocql.Session) *ScyllaWriter {
	return &ScyllaWriter{session: session}
}

func (w *ScyllaWriter) Save(ctx context.Context, r Record) error {
	q := `INSERT INTO message_archive (connection_id, id, sender_id, content, type, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	err := w.session.Query(q, r.ConnectionID, r.ID, r.SenderID, r.Content, r.Type, r.CreatedAt).WithContext(ctx).Exec()
	return errors.Wrapf(err, "archive: save message %d", r.ID)
}

// Recent reads the newest archived messages of a connection.
func (w *ScyllaWriter) Recent(ctx context.Context, connectionID int64, limit int) ([]Record, error) {
	iter := w.session.Query(
		`SELECT connection_id, id, sender_id, content, type, created_at FROM message_archive WHERE connection_id = ? LIMIT ?`,
		connectionID, limit,
	).WithContext(ctx).Iter()

	var out []Record
	var r Record
	for iter.Scan(&r.ConnectionID, &r.ID, &r.SenderID, &r.Content, &r.Type, &r.CreatedAt) {
		out = append(out, r)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "archive: read recent")
	}
	return out, nil
}

type Archiver struct {
	reader Reader
	writer Writer
	log    *zap.Logger
	retry  time.Duration
}

func New(reader Reader, writer Writer, log *zap.Logger) *Archiver {
	return &Archiver{reader: reader, writer: writer, log: log, retry: time.Second}
}

// Run archives until ctx ends. An offset is committed only after its event is
// saved or deliberately skipped.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		m, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.log.Warn("fetch failed, retrying", zap.Error(err))
			if !sleep(ctx, a.retry) {
				return nil
			}
			continue
		}

		for {
			err = a.Handle(ctx, m.Value)
			if err == nil || errors.Is(err, ErrSkip) {
				break
			}
			a.log.Error("archive failed, retrying", zap.Int64("offset", m.Offset), zap.Error(err))
			if !sleep(ctx, a.retry) {
				return nil
			}
		}
		if err := a.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			a.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// ErrSkip marks an event that will never be archived.
var ErrSkip = errors.New("archive: skipped")

// Handle archives one room event. Anything other than a new_message comes
// back as ErrSkip.
func (a *Archiver) Handle(ctx context.Context, value []byte) error {
	var ev chat.RoomEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		a.log.Warn("malformed room event", zap.Error(err))
		return errors.Wrap(ErrSkip, "malformed")
	}
	if ev.Event != chat.EventNewMessage {
		return ErrSkip
	}
	var p model.MessagePayload
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		a.log.Warn("malformed message payload", zap.String("room", ev.Room), zap.Error(err))
		return errors.Wrap(ErrSkip, "malformed payload")
	}
	created, err := time.Parse(time.RFC3339, p.CreatedAt)
	if err != nil {
		created = time.Now().UTC()
	}
	rec := Record{
		ConnectionID: p.ConnectionID,
		ID:           p.ID,
		SenderID:     p.SenderID,
		Content:      p.Content,
		Type:         string(p.Type),
		CreatedAt:    created,
	}
	if err := a.writer.Save(ctx, rec); err != nil {
		return err
	}
	a.log.Debug("archived message", zap.Int64("id", rec.ID), zap.Int64("connection_id", rec.ConnectionID))
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
