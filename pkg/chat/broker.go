package chat

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RoomEvent is one outbound event addressed to every socket in Room except
// the socket named by Except.
type RoomEvent struct {
	Room   string          `json:"room"`
	Except string          `json:"except,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

func NewRoomEvent(room, except, event string, data interface{}) (RoomEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return RoomEvent{}, errors.Wrapf(err, "chat: encode %s", event)
	}
	return RoomEvent{Room: room, Except: except, Event: event, Data: raw}, nil
}

// Broker carries room events between gateway instances. Without one the hub
// delivers to its own sockets directly.
type Broker interface {
	Publish(ctx context.Context, ev RoomEvent) error
	Consume(ctx context.Context, deliver func(RoomEvent)) error
	Close() error
}

// KafkaBroker publishes room events to a topic and reads them back with a
// consumer group unique to this gateway, so every instance sees every event.
type KafkaBroker struct {
	writer *kafka.Writer
	reader *kafka.Reader
	log    *zap.Logger
}

func NewKafkaBroker(brokers []string, topic string, nodeID int64, log *zap.Logger) *KafkaBroker {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	group := "gateway-" + strconv.FormatInt(nodeID, 10) + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     group,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     250 * time.Millisecond,
	})

	return &KafkaBroker{writer: writer, reader: reader, log: log}
}

func (b *KafkaBroker) Publish(ctx context.Context, ev RoomEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "chat: marshal room event")
	}
	err = b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Room),
		Value: value,
		Time:  time.Now(),
	})
	return errors.Wrap(err, "chat: kafka publish")
}

// Consume reads until ctx ends or the reader fails.
func (b *KafkaBroker) Consume(ctx context.Context, deliver func(RoomEvent)) error {
	for {
		m, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "chat: kafka consume")
		}
		var ev RoomEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			b.log.Warn("dropping malformed room event", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}
		deliver(ev)
	}
}

func (b *KafkaBroker) Close() error {
	werr := b.writer.Close()
	rerr := b.reader.Close()
	if werr != nil {
		return errors.Wrap(werr, "chat: close kafka writer")
	}
	return errors.Wrap(rerr, "chat: close kafka reader")
}
