package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/StoreFront/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusChangeHandler получает только валидные события.
type StatusChangeHandler func(ctx context.Context, m messages.OrderStatusChanged) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// MaxWait: сколько reader ждёт новые сообщения за один fetch.
	MaxWait time.Duration
}

// Consumer читает order.status_changed.
type Consumer struct {
	r       messageReader
	topic   string
	// без GroupID reader не умеет CommitMessages, offset живёт только в памяти
	grouped bool
	skipped int
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = time.Second
	}
	rc := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		MaxWait:           cfg.MaxWait,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if cfg.GroupID != "" {
		rc.GroupTopics = []string{cfg.Topic}
	} else {
		// без группы читаем только новые события, старые инвалидации не нужны
		rc.Topic = cfg.Topic
		rc.StartOffset = kafka.LastOffset
	}
	return newConsumerWithReader(kafka.NewReader(rc), cfg.Topic, cfg.GroupID != "")
}

func newConsumerWithReader(r messageReader, topic string, grouped bool) *Consumer {
	return &Consumer{r: r, topic: topic, grouped: grouped}
}

func (c *Consumer) Topic() string { return c.topic }

// Skipped: сколько битых сообщений пропущено с момента старта.
func (c *Consumer) Skipped() int { return c.skipped }

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume читает до ошибки или отмены ctx. Битое или невалидное сообщение коммитится
// без вызова handler, иначе consumer встанет на нём навсегда. Ошибка handler
// останавливает чтение без commit. Без группы commit не делается вовсе.
func (c *Consumer) Consume(ctx context.Context, handle StatusChangeHandler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "fetch message")
		}

		ev, ok := c.decode(msg)
		if ok {
			if err := handle(ctx, ev); err != nil {
				return errors.Wrapf(err, "handle %s offset %d", msg.Topic, msg.Offset)
			}
		}
		if !c.grouped {
			continue
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) decode(msg kafka.Message) (messages.OrderStatusChanged, bool) {
	var ev messages.OrderStatusChanged
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.skipped++
		slog.Warn("skip malformed message", "offset", msg.Offset, "err", err)
		return ev, false
	}
	if err := ev.Validate(); err != nil {
		c.skipped++
		slog.Warn("skip invalid message", "offset", msg.Offset, "key", string(msg.Key), "err", err)
		return ev, false
	}
	return ev, true
}
