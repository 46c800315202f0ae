package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/BearBump/StoreFront/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	i         int
	committed []kafka.Message
	noGroup   bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if r.noGroup {
		// так отвечает kafka.Reader без GroupID
		return errors.New("unavailable when GroupID is not set")
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

const validEvent = `{"user_id":"u1","order_number":"A-1","old_status":"PENDING","new_status":"SHIPPED","total_amount":"10.5","detected_at":"2024-06-12T10:30:00Z"}`

func TestConsumer_DecodesAndCommits(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Key: []byte("u1"), Value: []byte(validEvent)}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr, messages.TopicOrderStatusChanged, true)

	var got []messages.OrderStatusChanged
	err := c.Consume(context.Background(), func(_ context.Context, m messages.OrderStatusChanged) error {
		got = append(got, m)
		return nil
	})
	require.Error(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "u1", got[0].UserID)
	require.Equal(t, "SHIPPED", string(got[0].NewStatus))
	require.Len(t, fr.committed, 1)
	require.Equal(t, 0, c.Skipped())
}

func TestConsumer_SkipsPoisonMessages(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{
		{Value: []byte("{not json")},
		{Value: []byte(`{"user_id":"u1"}`)},
		{Value: []byte(validEvent)},
	}}
	c := newConsumerWithReader(fr, "t", true)

	calls := 0
	_ = c.Consume(context.Background(), func(_ context.Context, m messages.OrderStatusChanged) error {
		calls++
		return nil
	})
	require.Equal(t, 1, calls)
	require.Equal(t, 2, c.Skipped())
	require.Len(t, fr.committed, 3)
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Value: []byte(validEvent)}}}
	c := newConsumerWithReader(fr, "t", true)

	want := errors.New("redis down")
	err := c.Consume(context.Background(), func(context.Context, messages.OrderStatusChanged) error { return want })
	require.ErrorIs(t, err, want)
	require.Empty(t, fr.committed)
}

func TestConsumer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newConsumerWithReader(&fakeReader{err: errors.New("reader closed")}, "t", true)

	err := c.Consume(ctx, func(context.Context, messages.OrderStatusChanged) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewConsumer_Close(t *testing.T) {
	c := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:0"}, Topic: "t", GroupID: "g"})
	require.NotNil(t, c)
	require.Equal(t, "t", c.Topic())
	require.NoError(t, c.Close())
}

func TestConsumer_WithoutGroupDoesNotCommit(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{
			{Value: []byte(validEvent)},
			{Value: []byte("{not json")},
			{Value: []byte(validEvent)},
		},
		err:     errors.New("stop"),
		noGroup: true,
	}
	c := newConsumerWithReader(fr, "t", false)

	calls := 0
	err := c.Consume(context.Background(), func(_ context.Context, m messages.OrderStatusChanged) error {
		calls++
		return nil
	})
	require.ErrorContains(t, err, "fetch message")
	require.Equal(t, 2, calls)
	require.Equal(t, 1, c.Skipped())
	require.Empty(t, fr.committed)
}

func TestNewConsumer_GroupedOnlyWithGroupID(t *testing.T) {
	c := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.False(t, c.grouped)
	require.NoError(t, c.Close())

	c = NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", GroupID: "storefront"})
	require.True(t, c.grouped)
	require.NoError(t, c.Close())
}
