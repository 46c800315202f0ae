package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/StoreFront/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TestStatusChange_KeyedByUser() {
	ev := messages.OrderStatusChanged{
		UserID:      "u42",
		OrderNumber: "A-1",
		OldStatus:   "PENDING",
		NewStatus:   "SHIPPED",
		TotalAmount: decimal.RequireFromString("99.90"),
		DetectedAt:  time.Date(2024, 6, 12, 10, 30, 0, 0, time.UTC),
	}

	var sent kafka.Message
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			sent = msgs[0]
			return true
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.PublishJSON(context.Background(), messages.TopicOrderStatusChanged, ev.UserID, ev))
	s.wm.AssertExpectations(s.T())

	s.Require().Equal(messages.TopicOrderStatusChanged, sent.Topic)
	s.Require().Equal("u42", string(sent.Key))

	var got messages.OrderStatusChanged
	s.Require().NoError(json.Unmarshal(sent.Value, &got))
	s.Require().NoError(got.Validate())
	s.Require().Equal("A-1", got.OrderNumber)
	s.Require().True(ev.TotalAmount.Equal(got.TotalAmount))
}

func (s *ProducerSuite) TestPublish_ErrorWrapped() {
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available")).Once()

	err := s.p.Publish(context.Background(), "t", []byte("k"), []byte("v"))
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "kafka publish")
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublishJSON_EncodeErrorNotSent() {
	err := s.p.PublishJSON(context.Background(), "t", "k", make(chan int))
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "encode message")
	s.wm.AssertNotCalled(s.T(), "WriteMessages", mock.Anything, mock.Anything)
}

func (s *ProducerSuite) TestClose_WriterWithoutClose() {
	s.Require().NoError(s.p.Close())
}

func (s *ProducerSuite) TestNewProducer_Close() {
	p := NewProducer([]string{"localhost:0"})
	s.Require().NotNil(p)
	s.Require().NoError(p.Close())
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
