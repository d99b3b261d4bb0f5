package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/safar/storefront/internal/logging"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

func TestPublishRoutesByEventType(t *testing.T) {
	ch := &MockChannel{}
	ch.On("ExchangeDeclare", "storefront.events", "topic", true, false, false, false, amqp.Table(nil)).Return(nil)

	var published amqp.Publishing
	ch.On("PublishWithContext", mock.Anything, "storefront.events", TypeOrderPaid, false, false, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(5).(amqp.Publishing)
		}).
		Return(nil)

	p, err := NewAMQPPublisher(ch, "storefront.events", logging.Discard())
	require.NoError(t, err)

	order := &models.Order{
		ID:            42,
		OrderNumber:   "ORD-1",
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusCompleted,
		Total:         decimal.RequireFromString("120.5"),
	}
	e := NewOrderEvent(TypeOrderPaid, order)
	require.NoError(t, p.Publish(context.Background(), e))

	ch.AssertExpectations(t)
	assert.Equal(t, "application/json", published.ContentType)
	assert.Equal(t, amqp.Persistent, published.DeliveryMode)
	assert.Equal(t, e.ID, published.MessageId)

	var decoded Event
	require.NoError(t, json.Unmarshal(published.Body, &decoded))
	assert.Equal(t, int64(42), decoded.OrderID)
	assert.Equal(t, "120.50", decoded.Total)
}

func TestNewPublisherClosesChannelWhenDeclareFails(t *testing.T) {
	ch := &MockChannel{}
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("access refused"))
	ch.On("Close").Return(nil)

	_, err := NewAMQPPublisher(ch, "storefront.events", logging.Discard())
	require.Error(t, err)
	ch.AssertCalled(t, "Close")
}

func TestPublishWrapsChannelError(t *testing.T) {
	ch := &MockChannel{}
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(amqp.ErrClosed)

	p, err := NewAMQPPublisher(ch, "storefront.events", logging.Discard())
	require.NoError(t, err)

	err = p.Publish(context.Background(), NewOrderEvent(TypeOrderCreated, &models.Order{ID: 1}))
	assert.ErrorIs(t, err, amqp.ErrClosed)
}
