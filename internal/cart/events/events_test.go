package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishCheckoutCompleted(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisherWithWriter(w)

	event := CheckoutCompleted{
		CheckoutID:  "ch-1",
		UserID:      "123",
		Items:       []CheckoutItem{{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(259), Subtotal: decimal.NewFromInt(518)}},
		TotalAmount: decimal.RequireFromString("493.00"),
		Currency:    "MYR",
		CompletedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.PublishCheckoutCompleted(context.Background(), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("ch-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventTypeCheckoutCompleted), msg.Headers[0].Value)

	var got CheckoutCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "123", got.UserID)
	assert.True(t, event.TotalAmount.Equal(got.TotalAmount))
	assert.Equal(t, 2, got.Items[0].Quantity)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishCheckoutCompleted_WriterError(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := NewKafkaPublisherWithWriter(&recordingWriter{err: boom})

	err := p.PublishCheckoutCompleted(context.Background(), CheckoutCompleted{CheckoutID: "ch-1"})
	assert.ErrorIs(t, err, boom)
}
