package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/style_cart/internal/cart/events"
	"github.com/fjod/style_cart/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic   = "checkout-completed"
	DefaultGroupID = "cart-service-consumer"
)

// CheckoutCompleter removes a completed checkout's items from the user's cart.
type CheckoutCompleter interface {
	CompleteCheckout(ctx context.Context, event events.CheckoutCompleted) error
}

// MessageReader is the subset of *kafka.Reader the poller needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Poller struct {
	carts   CheckoutCompleter
	reader  MessageReader
	log     *zap.Logger
	backoff time.Duration
}

func NewPoller(carts CheckoutCompleter, log *zap.Logger, topic string, brokers ...string) *Poller {
	if topic == "" {
		topic = DefaultTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  DefaultGroupID,
		MaxBytes: 10e6, // 10MB
	})
	return NewPollerWithReader(carts, reader, log)
}

func NewPollerWithReader(carts CheckoutCompleter, reader MessageReader, log *zap.Logger) *Poller {
	return &Poller{
		carts:   carts,
		reader:  reader,
		log:     logger.OrNop(log),
		backoff: time.Second,
	}
}

// Run consumes checkout events until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for ctx.Err() == nil {
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			p.log.Warn("error reading checkout message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
			continue
		}

		if err := p.handle(ctx, m); err != nil {
			p.log.Error("failed to handle checkout message",
				zap.Int64("offset", m.Offset),
				zap.ByteString("key", m.Key),
				zap.Error(err))
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	var event events.CheckoutCompleted
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("error parsing message: %w", err)
	}
	if event.UserID == "" {
		return errors.New("missing or invalid user_id")
	}

	if err := p.carts.CompleteCheckout(ctx, event); err != nil {
		return fmt.Errorf("failed to complete checkout for user %s: %w", event.UserID, err)
	}

	p.log.Info("checkout applied to cart",
		zap.String("user_id", event.UserID),
		zap.String("checkout_id", event.CheckoutID))
	return nil
}
