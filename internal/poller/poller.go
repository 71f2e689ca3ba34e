package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic   = "order-placed"
	DefaultGroupID = "cart-service-consumer"
)

var ErrMissingUserID = errors.New("missing or invalid user_id")

// CartClearer empties a user's cart in the cache and schedules the durable mirror to follow.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) (*domain.CartView, error)
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Poller consumes order-placed events. Once an order is placed the cart it was
// built from has to go, otherwise the next reconciliation would restore it.
type Poller struct {
	carts  CartClearer
	reader *kafka.Reader
	log    *slog.Logger
}

type orderPlaced struct {
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id,omitempty"`
}

func NewPoller(carts CartClearer, cfg Config, log *slog.Logger) *Poller {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}
	if log == nil {
		log = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader, log: log.With("topic", cfg.Topic)}
}

func (p *Poller) Run(ctx context.Context) {
	p.log.Info("order poller started")
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Error("error reading message", "err", err)
			}
			continue
		}
		if err := p.processMessage(ctx, m); err != nil {
			p.log.Error("failed to process order event",
				"partition", m.Partition, "offset", m.Offset, "err", err)
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing reader", "err", err)
	}
}

func (p *Poller) processMessage(ctx context.Context, m kafka.Message) error {
	var event orderPlaced
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("error parsing message: %w", err)
	}
	if event.UserID == "" {
		return ErrMissingUserID
	}

	if _, err := p.carts.ClearCart(ctx, event.UserID); err != nil {
		return fmt.Errorf("failed to clear cart for user %s: %w", event.UserID, err)
	}

	p.log.Info("cart cleared after order", "user_id", event.UserID, "order_id", event.OrderID)
	return nil
}
