package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	Name string
	// MaxFailures consecutive infrastructure errors open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// BreakerAuthority fails fast with domain.ErrAuthorityUnavailable while the
// underlying authority keeps erroring. Lookups that miss do not count as failures.
type BreakerAuthority struct {
	next Authority
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerAuthority(next Authority, cfg BreakerConfig, log *slog.Logger) *BreakerAuthority {
	if cfg.Name == "" {
		cfg.Name = "catalog"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrNotFound) ||
				errors.Is(err, domain.ErrConflict) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerAuthority{next: next, cb: cb}
}

func (b *BreakerAuthority) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return execute(b.cb, func() (*domain.Product, error) { return b.next.GetProduct(ctx, productID) })
}

func (b *BreakerAuthority) GetOption(ctx context.Context, optionID string) (*domain.Option, error) {
	return execute(b.cb, func() (*domain.Option, error) { return b.next.GetOption(ctx, optionID) })
}

func (b *BreakerAuthority) GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	return execute(b.cb, func() (map[string]domain.Product, error) { return b.next.GetProducts(ctx, productIDs) })
}

func (b *BreakerAuthority) GetOptions(ctx context.Context, optionIDs []string) (map[string]domain.Option, error) {
	return execute(b.cb, func() (map[string]domain.Option, error) { return b.next.GetOptions(ctx, optionIDs) })
}

func (b *BreakerAuthority) AdjustStock(ctx context.Context, optionID string, delta int64) (int64, error) {
	return execute(b.cb, func() (int64, error) { return b.next.AdjustStock(ctx, optionID, delta) })
}

func execute[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%w: %w", domain.ErrAuthorityUnavailable, err)
	}
	v, _ := out.(T)
	return v, err
}
