package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CartRepository is the durable mirror of the cached carts.
// Line rows are written only through ReplaceItems and ClearItems.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.CartView, error)
	GetCartID(ctx context.Context, userID string) (string, error)
	EnsureCart(ctx context.Context, userID string) (string, error)
	ReplaceItems(ctx context.Context, cartID string, items []domain.DurableItem, total int64) error
	ClearItems(ctx context.Context, cartID string) error
}
