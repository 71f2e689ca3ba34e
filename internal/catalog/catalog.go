package catalog

import (
	"context"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

// Authority is the read side of the relational system of record for price, stock and active flags.
type Authority interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	GetOption(ctx context.Context, optionID string) (*domain.Option, error)
	// GetProducts and GetOptions resolve a whole batch in one query. Unknown ids are absent from the map.
	GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	GetOptions(ctx context.Context, optionIDs []string) (map[string]domain.Option, error)
	// AdjustStock changes stock by delta and returns the new level. Stock never goes below zero.
	// It is the write side kept for the order workflow; cart operations only read stock.
	AdjustStock(ctx context.Context, optionID string, delta int64) (int64, error)
}
