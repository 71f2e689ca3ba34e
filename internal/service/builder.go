package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/catalog"
	"github.com/fjod/go_cart/cart-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Builder prices a cart snapshot against the authority.
type Builder struct {
	authority catalog.Authority
	now       func() time.Time
}

func NewBuilder(authority catalog.Authority) *Builder {
	return &Builder{authority: authority, now: time.Now}
}

// Build joins the snapshot with live product and option data. Lines that no longer
// resolve, or whose option belongs to another product, are dropped. The authority is queried once for products and once for options.
func (b *Builder) Build(ctx context.Context, userID string, snapshot *domain.CartSnapshot) (*domain.CartView, error) {
	now := b.now()
	view := domain.EmptyCart(userID)
	view.CreatedAt = now
	view.UpdatedAt = now
	if snapshot != nil {
		view.CartID = snapshot.CartID
		view.UpdatedAt = snapshot.UpdatedAt
	}
	if snapshot.IsEmpty() {
		return view, nil
	}

	var (
		products map[string]domain.Product
		options  map[string]domain.Option
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = b.authority.GetProducts(gctx, snapshot.ProductIDs())
		return err
	})
	g.Go(func() error {
		var err error
		options, err = b.authority.GetOptions(gctx, snapshot.OptionIDs())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to price cart: %w", err)
	}

	for _, line := range snapshot.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			continue
		}
		option, ok := options[line.OptionID]
		if !ok || option.ProductID != line.ProductID {
			continue
		}

		priced := domain.CartLine{
			ProductID: line.ProductID,
			OptionID:  line.OptionID,
			Quantity:  line.Quantity,
			UnitPrice: option.UnitPrice(),
			Product:   product.Info(),
			Option:    option.Info(),
			AddedAt:   now,
		}
		view.Items = append(view.Items, priced)
		view.TotalPrice += priced.Subtotal()
	}

	return view, nil
}
