package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/cart-service/internal/cache"
	"github.com/fjod/go_cart/cart-service/internal/catalog"
	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/repository"
)

// Reconciler copies the cached cart into the durable mirror by full replacement.
type Reconciler struct {
	store     cache.HashStore
	authority catalog.Authority
	repo      repository.CartRepository
	log       *slog.Logger
}

func NewReconciler(store cache.HashStore, authority catalog.Authority, repo repository.CartRepository, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: store, authority: authority, repo: repo, log: log}
}

// Sync re-reads the cache, so running it late or twice converges on the newest cart.
func (r *Reconciler) Sync(ctx context.Context, userID string) error {
	snapshot, err := cache.LoadSnapshot(ctx, r.store, userID)
	if err != nil {
		return fmt.Errorf("failed to load cart snapshot: %w", err)
	}

	if snapshot.IsEmpty() {
		return r.clear(ctx, userID)
	}

	cartID, err := r.repo.EnsureCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure cart: %w", err)
	}

	options, err := r.authority.GetOptions(ctx, snapshot.OptionIDs())
	if err != nil {
		return fmt.Errorf("failed to resolve options: %w", err)
	}

	items := make([]domain.DurableItem, 0, len(snapshot.Lines))
	var total int64
	for _, line := range snapshot.Lines {
		option, ok := options[line.OptionID]
		if !ok || option.ProductID != line.ProductID {
			r.log.DebugContext(ctx, "skipping unresolved cart line",
				"user_id", userID, "product_id", line.ProductID, "option_id", line.OptionID)
			continue
		}
		price := option.UnitPrice()
		items = append(items, domain.DurableItem{
			ProductID:  line.ProductID,
			OptionID:   line.OptionID,
			Quantity:   line.Quantity,
			SavedPrice: price,
		})
		total += price * line.Quantity
	}

	if err := r.repo.ReplaceItems(ctx, cartID, items, total); err != nil {
		return fmt.Errorf("failed to replace cart items: %w", err)
	}

	r.log.DebugContext(ctx, "cart reconciled", "user_id", userID, "cart_id", cartID, "lines", len(items), "total", total)
	return nil
}

func (r *Reconciler) clear(ctx context.Context, userID string) error {
	cartID, err := r.repo.GetCartID(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get cart id: %w", err)
	}

	if err := r.repo.ClearItems(ctx, cartID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	return nil
}
