package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/cache"
	"github.com/fjod/go_cart/cart-service/internal/catalog"
	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultCartTTL keeps an active cart alive; abandoned carts expire and are rehydrated on demand.
const DefaultCartTTL = 7 * 24 * time.Hour

// Enqueuer schedules a reconciliation of the user's durable cart. It must not block.
type Enqueuer interface {
	Enqueue(userID string)
}

type CartService struct {
	store     cache.HashStore
	authority catalog.Authority
	repo      repository.CartRepository
	sync      Enqueuer
	builder   *Builder
	ttl       time.Duration
	log       *slog.Logger
	sfg       singleflight.Group // Prevents hydration stampede
}

type Option func(*CartService)

func WithTTL(ttl time.Duration) Option {
	return func(s *CartService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *CartService) {
		if log != nil {
			s.log = log
		}
	}
}

func NewCartService(
	store cache.HashStore,
	authority catalog.Authority,
	repo repository.CartRepository,
	sync Enqueuer,
	opts ...Option,
) *CartService {
	s := &CartService{
		store:     store,
		authority: authority,
		repo:      repo,
		sync:      sync,
		builder:   NewBuilder(authority),
		ttl:       DefaultCartTTL,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCart serves the cached cart priced live. On a cold cache it falls back to the
// durable mirror and hydrates the cache from it.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	snapshot, err := cache.LoadSnapshot(ctx, s.store, userID)
	if err != nil {
		s.log.WarnContext(ctx, "cart cache read failed, using durable store", "user_id", userID, "err", err)
		snapshot = nil
	}
	if snapshot != nil {
		return s.builder.Build(ctx, userID, snapshot)
	}

	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		return s.hydrate(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CartView), nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID, optionID string, quantity int64) (*domain.CartView, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	if optionID == "" {
		return nil, domain.ErrOptionRequired
	}

	product, err := s.authority.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate product: %w", err)
	}
	option, err := s.authority.GetOption(ctx, optionID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate option: %w", err)
	}
	if option.ProductID != product.ID {
		return nil, domain.ErrOptionMismatch
	}
	if !option.IsActive {
		return nil, domain.ErrOptionInactive
	}

	key := cache.CartKey(userID)
	field := cache.ItemField(product.ID, option.ID)

	fields, err := s.store.GetAll(ctx, key)
	if err != nil {
		return nil, cacheErr(err)
	}
	warm := fields[cache.FieldCartID] != ""

	current, wellFormed := int64(0), true
	if raw, ok := fields[field]; ok {
		current, wellFormed = cache.ParseQuantity(raw)
		if !wellFormed {
			s.log.WarnContext(ctx, "malformed cart quantity, overwriting", "user_id", userID, "field", field, "value", raw)
			current = 0
		}
	}
	// A cold cache is only hydrated once the add is known to pass the stock check.
	if !warm {
		if current, err = s.durableQuantity(ctx, userID, product.ID, option.ID); err != nil {
			return nil, err
		}
	}
	if current+quantity > option.StockQuantity {
		return nil, fmt.Errorf("%w: only %d left", domain.ErrInsufficientStock, option.StockQuantity)
	}

	if !warm {
		if err := s.ensureWarm(ctx, userID); err != nil {
			return nil, err
		}
	}

	cartID, err := s.repo.EnsureCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure cart: %w", err)
	}

	if err := s.store.SetField(ctx, key, cache.FieldCartID, cartID); err != nil {
		return nil, cacheErr(err)
	}
	if wellFormed {
		_, err = s.store.IncrementField(ctx, key, field, quantity)
	} else {
		err = s.store.SetField(ctx, key, field, quantity)
	}
	if err != nil {
		return nil, cacheErr(err)
	}
	if err := s.touch(ctx, key); err != nil {
		return nil, err
	}

	s.sync.Enqueue(userID)
	return s.rebuild(ctx, userID)
}

// UpdateQuantity sets an existing line to quantity. The line must already be cached.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID, optionID string, quantity int64) (*domain.CartView, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	option, err := s.authority.GetOption(ctx, optionID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate option: %w", err)
	}
	if option.ProductID != normalizeID(productID) {
		return nil, domain.ErrOptionMismatch
	}
	if !option.IsActive {
		return nil, domain.ErrOptionInactive
	}
	if quantity > option.StockQuantity {
		return nil, fmt.Errorf("%w: only %d left", domain.ErrInsufficientStock, option.StockQuantity)
	}

	key := cache.CartKey(userID)
	field := cache.ItemField(option.ProductID, option.ID)

	exists, err := s.store.FieldExists(ctx, key, field)
	if err != nil {
		return nil, cacheErr(err)
	}
	if !exists {
		return nil, domain.ErrItemNotInCart
	}

	if err := s.store.SetField(ctx, key, field, quantity); err != nil {
		return nil, cacheErr(err)
	}
	if err := s.touch(ctx, key); err != nil {
		return nil, err
	}

	s.sync.Enqueue(userID)
	return s.rebuild(ctx, userID)
}

// RemoveItem is idempotent: removing a line that is not cached is not an error.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID, optionID string) (*domain.CartView, error) {
	if err := s.ensureWarm(ctx, userID); err != nil {
		return nil, err
	}

	key := cache.CartKey(userID)
	if err := s.store.DeleteField(ctx, key, cache.ItemField(normalizeID(productID), normalizeID(optionID))); err != nil {
		return nil, cacheErr(err)
	}

	// Only refresh a live cart; a bare updatedAt field would be an orphan hash.
	live, err := s.store.FieldExists(ctx, key, cache.FieldCartID)
	if err != nil {
		return nil, cacheErr(err)
	}
	if live {
		if err := s.touch(ctx, key); err != nil {
			return nil, err
		}
	}

	s.sync.Enqueue(userID)
	return s.rebuild(ctx, userID)
}

// ClearCart empties the cart but leaves the hash Warm: cartId and updatedAt stay, every
// other field goes. A Cold key here would let the next read rehydrate the durable lines
// before the queued reconciliation zeroes them.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.CartView, error) {
	key := cache.CartKey(userID)

	fields, err := s.store.GetAll(ctx, key)
	if err != nil {
		return nil, cacheErr(err)
	}

	cartID := fields[cache.FieldCartID]
	if cartID == "" {
		cartID, err = s.repo.GetCartID(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			// Nothing durable to come back from.
			if err := s.store.DeleteKey(ctx, key); err != nil {
				return nil, cacheErr(err)
			}
			return domain.EmptyCart(userID), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get cart id: %w", err)
		}
		if err := s.store.SetField(ctx, key, cache.FieldCartID, cartID); err != nil {
			return nil, cacheErr(err)
		}
		// Re-read so lines written by an in-flight hydration are cleared too.
		if fields, err = s.store.GetAll(ctx, key); err != nil {
			return nil, cacheErr(err)
		}
	}

	for field := range fields {
		if field == cache.FieldCartID || field == cache.FieldUpdatedAt {
			continue
		}
		if err := s.store.DeleteField(ctx, key, field); err != nil {
			return nil, cacheErr(err)
		}
	}
	if err := s.touch(ctx, key); err != nil {
		return nil, err
	}

	s.sync.Enqueue(userID)
	view := domain.EmptyCart(userID)
	view.CartID = cartID
	return view, nil
}

// hydrate loads the durable cart and copies it into the cache. Cache write failures are
// logged only: the durable view is still a valid answer.
func (s *CartService) hydrate(ctx context.Context, userID string) (*domain.CartView, error) {
	durable, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.EmptyCart(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get durable cart: %w", err)
	}

	if err := s.writeHydration(ctx, userID, durable); err != nil {
		s.log.WarnContext(ctx, "cart cache hydration failed", "user_id", userID, "err", err)
	}
	return durable, nil
}

// writeHydration never overwrites fields that a concurrent mutation already wrote.
func (s *CartService) writeHydration(ctx context.Context, userID string, durable *domain.CartView) error {
	key := cache.CartKey(userID)
	for _, item := range durable.Items {
		if item.OptionID == "" {
			continue
		}
		if _, err := s.store.SetFieldIfAbsent(ctx, key, cache.ItemField(item.ProductID, item.OptionID), item.Quantity); err != nil {
			return err
		}
	}
	if _, err := s.store.SetFieldIfAbsent(ctx, key, cache.FieldCartID, durable.CartID); err != nil {
		return err
	}
	if err := s.store.SetField(ctx, key, cache.FieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return s.store.Expire(ctx, key, s.ttl)
}

// durableQuantity reads a line's quantity from the durable mirror without touching the cache.
func (s *CartService) durableQuantity(ctx context.Context, userID, productID, optionID string) (int64, error) {
	durable, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get durable cart: %w", err)
	}
	for _, item := range durable.Items {
		if item.ProductID == productID && item.OptionID == optionID {
			return item.Quantity, nil
		}
	}
	return 0, nil
}

// ensureWarm hydrates a cold cache from the durable mirror before a mutation, so that
// the following reconciliation does not erase durable lines the cache never saw.
func (s *CartService) ensureWarm(ctx context.Context, userID string) error {
	warm, err := s.store.FieldExists(ctx, cache.CartKey(userID), cache.FieldCartID)
	if err != nil {
		return cacheErr(err)
	}
	if warm {
		return nil
	}

	_, err, _ = s.sfg.Do(userID, func() (interface{}, error) {
		return s.hydrate(ctx, userID)
	})
	return err
}

func (s *CartService) touch(ctx context.Context, key string) error {
	if err := s.store.SetField(ctx, key, cache.FieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return cacheErr(err)
	}
	if err := s.store.Expire(ctx, key, s.ttl); err != nil {
		return cacheErr(err)
	}
	return nil
}

func (s *CartService) rebuild(ctx context.Context, userID string) (*domain.CartView, error) {
	snapshot, err := cache.LoadSnapshot(ctx, s.store, userID)
	if err != nil {
		return nil, cacheErr(err)
	}
	return s.builder.Build(ctx, userID, snapshot)
}

func cacheErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
}

// normalizeID canonicalizes UUIDs so cache fields match authority ids.
func normalizeID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

