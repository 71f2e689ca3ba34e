package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/cart-service/internal/cache"
	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/repository"
	"github.com/redis/go-redis/v9"
)

type mockAuthority struct {
	m          sync.RWMutex
	products   map[string]domain.Product
	options    map[string]domain.Option
	err        error
	batchCalls int
}

func (m *mockAuthority) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockAuthority) GetOption(_ context.Context, optionID string) (*domain.Option, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.options[optionID]
	if !ok {
		return nil, domain.ErrOptionNotFound
	}
	return &o, nil
}

func (m *mockAuthority) GetProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.batchCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockAuthority) GetOptions(_ context.Context, ids []string) (map[string]domain.Option, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.batchCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]domain.Option, len(ids))
	for _, id := range ids {
		if o, ok := m.options[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

func (m *mockAuthority) AdjustStock(_ context.Context, optionID string, delta int64) (int64, error) {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.options[optionID]
	if !ok {
		return 0, domain.ErrOptionNotFound
	}
	if o.StockQuantity+delta < 0 {
		return 0, domain.ErrInsufficientStock
	}
	o.StockQuantity += delta
	m.options[optionID] = o
	return o.StockQuantity, nil
}

func (m *mockAuthority) setOption(o domain.Option) {
	m.m.Lock()
	defer m.m.Unlock()
	m.options[o.ID] = o
}

type mockRepository struct {
	m       sync.RWMutex
	carts   map[string]*domain.CartView
	err     error
	ensured int
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.CartView, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]domain.CartLine{}, c.Items...)
	return &cp, nil
}

func (m *mockRepository) GetCartID(_ context.Context, userID string) (string, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return "", repository.ErrCartNotFound
	}
	return c.CartID, nil
}

func (m *mockRepository) EnsureCart(_ context.Context, userID string) (string, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if c, ok := m.carts[userID]; ok {
		return c.CartID, nil
	}
	m.ensured++
	c := domain.EmptyCart(userID)
	c.CartID = "cart-" + userID
	m.carts[userID] = c
	return c.CartID, nil
}

func (m *mockRepository) ReplaceItems(_ context.Context, cartID string, items []domain.DurableItem, total int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c := m.byCartID(cartID)
	if c == nil {
		return repository.ErrCartNotFound
	}
	c.Items = make([]domain.CartLine, 0, len(items))
	for _, it := range items {
		c.Items = append(c.Items, domain.CartLine{
			ProductID: it.ProductID,
			OptionID:  it.OptionID,
			Quantity:  it.Quantity,
			UnitPrice: it.SavedPrice,
		})
	}
	c.TotalPrice = total
	return nil
}

func (m *mockRepository) ClearItems(ctx context.Context, cartID string) error {
	return m.ReplaceItems(ctx, cartID, nil, 0)
}

func (m *mockRepository) byCartID(cartID string) *domain.CartView {
	for _, c := range m.carts {
		if c.CartID == cartID {
			return c
		}
	}
	return nil
}

type mockEnqueuer struct {
	m     sync.Mutex
	users []string
}

func (m *mockEnqueuer) Enqueue(userID string) {
	m.m.Lock()
	defer m.m.Unlock()
	m.users = append(m.users, userID)
}

func (m *mockEnqueuer) count() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.users)
}

func ptr(v int64) *int64 { return &v }

// newCatalog returns two products:
// p1 with o1 (20000, sale 18000, stock 5) and o2 (12000, stock 10);
// p2 with o3 (inactive) and o4 (5000, stock 1).
func newCatalog() *mockAuthority {
	return &mockAuthority{
		products: map[string]domain.Product{
			"p1": {ID: "p1", Name: "Coffee beans", CategoryID: "c1", CategoryName: "Coffee"},
			"p2": {ID: "p2", Name: "Green tea", CategoryID: "c2", CategoryName: "Tea"},
		},
		options: map[string]domain.Option{
			"o1": {ID: "o1", ProductID: "p1", Size: "500", Unit: "g", Price: 20000, SalePrice: ptr(18000), StockQuantity: 5, IsActive: true},
			"o2": {ID: "o2", ProductID: "p1", Size: "1", Unit: "kg", Price: 12000, StockQuantity: 10, IsActive: true},
			"o3": {ID: "o3", ProductID: "p2", Price: 7000, StockQuantity: 10, IsActive: false},
			"o4": {ID: "o4", ProductID: "p2", Price: 5000, StockQuantity: 1, IsActive: true},
		},
	}
}

type testEnv struct {
	svc   *CartService
	mr    *miniredis.Miniredis
	auth  *mockAuthority
	repo  *mockRepository
	queue *mockEnqueuer
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	env := &testEnv{
		mr:    mr,
		auth:  newCatalog(),
		repo:  &mockRepository{carts: map[string]*domain.CartView{}},
		queue: &mockEnqueuer{},
	}
	env.svc = NewCartService(cache.NewRedisHashStore(client), env.auth, env.repo, env.queue, WithTTL(7*24*time.Hour))
	return env
}
