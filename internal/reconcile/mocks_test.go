package reconcile

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/repository"
)

type mockAuthority struct {
	m        sync.RWMutex
	products map[string]domain.Product
	options  map[string]domain.Option
	err      error
}

func newMockAuthority() *mockAuthority {
	sale := int64(18000)
	return &mockAuthority{
		products: map[string]domain.Product{
			"p1": {ID: "p1", Name: "Coffee beans"},
			"p2": {ID: "p2", Name: "Green tea"},
		},
		options: map[string]domain.Option{
			"o1": {ID: "o1", ProductID: "p1", Price: 20000, SalePrice: &sale, StockQuantity: 50, IsActive: true},
			"o2": {ID: "o2", ProductID: "p1", Price: 12000, StockQuantity: 50, IsActive: true},
			"o3": {ID: "o3", ProductID: "p2", Price: 5000, StockQuantity: 50, IsActive: true},
		},
	}
}

func (m *mockAuthority) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockAuthority) GetOption(_ context.Context, id string) (*domain.Option, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.options[id]
	if !ok {
		return nil, domain.ErrOptionNotFound
	}
	return &o, nil
}

func (m *mockAuthority) GetProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	out := map[string]domain.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockAuthority) GetOptions(_ context.Context, ids []string) (map[string]domain.Option, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]domain.Option{}
	for _, id := range ids {
		if o, ok := m.options[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

func (m *mockAuthority) AdjustStock(context.Context, string, int64) (int64, error) {
	return 0, nil
}

type durableCart struct {
	id    string
	items []domain.DurableItem
	total int64
}

// memRepository is an in-memory durable mirror.
type memRepository struct {
	m       sync.RWMutex
	carts   map[string]*durableCart
	cleared int
}

func newMemRepository() *memRepository {
	return &memRepository{carts: map[string]*durableCart{}}
}

func (m *memRepository) GetCart(_ context.Context, userID string) (*domain.CartView, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	view := domain.EmptyCart(userID)
	view.CartID = c.id
	view.TotalPrice = c.total
	for _, item := range c.items {
		view.Items = append(view.Items, domain.CartLine{
			ProductID: item.ProductID,
			OptionID:  item.OptionID,
			Quantity:  item.Quantity,
			UnitPrice: item.SavedPrice,
		})
	}
	return view, nil
}

func (m *memRepository) GetCartID(_ context.Context, userID string) (string, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return "", repository.ErrCartNotFound
	}
	return c.id, nil
}

func (m *memRepository) EnsureCart(_ context.Context, userID string) (string, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if c, ok := m.carts[userID]; ok {
		return c.id, nil
	}
	c := &durableCart{id: "cart-" + userID}
	m.carts[userID] = c
	return c.id, nil
}

func (m *memRepository) ReplaceItems(_ context.Context, cartID string, items []domain.DurableItem, total int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, c := range m.carts {
		if c.id == cartID {
			c.items = append([]domain.DurableItem(nil), items...)
			c.total = total
			return nil
		}
	}
	return repository.ErrCartNotFound
}

func (m *memRepository) ClearItems(ctx context.Context, cartID string) error {
	m.m.Lock()
	m.cleared++
	m.m.Unlock()
	return m.ReplaceItems(ctx, cartID, nil, 0)
}

func (m *memRepository) items(userID string) ([]domain.DurableItem, int64) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, 0
	}
	return append([]domain.DurableItem(nil), c.items...), c.total
}
