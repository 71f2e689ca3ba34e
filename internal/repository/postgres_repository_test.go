package repository

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, *sql.DB, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := OpenDB(&Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	})
	require.NoError(t, err)

	repo := NewRepository(db)
	require.NoError(t, repo.RunMigrations())

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, db, cleanup
}

type seededCatalog struct {
	productID string
	optionA   string
	optionB   string
}

func seedCatalog(t *testing.T, db *sql.DB) seededCatalog {
	ctx := context.Background()
	s := seededCatalog{
		productID: uuid.NewString(),
		optionA:   uuid.NewString(),
		optionB:   uuid.NewString(),
	}
	categoryID := uuid.NewString()

	_, err := db.ExecContext(ctx, `INSERT INTO categories (category_id, name) VALUES ($1, 'Coffee')`, categoryID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO products (product_id, name, category_id, thumbnail) VALUES ($1, 'Arabica', $2, 'arabica.png')`,
		s.productID, categoryID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO product_options (option_id, product_id, size, unit, price, sale_price, stock_quantity)
		 VALUES ($1, $3, '250', 'g', 20000, 18000, 10), ($2, $3, '1', 'kg', 60000, NULL, 4)`,
		s.optionA, s.optionB, s.productID)
	require.NoError(t, err)
	return s
}

func TestEnsureCart_Idempotent(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	first, err := repo.EnsureCart(ctx, "user-123")
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := repo.EnsureCart(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	id, err := repo.GetCartID(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, first, id)
}

func TestEnsureCart_ConcurrentCallersShareID(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ids := make([]string, 10)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := repo.EnsureCart(ctx, "user-race")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestGetCart_NotFound(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetCart(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCartNotFound)

	_, err = repo.GetCartID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestReplaceItems_FullReplacement(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db)
	cartID, err := repo.EnsureCart(ctx, "user-123")
	require.NoError(t, err)

	err = repo.ReplaceItems(ctx, cartID, []domain.DurableItem{
		{ProductID: s.productID, OptionID: s.optionA, Quantity: 2, SavedPrice: 18000},
		{ProductID: s.productID, OptionID: s.optionB, Quantity: 1, SavedPrice: 60000},
	}, 96000)
	require.NoError(t, err)

	cart, err := repo.GetCart(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, cartID, cart.CartID)
	assert.Equal(t, int64(96000), cart.TotalPrice)
	require.Len(t, cart.Items, 2)

	byOption := map[string]domain.CartLine{}
	for _, line := range cart.Items {
		byOption[line.OptionID] = line
	}
	a := byOption[s.optionA]
	assert.Equal(t, int64(2), a.Quantity)
	assert.Equal(t, int64(18000), a.UnitPrice)
	assert.Equal(t, "Arabica", a.Product.Name)
	assert.Equal(t, "Coffee", a.Product.CategoryName)
	assert.Equal(t, "g", a.Option.Unit)
	require.NotNil(t, a.Option.SalePrice)
	assert.Equal(t, int64(18000), *a.Option.SalePrice)
	assert.Nil(t, byOption[s.optionB].Option.SalePrice)

	// Second sync replaces everything
	err = repo.ReplaceItems(ctx, cartID, []domain.DurableItem{
		{ProductID: s.productID, OptionID: s.optionB, Quantity: 3, SavedPrice: 60000},
	}, 180000)
	require.NoError(t, err)

	cart, err = repo.GetCart(ctx, "user-123")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, s.optionB, cart.Items[0].OptionID)
	assert.Equal(t, int64(3), cart.Items[0].Quantity)
	assert.Equal(t, int64(180000), cart.TotalPrice)
}

func TestReplaceItems_UnknownCart(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.ReplaceItems(context.Background(), uuid.NewString(), nil, 0)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestReplaceItems_ConcurrentSyncsSerialize(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db)
	cartID, err := repo.EnsureCart(ctx, "user-123")
	require.NoError(t, err)

	sets := [][]domain.DurableItem{
		{{ProductID: s.productID, OptionID: s.optionA, Quantity: 1, SavedPrice: 18000}},
		{
			{ProductID: s.productID, OptionID: s.optionA, Quantity: 2, SavedPrice: 18000},
			{ProductID: s.productID, OptionID: s.optionB, Quantity: 1, SavedPrice: 60000},
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(items []domain.DurableItem) {
			defer wg.Done()
			assert.NoError(t, repo.ReplaceItems(ctx, cartID, items, 0))
		}(sets[i%2])
	}
	wg.Wait()

	cart, err := repo.GetCart(ctx, "user-123")
	require.NoError(t, err)
	assert.Contains(t, []int{1, 2}, len(cart.Items))
}

func TestClearItems(t *testing.T) {
	repo, db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := seedCatalog(t, db)
	cartID, err := repo.EnsureCart(ctx, "user-123")
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceItems(ctx, cartID, []domain.DurableItem{
		{ProductID: s.productID, OptionID: s.optionA, Quantity: 2, SavedPrice: 18000},
	}, 36000))

	require.NoError(t, repo.ClearItems(ctx, cartID))

	cart, err := repo.GetCart(ctx, "user-123")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.TotalPrice)
	assert.Equal(t, cartID, cart.CartID)
}
