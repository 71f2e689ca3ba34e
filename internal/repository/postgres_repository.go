package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Repository struct {
	db *sql.DB
}

// OpenDB opens and pings a PostgreSQL connection pool.
func OpenDB(cred *Credentials) (*sql.DB, error) {
	sslMode := cred.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName,
		sslMode)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return db, nil
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "cart_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) GetCartID(ctx context.Context, userID string) (string, error) {
	var cartID string
	err := r.db.QueryRowContext(ctx,
		`SELECT cart_id::text FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrCartNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query cart id: %w", err)
	}
	return cartID, nil
}

// EnsureCart returns the user's cart id, creating the row on first use.
// Concurrent callers for one user all observe the same id.
func (r *Repository) EnsureCart(ctx context.Context, userID string) (string, error) {
	cartID, err := r.GetCartID(ctx, userID)
	if err == nil {
		return cartID, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return "", err
	}

	_, insertErr := r.db.ExecContext(ctx,
		`INSERT INTO carts (cart_id, user_id, total_price, created_at, updated_at)
		 VALUES ($1, $2, 0, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		uuid.New(), userID)
	if insertErr != nil {
		var pqErr *pq.Error
		if !errors.As(insertErr, &pqErr) || pqErr.Code != "23505" {
			return "", fmt.Errorf("insert cart: %w", insertErr)
		}
	}

	return r.GetCartID(ctx, userID)
}

// GetCart returns the durable view with the stored total and saved line prices.
func (r *Repository) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	cart := &domain.CartView{UserID: userID, Items: []domain.CartLine{}}
	err := r.db.QueryRowContext(ctx,
		`SELECT cart_id::text, total_price, created_at, updated_at FROM carts WHERE user_id = $1`,
		userID).Scan(&cart.CartID, &cart.TotalPrice, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}

	query := `
		SELECT ci.product_id::text, ci.option_id::text, ci.quantity, ci.saved_price, ci.added_at,
		       p.name, COALESCE(p.category_id::text, ''), COALESCE(c.name, ''), COALESCE(p.thumbnail, ''),
		       COALESCE(o.size, ''), COALESCE(o.unit, ''), COALESCE(o.image, ''),
		       o.price, o.sale_price, o.discount_percent, o.stock_quantity, o.is_active
		FROM cart_items ci
		JOIN products p ON p.product_id = ci.product_id
		JOIN product_options o ON o.option_id = ci.option_id
		LEFT JOIN categories c ON c.category_id = p.category_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at DESC, ci.product_id, ci.option_id
	`
	rows, err := r.db.QueryContext(ctx, query, cart.CartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		var salePrice sql.NullInt64
		if err := rows.Scan(
			&line.ProductID,
			&line.OptionID,
			&line.Quantity,
			&line.UnitPrice,
			&line.AddedAt,
			&line.Product.Name,
			&line.Product.CategoryID,
			&line.Product.CategoryName,
			&line.Product.Thumbnail,
			&line.Option.Size,
			&line.Option.Unit,
			&line.Option.Image,
			&line.Option.Price,
			&salePrice,
			&line.Option.DiscountPercent,
			&line.Option.StockQuantity,
			&line.Option.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan cart item row: %w", err)
		}
		line.Product.ProductID = line.ProductID
		line.Option.OptionID = line.OptionID
		if salePrice.Valid {
			v := salePrice.Int64
			line.Option.SalePrice = &v
		}
		cart.Items = append(cart.Items, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return cart, nil
}

// ReplaceItems deletes every line of the cart and inserts items in one transaction.
func (r *Repository) ReplaceItems(ctx context.Context, cartID string, items []domain.DurableItem, total int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx,
		`SELECT cart_id::text FROM carts WHERE cart_id = $1 FOR UPDATE`, cartID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCartNotFound
	}
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}

	if len(items) > 0 {
		if err := copyItems(ctx, tx, cartID, items); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE carts SET total_price = $2, updated_at = NOW() WHERE cart_id = $1`,
		cartID, total); err != nil {
		return fmt.Errorf("update cart total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) ClearItems(ctx context.Context, cartID string) error {
	return r.ReplaceItems(ctx, cartID, nil, 0)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func copyItems(ctx context.Context, tx *sql.Tx, cartID string, items []domain.DurableItem) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("cart_items",
		"cart_item_id", "cart_id", "product_id", "option_id", "quantity", "saved_price", "added_at"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			cartID,
			item.ProductID,
			item.OptionID,
			item.Quantity,
			item.SavedPrice,
			now); err != nil {
			return fmt.Errorf("copy cart item: %w", err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush copy: %w", err)
	}
	return nil
}
