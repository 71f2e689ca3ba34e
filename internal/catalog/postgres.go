package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const productColumns = `
	p.product_id::text, p.name, COALESCE(p.category_id::text, ''), COALESCE(c.name, ''), COALESCE(p.thumbnail, '')`

const optionColumns = `
	o.option_id::text, o.product_id::text, COALESCE(o.size, ''), COALESCE(o.unit, ''), COALESCE(o.image, ''),
	o.price, o.sale_price, o.discount_percent, o.stock_quantity, o.is_active`

type PostgresAuthority struct {
	db *sql.DB
}

func NewPostgresAuthority(db *sql.DB) *PostgresAuthority {
	return &PostgresAuthority{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func (a *PostgresAuthority) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return nil, domain.ErrProductNotFound
	}

	query := `SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.category_id = p.category_id
		WHERE p.product_id = $1`

	p, err := scanProduct(a.db.QueryRowContext(ctx, query, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (a *PostgresAuthority) GetOption(ctx context.Context, optionID string) (*domain.Option, error) {
	if _, err := uuid.Parse(optionID); err != nil {
		return nil, domain.ErrOptionNotFound
	}

	query := `SELECT` + optionColumns + `
		FROM product_options o
		WHERE o.option_id = $1`

	o, err := scanOption(a.db.QueryRowContext(ctx, query, optionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query option: %w", err)
	}
	return o, nil
}

func (a *PostgresAuthority) GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(productIDs))
	ids := validIDs(productIDs)
	if len(ids) == 0 {
		return products, nil
	}

	query := `SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.category_id = p.category_id
		WHERE p.product_id = ANY($1::uuid[])`

	rows, err := a.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = *p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (a *PostgresAuthority) GetOptions(ctx context.Context, optionIDs []string) (map[string]domain.Option, error) {
	options := make(map[string]domain.Option, len(optionIDs))
	ids := validIDs(optionIDs)
	if len(ids) == 0 {
		return options, nil
	}

	query := `SELECT` + optionColumns + `
		FROM product_options o
		WHERE o.option_id = ANY($1::uuid[])`

	rows, err := a.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options[o.ID] = *o
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return options, nil
}

// AdjustStock applies delta in a single guarded UPDATE. Order placement calls it with a
// negative delta; the cart engine never does.
func (a *PostgresAuthority) AdjustStock(ctx context.Context, optionID string, delta int64) (int64, error) {
	if _, err := uuid.Parse(optionID); err != nil {
		return 0, domain.ErrOptionNotFound
	}

	var stock int64
	err := a.db.QueryRowContext(ctx,
		`UPDATE product_options
		 SET stock_quantity = stock_quantity + $2
		 WHERE option_id = $1 AND stock_quantity + $2 >= 0
		 RETURNING stock_quantity`,
		optionID, delta).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to adjust stock: %w", err)
	}

	// Either the option is gone or the decrement would go negative.
	if _, getErr := a.GetOption(ctx, optionID); getErr != nil {
		return 0, getErr
	}
	return 0, domain.ErrInsufficientStock
}

func scanProduct(row scanner) (*domain.Product, error) {
	p := &domain.Product{}
	if err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.Thumbnail); err != nil {
		return nil, err
	}
	return p, nil
}

func scanOption(row scanner) (*domain.Option, error) {
	o := &domain.Option{}
	var salePrice sql.NullInt64
	err := row.Scan(
		&o.ID,
		&o.ProductID,
		&o.Size,
		&o.Unit,
		&o.Image,
		&o.Price,
		&salePrice,
		&o.DiscountPercent,
		&o.StockQuantity,
		&o.IsActive,
	)
	if err != nil {
		return nil, err
	}
	if salePrice.Valid {
		v := salePrice.Int64
		o.SalePrice = &v
	}
	return o, nil
}

// validIDs drops anything that is not a UUID; such ids cannot resolve.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
