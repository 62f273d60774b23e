package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	SearchByName(ctx context.Context, query string, limit int) ([]Product, error)
	List(ctx context.Context, limit int) ([]Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Product, error)
	DecrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, quantity decimal.Decimal) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const productColumns = "id, name, unit, unit_price, stock, created_at, updated_at"

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Unit,
		&p.UnitPrice,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepository) SearchByName(ctx context.Context, query string, limit int) ([]Product, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE name ILIKE '%%' || $1 || '%%'
		ORDER BY name
		LIMIT $2
	`, productColumns)

	rows, err := r.db.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to search products by name %q: %w", query, err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func (r *postgresRepository) List(ctx context.Context, limit int) ([]Product, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM products
		ORDER BY name
		LIMIT $1
	`, productColumns)

	rows, err := r.db.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	sql := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	p, err := scanProduct(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	return p, nil
}

// GetForUpdate locks the product row for the duration of tx so the stock
// check and decrement of an order submission see a consistent value.
func (r *postgresRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Product, error) {
	sql := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 FOR UPDATE`, productColumns)

	p, err := scanProduct(tx.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to lock product %s: %w", id, err)
	}

	return p, nil
}

func (r *postgresRepository) DecrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, quantity decimal.Decimal) error {
	sql := `
		UPDATE products
		SET stock = stock - $1, updated_at = now()
		WHERE id = $2 AND stock >= $1
	`

	cmdTag, err := tx.Exec(ctx, sql, quantity, id)
	if err != nil {
		return fmt.Errorf("repository: failed to decrement stock for product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}

	return nil
}
