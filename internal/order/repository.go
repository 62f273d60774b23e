package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gestio-app/order-composer/internal/catalog"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	CreateOrder(ctx context.Context, order *Order) (uuid.UUID, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
}

type postgresRepository struct {
	db       *pgxpool.Pool
	products catalog.Repository
}

func NewRepository(db *pgxpool.Pool, products catalog.Repository) Repository {
	return &postgresRepository{db: db, products: products}
}

// CreateOrder inserts the order header and its lines in one transaction.
// Customer orders additionally lock each product row, verify the requested
// quantity against the authoritative stock and decrement it; any failure
// rolls the whole order back, so an order is created atomically or not at
// all.
func (r *postgresRepository) CreateOrder(ctx context.Context, orderInput *Order) (orderID uuid.UUID, err error) {
	finalOrderID := orderInput.ID
	if finalOrderID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		finalOrderID = genID
	}
	orderInput.ID = finalOrderID

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("order_id_attempted", finalOrderID).Msg("panic recovered during CreateOrder, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("order_id", finalOrderID).Msg("failed to commit transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	if orderInput.Kind == KindCustomer {
		for i := range orderInput.Lines {
			line := &orderInput.Lines[i]

			product, lockErr := r.products.GetForUpdate(ctx, tx, line.ProductID)
			if lockErr != nil {
				err = lockErr
				return uuid.Nil, err
			}
			if product.Stock.LessThan(line.Quantity) {
				err = &StockError{ProductID: line.ProductID, Requested: line.Quantity, Available: product.Stock}
				return uuid.Nil, err
			}
			if err = r.products.DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return uuid.Nil, err
			}
		}
	}

	now := time.Now().UTC()

	queryOrder := `
		INSERT INTO orders (id, kind, party_id, status, order_date, vehicle_id, driver_id, comment, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, queryOrder,
		finalOrderID,
		string(orderInput.Kind),
		orderInput.PartyID,
		string(orderInput.Status),
		orderInput.OrderDate,
		orderInput.VehicleID,
		orderInput.DriverID,
		orderInput.Comment,
		orderInput.TotalAmount,
		now,
		now,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}
	orderInput.CreatedAt = now
	orderInput.UpdatedAt = now

	queryLine := `
		INSERT INTO order_lines (id, order_id, product_id, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i := range orderInput.Lines {
		line := &orderInput.Lines[i]

		lineID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order line ID: %w", genErr)
			return uuid.Nil, err
		}
		line.ID = lineID
		line.OrderID = finalOrderID
		line.CreatedAt = now

		_, err = tx.Exec(ctx, queryLine,
			line.ID,
			finalOrderID,
			line.ProductID,
			line.Quantity,
			line.UnitPrice,
			now,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				err = fmt.Errorf("repository: order line references %w", catalog.ErrProductNotFound)
				return uuid.Nil, err
			}
			err = fmt.Errorf("repository: failed to insert order line for order %s: %w", finalOrderID, err)
			return uuid.Nil, err
		}
	}

	return finalOrderID, nil
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	queryOrder := `
		SELECT id, kind, party_id, status, order_date, vehicle_id, driver_id, comment, total_amount, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var o Order
	err := r.db.QueryRow(ctx, queryOrder, orderID).Scan(
		&o.ID,
		&o.Kind,
		&o.PartyID,
		&o.Status,
		&o.OrderDate,
		&o.VehicleID,
		&o.DriverID,
		&o.Comment,
		&o.TotalAmount,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	queryLines := `
		SELECT id, order_id, product_id, quantity, unit_price, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, queryLines, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order lines for order %s: %w", orderID, err)
	}
	defer rows.Close()

	lines := make([]OrderLine, 0)
	for rows.Next() {
		var line OrderLine
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.Quantity,
			&line.UnitPrice,
			&line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order line for order %s: %w", orderID, err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order lines for order %s: %w", orderID, err)
	}

	o.Lines = lines

	return &o, nil
}
