package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock and quantities are decimals because
// products are sold both by piece and by weight.
type Product struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Unit      string          `json:"unit" db:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Stock     decimal.Decimal `json:"stock" db:"stock"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
