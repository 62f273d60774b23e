package composer

import (
	"errors"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateProduct = errors.New("product already present in order")
	ErrOutOfStock       = errors.New("product is out of stock")
	ErrLineNotFound     = errors.New("order line not found")
	ErrEmptyOrder       = errors.New("order has no lines")
)

// ProductRef is an immutable snapshot of a catalog product taken at the
// moment it was added to the order. Catalog changes after that moment do not
// affect already-composed lines.
type ProductRef struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Unit      string           `json:"unit"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	Stock     *decimal.Decimal `json:"stock,omitempty"` // nil when this flow has no stock ceiling
}

// Line is one entry of an order in progress.
type Line struct {
	Product   ProductRef      `json:"product"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Total is always derived from the current quantity and unit price. It is
// never stored, so it cannot go stale.
func (l Line) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// PayloadLine is the shape handed to the submission service.
type PayloadLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// QuantityResult reports what a quantity edit actually did: the value that
// was applied, whether it was clamped to stay inside the valid range, and
// whether the line was removed (zero quantity in the unbounded variant).
type QuantityResult struct {
	Applied decimal.Decimal `json:"applied"`
	Clamped bool            `json:"clamped"`
	Removed bool            `json:"removed"`
}
