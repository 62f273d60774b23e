package order

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/gestio-app/order-composer/internal/composer"
)

// Kind separates the two order flows: customer orders consume stock,
// supplier orders replenish it.
type Kind string

const (
	KindCustomer Kind = "CUSTOMER"
	KindSupplier Kind = "SUPPLIER"
)

func (k Kind) String() string {
	return string(k)
}

func (k Kind) Valid() bool {
	return k == KindCustomer || k == KindSupplier
}

type Status string

const (
	StatusNew       Status = "NEW"
	StatusFulfilled Status = "FULFILLED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) String() string {
	return string(s)
}

type OrderLine struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type Order struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Kind        Kind            `json:"kind" db:"kind"`
	PartyID     uuid.UUID       `json:"party_id" db:"party_id"`
	Status      Status          `json:"status" db:"status"`
	OrderDate   time.Time       `json:"order_date" db:"order_date"`
	VehicleID   *uuid.UUID      `json:"vehicle_id,omitempty" db:"vehicle_id"`
	DriverID    *uuid.UUID      `json:"driver_id,omitempty" db:"driver_id"`
	Comment     string          `json:"comment,omitempty" db:"comment"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	Lines       []OrderLine     `json:"lines" db:"-"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Submission is the finalized payload handed over by the editing session:
// the order header plus the composer's line payload.
type Submission struct {
	Kind      Kind
	PartyID   uuid.UUID
	OrderDate time.Time
	VehicleID *uuid.UUID
	DriverID  *uuid.UUID
	Comment   string
	Lines     []composer.PayloadLine
}

// FieldErrors is the field-keyed validation error surface. The key set is
// open-ended; clients must tolerate keys they do not know.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return strings.Join(parts, "; ")
}

// StockError reports that a product's authoritative stock no longer covers
// the requested quantity at submission time.
type StockError struct {
	ProductID uuid.UUID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *StockError) Error() string {
	return fmt.Sprintf("product %s has %s in stock, %s requested", e.ProductID, e.Available, e.Requested)
}
