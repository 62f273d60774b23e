// Package composer maintains the line-item set of one order in progress and
// derives its total. Two variants exist because customer and supplier orders
// follow different quantity policies: customer quantities are clamped to the
// stock known at add time, supplier quantities are unbounded and a zero
// quantity removes the line.
package composer

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// lineSet holds the ordered lines shared by both composer variants.
// Insertion order is the display order and stays stable across edits.
type lineSet struct {
	lines []Line
}

func (s *lineSet) find(productID uuid.UUID) int {
	for i := range s.lines {
		if s.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Lines returns a copy of the current lines in insertion order.
func (s *lineSet) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *lineSet) Len() int {
	return len(s.lines)
}

// Total sums the line totals fresh on every call; an empty order totals zero.
func (s *lineSet) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range s.lines {
		total = total.Add(s.lines[i].Total())
	}
	return total
}

// RemoveProduct drops the line for productID. Removing an absent product is
// a no-op, not an error.
func (s *lineSet) RemoveProduct(productID uuid.UUID) {
	i := s.find(productID)
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
}

// Payload produces the submission shape. An order with no lines is never
// submittable.
func (s *lineSet) Payload() ([]PayloadLine, error) {
	if len(s.lines) == 0 {
		return nil, ErrEmptyOrder
	}
	out := make([]PayloadLine, 0, len(s.lines))
	for i := range s.lines {
		out = append(out, PayloadLine{
			ProductID: s.lines[i].Product.ID,
			Quantity:  s.lines[i].Quantity,
			UnitPrice: s.lines[i].UnitPrice,
		})
	}
	return out, nil
}

// StockBoundedComposer composes customer orders. Quantities are kept inside
// [1, stock] on every mutation and the unit price is fixed to the catalog
// price at add time.
type StockBoundedComposer struct {
	lineSet
}

func NewStockBounded() *StockBoundedComposer {
	return &StockBoundedComposer{}
}

// AddProduct appends a new line with quantity 1 at the catalog price. Adding
// a product already in the order fails with ErrDuplicateProduct and leaves
// the order unchanged; a product whose snapshot stock is zero fails with
// ErrOutOfStock.
func (c *StockBoundedComposer) AddProduct(p ProductRef) error {
	if c.find(p.ID) >= 0 {
		return ErrDuplicateProduct
	}
	if p.Stock != nil && !p.Stock.IsPositive() {
		return ErrOutOfStock
	}
	c.lines = append(c.lines, Line{
		Product:   p,
		Quantity:  decimal.NewFromInt(1),
		UnitPrice: p.UnitPrice,
	})
	return nil
}

// SetQuantity applies requested clamped into [1, stock]. Out-of-range input
// is not rejected; the result reports the applied value and whether it was
// clamped so the caller can surface a notice instead of silently losing the
// user's intent.
func (c *StockBoundedComposer) SetQuantity(productID uuid.UUID, requested decimal.Decimal) (QuantityResult, error) {
	i := c.find(productID)
	if i < 0 {
		return QuantityResult{}, ErrLineNotFound
	}

	applied := requested
	min := decimal.NewFromInt(1)
	if applied.LessThan(min) {
		applied = min
	}
	if stock := c.lines[i].Product.Stock; stock != nil && applied.GreaterThan(*stock) {
		applied = *stock
	}

	c.lines[i].Quantity = applied
	return QuantityResult{Applied: applied, Clamped: !applied.Equal(requested)}, nil
}

// UnboundedComposer composes supplier orders. There is no stock ceiling,
// quantities may be fractional, setting a quantity to zero or below removes
// the line, and the unit price is editable per line.
type UnboundedComposer struct {
	lineSet
}

func NewUnbounded() *UnboundedComposer {
	return &UnboundedComposer{}
}

// AddProduct appends a new line with quantity 1 at the catalog price, or
// fails with ErrDuplicateProduct if the product is already in the order.
func (c *UnboundedComposer) AddProduct(p ProductRef) error {
	if c.find(p.ID) >= 0 {
		return ErrDuplicateProduct
	}
	c.lines = append(c.lines, Line{
		Product:   p,
		Quantity:  decimal.NewFromInt(1),
		UnitPrice: p.UnitPrice,
	})
	return nil
}

// SetQuantity sets the requested quantity exactly. A request of zero or
// below removes the line entirely.
func (c *UnboundedComposer) SetQuantity(productID uuid.UUID, requested decimal.Decimal) (QuantityResult, error) {
	i := c.find(productID)
	if i < 0 {
		return QuantityResult{}, ErrLineNotFound
	}

	if !requested.IsPositive() {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return QuantityResult{Removed: true}, nil
	}

	c.lines[i].Quantity = requested
	return QuantityResult{Applied: requested}, nil
}

// SetUnitPrice overrides the line's unit price. Negative input is coerced to
// zero; prices are never negative.
func (c *UnboundedComposer) SetUnitPrice(productID uuid.UUID, price decimal.Decimal) error {
	i := c.find(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	if price.IsNegative() {
		price = decimal.Zero
	}
	c.lines[i].UnitPrice = price
	return nil
}
