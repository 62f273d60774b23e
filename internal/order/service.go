package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gestio-app/order-composer/internal/catalog"
)

type Service interface {
	Submit(ctx context.Context, sub *Submission) (uuid.UUID, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
}

type service struct {
	orderRepo Repository
}

func NewService(orderRepo Repository) Service {
	return &service{orderRepo: orderRepo}
}

// Submit validates the finalized submission and creates the order. All
// user-correctable problems come back as FieldErrors so the caller can
// render inline messages and resubmit; the composed draft is never touched
// by a failed submission.
func (s *service) Submit(ctx context.Context, sub *Submission) (uuid.UUID, error) {
	fieldErrs := FieldErrors{}

	if !sub.Kind.Valid() {
		fieldErrs["kind"] = fmt.Sprintf("unknown order kind %q", sub.Kind)
	}
	if sub.PartyID == uuid.Nil {
		fieldErrs["party_id"] = "customer or supplier is required"
	}
	if sub.OrderDate.IsZero() {
		fieldErrs["order_date"] = "order date is required"
	}
	if len(sub.Lines) == 0 {
		fieldErrs["products"] = "order must contain at least one line"
	}

	totalAmount := decimal.Zero
	for _, line := range sub.Lines {
		if line.ProductID == uuid.Nil {
			fieldErrs["products"] = "order line is missing its product"
			break
		}
		if !line.Quantity.IsPositive() {
			fieldErrs["products"] = fmt.Sprintf("quantity for product %s must be greater than zero", line.ProductID)
			break
		}
		if line.UnitPrice.IsNegative() {
			fieldErrs["products"] = fmt.Sprintf("unit price for product %s cannot be negative", line.ProductID)
			break
		}
		totalAmount = totalAmount.Add(line.Quantity.Mul(line.UnitPrice))
	}

	if len(fieldErrs) > 0 {
		log.Warn().Stringer("kind", sub.Kind).Str("field_errors", fieldErrs.Error()).Msg("service: submission rejected by validation")
		return uuid.Nil, fieldErrs
	}

	o := &Order{
		Kind:        sub.Kind,
		PartyID:     sub.PartyID,
		Status:      StatusNew,
		OrderDate:   sub.OrderDate,
		VehicleID:   sub.VehicleID,
		DriverID:    sub.DriverID,
		Comment:     sub.Comment,
		TotalAmount: totalAmount,
	}
	o.Lines = make([]OrderLine, 0, len(sub.Lines))
	for _, line := range sub.Lines {
		o.Lines = append(o.Lines, OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	orderID, err := s.orderRepo.CreateOrder(ctx, o)
	if err != nil {
		var stockErr *StockError
		switch {
		case errors.As(err, &stockErr):
			log.Warn().Err(err).Stringer("product_id", stockErr.ProductID).Msg("service: stock changed since composition")
			return uuid.Nil, FieldErrors{"products": stockErr.Error()}
		case errors.Is(err, catalog.ErrProductNotFound):
			log.Warn().Err(err).Msg("service: submission references unknown product")
			return uuid.Nil, FieldErrors{"products": "one or more products no longer exist"}
		case errors.Is(err, catalog.ErrInsufficientStock):
			log.Warn().Err(err).Msg("service: stock decrement lost the race")
			return uuid.Nil, FieldErrors{"products": "insufficient stock for one or more products"}
		}
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return uuid.Nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("kind", sub.Kind).Stringer("party_id", sub.PartyID).Msg("service: order created")

	return orderID, nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return o, nil
}
