package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/gestio-app/order-composer/internal/catalog"
	"github.com/gestio-app/order-composer/internal/composer"
	"github.com/gestio-app/order-composer/internal/order"
)

type mockOrderRepository struct {
	createOrderFunc  func(ctx context.Context, o *order.Order) (uuid.UUID, error)
	getOrderByIDFunc func(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

func (m *mockOrderRepository) CreateOrder(ctx context.Context, o *order.Order) (uuid.UUID, error) {
	return m.createOrderFunc(ctx, o)
}

func (m *mockOrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getOrderByIDFunc(ctx, id)
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	assert.NoError(t, err)
	return id
}

func validSubmission(t *testing.T) *order.Submission {
	t.Helper()
	return &order.Submission{
		Kind:      order.KindCustomer,
		PartyID:   mustUUID(t),
		OrderDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Lines: []composer.PayloadLine{
			{ProductID: mustUUID(t), Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("3.50")},
			{ProductID: mustUUID(t), Quantity: decimal.RequireFromString("1.5"), UnitPrice: decimal.NewFromInt(4)},
		},
	}
}

func TestService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(t *testing.T, sub *order.Submission)
		wantField string
	}{
		{
			name:      "unknown_kind",
			mutate:    func(t *testing.T, sub *order.Submission) { sub.Kind = "WHOLESALE" },
			wantField: "kind",
		},
		{
			name:      "missing_party",
			mutate:    func(t *testing.T, sub *order.Submission) { sub.PartyID = uuid.Nil },
			wantField: "party_id",
		},
		{
			name:      "missing_order_date",
			mutate:    func(t *testing.T, sub *order.Submission) { sub.OrderDate = time.Time{} },
			wantField: "order_date",
		},
		{
			name:      "empty_lines",
			mutate:    func(t *testing.T, sub *order.Submission) { sub.Lines = nil },
			wantField: "products",
		},
		{
			name: "zero_quantity",
			mutate: func(t *testing.T, sub *order.Submission) {
				sub.Lines[0].Quantity = decimal.Zero
			},
			wantField: "products",
		},
		{
			name: "negative_price",
			mutate: func(t *testing.T, sub *order.Submission) {
				sub.Lines[1].UnitPrice = decimal.NewFromInt(-1)
			},
			wantField: "products",
		},
		{
			name: "nil_product_id",
			mutate: func(t *testing.T, sub *order.Submission) {
				sub.Lines[0].ProductID = uuid.Nil
			},
			wantField: "products",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repoCalled := false
			mockRepo := &mockOrderRepository{
				createOrderFunc: func(ctx context.Context, o *order.Order) (uuid.UUID, error) {
					repoCalled = true
					return mustUUID(t), nil
				},
			}
			svc := order.NewService(mockRepo)

			sub := validSubmission(t)
			tt.mutate(t, sub)

			_, err := svc.Submit(context.Background(), sub)
			assert.Error(t, err)

			var fieldErrs order.FieldErrors
			assert.True(t, errors.As(err, &fieldErrs))
			assert.Contains(t, fieldErrs, tt.wantField)
			assert.False(t, repoCalled, "invalid submissions must not reach the repository")
		})
	}
}

func TestService_Submit_Success(t *testing.T) {
	wantID := mustUUID(t)
	var captured *order.Order

	mockRepo := &mockOrderRepository{
		createOrderFunc: func(ctx context.Context, o *order.Order) (uuid.UUID, error) {
			captured = o
			return wantID, nil
		},
	}
	svc := order.NewService(mockRepo)

	sub := validSubmission(t)
	gotID, err := svc.Submit(context.Background(), sub)

	assert.NoError(t, err)
	assert.Equal(t, wantID, gotID)
	assert.NotNil(t, captured)
	assert.Equal(t, order.StatusNew, captured.Status)
	assert.Equal(t, order.KindCustomer, captured.Kind)
	assert.Len(t, captured.Lines, 2)
	// 2 * 3.50 + 1.5 * 4 = 13
	assert.True(t, captured.TotalAmount.Equal(decimal.NewFromInt(13)))
}

func TestService_Submit_RepositoryErrors(t *testing.T) {
	productID := mustUUID(t)

	tests := []struct {
		name      string
		repoErr   error
		wantField string
		wantWrap  bool
	}{
		{
			name: "stock_changed_concurrently",
			repoErr: &order.StockError{
				ProductID: productID,
				Requested: decimal.NewFromInt(5),
				Available: decimal.NewFromInt(2),
			},
			wantField: "products",
		},
		{
			name:      "product_deleted",
			repoErr:   catalog.ErrProductNotFound,
			wantField: "products",
		},
		{
			name:      "decrement_raced",
			repoErr:   catalog.ErrInsufficientStock,
			wantField: "products",
		},
		{
			name:     "infrastructure_failure",
			repoErr:  errors.New("connection reset"),
			wantWrap: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mockOrderRepository{
				createOrderFunc: func(ctx context.Context, o *order.Order) (uuid.UUID, error) {
					return uuid.Nil, tt.repoErr
				},
			}
			svc := order.NewService(mockRepo)

			_, err := svc.Submit(context.Background(), validSubmission(t))
			assert.Error(t, err)

			var fieldErrs order.FieldErrors
			if tt.wantField != "" {
				assert.True(t, errors.As(err, &fieldErrs))
				assert.Contains(t, fieldErrs, tt.wantField)
			} else {
				assert.False(t, errors.As(err, &fieldErrs), "infrastructure failures are not field errors")
			}
			if tt.wantWrap {
				assert.ErrorIs(t, err, tt.repoErr)
			}
		})
	}
}

func TestService_GetOrderByID(t *testing.T) {
	t.Run("not_found", func(t *testing.T) {
		mockRepo := &mockOrderRepository{
			getOrderByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return nil, order.ErrOrderNotFound
			},
		}
		svc := order.NewService(mockRepo)

		_, err := svc.GetOrderByID(context.Background(), mustUUID(t))
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("success", func(t *testing.T) {
		want := &order.Order{ID: mustUUID(t), Kind: order.KindSupplier, Status: order.StatusNew}
		mockRepo := &mockOrderRepository{
			getOrderByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return want, nil
			},
		}
		svc := order.NewService(mockRepo)

		got, err := svc.GetOrderByID(context.Background(), want.ID)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestFieldErrors_Error(t *testing.T) {
	err := order.FieldErrors{"products": "at least one line", "party_id": "required"}
	assert.Equal(t, "party_id: required; products: at least one line", err.Error())
}
