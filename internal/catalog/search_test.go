package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/gestio-app/order-composer/internal/catalog"
)

type mockRepository struct {
	searchByNameFunc func(ctx context.Context, query string, limit int) ([]catalog.Product, error)
}

func (m *mockRepository) SearchByName(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
	return m.searchByNameFunc(ctx, query, limit)
}

func (m *mockRepository) List(ctx context.Context, limit int) ([]catalog.Product, error) {
	return nil, nil
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return nil, catalog.ErrProductNotFound
}

func (m *mockRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*catalog.Product, error) {
	return nil, catalog.ErrProductNotFound
}

func (m *mockRepository) DecrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, quantity decimal.Decimal) error {
	return nil
}

func testProduct(t *testing.T, name string) catalog.Product {
	t.Helper()

	id, err := uuid.NewV4()
	assert.NoError(t, err)

	return catalog.Product{
		ID:        id,
		Name:      name,
		Unit:      "kg",
		UnitPrice: decimal.NewFromInt(3),
		Stock:     decimal.NewFromInt(10),
	}
}

func TestSearcher_EmptyQueryClearsImmediately(t *testing.T) {
	var calls int
	var mu sync.Mutex

	repo := &mockRepository{
		searchByNameFunc: func(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return nil, nil
		},
	}

	s := catalog.NewSearcher(repo, 50*time.Millisecond, 20)
	defer s.Close()

	s.SetQuery("tomate")
	s.SetQuery("   ")

	time.Sleep(150 * time.Millisecond)

	state := s.State()
	assert.Empty(t, state.Query)
	assert.False(t, state.Searching)
	assert.False(t, state.Searched)
	assert.Empty(t, state.Products)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls, "a cleared query must never reach the repository")
}

func TestSearcher_DebounceCoalescesKeystrokes(t *testing.T) {
	var mu sync.Mutex
	var queries []string

	repo := &mockRepository{
		searchByNameFunc: func(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
			mu.Lock()
			queries = append(queries, query)
			mu.Unlock()
			return []catalog.Product{testProduct(t, query)}, nil
		},
	}

	s := catalog.NewSearcher(repo, 50*time.Millisecond, 20)
	defer s.Close()

	s.SetQuery("t")
	s.SetQuery("to")
	s.SetQuery("tom")

	assert.True(t, s.State().Searching)

	assert.Eventually(t, func() bool {
		return s.State().Searched
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"tom"}, queries, "only the stabilized query is issued")

	state := s.State()
	assert.Equal(t, "tom", state.Query)
	assert.False(t, state.Searching)
	assert.Len(t, state.Products, 1)
}

func TestSearcher_StaleResultDiscarded(t *testing.T) {
	slowStarted := make(chan struct{})
	release := make(chan struct{})

	repo := &mockRepository{
		searchByNameFunc: func(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
			if query == "slow" {
				close(slowStarted)
				<-release
				return []catalog.Product{testProduct(t, "slow result")}, nil
			}
			return []catalog.Product{testProduct(t, "fast result")}, nil
		},
	}

	s := catalog.NewSearcher(repo, time.Millisecond, 20)
	defer s.Close()

	s.SetQuery("slow")
	<-slowStarted

	// A newer query supersedes the in-flight one; the slow completion must
	// not overwrite its result.
	s.SetQuery("fast")

	assert.Eventually(t, func() bool {
		state := s.State()
		return state.Searched && state.Query == "fast"
	}, time.Second, 5*time.Millisecond)

	close(release)
	time.Sleep(20 * time.Millisecond)

	state := s.State()
	assert.Equal(t, "fast", state.Query)
	assert.Len(t, state.Products, 1)
	assert.Equal(t, "fast result", state.Products[0].Name)
}

func TestSearcher_RepositoryFailureDegradesToEmpty(t *testing.T) {
	repo := &mockRepository{
		searchByNameFunc: func(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
			return nil, errors.New("connection refused")
		},
	}

	s := catalog.NewSearcher(repo, time.Millisecond, 20)
	defer s.Close()

	s.SetQuery("tomate")

	assert.Eventually(t, func() bool {
		return s.State().Searched
	}, time.Second, 5*time.Millisecond)

	state := s.State()
	assert.Empty(t, state.Products)
	assert.False(t, state.Searching)
	assert.Equal(t, "tomate", state.Query)
}
