// Package draft owns the in-progress orders. Each editing session gets one
// draft: a composer variant matching the order kind plus a type-ahead
// searcher. Drafts live in memory only; they are dropped on submit success,
// on cancel, or by the idle sweep when the session was abandoned.
package draft

import (
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gestio-app/order-composer/internal/catalog"
	"github.com/gestio-app/order-composer/internal/composer"
	"github.com/gestio-app/order-composer/internal/order"
)

var (
	ErrDraftNotFound      = errors.New("draft not found")
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// Composer is the operation set shared by both composer variants. The
// supplier-only SetUnitPrice lives on the concrete UnboundedComposer.
type Composer interface {
	AddProduct(p composer.ProductRef) error
	SetQuantity(productID uuid.UUID, requested decimal.Decimal) (composer.QuantityResult, error)
	RemoveProduct(productID uuid.UUID)
	Lines() []composer.Line
	Total() decimal.Decimal
	Len() int
	Payload() ([]composer.PayloadLine, error)
}

// Draft is one in-progress order. It has a single logical owner and is not
// meant for concurrent mutation; the store only guards its own map and the
// submission re-entry flag.
type Draft struct {
	ID       uuid.UUID
	Kind     order.Kind
	Composer Composer
	Searcher *catalog.Searcher

	mu          sync.Mutex
	submitting  bool
	lastTouched time.Time
}

// Touch refreshes the idle clock.
func (d *Draft) Touch() {
	d.mu.Lock()
	d.lastTouched = time.Now()
	d.mu.Unlock()
}

// BeginSubmit marks the draft busy so a second submit cannot race the first.
func (d *Draft) BeginSubmit() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.submitting {
		return ErrSubmissionInFlight
	}
	d.submitting = true
	d.lastTouched = time.Now()
	return nil
}

// EndSubmit clears the busy flag after a failed submission so the owner can
// correct the draft and resubmit. A successful submission deletes the draft
// instead.
func (d *Draft) EndSubmit() {
	d.mu.Lock()
	d.submitting = false
	d.mu.Unlock()
}

func (d *Draft) idleSince(now time.Time, ttl time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.submitting && now.Sub(d.lastTouched) > ttl
}

// SearcherFactory builds the type-ahead searcher for a new draft.
type SearcherFactory func() *catalog.Searcher

type Store struct {
	mu       sync.Mutex
	drafts   map[uuid.UUID]*Draft
	searcher SearcherFactory
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

func NewStore(searcher SearcherFactory, ttl time.Duration) *Store {
	s := &Store{
		drafts:   make(map[uuid.UUID]*Draft),
		searcher: searcher,
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Create opens a new empty draft of the given kind and returns it.
func (s *Store) Create(kind order.Kind) (*Draft, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	d := &Draft{
		ID:          id,
		Kind:        kind,
		Searcher:    s.searcher(),
		lastTouched: time.Now(),
	}
	if kind == order.KindCustomer {
		d.Composer = composer.NewStockBounded()
	} else {
		d.Composer = composer.NewUnbounded()
	}

	s.mu.Lock()
	s.drafts[id] = d
	s.mu.Unlock()

	log.Info().Stringer("draft_id", id).Stringer("kind", kind).Msg("draft: editing session opened")

	return d, nil
}

func (s *Store) Get(id uuid.UUID) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return d, nil
}

// Delete drops the draft and releases its searcher. Deleting an unknown id
// is a no-op.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	d, ok := s.drafts[id]
	delete(s.drafts, id)
	s.mu.Unlock()

	if ok {
		d.Searcher.Close()
		log.Info().Stringer("draft_id", id).Msg("draft: editing session closed")
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// Close stops the idle sweep.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Store) sweep() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.expire(now)
		}
	}
}

func (s *Store) expire(now time.Time) {
	s.mu.Lock()
	var expired []*Draft
	for id, d := range s.drafts {
		if d.idleSince(now, s.ttl) {
			delete(s.drafts, id)
			expired = append(expired, d)
		}
	}
	s.mu.Unlock()

	for _, d := range expired {
		d.Searcher.Close()
		log.Info().Stringer("draft_id", d.ID).Msg("draft: abandoned session expired")
	}
}
