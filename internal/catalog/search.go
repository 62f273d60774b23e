package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SearchState is the observable type-ahead state. Searching and "no results
// for query" are mutually exclusive: Searched only becomes true once a
// non-superseded request has completed.
type SearchState struct {
	Query     string    `json:"query"`
	Searching bool      `json:"searching"`
	Searched  bool      `json:"searched"`
	Products  []Product `json:"products"`
}

// Searcher debounces type-ahead product queries and guarantees that only the
// latest query's result is ever applied. Every SetQuery bumps a generation
// counter and cancels the outstanding request; a completion with a stale
// generation is discarded, so results never apply out of order.
type Searcher struct {
	repo     Repository
	debounce time.Duration
	limit    int

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	state  SearchState
}

func NewSearcher(repo Repository, debounce time.Duration, limit int) *Searcher {
	return &Searcher{
		repo:     repo,
		debounce: debounce,
		limit:    limit,
	}
}

// SetQuery records a new query. The repository is hit only after the query
// has been stable for the debounce window; an empty or whitespace-only query
// clears the results immediately and never reaches the repository.
func (s *Searcher) SetQuery(query string) {
	trimmed := strings.TrimSpace(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	seq := s.seq
	s.stopPendingLocked()

	if trimmed == "" {
		s.state = SearchState{}
		return
	}

	s.state = SearchState{Query: trimmed, Searching: true}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.run(seq, trimmed)
	})
}

func (s *Searcher) run(seq uint64, query string) {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	products, err := s.repo.SearchByName(ctx, query, s.limit)
	if err != nil {
		// Search failures degrade to an empty result list rather than
		// surfacing an error into the editing session.
		log.Warn().Err(err).Str("query", query).Msg("catalog: product search failed")
		products = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		return
	}
	s.cancel = nil
	s.state = SearchState{Query: query, Searched: true, Products: products}
}

// State returns a snapshot of the current search state.
func (s *Searcher) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state
	if s.state.Products != nil {
		snapshot.Products = make([]Product, len(s.state.Products))
		copy(snapshot.Products, s.state.Products)
	}
	return snapshot
}

// Close cancels any pending or in-flight search.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.stopPendingLocked()
}

func (s *Searcher) stopPendingLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
