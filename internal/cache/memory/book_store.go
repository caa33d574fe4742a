// Package memory provides in-process implementations of the domain cache
// interfaces for single-process deployments and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// BookStore keeps the newest snapshot per symbol.
type BookStore struct {
	mu    sync.RWMutex
	books map[string]domain.OrderBookSnapshot
}

var _ domain.BookStore = (*BookStore)(nil)

// NewBookStore creates an empty store.
func NewBookStore() *BookStore {
	return &BookStore{books: make(map[string]domain.OrderBookSnapshot)}
}

// Put stores snap unless the stored snapshot has the same or a newer update
// id, in which case domain.ErrStaleUpdate is returned.
func (s *BookStore) Put(_ context.Context, snap domain.OrderBookSnapshot) error {
	key := strings.ToUpper(snap.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.books[key]; ok && cur.LastUpdateID >= snap.LastUpdateID {
		return fmt.Errorf("memory: book %s update %d <= %d: %w", key, snap.LastUpdateID, cur.LastUpdateID, domain.ErrStaleUpdate)
	}
	s.books[key] = snap
	return nil
}

// Get returns the stored snapshot or domain.ErrNotFound.
func (s *BookStore) Get(_ context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.books[strings.ToUpper(symbol)]
	if !ok {
		return domain.OrderBookSnapshot{}, fmt.Errorf("memory: book %s: %w", symbol, domain.ErrNotFound)
	}
	return snap, nil
}
