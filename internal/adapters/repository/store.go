// Package repository holds the engine's in-memory state behind one lock.
package repository

import (
	"sync"
)

// Store owns all engine state. Every read and write goes through Update or
// View, which serialize on a single mutex so multi-step operations observe
// and produce a consistent point-in-time state.
type Store struct {
	mu sync.Mutex
	tx *Tx
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{tx: newTx()}
}

// Update runs fn with exclusive access to the state. fn must not retain tx
// or call back into the Store.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.tx)
}

// View runs fn with a consistent view of the state. It takes the same lock
// as Update; there is no finer-grained locking.
func (s *Store) View(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.tx)
}

// Stats returns entity counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx.stats()
}
