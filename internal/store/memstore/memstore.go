// Package memstore is an in-memory implementation of store.Durable and
// store.Ephemeral, used by tests and as a practical default for hosts
// that have no durable facility of their own (e.g. the CLI's ephemeral
// namespace, which is genuinely process-lifetime only).
package memstore

import (
	"context"
	"sync"

	"secvault/internal/store"
)

// Store is a mutex-guarded map satisfying both store.Durable and
// store.Ephemeral.
type Store struct {
	mu        sync.Mutex
	values    map[string][]byte
	listeners map[int]store.ChangeListener
	nextID    int
	access    store.AccessLevel
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		values:    make(map[string][]byte),
		listeners: make(map[int]store.ChangeListener),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}

	out := make([]byte, len(value))
	copy(out, value)

	return out, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.values[key] = stored

	listeners := make([]store.ChangeListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}

	s.mu.Unlock()

	for _, l := range listeners {
		l(key, stored)
	}

	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	listeners := make([]store.ChangeListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(key, nil)
	}

	return nil
}

func (s *Store) OnChange(listener store.ChangeListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) SetAccessLevel(level store.AccessLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = level

	return nil
}

// AccessLevel reports the current access level, for tests that verify
// the session cache sets trusted-context access on initialize.
func (s *Store) AccessLevel() store.AccessLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.access
}
