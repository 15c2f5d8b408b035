// Package memstore provides an in-memory storage.Store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/storage"
	"github.com/i5heu/ouroboros-objects/pkg/types"
)

// MemStore keeps elements in a map. Elements are immutable, so they are
// stored and returned without copying. Contents are lost on Close.
type MemStore struct {
	mu       sync.RWMutex
	elements map[types.Key]*element.Element
}

var (
	_ storage.BatchStore = (*MemStore)(nil)
	_ storage.Lister     = (*MemStore)(nil)
)

func New() *MemStore {
	return &MemStore{elements: make(map[types.Key]*element.Element)}
}

func (s *MemStore) Put(ctx context.Context, key types.Key, e *element.Element) error {
	if e == nil || key != e.Key {
		return fmt.Errorf("memstore: element does not match key %s", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.elements[key]; !exists {
		s.elements[key] = e
	}
	return nil
}

func (s *MemStore) PutBatch(ctx context.Context, elements []*element.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range elements {
		if _, exists := s.elements[e.Key]; !exists {
			s.elements[e.Key] = e
		}
	}
	return nil
}

func (s *MemStore) Get(ctx context.Context, key types.Key) (*element.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.elements[key]
	if !exists {
		return nil, fmt.Errorf("memstore: %w: %s", storage.ErrNotFound, key)
	}
	if err := storage.CheckKey(key, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *MemStore) Contains(ctx context.Context, key types.Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.elements[key]
	return exists, nil
}

// Keys returns all keys in ascending order.
func (s *MemStore) Keys(ctx context.Context) ([]types.Key, error) {
	s.mu.RLock()
	keys := make([]types.Key, 0, len(s.elements))
	for k := range s.elements {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	return keys, nil
}

// Len returns the number of stored elements.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = make(map[types.Key]*element.Element)
	return nil
}
