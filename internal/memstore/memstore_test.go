package memstore

import (
	"context"
	"testing"

	"github.com/i5heu/ouroboros-objects/internal/testutil"
	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/storage"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestMemStore(t *testing.T) {
	testutil.StoreSuite(t, func(t *testing.T) storage.Store {
		return New()
	}, func(t *testing.T, s storage.Store, key types.Key, e *element.Element) {
		m := s.(*MemStore)
		m.mu.Lock()
		m.elements[key] = e
		m.mu.Unlock()
	})
}

func TestMemStore_Len(t *testing.T) {
	s := New()
	assert.Equal(t, 0, s.Len())
	for _, e := range testutil.Elements(3) {
		assert.NoError(t, s.Put(context.Background(), e.Key, e))
	}
	assert.Equal(t, 3, s.Len())
	assert.NoError(t, s.Close())
	assert.Equal(t, 0, s.Len())
}
