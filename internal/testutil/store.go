package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/storage"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Elements returns n distinct leaf elements of NamedType.
func Elements(n int) []*element.Element {
	out := make([]*element.Element, n)
	for i := range out {
		out[i] = element.New(NamedType, []byte(fmt.Sprintf("element payload %d", i)), true, nil)
	}
	return out
}

// Misfile writes e under key into s, bypassing the key check of Put, the way
// a damaged or tampered store would hold it.
type Misfile func(t *testing.T, s storage.Store, key types.Key, e *element.Element)

// StoreSuite runs the behavior every storage.Store must share. open is
// called once per subtest and must return an empty store.
func StoreSuite(t *testing.T, open func(t *testing.T) storage.Store, misfile Misfile) {
	ctx := context.Background()

	t.Run("misfiled element", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		elements := Elements(2)
		require.NoError(t, s.Put(ctx, elements[1].Key, elements[1]))
		misfile(t, s, elements[0].Key, elements[1])

		_, err := s.Get(ctx, elements[0].Key)
		assert.ErrorIs(t, err, element.ErrCorrupted)

		got, err := s.Get(ctx, elements[1].Key)
		require.NoError(t, err)
		assert.True(t, elements[1].Equal(got))
	})

	t.Run("put get", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		child := Elements(1)[0]
		parent := element.New(HolderType, []byte("holder"), false, []types.Key{child.Key})

		for _, e := range []*element.Element{child, parent} {
			require.NoError(t, s.Put(ctx, e.Key, e))
		}

		got, err := s.Get(ctx, parent.Key)
		require.NoError(t, err)
		assert.True(t, parent.Equal(got))

		ok, err := s.Contains(ctx, child.Key)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		missing := types.Digest([]byte("missing"))
		_, err := s.Get(ctx, missing)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		ok, err := s.Contains(ctx, missing)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put is idempotent", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		e := Elements(1)[0]
		require.NoError(t, s.Put(ctx, e.Key, e))
		require.NoError(t, s.Put(ctx, e.Key, e))

		got, err := s.Get(ctx, e.Key)
		require.NoError(t, err)
		assert.True(t, e.Equal(got))

		if l, ok := s.(storage.Lister); ok {
			keys, err := l.Keys(ctx)
			require.NoError(t, err)
			assert.Len(t, keys, 1)
		}
	})

	t.Run("key mismatch", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		e := Elements(1)[0]
		err := s.Put(ctx, types.Digest([]byte("other")), e)
		assert.Error(t, err)
	})

	t.Run("batch and list", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		elements := Elements(25)
		if b, ok := s.(storage.BatchStore); ok {
			require.NoError(t, b.PutBatch(ctx, elements))
			// a second batch overlapping the first is fine
			require.NoError(t, b.PutBatch(ctx, elements[10:]))
		} else {
			for _, e := range elements {
				require.NoError(t, s.Put(ctx, e.Key, e))
			}
		}

		for _, e := range elements {
			got, err := s.Get(ctx, e.Key)
			require.NoError(t, err)
			assert.True(t, e.Equal(got))
		}

		l, ok := s.(storage.Lister)
		if !ok {
			return
		}
		keys, err := l.Keys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, len(elements))
		for i := 1; i < len(keys); i++ {
			assert.Less(t, keys[i-1].Compare(keys[i]), 0, "keys are listed in order")
		}
	})

	t.Run("concurrent", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		elements := Elements(40)
		var wg sync.WaitGroup
		errs := make(chan error, len(elements)*2)
		for _, e := range elements {
			wg.Add(1)
			go func(e *element.Element) {
				defer wg.Done()
				if err := s.Put(ctx, e.Key, e); err != nil {
					errs <- err
					return
				}
				if _, err := s.Get(ctx, e.Key); err != nil {
					errs <- err
				}
			}(e)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
	})
}
