package keyValStore

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/i5heu/ouroboros-objects/internal/testutil"
	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/storage"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, dir string, compress bool) *KeyValStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	kv, err := NewKeyValStore(StoreConfig{Paths: []string{dir}, Compress: compress, Logger: logger})
	require.NoError(t, err)
	return kv
}

func misfile(t *testing.T, s storage.Store, key types.Key, e *element.Element) {
	t.Helper()
	kv := s.(*KeyValStore)
	value, err := storage.EncodeElement(e, kv.config.Compress)
	require.NoError(t, err)
	require.NoError(t, kv.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(elementKey(key), value)
	}))
}

func TestKeyValStore(t *testing.T) {
	for _, compress := range []bool{false, true} {
		testutil.StoreSuite(t, func(t *testing.T) storage.Store {
			return openTestStore(t, t.TempDir(), compress)
		}, misfile)
	}
}

func TestKeyValStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv := openTestStore(t, dir, true)
	elements := testutil.Elements(10)
	require.NoError(t, kv.PutBatch(ctx, elements))
	require.NoError(t, kv.Close())

	kv = openTestStore(t, dir, true)
	defer kv.Close()

	keys, err := kv.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, len(elements))

	for _, e := range elements {
		got, err := kv.Get(ctx, e.Key)
		require.NoError(t, err)
		assert.True(t, e.Equal(got))
	}
}

func TestKeyValStore_Corruption(t *testing.T) {
	ctx := context.Background()
	kv := openTestStore(t, t.TempDir(), false)
	defer kv.Close()

	e := testutil.Elements(1)[0]
	require.NoError(t, kv.Put(ctx, e.Key, e))

	raw, err := kv.read(elementKey(e.Key))
	require.NoError(t, err)
	raw[len(raw)-30] ^= 0xff // inside the value field

	wb := kv.badgerDB.NewWriteBatch()
	require.NoError(t, wb.Set(elementKey(e.Key), raw))
	require.NoError(t, wb.Flush())

	_, err = kv.Get(ctx, e.Key)
	assert.ErrorIs(t, err, element.ErrCorrupted)
}

func TestCheckConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  StoreConfig
		wantErr bool
	}{
		{"no path", StoreConfig{}, true},
		{"missing path", StoreConfig{Paths: []string{"/definitely/not/here"}}, true},
		{"temp dir", StoreConfig{Paths: []string{t.TempDir()}}, false},
		{"impossible free space", StoreConfig{Paths: []string{t.TempDir()}, MinimumFreeSpace: 1 << 30}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.checkConfig()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKeyValStore_ManyElements(t *testing.T) {
	testutil.RequireLong(t)

	ctx := context.Background()
	kv := openTestStore(t, t.TempDir(), true)
	defer kv.Close()

	elements := testutil.Elements(20000)
	require.NoError(t, kv.PutBatch(ctx, elements))

	keys, err := kv.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, len(elements))
}
