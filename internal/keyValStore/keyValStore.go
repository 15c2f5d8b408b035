package keyValStore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/storage"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// elements live under this prefix so the key space can hold other records
var elementPrefix = []byte("el:")

type StoreConfig struct {
	Paths            []string // absolute path at the moment only first path is supported
	MinimumFreeSpace int      // in GB
	Compress         bool     // lzma compress element values
	Logger           *logrus.Logger
}

type KeyValStore struct {
	config       StoreConfig
	badgerDB     *badger.DB
	readCounter  uint64
	writeCounter uint64
}

var (
	_ storage.BatchStore = (*KeyValStore)(nil)
	_ storage.Lister     = (*KeyValStore)(nil)
)

func NewKeyValStore(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}

	log = config.Logger

	err := config.checkConfig()
	if err != nil {
		return nil, fmt.Errorf("error checking config for KeyValStore: %w", err)
	}

	opts := badger.DefaultOptions(config.Paths[0])
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100 // Set max size of each value log file to 100MB
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening badger at %s: %w", config.Paths[0], err)
	}

	err = displayDiskUsage(config.Paths)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &KeyValStore{
		config:   config,
		badgerDB: db,
	}, nil
}

func elementKey(key types.Key) []byte {
	return append(append(make([]byte, 0, len(elementPrefix)+types.KeySize), elementPrefix...), key[:]...)
}

// StartTransactionCounter logs read and write operations per second at debug
// level until ctx is done.
func (k *KeyValStore) StartTransactionCounter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				readOps := atomic.SwapUint64(&k.readCounter, 0)
				writeOps := atomic.SwapUint64(&k.writeCounter, 0)
				log.WithFields(logrus.Fields{
					"reads/sec":  readOps,
					"writes/sec": writeOps,
				}).Debug("element store operations")
			}
		}
	}()
}

func (k *KeyValStore) Put(ctx context.Context, key types.Key, e *element.Element) error {
	if e == nil || key != e.Key {
		return fmt.Errorf("keyValStore: element does not match key %s", key)
	}

	exists, err := k.Contains(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	value, err := storage.EncodeElement(e, k.config.Compress)
	if err != nil {
		return err
	}

	atomic.AddUint64(&k.writeCounter, 1)
	err = k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(elementKey(key), value)
	})
	if err != nil {
		log.WithFields(logrus.Fields{"key": key.String()}).Errorf("Error writing element: %v", err)
		return err
	}
	return nil
}

// PutBatch writes the elements not yet stored through one badger write batch.
func (k *KeyValStore) PutBatch(ctx context.Context, elements []*element.Element) error {
	keys := make([][]byte, 0, len(elements))
	for _, e := range elements {
		keys = append(keys, elementKey(e.Key))
	}

	existsMap, err := k.BatchCheckKeyExistence(keys)
	if err != nil {
		return fmt.Errorf("error checking key existence: %w", err)
	}

	wb := k.badgerDB.NewWriteBatch()
	defer wb.Cancel()

	written := make(map[types.Key]bool, len(elements))
	for i, e := range elements {
		if existsMap[string(keys[i])] || written[e.Key] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		value, err := storage.EncodeElement(e, k.config.Compress)
		if err != nil {
			return err
		}

		atomic.AddUint64(&k.writeCounter, 1)
		if err := wb.Set(keys[i], value); err != nil {
			return fmt.Errorf("error writing element %s: %w", e.Key, err)
		}
		written[e.Key] = true
	}

	return wb.Flush()
}

func (k *KeyValStore) BatchCheckKeyExistence(keys [][]byte) (map[string]bool, error) {
	existsMap := make(map[string]bool)

	err := k.badgerDB.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			atomic.AddUint64(&k.readCounter, 1)
			_, err := txn.Get(key)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					existsMap[string(key)] = false
				} else {
					return err // return an error for issues other than "key not found"
				}
			} else {
				existsMap[string(key)] = true
			}
		}
		return nil
	})

	return existsMap, err
}

func (k *KeyValStore) Get(ctx context.Context, key types.Key) (*element.Element, error) {
	value, err := k.read(elementKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("keyValStore: %w: %s", storage.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading key %s: %w", key, err)
	}

	e, err := storage.DecodeElementAt(key, value)
	if err != nil {
		log.WithFields(logrus.Fields{"key": key.String()}).Errorf("Error decoding element: %v", err)
		return nil, err
	}
	return e, nil
}

func (k *KeyValStore) Contains(ctx context.Context, key types.Key) (bool, error) {
	existsMap, err := k.BatchCheckKeyExistence([][]byte{elementKey(key)})
	if err != nil {
		return false, err
	}
	return existsMap[string(elementKey(key))], nil
}

func (k *KeyValStore) read(key []byte) ([]byte, error) {
	atomic.AddUint64(&k.readCounter, 1)
	var value []byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Keys returns all element keys in ascending order.
func (k *KeyValStore) Keys(ctx context.Context) ([]types.Key, error) {
	var keys []types.Key
	atomic.AddUint64(&k.readCounter, 1)
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = elementPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(elementPrefix); it.ValidForPrefix(elementPrefix); it.Next() {
			raw := it.Item().KeyCopy(nil)
			key, err := types.KeyFromBytes(raw[len(elementPrefix):])
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (k *KeyValStore) Close() error {
	if err := k.Clean(); err != nil {
		log.Warnf("Error cleaning db before close: %v", err)
	}
	return k.badgerDB.Close()
}

func (k *KeyValStore) Clean() error {
	err := k.badgerDB.Sync()
	if err != nil {
		return fmt.Errorf("error syncing db: %w", err)
	}

	// flatten the db
	err = k.badgerDB.Flatten(runtime.NumCPU()) // The parameter is the number of concurrent compactions
	if err != nil {
		return fmt.Errorf("error flattening db: %w", err)
	}
	log.Debug("DB Flattened")

	err = k.badgerDB.RunValueLogGC(0.1)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("error cleaning db: %w", err)
	}

	return nil
}
