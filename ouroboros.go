/*
Package ouroboros stores versioned graphs of typed records. Records reference
each other through links, and committing a graph turns every changed record
into a content addressed element in the backing store.

!! Currently the store is in a very early stage of development and should not be used in production environments. !!
*/
package ouroboros

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/i5heu/ouroboros-objects/internal/boltStore"
	"github.com/i5heu/ouroboros-objects/internal/keyValStore"
	"github.com/i5heu/ouroboros-objects/internal/memstore"
	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/object"
	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/i5heu/ouroboros-objects/pkg/storage"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	workerpool "github.com/i5heu/ouroboros-objects/pkg/workerPool"
	"github.com/sirupsen/logrus"
)

var (
	ErrClosed = errors.New("ouroboros: database closed")
	// ErrNotListable is returned by operations that need to enumerate a store
	// that cannot list its keys.
	ErrNotListable = errors.New("ouroboros: store cannot list its keys")
)

// ObjectDB owns a backing store, the type registry and the worker pool shared
// by every repository opened on it.
type ObjectDB struct {
	log      *logrus.Logger
	config   Config
	registry *schema.Registry
	store    storage.Store
	pool     *workerpool.WorkerPool

	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New opens the configured store and registers the configured schema files.
func New(conf Config) (*ObjectDB, error) {
	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return nil, err
	}

	if conf.Logger == nil {
		conf.Logger = logrus.New()
		level, _ := logrus.ParseLevel(conf.LogLevel)
		conf.Logger.SetLevel(level)
	}
	if conf.Registry == nil {
		conf.Registry = schema.Default
	}

	for _, path := range conf.SchemaFiles {
		if err := conf.Registry.RegisterDescriptorSet(path); err != nil {
			return nil, fmt.Errorf("register schema %s: %w", path, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	store, err := openStore(ctx, conf)
	if err != nil {
		cancel()
		return nil, err
	}

	db := &ObjectDB{
		log:      conf.Logger,
		config:   conf,
		registry: conf.Registry,
		store:    store,
		pool:     workerpool.NewWorkerPool(workerpool.Config{WorkerCount: conf.Workers}),
		cancel:   cancel,
	}
	db.log.WithFields(logrus.Fields{
		"backend": conf.Store.Backend,
		"path":    conf.Store.Path,
		"workers": db.pool.WorkerCount(),
	}).Info("ObjectDB opened")
	return db, nil
}

func openStore(ctx context.Context, conf Config) (storage.Store, error) {
	switch conf.Store.Backend {
	case BackendBadger:
		kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
			Paths:            []string{conf.Store.Path},
			MinimumFreeSpace: conf.Store.MinimumFreeGB,
			Compress:         conf.Store.Compress,
			Logger:           conf.Logger,
		})
		if err != nil {
			return nil, err
		}
		kv.StartTransactionCounter(ctx)
		return kv, nil
	case BackendBolt:
		return boltStore.NewBoltStore(boltStore.StoreConfig{
			Path:     conf.Store.Path,
			Compress: conf.Store.Compress,
			NoSync:   conf.Store.NoSync,
			Logger:   conf.Logger,
		})
	default:
		return memstore.New(), nil
	}
}

// NewRepository starts an editing session on the store.
func (db *ObjectDB) NewRepository() (*object.Repository, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	return object.NewRepository(object.Options{
		Registry: db.registry,
		Store:    db.store,
		Logger:   db.log,
		Pool:     db.pool,
	}), nil
}

func (db *ObjectDB) Store() storage.Store {
	return db.store
}

func (db *ObjectDB) Registry() *schema.Registry {
	return db.registry
}

func (db *ObjectDB) Logger() *logrus.Logger {
	return db.log
}

// Keys lists every element key of the store in ascending order.
func (db *ObjectDB) Keys(ctx context.Context) ([]types.Key, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	lister, ok := db.store.(storage.Lister)
	if !ok {
		return nil, ErrNotListable
	}
	return lister.Keys(ctx)
}

// Get reads one element.
func (db *ObjectDB) Get(ctx context.Context, key types.Key) (*element.Element, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	return db.store.Get(ctx, key)
}

// VerifyReport summarizes a Verify run.
type VerifyReport struct {
	Checked int
	// Corrupted holds the keys whose stored digest did not match.
	Corrupted []types.Key
	// MissingChildren holds child keys referenced by an element but absent
	// from the store.
	MissingChildren []types.Key
}

func (r VerifyReport) OK() bool {
	return len(r.Corrupted) == 0 && len(r.MissingChildren) == 0
}

type verifyResult struct {
	key     types.Key
	err     error
	missing []types.Key
}

// Verify reads every element in parallel, recomputing its key and checking
// that all its children are present.
func (db *ObjectDB) Verify(ctx context.Context) (VerifyReport, error) {
	keys, err := db.Keys(ctx)
	if err != nil {
		return VerifyReport{}, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	room := db.pool.CreateRoom(len(keys))
	room.AsyncCollector()
	var submitErr error
	for _, key := range keys {
		key := key
		err := room.NewTaskWaitForFreeSlot(ctx, func() interface{} {
			return db.verifyOne(ctx, key)
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	results := room.GetAsyncResults()
	if submitErr != nil {
		return VerifyReport{}, submitErr
	}

	report := VerifyReport{Checked: len(results)}
	var failures []error
	for _, r := range results {
		res := r.(verifyResult)
		switch {
		case errors.Is(res.err, element.ErrCorrupted):
			report.Corrupted = append(report.Corrupted, res.key)
		case res.err != nil:
			failures = append(failures, res.err)
		}
		report.MissingChildren = append(report.MissingChildren, res.missing...)
	}
	sortKeys(report.Corrupted)
	sortKeys(report.MissingChildren)

	entry := db.log.WithFields(logrus.Fields{
		"checked":   report.Checked,
		"corrupted": len(report.Corrupted),
		"missing":   len(report.MissingChildren),
	})
	if report.OK() {
		entry.Info("store verified")
	} else {
		entry.Error("store verification found damage")
	}
	return report, errors.Join(failures...)
}

func (db *ObjectDB) verifyOne(ctx context.Context, key types.Key) verifyResult {
	e, err := db.store.Get(ctx, key)
	if err != nil {
		return verifyResult{key: key, err: err}
	}
	res := verifyResult{key: key}
	for _, child := range e.ChildKeys {
		ok, err := db.store.Contains(ctx, child)
		if err != nil {
			res.err = err
			return res
		}
		if !ok {
			res.missing = append(res.missing, child)
		}
	}
	return res
}

// Close stops the worker pool and closes the store. Close is idempotent.
func (db *ObjectDB) Close() error {
	var closeErr error
	db.closeOnce.Do(func() {
		db.mu.Lock()
		db.closed = true
		db.mu.Unlock()

		db.cancel()
		db.pool.Close()
		if err := db.store.Close(); err != nil {
			closeErr = fmt.Errorf("close store: %w", err)
		}
		db.log.Info("ObjectDB closed")
	})
	return closeErr
}

func sortKeys(keys []types.Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
}
