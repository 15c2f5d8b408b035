// Package boltStore persists elements in a single bbolt file.
package boltStore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/storage"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

var elementsBucket = []byte("elements")

type StoreConfig struct {
	Path     string // database file, created if missing
	Compress bool
	// NoSync skips fsync after each commit. Only for tests.
	NoSync bool
	Logger *logrus.Logger
}

type BoltStore struct {
	config StoreConfig
	bdb    *bbolt.DB
	log    *logrus.Logger
}

var (
	_ storage.BatchStore = (*BoltStore)(nil)
	_ storage.Lister     = (*BoltStore)(nil)
)

func NewBoltStore(config StoreConfig) (*BoltStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.Path == "" {
		return nil, errors.New("boltStore: no path provided in configuration")
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.FreelistType = bbolt.FreelistMapType
	if config.NoSync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}

	bdb, err := bbolt.Open(config.Path, 0o600, &bopt)
	if err != nil {
		return nil, fmt.Errorf("boltStore: open %s: %w", config.Path, err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(elementsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("boltStore: create bucket: %w", err)
	}

	config.Logger.WithFields(logrus.Fields{
		"path":     config.Path,
		"compress": config.Compress,
	}).Info("bolt store opened")

	return &BoltStore{config: config, bdb: bdb, log: config.Logger}, nil
}

func (s *BoltStore) Put(ctx context.Context, key types.Key, e *element.Element) error {
	if e == nil || key != e.Key {
		return fmt.Errorf("boltStore: element does not match key %s", key)
	}
	return s.PutBatch(ctx, []*element.Element{e})
}

// PutBatch writes all elements not yet present in one transaction.
func (s *BoltStore) PutBatch(ctx context.Context, elements []*element.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded := make([][]byte, len(elements))
	for i, e := range elements {
		b, err := storage.EncodeElement(e, s.config.Compress)
		if err != nil {
			return err
		}
		encoded[i] = b
	}

	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(elementsBucket)
		for i, e := range elements {
			if b.Get(e.Key[:]) != nil {
				continue
			}
			if err := b.Put(e.Key.Bytes(), encoded[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("boltStore: write %d elements: %w", len(elements), err)
	}
	return nil
}

func (s *BoltStore) Get(ctx context.Context, key types.Key) (*element.Element, error) {
	var value []byte
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(elementsBucket).Get(key[:])
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltStore: read %s: %w", key, err)
	}
	if value == nil {
		return nil, fmt.Errorf("boltStore: %w: %s", storage.ErrNotFound, key)
	}

	e, err := storage.DecodeElementAt(key, value)
	if err != nil {
		s.log.WithFields(logrus.Fields{"key": key.String()}).Errorf("Error decoding element: %v", err)
		return nil, err
	}
	return e, nil
}

func (s *BoltStore) Contains(ctx context.Context, key types.Key) (bool, error) {
	var exists bool
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(elementsBucket).Get(key[:]) != nil
		return nil
	})
	return exists, err
}

// Keys returns all keys in ascending order, which is bbolt's cursor order.
func (s *BoltStore) Keys(ctx context.Context) ([]types.Key, error) {
	var keys []types.Key
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(elementsBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			key, err := types.KeyFromBytes(k)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	})
	return keys, err
}

func (s *BoltStore) Close() error {
	return s.bdb.Close()
}
