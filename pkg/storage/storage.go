// Package storage defines the backing store boundary of the object graph.
package storage

import (
	"context"
	"errors"

	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/types"
)

// ErrNotFound is returned by Get for keys the store does not hold.
var ErrNotFound = errors.New("storage: element not found")

// Store persists Structure Elements under their content key.
//
// The commit engine treats a Store as content addressed and idempotent:
// putting a key that is already present is a no-op, since any two elements
// with equal keys are interchangeable.
//
// # Integrity
//
// Implementations that serialize elements must decode them through
// element.Parse, so every read recomputes the digest and a damaged record
// surfaces as element.ErrCorrupted instead of being returned.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Flush fans puts out over
// a worker pool and verification reads in parallel.
type Store interface {
	Put(ctx context.Context, key types.Key, e *element.Element) error
	// Get returns ErrNotFound for unknown keys.
	Get(ctx context.Context, key types.Key) (*element.Element, error)
	Contains(ctx context.Context, key types.Key) (bool, error)
	Close() error
}

// BatchStore is implemented by stores that can write many elements in one
// transaction.
type BatchStore interface {
	Store
	PutBatch(ctx context.Context, elements []*element.Element) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]types.Key, error)
}
