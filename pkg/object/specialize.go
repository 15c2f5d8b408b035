package object

import (
	"fmt"
	"sync"

	"github.com/i5heu/ouroboros-objects/pkg/schema"
)

// Specialization builds the helper set of one object type around a proxy.
// The helper keeps the proxy and goes through its checks, so it is invalidated
// together with it.
type Specialization func(w *Wrapper) any

var (
	specMu sync.RWMutex
	specs  = make(map[schema.TypeID]Specialization)
)

// RegisterSpecialization attaches a helper set to every proxy of type t. It
// panics when t already has one or s is nil.
func RegisterSpecialization(t schema.TypeID, s Specialization) {
	specMu.Lock()
	defer specMu.Unlock()
	if s == nil {
		panic("object: RegisterSpecialization with nil specialization")
	}
	if _, dup := specs[t]; dup {
		panic(fmt.Sprintf("object: RegisterSpecialization called twice for %s", t))
	}
	specs[t] = s
}

// Specialized returns the helper set registered for the proxy's type.
func (w *Wrapper) Specialized() (any, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	specMu.RLock()
	s, ok := specs[w.desc.Type]
	specMu.RUnlock()
	if !ok {
		return nil, w.fail("specialize", "", ErrNoSpecialization)
	}
	return s(w), nil
}

// As returns the helper set of w as a T.
func As[T any](w *Wrapper) (T, error) {
	var zero T
	v, err := w.Specialized()
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, w.fail("specialize", "", ErrTypeMismatch)
	}
	return t, nil
}

// Link is the helper set of link records.
type Link struct {
	w *Wrapper
}

func init() {
	RegisterSpecialization(schema.LinkType, func(w *Wrapper) any { return Link{w: w} })
}

// Record returns the underlying link record.
func (l Link) Record() *Wrapper { return l.w }

// Point rewires the link to target.
func (l Link) Point(target *Wrapper) error { return l.w.SetLink(target) }

// Target dereferences the link.
func (l Link) Target() (*Wrapper, error) { return l.w.Target() }

func (l Link) Key() (ID, error) { return l.w.LinkKey() }

func (l Link) Type() (schema.TypeID, error) { return l.w.LinkType() }

func (l Link) IsLeaf() (bool, error) { return l.w.LinkIsLeaf() }

// IsSet reports whether the link points anywhere.
func (l Link) IsSet() (bool, error) {
	id, err := l.w.LinkKey()
	return id != "", err
}

// Committed reports whether the target is a stored element rather than a
// workspace object.
func (l Link) Committed() (bool, error) {
	id, err := l.w.LinkKey()
	return id.IsKey(), err
}
