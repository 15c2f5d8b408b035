package object

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// CompositeList is the container proxy of a repeated record field. Element
// proxies are cached, so the same index yields the same proxy until the
// element is deleted.
//
// Elements that are links can only be rewired through SetLink. Other
// elements are edited through their own proxy and cannot be replaced.
type CompositeList struct {
	owner   *Wrapper
	fd      protoreflect.FieldDescriptor
	elems   []*Wrapper
	invalid bool
}

func (w *Wrapper) compositeList(fd protoreflect.FieldDescriptor) *CompositeList {
	s := w.root.state
	ref := fieldRef{owner: w, num: fd.Number()}
	if d, ok := s.derived[ref]; ok {
		return d.(*CompositeList)
	}
	l := &CompositeList{owner: w, fd: fd}
	s.derived[ref] = l
	return l
}

func (l *CompositeList) teardown(s *rootState) {
	for _, e := range l.elems {
		if e != nil {
			e.teardown(s)
		}
	}
	l.elems = nil
	l.invalid = true
}

func (l *CompositeList) Invalid() bool {
	return l == nil || l.invalid || l.owner.Invalid()
}

func (l *CompositeList) check() error {
	if l.Invalid() {
		return ErrInvalidated
	}
	return nil
}

func (l *CompositeList) name() string {
	return string(l.fd.Name())
}

func (l *CompositeList) list() (protoreflect.List, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	pm, err := l.owner.payload()
	if err != nil {
		return nil, err
	}
	return pm.Get(l.fd).List(), nil
}

func (l *CompositeList) mutableList() (protoreflect.List, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	if err := l.owner.checkWritable(); err != nil {
		return nil, err
	}
	pm, err := l.owner.mutablePayload()
	if err != nil {
		return nil, err
	}
	return pm.Mutable(l.fd).List(), nil
}

// elem returns the cached proxy of element i. The caller checks the bounds.
func (l *CompositeList) elem(i int) *Wrapper {
	list, err := l.list()
	if err != nil {
		return nil
	}
	for len(l.elems) < list.Len() {
		l.elems = append(l.elems, nil)
	}
	if l.elems[i] == nil {
		l.elems[i] = &Wrapper{
			root: l.owner.root,
			desc: l.owner.root.state.registry.GetOrBuild(l.fd.Message()),
			msg:  list.Get(i).Message(),
		}
	}
	return l.elems[i]
}

func (l *CompositeList) bounds(i int) error {
	list, err := l.list()
	if err != nil {
		return err
	}
	if i < 0 || i >= list.Len() {
		return l.owner.fail("index", l.name(), fmt.Errorf("%w: %d with length %d", ErrIndex, i, list.Len()))
	}
	return nil
}

func (l *CompositeList) Len() (int, error) {
	list, err := l.list()
	if err != nil {
		return 0, err
	}
	return list.Len(), nil
}

// Get returns element i. Link elements are dereferenced to their target;
// an unset link yields nil.
func (l *CompositeList) Get(i int) (*Wrapper, error) {
	if err := l.bounds(i); err != nil {
		return nil, err
	}
	e := l.elem(i)
	if !e.desc.IsLink() {
		return e, nil
	}
	if e.linkID() == "" {
		return nil, nil
	}
	return e.Target()
}

// GetLink returns link element i without dereferencing it.
func (l *CompositeList) GetLink(i int) (*Wrapper, error) {
	if err := l.bounds(i); err != nil {
		return nil, err
	}
	e := l.elem(i)
	if !e.desc.IsLink() {
		return nil, l.owner.fail("link", l.name(), ErrTypeMismatch)
	}
	return e, nil
}

// Slice returns the element proxies in [from, to) without dereferencing
// links. A negative to means the end of the list.
func (l *CompositeList) Slice(from, to int) ([]*Wrapper, error) {
	list, err := l.list()
	if err != nil {
		return nil, err
	}
	n := list.Len()
	if to < 0 {
		to = n
	}
	if from < 0 || from > to || to > n {
		return nil, l.owner.fail("index", l.name(), fmt.Errorf("%w: [%d:%d] with length %d", ErrIndex, from, to, n))
	}
	out := make([]*Wrapper, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, l.elem(i))
	}
	return out, nil
}

// Set replaces element i. Only link elements can be replaced, and only by
// rewiring them to a new target.
func (l *CompositeList) Set(i int, v any) error {
	if err := l.bounds(i); err != nil {
		return err
	}
	target, ok := v.(*Wrapper)
	if !ok || !l.elem(i).desc.IsLink() {
		return l.owner.fail("set", l.name(), ErrTypeMismatch)
	}
	return l.SetLink(i, target)
}

func (l *CompositeList) SetLink(i int, target *Wrapper) error {
	e, err := l.GetLink(i)
	if err != nil {
		return err
	}
	return e.SetLink(target)
}

// Add appends an empty element and returns its proxy.
func (l *CompositeList) Add() (*Wrapper, error) {
	list, err := l.mutableList()
	if err != nil {
		return nil, err
	}
	list.Append(list.NewElement())
	e := l.elem(list.Len() - 1)
	l.owner.setParentsModified()
	return e, nil
}

// AddLink appends a link element pointing at target.
func (l *CompositeList) AddLink(target *Wrapper) (*Wrapper, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	if !l.owner.root.state.registry.GetOrBuild(l.fd.Message()).IsLink() {
		return nil, l.owner.fail("link", l.name(), ErrTypeMismatch)
	}
	if err := l.owner.checkWritable(); err != nil {
		return nil, err
	}
	r, err := l.owner.repo()
	if err != nil {
		return nil, err
	}
	if err := r.checkLinkTarget(l.owner.root, target); err != nil {
		return nil, err
	}

	e, err := l.Add()
	if err != nil {
		return nil, err
	}
	if err := e.SetLink(target); err != nil {
		n, _ := l.Len()
		_ = l.Delete(n - 1)
		return nil, err
	}
	return e, nil
}

func (l *CompositeList) Delete(i int) error {
	return l.DeleteRange(i, i+1)
}

// DeleteRange removes the elements in [from, to). Links inside the removed
// elements are unhooked and their proxies invalidated.
func (l *CompositeList) DeleteRange(from, to int) error {
	list, err := l.mutableList()
	if err != nil {
		return err
	}
	n := list.Len()
	if from < 0 || from > to || to > n {
		return l.owner.fail("index", l.name(), fmt.Errorf("%w: [%d:%d] with length %d", ErrIndex, from, to, n))
	}
	if from == to {
		return nil
	}

	removed := make([]*Wrapper, 0, to-from)
	for i := to - 1; i >= from; i-- {
		e := l.elem(i)
		if err := e.detachLinks(); err != nil {
			return err
		}
		removed = append(removed, e)
	}

	shift := to - from
	for j := from; j+shift < n; j++ {
		list.Set(j, list.Get(j+shift))
	}
	list.Truncate(n - shift)
	l.elems = append(l.elems[:from], l.elems[to:]...)

	s := l.owner.root.state
	for _, e := range removed {
		e.teardown(s)
	}
	l.owner.setParentsModified()
	return nil
}

// Links returns every element of a repeated link field without
// dereferencing.
func (l *CompositeList) Links() ([]*Wrapper, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	if !l.owner.root.state.registry.GetOrBuild(l.fd.Message()).IsLink() {
		return nil, l.owner.fail("link", l.name(), ErrTypeMismatch)
	}
	return l.Slice(0, -1)
}
