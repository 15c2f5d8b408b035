package object

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// ScalarList is the container proxy of a repeated scalar field. Every
// mutation marks the owning object modified.
type ScalarList struct {
	owner   *Wrapper
	fd      protoreflect.FieldDescriptor
	invalid bool
}

func (w *Wrapper) scalarList(fd protoreflect.FieldDescriptor) *ScalarList {
	s := w.root.state
	ref := fieldRef{owner: w, num: fd.Number()}
	if d, ok := s.derived[ref]; ok {
		return d.(*ScalarList)
	}
	l := &ScalarList{owner: w, fd: fd}
	s.derived[ref] = l
	return l
}

func (l *ScalarList) teardown(*rootState) {
	l.invalid = true
}

func (l *ScalarList) Invalid() bool {
	return l == nil || l.invalid || l.owner.Invalid()
}

func (l *ScalarList) check() error {
	if l.Invalid() {
		return ErrInvalidated
	}
	return nil
}

func (l *ScalarList) list() (protoreflect.List, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	pm, err := l.owner.payload()
	if err != nil {
		return nil, err
	}
	return pm.Get(l.fd).List(), nil
}

func (l *ScalarList) mutableList() (protoreflect.List, error) {
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

func (l *ScalarList) errIndex(i, n int) error {
	return l.owner.fail("index", string(l.fd.Name()), fmt.Errorf("%w: %d with length %d", ErrIndex, i, n))
}

func (l *ScalarList) Len() (int, error) {
	list, err := l.list()
	if err != nil {
		return 0, err
	}
	return list.Len(), nil
}

func (l *ScalarList) Get(i int) (any, error) {
	list, err := l.list()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= list.Len() {
		return nil, l.errIndex(i, list.Len())
	}
	return fromValue(l.fd, list.Get(i)), nil
}

// Values copies the whole list.
func (l *ScalarList) Values() ([]any, error) {
	return l.Slice(0, -1)
}

// Slice returns the values in [from, to). A negative to means the end of the
// list.
func (l *ScalarList) Slice(from, to int) ([]any, error) {
	list, err := l.list()
	if err != nil {
		return nil, err
	}
	n := list.Len()
	if to < 0 {
		to = n
	}
	if from < 0 || from > to || to > n {
		return nil, l.errIndex(from, n)
	}
	out := make([]any, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, fromValue(l.fd, list.Get(i)))
	}
	return out, nil
}

func (l *ScalarList) Set(i int, v any) error {
	list, err := l.mutableList()
	if err != nil {
		return err
	}
	if i < 0 || i >= list.Len() {
		return l.errIndex(i, list.Len())
	}
	val, err := toValue(l.fd, v)
	if err != nil {
		return l.owner.fail("set", string(l.fd.Name()), err)
	}
	list.Set(i, val)
	l.owner.setParentsModified()
	return nil
}

func (l *ScalarList) Append(v any) error {
	return l.Extend(v)
}

// Extend appends all values. Nothing is appended unless every value
// converts.
func (l *ScalarList) Extend(values ...any) error {
	list, err := l.mutableList()
	if err != nil {
		return err
	}
	vals := make([]protoreflect.Value, 0, len(values))
	for _, v := range values {
		val, err := toValue(l.fd, v)
		if err != nil {
			return l.owner.fail("append", string(l.fd.Name()), err)
		}
		vals = append(vals, val)
	}
	if len(vals) == 0 {
		return nil
	}
	for _, val := range vals {
		list.Append(val)
	}
	l.owner.setParentsModified()
	return nil
}

// Insert places v before index i. i may equal the length.
func (l *ScalarList) Insert(i int, v any) error {
	list, err := l.mutableList()
	if err != nil {
		return err
	}
	n := list.Len()
	if i < 0 || i > n {
		return l.errIndex(i, n)
	}
	val, err := toValue(l.fd, v)
	if err != nil {
		return l.owner.fail("insert", string(l.fd.Name()), err)
	}
	list.Append(val)
	for j := n; j > i; j-- {
		list.Set(j, list.Get(j-1))
	}
	list.Set(i, val)
	l.owner.setParentsModified()
	return nil
}

// Remove deletes the first element equal to v.
func (l *ScalarList) Remove(v any) error {
	list, err := l.list()
	if err != nil {
		return err
	}
	val, err := toValue(l.fd, v)
	if err != nil {
		return l.owner.fail("remove", string(l.fd.Name()), err)
	}
	for i := 0; i < list.Len(); i++ {
		if valuesEqual(l.fd, list.Get(i), val) {
			return l.Delete(i)
		}
	}
	return l.owner.fail("remove", string(l.fd.Name()), fmt.Errorf("%w: value %v not in list", ErrIndex, v))
}

// Index returns the position of the first element equal to v, or -1.
func (l *ScalarList) Index(v any) (int, error) {
	list, err := l.list()
	if err != nil {
		return -1, err
	}
	val, err := toValue(l.fd, v)
	if err != nil {
		return -1, l.owner.fail("index", string(l.fd.Name()), err)
	}
	for i := 0; i < list.Len(); i++ {
		if valuesEqual(l.fd, list.Get(i), val) {
			return i, nil
		}
	}
	return -1, nil
}

func (l *ScalarList) Delete(i int) error {
	return l.DeleteRange(i, i+1)
}

// DeleteRange removes the elements in [from, to).
func (l *ScalarList) DeleteRange(from, to int) error {
	list, err := l.mutableList()
	if err != nil {
		return err
	}
	n := list.Len()
	if from < 0 || from > to || to > n {
		return l.errIndex(from, n)
	}
	if from == to {
		return nil
	}
	shift := to - from
	for j := from; j+shift < n; j++ {
		list.Set(j, list.Get(j+shift))
	}
	list.Truncate(n - shift)
	l.owner.setParentsModified()
	return nil
}
