// Package element implements the Structure Element: the hash addressed
// encoding of one committed record.
package element

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ErrCorrupted is returned when a stored key does not match the key
// recomputed from the element's value and type.
var ErrCorrupted = errors.New("element: digest mismatch, data is corrupted")

var marshalOptions = proto.MarshalOptions{Deterministic: true}

// Element is immutable once built. Two elements with the same Key are
// interchangeable.
type Element struct {
	Type   schema.TypeID
	Value  []byte
	Key    types.Key
	IsLeaf bool
	// ChildKeys is sorted and free of duplicates.
	ChildKeys []types.Key
}

// New builds an element and computes its key.
func New(t schema.TypeID, value []byte, isLeaf bool, childKeys []types.Key) *Element {
	return &Element{
		Type:      t,
		Value:     value,
		Key:       ComputeKey(t, value),
		IsLeaf:    isLeaf,
		ChildKeys: normalizeKeys(childKeys),
	}
}

// ComputeKey hashes the value first and then the value digest followed by
// the serialized type, so both content and type determine identity.
func ComputeKey(t schema.TypeID, value []byte) types.Key {
	inner := types.Digest(value)
	buf := make([]byte, 0, types.KeySize+12)
	buf = append(buf, inner[:]...)
	buf = append(buf, t.Marshal()...)
	return types.Digest(buf)
}

func normalizeKeys(keys []types.Key) []types.Key {
	if len(keys) == 0 {
		return nil
	}
	out := make([]types.Key, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })

	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// HasChild reports whether k is one of the element's child keys.
func (e *Element) HasChild(k types.Key) bool {
	i := sort.Search(len(e.ChildKeys), func(i int) bool { return e.ChildKeys[i].Compare(k) >= 0 })
	return i < len(e.ChildKeys) && e.ChildKeys[i] == k
}

// Verify recomputes the key.
func (e *Element) Verify() error {
	if got := ComputeKey(e.Type, e.Value); got != e.Key {
		return fmt.Errorf("%w: element key %s, calculated key %s", ErrCorrupted, e.Key, got)
	}
	return nil
}

// Equal compares every field, including the child key set.
func (e *Element) Equal(o *Element) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Type != o.Type || e.Key != o.Key || e.IsLeaf != o.IsLeaf {
		return false
	}
	if !bytes.Equal(e.Value, o.Value) || len(e.ChildKeys) != len(o.ChildKeys) {
		return false
	}
	for i := range e.ChildKeys {
		if e.ChildKeys[i] != o.ChildKeys[i] {
			return false
		}
	}
	return true
}

// Marshal encodes the element as a core StructureElement message.
func (e *Element) Marshal() ([]byte, error) {
	md := schema.StructureElementDescriptor()
	fields := md.Fields()
	m := dynamicpb.NewMessage(md)

	typeField := fields.ByName("type")
	tm := m.Mutable(typeField).Message()
	schema.SetTypeIDOnMessage(tm, e.Type)

	m.Set(fields.ByName("value"), protoreflect.ValueOfBytes(e.Value))
	m.Set(fields.ByName("key"), protoreflect.ValueOfBytes(e.Key.Bytes()))
	m.Set(fields.ByName("isleaf"), protoreflect.ValueOfBool(e.IsLeaf))

	if len(e.ChildKeys) > 0 {
		list := m.Mutable(fields.ByName("child_keys")).List()
		for _, k := range normalizeKeys(e.ChildKeys) {
			list.Append(protoreflect.ValueOfBytes(k.Bytes()))
		}
	}

	b, err := marshalOptions.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("element: marshal %s: %w", e.Key, err)
	}
	return b, nil
}

// Parse decodes a StructureElement and checks its key. A mismatch returns
// ErrCorrupted; the element is never returned in that case.
func Parse(b []byte) (*Element, error) {
	md := schema.StructureElementDescriptor()
	fields := md.Fields()
	m := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("element: unmarshal: %w", err)
	}

	e := &Element{
		Type:   schema.TypeIDFromMessage(m.Get(fields.ByName("type")).Message()),
		Value:  m.Get(fields.ByName("value")).Bytes(),
		IsLeaf: m.Get(fields.ByName("isleaf")).Bool(),
	}

	key, err := types.KeyFromBytes(m.Get(fields.ByName("key")).Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	e.Key = key

	list := m.Get(fields.ByName("child_keys")).List()
	if list.Len() > 0 {
		children := make([]types.Key, 0, list.Len())
		for i := 0; i < list.Len(); i++ {
			k, err := types.KeyFromBytes(list.Get(i).Bytes())
			if err != nil {
				return nil, fmt.Errorf("%w: child key %d: %v", ErrCorrupted, i, err)
			}
			children = append(children, k)
		}
		e.ChildKeys = normalizeKeys(children)
	}

	if err := e.Verify(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Element) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hexkey: %q\n", e.Key.String())
	fmt.Fprintf(&sb, "type: %s\n", e.Type)
	fmt.Fprintf(&sb, "value: %d bytes\n", len(e.Value))
	fmt.Fprintf(&sb, "isleaf: %t\n", e.IsLeaf)
	for _, k := range e.ChildKeys {
		fmt.Fprintf(&sb, "child: %s\n", k)
	}
	return sb.String()
}
