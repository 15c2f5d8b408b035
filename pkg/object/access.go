package object

import (
	"errors"
	"sort"

	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Get reads a field.
//
// Scalars come back as Go values, enums as int32. Nested records come back as
// their cached proxy. Link fields are dereferenced: the result is the target
// object, or nil when the link is unset. Repeated fields come back as a
// *ScalarList or *CompositeList.
func (w *Wrapper) Get(name string) (any, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	f, err := w.lookupField("get", name)
	if err != nil {
		return nil, err
	}

	switch f.Kind {
	case schema.KindScalar:
		pm, err := w.payload()
		if err != nil {
			return nil, err
		}
		return fromValue(f.Desc, pm.Get(f.Desc)), nil
	case schema.KindMessage:
		return w.subMessage(f.Desc), nil
	case schema.KindLink:
		link := w.subMessage(f.Desc)
		if link.linkID() == "" {
			return nil, nil
		}
		target, err := link.Target()
		if err != nil {
			return nil, err
		}
		return target, nil
	case schema.KindRepeatedScalar:
		return w.scalarList(f.Desc), nil
	case schema.KindRepeatedMessage:
		return w.compositeList(f.Desc), nil
	}
	return nil, w.fail("get", name, ErrTypeMismatch)
}

// Set writes a field. Scalar fields take a Go value; link fields take the
// target *Wrapper and are rewired as with SetLinkByName. Nested records and
// repeated fields cannot be assigned.
func (w *Wrapper) Set(name string, v any) error {
	if err := w.checkWritable(); err != nil {
		return err
	}
	f, err := w.lookupField("set", name)
	if err != nil {
		return err
	}
	if w.desc.IsLink() {
		return w.fail("set", name, ErrTypeMismatch)
	}

	switch f.Kind {
	case schema.KindScalar:
		val, err := toValue(f.Desc, v)
		if err != nil {
			return w.fail("set", name, err)
		}
		pm, err := w.mutablePayload()
		if err != nil {
			return err
		}
		pm.Set(f.Desc, val)
		w.setParentsModified()
		return nil
	case schema.KindLink:
		target, ok := v.(*Wrapper)
		if !ok {
			return w.fail("set", name, ErrTypeMismatch)
		}
		return w.SetLinkByName(name, target)
	}
	return w.fail("set", name, ErrTypeMismatch)
}

// Message returns the proxy of a nested, non-link record field.
func (w *Wrapper) Message(name string) (*Wrapper, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	f, err := w.lookupField("message", name)
	if err != nil {
		return nil, err
	}
	if f.Kind != schema.KindMessage {
		return nil, w.fail("message", name, ErrTypeMismatch)
	}
	return w.subMessage(f.Desc), nil
}

// GetLink returns the link record of a link field without dereferencing it.
func (w *Wrapper) GetLink(name string) (*Wrapper, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	f, err := w.lookupField("link", name)
	if err != nil {
		return nil, err
	}
	if f.Kind != schema.KindLink {
		return nil, w.fail("link", name, ErrTypeMismatch)
	}
	return w.subMessage(f.Desc), nil
}

// SetLinkByName points the link field name at target.
func (w *Wrapper) SetLinkByName(name string, target *Wrapper) error {
	link, err := w.GetLink(name)
	if err != nil {
		return err
	}
	return link.SetLink(target)
}

// SetLink rewires a link record to target and marks the owning object
// modified. target must be a root object of the same repository.
func (w *Wrapper) SetLink(target *Wrapper) error {
	if err := w.checkWritable(); err != nil {
		return err
	}
	if !w.desc.IsLink() {
		return w.fail("link", "", ErrTypeMismatch)
	}
	r, err := w.repo()
	if err != nil {
		return err
	}
	if err := r.SetLinkedObject(w, target); err != nil {
		return err
	}
	w.setParentsModified()
	return nil
}

// Target dereferences a link record.
func (w *Wrapper) Target() (*Wrapper, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	r, err := w.repo()
	if err != nil {
		return nil, err
	}
	return r.GetLinkedObject(w)
}

func (w *Wrapper) LinkKey() (ID, error) {
	if err := w.checkLink(); err != nil {
		return "", err
	}
	return w.linkID(), nil
}

func (w *Wrapper) LinkType() (schema.TypeID, error) {
	if err := w.checkLink(); err != nil {
		return schema.TypeID{}, err
	}
	return w.linkType(), nil
}

func (w *Wrapper) LinkIsLeaf() (bool, error) {
	if err := w.checkLink(); err != nil {
		return false, err
	}
	return w.linkIsLeaf(), nil
}

func (w *Wrapper) checkLink() error {
	if err := w.check(); err != nil {
		return err
	}
	if !w.desc.IsLink() {
		return w.fail("link", "", ErrTypeMismatch)
	}
	return nil
}

func (w *Wrapper) linkField(name string) protoreflect.FieldDescriptor {
	f, _ := w.desc.Field(name)
	return f.Desc
}

func (w *Wrapper) linkID() ID {
	pm, err := w.payload()
	if err != nil {
		return ""
	}
	return IDFromBytes(pm.Get(w.linkField("key")).Bytes())
}

func (w *Wrapper) linkType() schema.TypeID {
	pm, err := w.payload()
	if err != nil {
		return schema.TypeID{}
	}
	return schema.TypeIDFromMessage(pm.Get(w.linkField("type")).Message())
}

func (w *Wrapper) linkIsLeaf() bool {
	pm, err := w.payload()
	if err != nil {
		return false
	}
	return pm.Get(w.linkField("isleaf")).Bool()
}

// The raw link setters are bookkeeping used by the repository and the commit
// engine. They ignore the read-only flag and never mark anything modified.

func (w *Wrapper) setLinkRaw(id ID, t schema.TypeID, isLeaf bool) error {
	pm, err := w.mutablePayload()
	if err != nil {
		return err
	}
	pm.Set(w.linkField("key"), protoreflect.ValueOfBytes(id.Bytes()))
	schema.SetTypeIDOnMessage(pm.Mutable(w.linkField("type")).Message(), t)
	pm.Set(w.linkField("isleaf"), protoreflect.ValueOfBool(isLeaf))
	return nil
}

func (w *Wrapper) setLinkKey(id ID) error {
	pm, err := w.mutablePayload()
	if err != nil {
		return err
	}
	pm.Set(w.linkField("key"), protoreflect.ValueOfBytes(id.Bytes()))
	return nil
}

func (w *Wrapper) setLinkIsLeaf(isLeaf bool) error {
	pm, err := w.mutablePayload()
	if err != nil {
		return err
	}
	pm.Set(w.linkField("isleaf"), protoreflect.ValueOfBool(isLeaf))
	return nil
}

// Enum returns the name to number table of an enum declared on or used by
// this record.
func (w *Wrapper) Enum(name string) (schema.EnumTable, error) {
	if err := w.check(); err != nil {
		return schema.EnumTable{}, err
	}
	t, ok := w.desc.Enum(name)
	if !ok {
		return schema.EnumTable{}, w.fail("enum", name, ErrUnknownField)
	}
	return t, nil
}

// IsFieldSet reports presence. A repeated scalar field is set when it holds
// at least one value, a repeated record field when any element has a field
// set.
func (w *Wrapper) IsFieldSet(name string) (bool, error) {
	if err := w.check(); err != nil {
		return false, err
	}
	f, err := w.lookupField("isset", name)
	if err != nil {
		return false, err
	}
	pm, err := w.payload()
	if err != nil {
		return false, err
	}
	return isSet(pm, f), nil
}

func isSet(pm protoreflect.Message, f *schema.Field) bool {
	if f.Kind != schema.KindRepeatedMessage {
		return pm.Has(f.Desc)
	}
	list := pm.Get(f.Desc).List()
	for i := 0; i < list.Len(); i++ {
		set := false
		list.Get(i).Message().Range(func(protoreflect.FieldDescriptor, protoreflect.Value) bool {
			set = true
			return false
		})
		if set {
			return true
		}
	}
	return false
}

// ListSetFields returns the names of all set fields ordered by field number.
func (w *Wrapper) ListSetFields() ([]string, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	pm, err := w.payload()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, f := range w.desc.Fields() {
		if isSet(pm, f) {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

// ClearField resets a field. Links held by the field are unhooked from both
// ends before the field is dropped. Clearing a field that is not set does
// nothing.
func (w *Wrapper) ClearField(name string) error {
	if err := w.checkWritable(); err != nil {
		return err
	}
	f, err := w.lookupField("clear", name)
	if err != nil {
		return err
	}
	pm, err := w.payload()
	if err != nil {
		return err
	}
	fd := f.Desc
	if !pm.Has(fd) {
		return nil
	}

	switch f.Kind {
	case schema.KindMessage, schema.KindLink:
		if err := w.subMessage(fd).detachLinks(); err != nil {
			return err
		}
	case schema.KindRepeatedMessage:
		cl := w.compositeList(fd)
		for i := 0; i < pm.Get(fd).List().Len(); i++ {
			if err := cl.elem(i).detachLinks(); err != nil {
				return err
			}
		}
	}
	w.root.state.drop(fieldRef{owner: w, num: fd.Number()})

	mp, err := w.mutablePayload()
	if err != nil {
		return err
	}
	mp.Clear(fd)
	w.setParentsModified()
	return nil
}

// IsInitialized reports whether every required field, including those of
// nested records, is set.
func (w *Wrapper) IsInitialized() (bool, error) {
	if err := w.check(); err != nil {
		return false, err
	}
	pm, err := w.payload()
	if err != nil {
		return false, err
	}
	return proto.CheckInitialized(pm.Interface()) == nil, nil
}

// Serialize encodes the record deterministically. Equal field sets always
// produce equal bytes.
func (w *Wrapper) Serialize() ([]byte, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	pm, err := w.payload()
	if err != nil {
		return nil, err
	}
	b, err := marshalOptions.Marshal(pm.Interface())
	if err != nil {
		return nil, w.fail("serialize", "", errors.Join(ErrSerialization, err))
	}
	return b, nil
}

// Parse replaces the whole record of a root object with the decoded bytes.
// Every proxy derived from the old record is invalidated and the child links
// are rebuilt from the new content.
func (w *Wrapper) Parse(b []byte) error {
	if err := w.checkWritable(); err != nil {
		return err
	}
	if !w.IsRoot() {
		return w.fail("parse", "", ErrTypeMismatch)
	}
	s := w.state
	if _, err := w.payload(); err != nil {
		return err
	}
	// decode first, a failed parse leaves the object untouched
	msg := s.msg.Type().New()
	if err := unmarshalOptions.Unmarshal(b, msg.Interface()); err != nil {
		return w.fail("parse", "", err)
	}

	if err := w.detachLinks(); err != nil {
		return err
	}
	for ref := range s.derived {
		s.drop(ref)
	}
	s.childLinks.clear()
	s.msg = msg
	if err := w.FindChildLinks(); err != nil {
		return err
	}
	w.setParentsModified()
	return nil
}

// ByteSize is the size of the serialized record.
func (w *Wrapper) ByteSize() (int, error) {
	if err := w.check(); err != nil {
		return 0, err
	}
	pm, err := w.payload()
	if err != nil {
		return 0, err
	}
	return proto.Size(pm.Interface()), nil
}

func sortedKeys(m map[ID]*Wrapper) []ID {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ScalarList returns the container of a repeated scalar field.
func (w *Wrapper) ScalarList(name string) (*ScalarList, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	f, err := w.lookupField("list", name)
	if err != nil {
		return nil, err
	}
	if f.Kind != schema.KindRepeatedScalar {
		return nil, w.fail("list", name, ErrTypeMismatch)
	}
	return w.scalarList(f.Desc), nil
}

// CompositeList returns the container of a repeated record or link field.
func (w *Wrapper) CompositeList(name string) (*CompositeList, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	f, err := w.lookupField("list", name)
	if err != nil {
		return nil, err
	}
	if f.Kind != schema.KindRepeatedMessage {
		return nil, w.fail("list", name, ErrTypeMismatch)
	}
	return w.compositeList(f.Desc), nil
}
