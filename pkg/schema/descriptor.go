package schema

import (
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// FieldKind selects the accessor behavior of a field.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindMessage
	KindRepeatedScalar
	KindRepeatedMessage
	KindLink
	KindMap
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMessage:
		return "message"
	case KindRepeatedScalar:
		return "repeated-scalar"
	case KindRepeatedMessage:
		return "repeated-message"
	case KindLink:
		return "link"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Field is the consumed view of one field descriptor.
type Field struct {
	Name   string
	Number protoreflect.FieldNumber
	Kind   FieldKind
	Desc   protoreflect.FieldDescriptor

	// NestedType is the declared type of message fields, zero otherwise.
	NestedType TypeID
	// Enum names the enum table of enum fields.
	Enum string
}

// EnumTable is a read-only name to number table of one enum.
type EnumTable struct {
	name   string
	byName map[string]int32
	names  []string
}

func newEnumTable(ed protoreflect.EnumDescriptor) EnumTable {
	values := ed.Values()
	t := EnumTable{
		name:   string(ed.Name()),
		byName: make(map[string]int32, values.Len()),
		names:  make([]string, 0, values.Len()),
	}
	for i := 0; i < values.Len(); i++ {
		v := values.Get(i)
		t.byName[string(v.Name())] = int32(v.Number())
		t.names = append(t.names, string(v.Name()))
	}
	return t
}

func (t EnumTable) Name() string { return t.name }

func (t EnumTable) Value(name string) (int32, bool) {
	v, ok := t.byName[name]
	return v, ok
}

// NameOf returns the first declared name for a number.
func (t EnumTable) NameOf(number int32) (string, bool) {
	for _, n := range t.names {
		if t.byName[n] == number {
			return n, true
		}
	}
	return "", false
}

func (t EnumTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Descriptor is the dispatch table of one message type. It is immutable once
// built.
type Descriptor struct {
	Type     TypeID
	FullName protoreflect.FullName
	Message  protoreflect.MessageDescriptor

	fields  map[string]*Field
	ordered []*Field
	enums   map[string]EnumTable
}

func (d *Descriptor) Field(name string) (*Field, bool) {
	f, ok := d.fields[name]
	return f, ok
}

// Fields returns the fields ordered by field number.
func (d *Descriptor) Fields() []*Field {
	out := make([]*Field, len(d.ordered))
	copy(out, d.ordered)
	return out
}

func (d *Descriptor) Enum(name string) (EnumTable, bool) {
	t, ok := d.enums[name]
	return t, ok
}

func (d *Descriptor) EnumNames() []string {
	names := make([]string, 0, len(d.enums))
	for n := range d.enums {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (d *Descriptor) IsLink() bool {
	return d.Type == LinkType
}

func buildDescriptor(md protoreflect.MessageDescriptor) *Descriptor {
	t, _ := TypeOf(md)
	d := &Descriptor{
		Type:     t,
		FullName: md.FullName(),
		Message:  md,
		fields:   make(map[string]*Field, md.Fields().Len()),
		enums:    make(map[string]EnumTable),
	}

	enums := md.Enums()
	for i := 0; i < enums.Len(); i++ {
		ed := enums.Get(i)
		if ed.Name() == typeIdentifierEnum {
			continue
		}
		d.enums[string(ed.Name())] = newEnumTable(ed)
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		f := &Field{
			Name:   string(fd.Name()),
			Number: fd.Number(),
			Kind:   kindOf(fd),
			Desc:   fd,
		}
		if fd.Message() != nil && !fd.IsMap() {
			f.NestedType, _ = TypeOf(fd.Message())
		}
		if ed := fd.Enum(); ed != nil {
			f.Enum = string(ed.Name())
			if _, ok := d.enums[f.Enum]; !ok {
				d.enums[f.Enum] = newEnumTable(ed)
			}
		}
		d.fields[f.Name] = f
		d.ordered = append(d.ordered, f)
	}
	sort.Slice(d.ordered, func(i, j int) bool {
		return d.ordered[i].Number < d.ordered[j].Number
	})
	return d
}

func kindOf(fd protoreflect.FieldDescriptor) FieldKind {
	switch {
	case fd.IsMap():
		return KindMap
	case fd.IsList() && fd.Message() != nil:
		return KindRepeatedMessage
	case fd.IsList():
		return KindRepeatedScalar
	case fd.Message() != nil:
		if t, ok := TypeOf(fd.Message()); ok && t == LinkType {
			return KindLink
		}
		return KindMessage
	default:
		return KindScalar
	}
}
