// Package schema consumes protobuf message descriptors and turns them into
// the per-type dispatch tables the object layer uses for field access.
//
// A message opts into the object model by declaring a nested enum named
// _MessageTypeIdentifier with the values _ID and _VERSION. Those two numbers
// form its TypeID, which is stored next to every serialized record and is
// part of the record's content key.
package schema

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	typeIdentifierEnum    = "_MessageTypeIdentifier"
	typeIdentifierID      = "_ID"
	typeIdentifierVersion = "_VERSION"
)

// TypeID identifies a record schema. The zero value marks an untyped record,
// usually a nested message that never appears as an object of its own.
type TypeID struct {
	ObjectID uint32
	Version  uint32
}

var (
	StructureElementType = TypeID{ObjectID: 1, Version: 1}
	LinkType             = TypeID{ObjectID: 3, Version: 1}
)

func (t TypeID) IsZero() bool {
	return t == TypeID{}
}

func (t TypeID) String() string {
	return fmt.Sprintf("%d:%d", t.ObjectID, t.Version)
}

// Marshal returns the TypeIdentifier wire encoding of t. It is byte for byte
// what proto.Marshal produces for the core TypeIdentifier message with both
// fields set, and it feeds the content key.
func (t TypeID) Marshal() []byte {
	b := make([]byte, 0, 12)
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.ObjectID))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.Version))
	return b
}

// TypeOf reads the type identifier a message descriptor declares. ok is false
// for messages without one.
func TypeOf(md protoreflect.MessageDescriptor) (t TypeID, ok bool) {
	ed := md.Enums().ByName(typeIdentifierEnum)
	if ed == nil {
		return TypeID{}, false
	}
	id := ed.Values().ByName(typeIdentifierID)
	version := ed.Values().ByName(typeIdentifierVersion)
	if id == nil || version == nil {
		return TypeID{}, false
	}
	return TypeID{ObjectID: uint32(id.Number()), Version: uint32(version.Number())}, true
}

// TypeIDFromMessage reads a TypeIdentifier shaped message (object_id,
// version) such as the type field of a Link or a StructureElement.
func TypeIDFromMessage(m protoreflect.Message) TypeID {
	fields := m.Descriptor().Fields()
	var t TypeID
	if fd := fields.ByName("object_id"); fd != nil {
		t.ObjectID = uint32FromValue(fd, m.Get(fd))
	}
	if fd := fields.ByName("version"); fd != nil {
		t.Version = uint32FromValue(fd, m.Get(fd))
	}
	return t
}

// SetTypeIDOnMessage writes t into a TypeIdentifier shaped message.
func SetTypeIDOnMessage(m protoreflect.Message, t TypeID) {
	fields := m.Descriptor().Fields()
	if fd := fields.ByName("object_id"); fd != nil {
		m.Set(fd, valueFromUint32(fd, t.ObjectID))
	}
	if fd := fields.ByName("version"); fd != nil {
		m.Set(fd, valueFromUint32(fd, t.Version))
	}
}

// Schemas compiled from older definitions declare the identifier fields as
// int32, newer ones as uint32.
func uint32FromValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) uint32 {
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return uint32(v.Int())
	default:
		return uint32(v.Uint())
	}
}

func valueFromUint32(fd protoreflect.FieldDescriptor, n uint32) protoreflect.Value {
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return protoreflect.ValueOfInt32(int32(n))
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return protoreflect.ValueOfInt64(int64(n))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return protoreflect.ValueOfUint64(uint64(n))
	default:
		return protoreflect.ValueOfUint32(n)
	}
}
