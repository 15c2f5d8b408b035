package schema

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Field types accepted by the FieldDef helpers.
const (
	TypeBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	TypeInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	TypeInt64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	TypeUint32  = descriptorpb.FieldDescriptorProto_TYPE_UINT32
	TypeUint64  = descriptorpb.FieldDescriptorProto_TYPE_UINT64
	TypeFloat   = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	TypeDouble  = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	TypeString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	TypeBytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	TypeEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
	TypeMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

const (
	labelOptional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	labelRequired = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED
	labelRepeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
)

// FieldDef describes one field for BuildFile. TypeName is the fully
// qualified name with a leading dot and is only used by message and enum
// fields.
type FieldDef struct {
	Name     string
	Number   int32
	Label    descriptorpb.FieldDescriptorProto_Label
	Type     descriptorpb.FieldDescriptorProto_Type
	TypeName string
}

type EnumValueDef struct {
	Name   string
	Number int32
}

type EnumDef struct {
	Name   string
	Values []EnumValueDef
}

// MessageDef describes one message for BuildFile. A non-zero Type adds the
// _MessageTypeIdentifier enum that makes the message an object type.
type MessageDef struct {
	Name   string
	Type   TypeID
	Fields []FieldDef
	Enums  []EnumDef
	Nested []MessageDef
}

func Optional(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) FieldDef {
	return FieldDef{Name: name, Number: number, Label: labelOptional, Type: typ}
}

func Required(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) FieldDef {
	return FieldDef{Name: name, Number: number, Label: labelRequired, Type: typ}
}

func Repeated(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) FieldDef {
	return FieldDef{Name: name, Number: number, Label: labelRepeated, Type: typ}
}

func OptionalMessage(name string, number int32, typeName string) FieldDef {
	return FieldDef{Name: name, Number: number, Label: labelOptional, Type: TypeMessage, TypeName: typeName}
}

func RepeatedMessage(name string, number int32, typeName string) FieldDef {
	return FieldDef{Name: name, Number: number, Label: labelRepeated, Type: TypeMessage, TypeName: typeName}
}

func OptionalEnum(name string, number int32, typeName string) FieldDef {
	return FieldDef{Name: name, Number: number, Label: labelOptional, Type: TypeEnum, TypeName: typeName}
}

// LinkField is a singular reference to another object.
func LinkField(name string, number int32) FieldDef {
	return OptionalMessage(name, number, LinkTypeName)
}

// RepeatedLinks is a list of references to other objects.
func RepeatedLinks(name string, number int32) FieldDef {
	return RepeatedMessage(name, number, LinkTypeName)
}

// BuildFile assembles a proto2 file descriptor from message definitions.
// Files referenced by TypeName must be passed in deps; files that link to
// other objects need CoreFile() among them.
func BuildFile(path, pkg string, deps []protoreflect.FileDescriptor, msgs ...MessageDef) (protoreflect.FileDescriptor, error) {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(path),
		Package: proto.String(pkg),
		Syntax:  proto.String("proto2"),
	}

	files := new(protoregistry.Files)
	for _, dep := range deps {
		fdp.Dependency = append(fdp.Dependency, dep.Path())
		if err := files.RegisterFile(dep); err != nil {
			return nil, fmt.Errorf("schema: register dependency %s: %w", dep.Path(), err)
		}
	}

	for _, m := range msgs {
		fdp.MessageType = append(fdp.MessageType, m.descriptorProto())
	}

	fd, err := protodesc.NewFile(fdp, files)
	if err != nil {
		return nil, fmt.Errorf("schema: build %s: %w", path, err)
	}
	return fd, nil
}

func (m MessageDef) descriptorProto() *descriptorpb.DescriptorProto {
	dp := &descriptorpb.DescriptorProto{Name: proto.String(m.Name)}

	for _, f := range m.Fields {
		fp := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(f.Name),
			Number: proto.Int32(f.Number),
			Label:  f.Label.Enum(),
			Type:   f.Type.Enum(),
		}
		if f.TypeName != "" {
			fp.TypeName = proto.String(f.TypeName)
		}
		dp.Field = append(dp.Field, fp)
	}

	for _, e := range m.Enums {
		dp.EnumType = append(dp.EnumType, e.descriptorProto())
	}
	if !m.Type.IsZero() {
		dp.EnumType = append(dp.EnumType, typeIdentifierEnumProto(m.Type))
	}

	for _, n := range m.Nested {
		dp.NestedType = append(dp.NestedType, n.descriptorProto())
	}
	return dp
}

func (e EnumDef) descriptorProto() *descriptorpb.EnumDescriptorProto {
	ep := &descriptorpb.EnumDescriptorProto{Name: proto.String(e.Name)}
	for _, v := range e.Values {
		ep.Value = append(ep.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name),
			Number: proto.Int32(v.Number),
		})
	}
	return ep
}

func typeIdentifierEnumProto(t TypeID) *descriptorpb.EnumDescriptorProto {
	ep := EnumDef{
		Name: typeIdentifierEnum,
		Values: []EnumValueDef{
			{Name: typeIdentifierID, Number: int32(t.ObjectID)},
			{Name: typeIdentifierVersion, Number: int32(t.Version)},
		},
	}.descriptorProto()

	// protodesc rejects allow_alias when nothing is aliased
	if t.ObjectID == t.Version {
		ep.Options = &descriptorpb.EnumOptions{AllowAlias: proto.Bool(true)}
	}
	return ep
}
