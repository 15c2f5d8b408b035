package testutil

import (
	"sync"
	"testing"

	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	SchemaPath    = "ouroboros/test/objects.proto"
	SchemaPackage = "ouroboros.test"
)

var (
	// NamedType has a required name, an enum and two repeated scalars.
	NamedType = schema.TypeID{ObjectID: 101, Version: 1}
	// HolderType links to other objects through a singular link, a list
	// of links and links nested inside untyped sub-records.
	HolderType = schema.TypeID{ObjectID: 102, Version: 1}
)

var (
	schemaOnce sync.Once
	schemaFile protoreflect.FileDescriptor
	schemaErr  error
)

// SchemaFile returns the shared test schema.
func SchemaFile(t testing.TB) protoreflect.FileDescriptor {
	t.Helper()
	schemaOnce.Do(func() {
		schemaFile, schemaErr = buildSchema()
	})
	if schemaErr != nil {
		t.Fatalf("build test schema: %v", schemaErr)
	}
	return schemaFile
}

// Registry returns a fresh registry with the core and test types.
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	if err := r.RegisterFile(SchemaFile(t)); err != nil {
		t.Fatalf("register test schema: %v", err)
	}
	return r
}

func buildSchema() (protoreflect.FileDescriptor, error) {
	inner := "." + SchemaPackage + ".Holder.Inner"
	color := "." + SchemaPackage + ".Named.Color"

	return schema.BuildFile(SchemaPath, SchemaPackage, []protoreflect.FileDescriptor{schema.CoreFile()},
		schema.MessageDef{
			Name: "Named",
			Type: NamedType,
			Fields: []schema.FieldDef{
				schema.Required("name", 1, schema.TypeString),
				schema.Optional("count", 2, schema.TypeInt32),
				schema.OptionalEnum("color", 3, color),
				schema.Repeated("tags", 4, schema.TypeString),
				schema.Repeated("samples", 5, schema.TypeInt64),
				schema.Optional("ratio", 6, schema.TypeDouble),
				schema.Optional("blob", 7, schema.TypeBytes),
			},
			Enums: []schema.EnumDef{{
				Name: "Color",
				Values: []schema.EnumValueDef{
					{Name: "RED", Number: 1},
					{Name: "GREEN", Number: 2},
					{Name: "BLUE", Number: 3},
				},
			}},
		},
		schema.MessageDef{
			Name: "Holder",
			Type: HolderType,
			Fields: []schema.FieldDef{
				schema.Optional("label", 1, schema.TypeString),
				schema.LinkField("child", 2),
				schema.RepeatedLinks("children", 3),
				schema.OptionalMessage("inner", 4, inner),
				schema.RepeatedMessage("entries", 5, inner),
			},
			Nested: []schema.MessageDef{{
				Name: "Inner",
				Fields: []schema.FieldDef{
					schema.Optional("note", 1, schema.TypeString),
					schema.LinkField("ref", 2),
				},
			}},
		},
	)
}
