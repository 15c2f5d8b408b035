package cli

import (
	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var (
	DocumentType = schema.TypeID{ObjectID: 900, Version: 1}
	PersonType   = schema.TypeID{ObjectID: 901, Version: 1}
)

var demoSchema protoreflect.FileDescriptor

func init() {
	fd, err := schema.BuildFile("ouroboros/demo/documents.proto", "ouroboros.demo",
		[]protoreflect.FileDescriptor{schema.CoreFile()},
		schema.MessageDef{
			Name: "Document",
			Type: DocumentType,
			Fields: []schema.FieldDef{
				schema.Required("title", 1, schema.TypeString),
				schema.Optional("body", 2, schema.TypeString),
				schema.Repeated("tags", 3, schema.TypeString),
				schema.LinkField("author", 4),
				schema.RepeatedLinks("sections", 5),
			},
		},
		schema.MessageDef{
			Name: "Person",
			Type: PersonType,
			Fields: []schema.FieldDef{
				schema.Required("name", 1, schema.TypeString),
				schema.Optional("email", 2, schema.TypeString),
			},
		},
	)
	if err != nil {
		panic(err)
	}
	demoSchema = fd
}

// DemoSchema holds the Document and Person types used by the demo command.
func DemoSchema() protoreflect.FileDescriptor {
	return demoSchema
}
