package schema

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	CorePath    = "ouroboros/objects/core.proto"
	CorePackage = "ouroboros.objects"

	TypeIdentifierName   protoreflect.FullName = CorePackage + ".TypeIdentifier"
	LinkName             protoreflect.FullName = CorePackage + ".Link"
	StructureElementName protoreflect.FullName = CorePackage + ".StructureElement"

	// LinkTypeName is the TypeName for message fields that reference objects.
	LinkTypeName = "." + string(LinkName)
)

var coreFile = mustBuildCore()

func mustBuildCore() protoreflect.FileDescriptor {
	typeIdentifier := "." + string(TypeIdentifierName)

	fd, err := BuildFile(CorePath, CorePackage, nil,
		MessageDef{
			Name: "TypeIdentifier",
			Fields: []FieldDef{
				Optional("object_id", 1, TypeUint32),
				Optional("version", 2, TypeUint32),
			},
		},
		MessageDef{
			Name: "Link",
			Type: LinkType,
			Fields: []FieldDef{
				Optional("key", 1, TypeBytes),
				OptionalMessage("type", 2, typeIdentifier),
				Optional("isleaf", 3, TypeBool),
			},
		},
		MessageDef{
			Name: "StructureElement",
			Type: StructureElementType,
			Fields: []FieldDef{
				OptionalMessage("type", 1, typeIdentifier),
				Optional("value", 2, TypeBytes),
				Optional("key", 3, TypeBytes),
				Optional("isleaf", 4, TypeBool),
				Repeated("child_keys", 5, TypeBytes),
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return fd
}

// CoreFile holds TypeIdentifier, Link and StructureElement.
func CoreFile() protoreflect.FileDescriptor {
	return coreFile
}

func TypeIdentifierDescriptor() protoreflect.MessageDescriptor {
	return coreFile.Messages().ByName("TypeIdentifier")
}

func LinkDescriptor() protoreflect.MessageDescriptor {
	return coreFile.Messages().ByName("Link")
}

func StructureElementDescriptor() protoreflect.MessageDescriptor {
	return coreFile.Messages().ByName("StructureElement")
}
