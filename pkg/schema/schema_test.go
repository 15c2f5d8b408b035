package schema_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/i5heu/ouroboros-objects/internal/testutil"
	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

func TestTypeOf(t *testing.T) {
	file := testutil.SchemaFile(t)

	named, ok := schema.TypeOf(file.Messages().ByName("Named"))
	require.True(t, ok)
	assert.Equal(t, testutil.NamedType, named)

	link, ok := schema.TypeOf(schema.LinkDescriptor())
	require.True(t, ok)
	assert.Equal(t, schema.LinkType, link)

	se, ok := schema.TypeOf(schema.StructureElementDescriptor())
	require.True(t, ok)
	assert.Equal(t, schema.StructureElementType, se)

	_, ok = schema.TypeOf(schema.TypeIdentifierDescriptor())
	assert.False(t, ok, "TypeIdentifier is not an object type")
}

func TestTypeID_MarshalMatchesProto(t *testing.T) {
	for _, id := range []schema.TypeID{
		{},
		schema.LinkType,
		{ObjectID: 10001, Version: 1},
		{ObjectID: 1 << 31, Version: 300},
	} {
		m := dynamicpb.NewMessage(schema.TypeIdentifierDescriptor())
		schema.SetTypeIDOnMessage(m, id)

		want, err := proto.MarshalOptions{Deterministic: true}.Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, want, id.Marshal(), "type %s", id)
		assert.Equal(t, id, schema.TypeIDFromMessage(m))
	}
}

func TestDescriptor_FieldKinds(t *testing.T) {
	r := testutil.Registry(t)

	holder, err := r.Lookup(testutil.HolderType)
	require.NoError(t, err)

	tests := []struct {
		field string
		kind  schema.FieldKind
	}{
		{"label", schema.KindScalar},
		{"child", schema.KindLink},
		{"children", schema.KindRepeatedMessage},
		{"inner", schema.KindMessage},
		{"entries", schema.KindRepeatedMessage},
	}
	for _, tc := range tests {
		t.Run(tc.field, func(t *testing.T) {
			f, ok := holder.Field(tc.field)
			require.True(t, ok)
			assert.Equal(t, tc.kind, f.Kind)
		})
	}

	child, _ := holder.Field("child")
	assert.Equal(t, schema.LinkType, child.NestedType)

	inner, _ := holder.Field("inner")
	assert.True(t, inner.NestedType.IsZero())

	named, err := r.Lookup(testutil.NamedType)
	require.NoError(t, err)
	tags, _ := named.Field("tags")
	assert.Equal(t, schema.KindRepeatedScalar, tags.Kind)

	fields := named.Fields()
	require.Len(t, fields, 7)
	for i := 1; i < len(fields); i++ {
		assert.Less(t, fields[i-1].Number, fields[i].Number)
	}

	_, ok := named.Field("missing")
	assert.False(t, ok)
}

func TestDescriptor_Enums(t *testing.T) {
	r := testutil.Registry(t)
	named, err := r.Lookup(testutil.NamedType)
	require.NoError(t, err)

	color, ok := named.Enum("Color")
	require.True(t, ok)
	assert.Equal(t, "Color", color.Name())

	v, ok := color.Value("GREEN")
	require.True(t, ok)
	assert.Equal(t, int32(2), v)

	name, ok := color.NameOf(3)
	require.True(t, ok)
	assert.Equal(t, "BLUE", name)

	_, ok = color.Value("PURPLE")
	assert.False(t, ok)

	assert.Equal(t, []string{"RED", "GREEN", "BLUE"}, color.Names())
	assert.Equal(t, []string{"Color"}, named.EnumNames(), "type identifier enum is not exposed")

	f, _ := named.Field("color")
	assert.Equal(t, "Color", f.Enum)
}

func TestRegistry_GetOrBuildCaches(t *testing.T) {
	r := testutil.Registry(t)
	md := testutil.SchemaFile(t).Messages().ByName("Named")

	before := r.Builds()
	first := r.GetOrBuild(md)
	second := r.GetOrBuild(md)

	assert.Same(t, first, second)
	assert.Equal(t, before+1, r.Builds())
}

func TestRegistry_ConcurrentFirstUse(t *testing.T) {
	r := testutil.Registry(t)
	md := testutil.SchemaFile(t).Messages().ByName("Holder")

	const workers = 32
	results := make([]*schema.Descriptor, workers)

	var start, done sync.WaitGroup
	start.Add(1)
	for i := 0; i < workers; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i] = r.GetOrBuild(md)
		}(i)
	}
	start.Done()
	done.Wait()

	for _, d := range results {
		assert.Same(t, results[0], d, "every caller must see the first published descriptor")
	}
	assert.Same(t, results[0], r.GetOrBuild(md))
}

func TestRegistry_MessageType(t *testing.T) {
	r := testutil.Registry(t)

	mt, err := r.MessageType(testutil.NamedType)
	require.NoError(t, err)
	assert.Equal(t, protoreflect.FullName("ouroboros.test.Named"), mt.Descriptor().FullName())

	m, err := r.New(schema.LinkType)
	require.NoError(t, err)
	assert.Equal(t, schema.LinkName, m.Descriptor().FullName())

	_, err = r.MessageType(schema.TypeID{ObjectID: 999, Version: 9})
	assert.ErrorIs(t, err, schema.ErrUnknownType)

	assert.Contains(t, r.Types(), testutil.HolderType)
	assert.Contains(t, r.Types(), schema.StructureElementType)
}

func TestRegistry_RegisterConflict(t *testing.T) {
	r := testutil.Registry(t)

	other, err := schema.BuildFile("conflict.proto", "conflict", nil, schema.MessageDef{
		Name:   "Impostor",
		Type:   testutil.NamedType,
		Fields: []schema.FieldDef{schema.Optional("x", 1, schema.TypeString)},
	})
	require.NoError(t, err)

	err = r.RegisterFile(other)
	assert.Error(t, err)

	// the same message again is fine
	assert.NoError(t, r.RegisterFile(testutil.SchemaFile(t)))
}

func TestRegistry_RegisterWithoutTypeIdentifier(t *testing.T) {
	r := schema.NewRegistry()
	inner := testutil.SchemaFile(t).Messages().ByName("Holder").Messages().ByName("Inner")

	err := r.Register(dynamicpb.NewMessageType(inner))
	assert.Error(t, err)
}

func TestRegistry_RegisterDescriptorSet(t *testing.T) {
	set := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{
			protodesc.ToFileDescriptorProto(schema.CoreFile()),
			protodesc.ToFileDescriptorProto(testutil.SchemaFile(t)),
		},
	}
	data, err := proto.Marshal(set)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "objects.pb")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	r := schema.NewRegistry()
	require.NoError(t, r.RegisterDescriptorSet(path))

	d, err := r.Lookup(testutil.HolderType)
	require.NoError(t, err)
	f, ok := d.Field("child")
	require.True(t, ok)
	assert.Equal(t, schema.KindLink, f.Kind)

	assert.Error(t, r.RegisterDescriptorSet(filepath.Join(t.TempDir(), "missing.pb")))
}

func TestFieldKind_String(t *testing.T) {
	assert.Equal(t, "link", schema.KindLink.String())
	assert.Equal(t, "repeated-message", schema.KindRepeatedMessage.String())
	assert.Equal(t, "unknown", schema.FieldKind(42).String())
}
