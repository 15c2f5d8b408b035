package element

import (
	"encoding/hex"
	"testing"

	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var namedType = schema.TypeID{ObjectID: 101, Version: 1}

func TestComputeKey(t *testing.T) {
	tests := []struct {
		name  string
		typ   schema.TypeID
		value []byte
		want  string
	}{
		{"empty link", schema.LinkType, nil, "ade2014f1b62698789f3816a20fe6640300df64e"},
		{"named x", namedType, []byte{0x0a, 0x01, 0x78}, "d9fb80db9ce9c5fce4cff8615b704b0b10f5a4df"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeKey(tc.typ, tc.value).String())
		})
	}
}

func TestComputeKey_TypeAffectsIdentity(t *testing.T) {
	value := []byte("same payload")
	a := ComputeKey(schema.TypeID{ObjectID: 7, Version: 1}, value)
	b := ComputeKey(schema.TypeID{ObjectID: 7, Version: 2}, value)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ComputeKey(schema.TypeID{ObjectID: 7, Version: 1}, []byte("same payload")))
}

func TestNew_NormalizesChildKeys(t *testing.T) {
	a := types.Digest([]byte("a"))
	b := types.Digest([]byte("b"))

	e := New(namedType, []byte("v"), false, []types.Key{b, a, b, a})
	require.Len(t, e.ChildKeys, 2)
	assert.True(t, e.ChildKeys[0].Compare(e.ChildKeys[1]) < 0)
	assert.True(t, e.HasChild(a))
	assert.True(t, e.HasChild(b))
	assert.False(t, e.HasChild(types.Digest([]byte("c"))))

	leaf := New(namedType, []byte("v"), true, nil)
	assert.Nil(t, leaf.ChildKeys)
	assert.Equal(t, e.Key, leaf.Key, "child keys do not take part in the key")
}

func TestRoundTrip(t *testing.T) {
	elements := []*Element{
		New(namedType, []byte{0x0a, 0x01, 0x78}, true, nil),
		New(schema.LinkType, nil, true, nil),
		New(namedType, []byte("payload"), false, []types.Key{types.Digest([]byte("x")), types.Digest([]byte("y"))}),
	}
	for _, e := range elements {
		b, err := e.Marshal()
		require.NoError(t, err)

		got, err := Parse(b)
		require.NoError(t, err)
		assert.True(t, e.Equal(got), "round trip of %s", e.Key)

		again, err := got.Marshal()
		require.NoError(t, err)
		assert.Equal(t, b, again)
	}
}

func TestParse_DetectsCorruption(t *testing.T) {
	e := New(namedType, []byte("some record bytes"), true, nil)
	b, err := e.Marshal()
	require.NoError(t, err)

	// flip one byte of the value, which follows the 6 byte type field and
	// the two byte value header
	corrupt := append([]byte(nil), b...)
	corrupt[8] ^= 0xff

	_, err = Parse(corrupt)
	assert.ErrorIs(t, err, ErrCorrupted)

	e.Key[0] ^= 0xff
	assert.ErrorIs(t, e.Verify(), ErrCorrupted)
}

func TestParse_RejectsShortKey(t *testing.T) {
	// type 1:1, empty value, 3 byte key
	b, _ := hex.DecodeString("0a04080110011200" + "1a03010203")
	_, err := Parse(b)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorrupted)
}

func TestGolden(t *testing.T) {
	e := New(namedType, []byte{0x0a, 0x01, 0x78}, false, []types.Key{types.Digest([]byte("child"))})
	b, err := e.Marshal()
	require.NoError(t, err)

	out := e.String() + "wire: " + hex.EncodeToString(b) + "\n"

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "named_element", []byte(out))
}
