package storage

import (
	"bytes"
	"testing"

	"github.com/i5heu/ouroboros-objects/encoding"
	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/schema"
	"github.com/i5heu/ouroboros-objects/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeElement(t *testing.T) {
	value := bytes.Repeat([]byte("record "), 40)
	e := element.New(schema.TypeID{ObjectID: 9, Version: 1}, value, false,
		[]types.Key{types.Digest([]byte("child"))})

	for _, compress := range []bool{false, true} {
		b, err := EncodeElement(e, compress)
		require.NoError(t, err)
		assert.Equal(t, compress, encoding.IsCompressed(b))

		got, err := DecodeElement(b)
		require.NoError(t, err)
		assert.True(t, e.Equal(got))
	}
}

func TestDecodeElement_Corrupted(t *testing.T) {
	e := element.New(schema.TypeID{ObjectID: 9, Version: 1}, []byte("abcdefgh"), true, nil)
	b, err := EncodeElement(e, false)
	require.NoError(t, err)

	// header byte, then 6 bytes of type, then the 2 byte value header
	b[9] ^= 0x01
	_, err = DecodeElement(b)
	assert.ErrorIs(t, err, element.ErrCorrupted)
}

func TestDecodeElementAt_WrongKey(t *testing.T) {
	e := element.New(schema.TypeID{ObjectID: 9, Version: 1}, []byte("filed elsewhere"), true, nil)
	b, err := EncodeElement(e, false)
	require.NoError(t, err)

	got, err := DecodeElementAt(e.Key, b)
	require.NoError(t, err)
	assert.True(t, e.Equal(got))

	_, err = DecodeElementAt(types.Digest([]byte("another key")), b)
	assert.ErrorIs(t, err, element.ErrCorrupted)
	assert.NoError(t, CheckKey(e.Key, e))
}
