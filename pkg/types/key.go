package types

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// KeySize is the length of a content key in bytes.
const KeySize = sha1.Size

// Key is the content key of a Structure Element: a 160 bit digest over the
// element's payload and type.
type Key [KeySize]byte

// Digest hashes b with the content key digest.
func Digest(b []byte) Key {
	return Key(sha1.Sum(b))
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

func (k Key) Bytes() []byte {
	return k[:]
}

func (k Key) IsZero() bool {
	return k == Key{}
}

// Short returns the first 8 hex characters, for log lines.
func (k Key) Short() string {
	return hex.EncodeToString(k[:4])
}

func (k Key) Compare(other Key) int {
	return bytes.Compare(k[:], other[:])
}

func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, fmt.Errorf("invalid byte length for Key: %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

func KeyFromHex(s string) (Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("invalid hex for Key: %w", err)
	}
	return KeyFromBytes(b)
}
