// Package encoding frames the bytes a disk store persists for one element.
// The first byte is a flag telling whether the rest is stored raw or lzma
// compressed.
package encoding

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ulikunitz/xz/lzma"
)

const (
	payloadHeaderRaw  = 0x00
	payloadHeaderLzma = 0x30

	// smaller payloads are never compressed, the lzma header alone is
	// larger than most of them
	minCompressSize = 64
)

var ErrInvalidHeader = errors.New("encoding: invalid payload header flag")

// Encode frames content. With compress set, content above a small threshold
// is lzma compressed, unless compression does not make it smaller.
func Encode(content []byte, compress bool) ([]byte, error) {
	if compress && len(content) >= minCompressSize {
		packed, err := compressWithLzma(content)
		if err != nil {
			return nil, fmt.Errorf("encoding: compress: %w", err)
		}
		if len(packed) < len(content) {
			return append([]byte{payloadHeaderLzma}, packed...), nil
		}
	}

	encoded := make([]byte, 1, len(content)+1)
	encoded[0] = payloadHeaderRaw
	return append(encoded, content...), nil
}

// Decode returns the content of a framed payload. It does not modify its
// input; raw content is returned as a sub slice of payload.
func Decode(payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, errors.New("encoding: payload is impossible short, it must be at least 1 byte")
	}

	switch payload[0] {
	case payloadHeaderRaw:
		return payload[1:], nil
	case payloadHeaderLzma:
		content, err := decompressWithLzma(payload[1:])
		if err != nil {
			return nil, fmt.Errorf("encoding: decompress: %w", err)
		}
		return content, nil
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidHeader, payload[0])
	}
}

// IsCompressed reports whether a framed payload holds lzma data.
func IsCompressed(payload []byte) bool {
	return len(payload) > 0 && payload[0] == payloadHeaderLzma
}

func compressWithLzma(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressWithLzma(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
