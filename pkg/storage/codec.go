package storage

import (
	"fmt"

	"github.com/i5heu/ouroboros-objects/encoding"
	"github.com/i5heu/ouroboros-objects/pkg/element"
	"github.com/i5heu/ouroboros-objects/pkg/types"
)

// EncodeElement returns the bytes a disk store persists for e.
func EncodeElement(e *element.Element, compress bool) ([]byte, error) {
	b, err := e.Marshal()
	if err != nil {
		return nil, err
	}
	framed, err := encoding.Encode(b, compress)
	if err != nil {
		return nil, fmt.Errorf("storage: frame %s: %w", e.Key, err)
	}
	return framed, nil
}

// DecodeElement reverses EncodeElement and verifies the digest.
func DecodeElement(b []byte) (*element.Element, error) {
	raw, err := encoding.Decode(b)
	if err != nil {
		return nil, err
	}
	return element.Parse(raw)
}

// CheckKey returns element.ErrCorrupted unless e is the element filed under
// key. The digest check of Parse only proves e matches its own key.
func CheckKey(key types.Key, e *element.Element) error {
	if e.Key != key {
		return fmt.Errorf("%w: element %s filed under %s", element.ErrCorrupted, e.Key, key)
	}
	return nil
}

// DecodeElementAt decodes the bytes stored under key.
func DecodeElementAt(key types.Key, b []byte) (*element.Element, error) {
	e, err := DecodeElement(b)
	if err != nil {
		return nil, err
	}
	if err := CheckKey(key, e); err != nil {
		return nil, err
	}
	return e, nil
}
