package encoding

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	repetitive := []byte(strings.Repeat("ouroboros object graph ", 64))

	tests := []struct {
		name       string
		content    []byte
		compress   bool
		wantHeader byte
	}{
		{"empty raw", []byte{}, false, payloadHeaderRaw},
		{"empty compress", []byte{}, true, payloadHeaderRaw},
		{"small compress stays raw", []byte("tiny"), true, payloadHeaderRaw},
		{"large raw", repetitive, false, payloadHeaderRaw},
		{"large compress", repetitive, true, payloadHeaderLzma},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tc.content, tc.compress)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if encoded[0] != tc.wantHeader {
				t.Fatalf("expected header byte 0x%02x, got 0x%02x", tc.wantHeader, encoded[0])
			}
			if tc.wantHeader == payloadHeaderLzma && len(encoded) >= len(tc.content) {
				t.Fatalf("compressed payload not smaller: %d >= %d", len(encoded), len(tc.content))
			}
			if IsCompressed(encoded) != (tc.wantHeader == payloadHeaderLzma) {
				t.Fatalf("IsCompressed disagrees with header 0x%02x", encoded[0])
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if !bytes.Equal(decoded, tc.content) {
				t.Fatalf("decoded content mismatch: want %d bytes, got %d", len(tc.content), len(decoded))
			}
		})
	}
}

func TestEncode_DoesNotModifyInput(t *testing.T) {
	content := []byte("sample payload")
	orig := append([]byte(nil), content...)

	if _, err := Encode(content, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(content, orig) {
		t.Fatalf("input was modified")
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"unknown flag", []byte{0x10, 'a'}},
		{"broken lzma", []byte{payloadHeaderLzma, 0x01, 0x02}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.payload); err == nil {
				t.Fatalf("expected error for %v", tc.payload)
			}
		})
	}
}
