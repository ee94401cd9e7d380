package cdr

import (
	"bytes"
	"testing"
)

func TestEncoderAlignsRelativeToBody(t *testing.T) {
	enc := NewEncoder(0)
	enc.Uint8(7)
	enc.Uint32(0x01020304)

	want := []byte{
		0x00, 0x01, 0x00, 0x00,
		0x07, 0x00, 0x00, 0x00,
		0x04, 0x03, 0x02, 0x01,
	}
	if !bytes.Equal(enc.Data(), want) {
		t.Fatalf("unexpected bytes: % x", enc.Data())
	}
}

func TestEncoderStringAndBytes(t *testing.T) {
	enc := NewEncoder(16)
	enc.String("ab")
	enc.Bytes([]byte{9, 8})

	want := []byte{
		0x00, 0x01, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00, 'a', 'b', 0x00,
		0x00, // pad to 4
		0x02, 0x00, 0x00, 0x00, 9, 8,
	}
	if !bytes.Equal(enc.Data(), want) {
		t.Fatalf("unexpected bytes: % x", enc.Data())
	}
}

func TestEncoderEmptyString(t *testing.T) {
	enc := NewEncoder(0)
	enc.String("")
	want := []byte{0x00, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(enc.Data(), want) {
		t.Fatalf("unexpected bytes: % x", enc.Data())
	}
}
