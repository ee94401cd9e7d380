// Package cdr writes OMG CDR little-endian payloads as used by ROS 2.
//
// Only the primitives needed by the synthesized image messages are provided.
// Alignment is computed relative to the first byte after the 4-byte
// encapsulation header, matching the ROS 2 serializers.
package cdr

import "encoding/binary"

// encapsulation header for CDR_LE with no options.
var header = [4]byte{0x00, 0x01, 0x00, 0x00}

// Encoder accumulates a CDR payload.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder with room for sizeHint body bytes.
func NewEncoder(sizeHint int) *Encoder {
	buf := make([]byte, 0, len(header)+sizeHint)
	buf = append(buf, header[:]...)
	return &Encoder{buf: buf}
}

func (e *Encoder) align(n int) {
	offset := len(e.buf) - len(header)
	if pad := offset % n; pad != 0 {
		for i := 0; i < n-pad; i++ {
			e.buf = append(e.buf, 0)
		}
	}
}

// Uint8 writes a single byte.
func (e *Encoder) Uint8(v uint8) {
	e.buf = append(e.buf, v)
}

// Bool writes a boolean as one byte.
func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint8(1)
		return
	}
	e.Uint8(0)
}

// Uint32 writes a 4-byte aligned unsigned integer.
func (e *Encoder) Uint32(v uint32) {
	e.align(4)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// Int32 writes a 4-byte aligned signed integer.
func (e *Encoder) Int32(v int32) {
	e.Uint32(uint32(v))
}

// String writes a length-prefixed, NUL-terminated string.
func (e *Encoder) String(s string) {
	e.Uint32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// Bytes writes a length-prefixed uint8 sequence.
func (e *Encoder) Bytes(b []byte) {
	e.Uint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// Data returns the encoded payload including the encapsulation header.
func (e *Encoder) Data() []byte {
	return e.buf
}
