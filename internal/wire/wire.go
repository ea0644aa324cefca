// Package wire implements the node's binary wire encoding: little-endian
// fixed-width integers, LEB128-style compact length prefixes ahead of every
// variable-length sequence, and a single tag byte ahead of every enum-shaped
// value. This package writes no schema-version byte itself: internal/kura
// prefixes each stored block record with one, and the transaction encoding
// in internal/core carries none.
// The scheme mirrors the SCALE codec described by the schema crates under
// original_source/ without importing a Rust-specific library; no package in
// the retrieved examples implements this exact framing, so this is written
// directly against encoding/binary (a justified stdlib-only component — see
// DESIGN.md).
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrTruncated is returned when a decode runs out of input mid-value.
var ErrTruncated = errors.New("wire: truncated input")

// ErrUnknownTag is returned when a tag byte does not match any known variant.
var ErrUnknownTag = errors.New("wire: unknown tag")

// Encoder accumulates encoded bytes.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// U8 writes a single byte.
func (e *Encoder) U8(v uint8) { e.buf.WriteByte(v) }

// U32 writes a little-endian uint32.
func (e *Encoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// U64 writes a little-endian uint64.
func (e *Encoder) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// CompactLen writes a LEB128-style compact length prefix.
func (e *Encoder) CompactLen(n int) {
	v := uint64(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		e.buf.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

// RawBytes writes a length-prefixed byte slice.
func (e *Encoder) RawBytes(b []byte) {
	e.CompactLen(len(b))
	e.buf.Write(b)
}

// FixedBytes writes b with no length prefix, for fixed-size fields such as
// hashes or public keys whose length is implicit in the schema.
func (e *Encoder) FixedBytes(b []byte) { e.buf.Write(b) }

// String writes a length-prefixed UTF-8 string.
func (e *Encoder) String(s string) { e.RawBytes([]byte(s)) }

// Decoder reads sequentially from a fixed byte slice.
type Decoder struct {
	r *bytes.Reader
}

// NewDecoder wraps data for sequential decoding.
func NewDecoder(data []byte) *Decoder { return &Decoder{r: bytes.NewReader(data)} }

// Remaining reports how many bytes are left unread.
func (d *Decoder) Remaining() int { return d.r.Len() }

// U8 reads a single byte.
func (d *Decoder) U8() (uint8, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: u8: %v", ErrTruncated, err)
	}
	return b, nil
}

// U32 reads a little-endian uint32.
func (d *Decoder) U32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: u32: %v", ErrTruncated, err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// U64 reads a little-endian uint64.
func (d *Decoder) U64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: u64: %v", ErrTruncated, err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// CompactLen reads a LEB128-style compact length prefix.
func (d *Decoder) CompactLen() (int, error) {
	var result uint64
	var shift uint
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: compact len: %v", ErrTruncated, err)
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("wire: compact len overflow")
		}
	}
	return int(result), nil
}

// RawBytes reads a length-prefixed byte slice.
func (d *Decoder) RawBytes() ([]byte, error) {
	n, err := d.CompactLen()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("%w: raw bytes (%d): %v", ErrTruncated, n, err)
	}
	return buf, nil
}

// FixedBytes reads exactly n bytes with no length prefix.
func (d *Decoder) FixedBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("%w: fixed bytes (%d): %v", ErrTruncated, n, err)
	}
	return buf, nil
}

// String reads a length-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	b, err := d.RawBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
