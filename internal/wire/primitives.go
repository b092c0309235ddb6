// Package wire implements nexu's on-the-wire encodings: the length-delimited
// DM stream framing (C3), the deterministic binary message schema shared by
// gossip and DM messages (C4), and the primitive encoders both the ticket
// codec (C2) and the filesystem persistence layer (C13) build on.
//
// The format has no schema registry: every variant is a one-byte numeric
// tag followed by its fields in declaration order, each field self-
// delimited (fixed width, or a uvarint length prefix for variable-length
// data). Two encodes of equal values always produce equal bytes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-base32"
)

// TextEncoding is the no-pad RFC4648 base32 alphabet used to print tickets,
// endpoint ids and blob hashes.
var TextEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ErrTrailingBytes is returned when a decode consumes a buffer with bytes
// left over — the canonical-encoding counterpart of a short read.
var ErrTrailingBytes = errors.New("wire: trailing bytes after decode")

// Writer accumulates an encoded message. It never fails; all error
// handling happens at the io.Writer flush boundary.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer with a starting capacity hint.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// PutTag writes a single-byte variant discriminant.
func (w *Writer) PutTag(tag byte) { w.buf = append(w.buf, tag) }

// PutUint64 writes a fixed-width big-endian uint64.
func (w *Writer) PutUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutUint32 writes a fixed-width big-endian uint32.
func (w *Writer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutBytes writes a uvarint length prefix followed by raw bytes.
func (w *Writer) PutBytes(b []byte) {
	w.putUvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// PutString writes a length-prefixed UTF-8 string.
func (w *Writer) PutString(s string) { w.PutBytes([]byte(s)) }

// PutFixed writes raw bytes with a statically known length (no prefix) —
// used for 32-byte ids, hashes and topic ids.
func (w *Writer) PutFixed(b []byte) { w.buf = append(w.buf, b...) }

// PutCount writes a uvarint element count for a following sequence.
func (w *Writer) PutCount(n int) { w.putUvarint(uint64(n)) }

func (w *Writer) putUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

// Reader consumes an encoded message produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Done reports whether every byte has been consumed; callers must check
// this after a full decode to enforce the "trailing bytes" invariant.
func (r *Reader) Done() bool { return r.pos == len(r.buf) }

// Tag reads a single-byte variant discriminant.
func (r *Reader) Tag() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// Uint64 reads a fixed-width big-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// Uint32 reads a fixed-width big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// Bytes reads a uvarint length prefix followed by that many raw bytes.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Fixed reads exactly n raw bytes with no length prefix.
func (r *Reader) Fixed(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Count reads a uvarint element count for a following sequence, bounded to
// guard against adversarial allocations.
func (r *Reader) Count(max int) (int, error) {
	n, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if int(n) > max || n > (1<<32) {
		return 0, fmt.Errorf("wire: count %d exceeds limit %d", n, max)
	}
	return int(n), nil
}

func (r *Reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, io.ErrUnexpectedEOF
	}
	r.pos += n
	return v, nil
}
