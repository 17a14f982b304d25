// Package wire implements the small field encoding helpers shared by the
// security negotiation and RPC tunnel PDU code: a bounds-checked cursor
// over a byte slice and an appending writer, both thin layers over
// encoding/binary. It does no length-prefixed framing of its own, and
// the RFX block parsers keep their own offset arithmetic.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrShortBuffer is returned when a read would run past the end of the
// supplied buffer.
var ErrShortBuffer = errors.New("wire: short buffer")

// Reader walks a byte slice left to right, decoding little-endian
// integer fields the way MS-RDPBCGR/MS-RDPRFX PDUs are packed.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for sequential field reads.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the unread tail of the buffer.
func (r *Reader) Remaining() []byte {
	return r.data[r.pos:]
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if r.Len() < n {
		return ErrShortBuffer
	}
	r.pos += n
	return nil
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if r.Len() < n {
		return nil, ErrShortBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// U8 reads an unsigned byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U16BE reads a big-endian uint16 (used by a handful of TPKT/X.224 fields).
func (r *Reader) U16BE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Writer accumulates little-endian fields into a growable buffer.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty field writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteU8 appends a single byte.
func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteU16 appends a little-endian uint16.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU16BE appends a big-endian uint16.
func (w *Writer) WriteU16BE(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU32 appends a little-endian uint32.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// ReadFull reads exactly len(buf) bytes from r, wrapping io.ErrUnexpectedEOF
// the same way binary.Read does for short streams.
func ReadFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
