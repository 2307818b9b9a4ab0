// Package binreader implements the cursor primitive every container
// format in this title is built on: fixed-width integer reads,
// length-prefixed and null-terminated strings, and the tag stream's
// variable-length integer encoding. Modeled after a BinaryReader
// cursor-over-buffer pattern, generalized with seek, bounded
// sub-readers, and the varint codec this engine's formats require.
package binreader

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/deploymenttheory/frostbite-extract/internal/errs"
)

// Reader is a cursor over an in-memory byte stream. All multi-byte
// integers are little-endian unless the caller uses the BigEndian*
// variants (used for the three header magics and the big-endian size
// fields of a chunk header).
type Reader struct {
	buf []byte
	pos int
}

// New wraps buf in a Reader starting at offset 0.
func New(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// FromReader drains r fully and returns a Reader over its bytes.
func FromReader(r io.Reader) (*Reader, error) {
	var b bytes.Buffer
	if _, err := io.Copy(&b, r); err != nil {
		return nil, errs.WrapIO("read", err)
	}
	return New(b.Bytes()), nil
}

// Len returns the total length of the underlying buffer.
func (r *Reader) Len() int {
	return len(r.buf)
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// SeekAbsolute moves the cursor to an absolute offset.
func (r *Reader) SeekAbsolute(offset int) error {
	if offset < 0 || offset > len(r.buf) {
		return errs.Truncated
	}
	r.pos = offset
	return nil
}

// SeekRelative moves the cursor by delta bytes from its current position.
func (r *Reader) SeekRelative(delta int) error {
	return r.SeekAbsolute(r.pos + delta)
}

func (r *Reader) need(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, errs.Truncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBytes reads n raw bytes and advances the cursor.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.need(n)
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.need(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a little-endian unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.need(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 reads a little-endian unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.need(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 reads a little-endian unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.need(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadInt32 reads a little-endian signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadInt64 reads a little-endian signed 64-bit integer.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadUint32BE reads a big-endian unsigned 32-bit integer. Used for
// the three header magics (TOC, wrapped-TOC, SB) and the
// compressed-size field of a chunk header.
func (r *Reader) ReadUint32BE() (uint32, error) {
	b, err := r.need(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint16BE reads a big-endian unsigned 16-bit integer. Used for
// the uncompressed-size field of a chunk header.
func (r *Reader) ReadUint16BE() (uint16, error) {
	b, err := r.need(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// PeekUint32BE returns the next big-endian unsigned 32-bit integer
// without advancing the cursor. The second return value is false if
// fewer than 4 bytes remain.
func (r *Reader) PeekUint32BE() (uint32, bool) {
	if r.Remaining() < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4]), true
}

// maxVarintBytes bounds the variable-length integer encoding at 9
// bytes (63 data bits at 7 bits/byte, rounded up), per spec.
const maxVarintBytes = 9

// ReadVarUint reads the tag stream's variable-length unsigned integer:
// seven data bits per byte, MSB of each byte is a continuation flag,
// little-endian byte order, at most 9 bytes.
func (r *Reader) ReadVarUint() (uint64, error) {
	var result uint64
	for i := 0; i < maxVarintBytes; i++ {
		b, err := r.ReadUint8()
		if err != nil {
			return 0, errs.Truncated
		}
		result |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, errs.Truncated
}

// ReadLengthPrefixedBytes reads a variable-length-integer-prefixed
// byte string.
func (r *Reader) ReadLengthPrefixedBytes() ([]byte, error) {
	length, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if uint64(r.Remaining()) < length {
		return nil, errs.Truncated
	}
	return r.ReadBytes(int(length))
}

// ReadNullTerminatedString reads bytes up to (and consuming) the next
// 0x00 byte, returning the string without the terminator.
func (r *Reader) ReadNullTerminatedString() (string, error) {
	start := r.pos
	for {
		b, err := r.ReadUint8()
		if err != nil {
			return "", errs.Truncated
		}
		if b == 0 {
			return string(r.buf[start : r.pos-1]), nil
		}
	}
}

// OpenSubview returns an independent Reader bounded to the next length
// bytes, advancing this reader past them.
func (r *Reader) OpenSubview(length int) (*Reader, error) {
	b, err := r.need(length)
	if err != nil {
		return nil, err
	}
	return New(b), nil
}
