// Package bytereader implements a bounds-checked cursor over an in-memory
// byte slice, used by the archive parsers to decode packed on-disk records
// without ever indexing past the end of a malformed file.
package bytereader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned whenever a read or seek would go past the end of
// the underlying slice.
var ErrTruncated = errors.New("bytereader: truncated")

// Reader is a cursor over an immutable byte slice.
type Reader struct {
	data []byte
	pos  int
}

// New creates a Reader over data. The Reader does not copy data.
func New(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the total number of bytes in the underlying slice.
func (r *Reader) Len() int { return len(r.data) }

// Pos returns the current cursor position.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Seek moves the cursor to an absolute position. It fails if abs is outside
// [0, Len()].
func (r *Reader) Seek(abs int) error {
	if abs < 0 || abs > len(r.data) {
		return fmt.Errorf("seek to %d: %w", abs, ErrTruncated)
	}
	r.pos = abs
	return nil
}

// Skip advances the cursor by delta bytes (which may be negative). It fails
// if the target is outside [0, Len()].
func (r *Reader) Skip(delta int) error {
	return r.Seek(r.pos + delta)
}

// ReadBytes copies n bytes starting at the cursor into a new slice and
// advances the cursor by n.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("read %d bytes at %d: %w", n, r.pos, ErrTruncated)
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

// ReadInto decodes a fixed-size, little-endian packed value at the cursor
// into v (which must be a pointer to a fixed-size type, per encoding/binary
// rules) and advances the cursor by binary.Size(v).
func (r *Reader) ReadInto(v any) error {
	n := binary.Size(v)
	if n < 0 {
		return fmt.Errorf("read into %T: not a fixed-size type", v)
	}
	if r.pos+n > len(r.data) {
		return fmt.Errorf("read %d bytes at %d: %w", n, r.pos, ErrTruncated)
	}
	if err := binary.Read(bytes.NewReader(r.data[r.pos:r.pos+n]), binary.LittleEndian, v); err != nil {
		return fmt.Errorf("read into %T: %w", v, err)
	}
	r.pos += n
	return nil
}

// ReadUint16 reads a little-endian uint16 and advances the cursor.
func (r *Reader) ReadUint16() (uint16, error) {
	var v uint16
	if err := r.ReadInto(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadUint32 reads a little-endian uint32 and advances the cursor.
func (r *Reader) ReadUint32() (uint32, error) {
	var v uint32
	if err := r.ReadInto(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadInt32 reads a little-endian int32 and advances the cursor.
func (r *Reader) ReadInt32() (int32, error) {
	var v int32
	if err := r.ReadInto(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadString reads bytes up to and including a NUL and returns them
// (without the NUL). It fails with ErrTruncated if no NUL is found before
// the end of the slice. If max is positive and max-1 bytes are consumed
// without reaching a NUL, it fails with a length error; the string is not
// truncated. If max is 0, there is no length limit. On failure the cursor
// is left where it was.
func (r *Reader) ReadString(max int) (string, error) {
	start := r.pos
	for {
		if r.pos >= len(r.data) {
			r.pos = start
			return "", fmt.Errorf("read string: %w", ErrTruncated)
		}
		if max > 0 && r.pos-start >= max-1 {
			r.pos = start
			return "", fmt.Errorf("read string: exceeds max length %d", max)
		}
		b := r.data[r.pos]
		r.pos++
		if b == 0 {
			return string(r.data[start : r.pos-1]), nil
		}
	}
}

// ReadFixedString reads exactly n bytes and returns the portion before the
// first NUL (or the whole n bytes if none is found), matching the semantics
// of a fixed-width, possibly-unterminated on-disk name field.
func (r *Reader) ReadFixedString(n int) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}
