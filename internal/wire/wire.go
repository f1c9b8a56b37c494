// Package wire implements the length-prefixed, big-endian field framing used by
// every PayWord message. Variable fields carry an int32 length prefix so key and
// signature sizes can change without breaking the format.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/congo-pay/payword/internal/protocol"
)

// MaxFieldLength bounds a single length-prefixed field.
const MaxFieldLength = 1 << 20

// Encoder appends fields to an in-memory buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder with capacity hint n.
func NewEncoder(n int) *Encoder {
	return &Encoder{buf: make([]byte, 0, n)}
}

// PutBytes appends an int32 length prefix followed by b.
func (e *Encoder) PutBytes(b []byte) *Encoder {
	e.PutInt32(int32(len(b)))
	e.buf = append(e.buf, b...)
	return e
}

// PutFixed appends b without a prefix. The reader must know its width.
func (e *Encoder) PutFixed(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

func (e *Encoder) PutInt32(v int32) *Encoder {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
	return e
}

func (e *Encoder) PutInt64(v int64) *Encoder {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
	return e
}

// Bytes returns the encoded message.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder reads fields in order. The first failure is sticky: later reads
// return zero values and Err/Finish report the failure.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder wraps b for reading.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

func (d *Decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", protocol.ErrMalformedMessage, fmt.Sprintf(format, args...))
	}
}

func (d *Decoder) take(n int, field string) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.buf)-d.off {
		d.fail("%s needs %d bytes at offset %d, have %d", field, n, d.off, len(d.buf)-d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// Bytes reads a length-prefixed field and returns a copy.
func (d *Decoder) Bytes(field string) []byte {
	n := d.Int32(field + " length")
	if d.err != nil {
		return nil
	}
	if n < 0 || n > MaxFieldLength {
		d.fail("%s length %d out of range", field, n)
		return nil
	}
	b := d.take(int(n), field)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Fixed reads exactly n unprefixed bytes and returns a copy.
func (d *Decoder) Fixed(n int, field string) []byte {
	b := d.take(n, field)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (d *Decoder) Int32(field string) int32 {
	b := d.take(4, field)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (d *Decoder) Int64(field string) int64 {
	b := d.take(8, field)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// Consumed returns the raw bytes read so far.
func (d *Decoder) Consumed() []byte {
	return d.buf[:d.off]
}

// Remaining reports whether unread bytes are left.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Err returns the first decoding failure.
func (d *Decoder) Err() error {
	return d.err
}

// Finish returns the first failure, or ErrMalformedMessage if trailing bytes remain.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.buf) {
		d.fail("%d trailing bytes", len(d.buf)-d.off)
	}
	return d.err
}

// CheckedInt32 converts n to int32, failing for values the wire cannot carry.
func CheckedInt32(n int) (int32, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d overflows int32", protocol.ErrMalformedMessage, n)
	}
	return int32(n), nil
}
