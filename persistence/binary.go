package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// chunk bounds the scratch buffer used for slice encoding.
const chunk = 4096

// Writer writes framed little-endian artifacts.
// Errors are sticky: after the first failure every call is a no-op and Err reports it.
type Writer struct {
	cw      *ChecksumWriter
	scratch []byte
	err     error
}

// NewWriter creates a new binary writer and emits the artifact header.
func NewWriter(w io.Writer, magic uint32) *Writer {
	bw := &Writer{
		cw:      NewChecksumWriter(w),
		scratch: make([]byte, 0, chunk*8),
	}
	bw.Uint32(magic)
	bw.Uint32(Version)
	return bw
}

func (bw *Writer) write(p []byte) {
	if bw.err != nil {
		return
	}
	_, bw.err = bw.cw.Write(p)
}

// Uint8 writes a single byte.
func (bw *Writer) Uint8(v uint8) {
	bw.write([]byte{v})
}

// Uint32 writes a little-endian uint32.
func (bw *Writer) Uint32(v uint32) {
	bw.write(binary.LittleEndian.AppendUint32(bw.scratch[:0], v))
}

// Uint64 writes a little-endian uint64.
func (bw *Writer) Uint64(v uint64) {
	bw.write(binary.LittleEndian.AppendUint64(bw.scratch[:0], v))
}

// Float32 writes a little-endian IEEE-754 float32.
func (bw *Writer) Float32(v float32) {
	bw.Uint32(math.Float32bits(v))
}

// Float32s writes the raw values of s (no length prefix).
func (bw *Writer) Float32s(s []float32) {
	for len(s) > 0 && bw.err == nil {
		n := min(len(s), chunk)
		buf := bw.scratch[:0]
		for _, v := range s[:n] {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
		bw.write(buf)
		s = s[n:]
	}
}

// Uint64s writes the raw values of s (no length prefix).
func (bw *Writer) Uint64s(s []uint64) {
	for len(s) > 0 && bw.err == nil {
		n := min(len(s), chunk)
		buf := bw.scratch[:0]
		for _, v := range s[:n] {
			buf = binary.LittleEndian.AppendUint64(buf, v)
		}
		bw.write(buf)
		s = s[n:]
	}
}

// Bytes writes a length-prefixed byte slice.
func (bw *Writer) Bytes(b []byte) {
	bw.Uint64(uint64(len(b)))
	bw.write(b)
}

// String writes a length-prefixed string.
func (bw *Writer) String(s string) {
	bw.Bytes([]byte(s))
}

// Err returns the first write error, if any.
func (bw *Writer) Err() error {
	return bw.err
}

// Close appends the CRC32C trailer and returns the first error encountered.
func (bw *Writer) Close() error {
	if bw.err != nil {
		return bw.err
	}
	sum := bw.cw.Sum()
	_, bw.err = bw.cw.w.Write(binary.LittleEndian.AppendUint32(nil, sum))
	return bw.err
}

// Reader reads framed little-endian artifacts written by Writer.
// Errors are sticky like Writer's.
type Reader struct {
	cr      *ChecksumReader
	scratch []byte
	err     error
}

// NewReader creates a reader and validates the artifact header against magic.
func NewReader(r io.Reader, magic uint32) (*Reader, error) {
	br := &Reader{
		cr:      NewChecksumReader(r),
		scratch: make([]byte, chunk*8),
	}
	gotMagic := br.Uint32()
	gotVersion := br.Uint32()
	if br.err != nil {
		return nil, br.err
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, gotMagic)
	}
	if gotVersion != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, gotVersion)
	}
	return br, nil
}

func (br *Reader) read(p []byte) {
	if br.err != nil {
		return
	}
	if _, err := io.ReadFull(br.cr, p); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		br.err = err
	}
}

// Uint8 reads a single byte.
func (br *Reader) Uint8() uint8 {
	b := br.scratch[:1]
	br.read(b)
	if br.err != nil {
		return 0
	}
	return b[0]
}

// Uint32 reads a little-endian uint32.
func (br *Reader) Uint32() uint32 {
	b := br.scratch[:4]
	br.read(b)
	if br.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Uint64 reads a little-endian uint64.
func (br *Reader) Uint64() uint64 {
	b := br.scratch[:8]
	br.read(b)
	if br.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Float32 reads a little-endian IEEE-754 float32.
func (br *Reader) Float32() float32 {
	return math.Float32frombits(br.Uint32())
}

// Float32sInto fills dst with raw float32 values.
func (br *Reader) Float32sInto(dst []float32) {
	for len(dst) > 0 && br.err == nil {
		n := min(len(dst), chunk)
		b := br.scratch[:n*4]
		br.read(b)
		if br.err != nil {
			return
		}
		for i := range n {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		}
		dst = dst[n:]
	}
}

// Uint64sInto fills dst with raw uint64 values.
func (br *Reader) Uint64sInto(dst []uint64) {
	for len(dst) > 0 && br.err == nil {
		n := min(len(dst), chunk)
		b := br.scratch[:n*8]
		br.read(b)
		if br.err != nil {
			return
		}
		for i := range n {
			dst[i] = binary.LittleEndian.Uint64(b[i*8:])
		}
		dst = dst[n:]
	}
}

// Bytes reads a length-prefixed byte slice. limit caps the accepted length.
func (br *Reader) Bytes(limit uint64) []byte {
	n := br.Uint64()
	if br.err != nil {
		return nil
	}
	if n > limit {
		br.err = &ErrCorrupt{Reason: fmt.Sprintf("length %d exceeds limit %d", n, limit)}
		return nil
	}
	b := make([]byte, n)
	br.read(b)
	return b
}

// String reads a length-prefixed string.
func (br *Reader) String(limit uint64) string {
	return string(br.Bytes(limit))
}

// Fail records err as the sticky error unless one is already set.
func (br *Reader) Fail(err error) {
	if br.err == nil {
		br.err = err
	}
}

// Err returns the first read error, if any.
func (br *Reader) Err() error {
	return br.err
}

// Close reads the CRC32C trailer and verifies it against the bytes consumed.
func (br *Reader) Close() error {
	if br.err != nil {
		return br.err
	}
	actual := br.cr.Sum()
	b := br.scratch[:4]
	if _, err := io.ReadFull(br.cr.r, b); err != nil {
		return fmt.Errorf("read checksum: %w", err)
	}
	expected := binary.LittleEndian.Uint32(b)
	if expected != actual {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
