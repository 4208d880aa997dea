// Package marker parses the JPEG segment grammar that surrounds the
// entropy-coded data: SOI, frame headers, Huffman table and restart interval
// definitions, scan headers and the EOI footer. It hands structured records to
// the entropy validator and never interprets entropy-coded bytes itself.
package marker

import (
	"errors"
	"fmt"

	"github.com/jpfielding/jpegfrag.go/pkg/stream"
)

// Marker codes, see T.81 Table B.1.
const (
	SOF0 = 0xc0 // Start Of Frame (Baseline Sequential).
	SOF1 = 0xc1 // Start Of Frame (Extended Sequential).
	SOF2 = 0xc2 // Start Of Frame (Progressive).
	DHT  = 0xc4 // Define Huffman Table.
	JPG  = 0xc8 // Reserved for JPEG extensions.
	DAC  = 0xcc // Define Arithmetic Coding conditioning.
	RST0 = 0xd0 // ReSTart (0).
	RST7 = 0xd7 // ReSTart (7).
	SOI  = 0xd8 // Start Of Image.
	EOI  = 0xd9 // End Of Image.
	SOS  = 0xda // Start Of Scan.
	DQT  = 0xdb // Define Quantization Table.
	DRI  = 0xdd // Define Restart Interval.
	COM  = 0xfe // COMment.
)

// IsSOF reports whether m is any of the SOFn frame markers.
func IsSOF(m byte) bool {
	return m >= 0xc0 && m <= 0xcf && m != DHT && m != JPG && m != DAC
}

// IsRST reports whether m is one of the cyclic restart markers.
func IsRST(m byte) bool { return m >= RST0 && m <= RST7 }

// FormatError reports a structural violation in the segment grammar. Offset
// is the end of the last segment (or marker identifier) that parsed cleanly.
type FormatError struct {
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("marker: %s (offset %d)", e.Msg, e.Offset)
}

// IsFormatError unwraps err into a *FormatError.
func IsFormatError(err error) (*FormatError, bool) {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// reader walks a ByteStream and remembers the end of the last accepted marker.
type reader struct {
	s    stream.ByteStream
	off  int64
	last int64
}

func newReader(s stream.ByteStream, off int64) *reader {
	return &reader{s: s, off: off, last: off}
}

func (r *reader) errorf(format string, args ...any) error {
	return &FormatError{Offset: r.last, Msg: fmt.Sprintf(format, args...)}
}

func (r *reader) read(n int) ([]byte, error) {
	if !r.s.Available(r.off, n) {
		return nil, r.errorf("unexpected end of data reading %d bytes at %d", n, r.off)
	}
	b, err := r.s.Read(r.off, n)
	if err != nil {
		return nil, fmt.Errorf("reading segment data: %w", err)
	}
	r.off += int64(n)
	return b, nil
}

func (r *reader) u8() (byte, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (int, error) {
	b, err := r.read(2)
	if err != nil {
		return 0, err
	}
	return int(b[0])<<8 | int(b[1]), nil
}

// peekMarker returns the marker identifier at the current position without
// consuming it. Fill bytes (0xFF 0xFF ...) preceding a marker are skipped.
// Everything before the current position has been accepted.
func (r *reader) peekMarker() (byte, error) {
	r.last = r.off
	for {
		if !r.s.Available(r.off, 2) {
			return 0, r.errorf("unexpected end of data looking for a marker at %d", r.off)
		}
		b, err := r.s.Read(r.off, 2)
		if err != nil {
			return 0, fmt.Errorf("reading marker: %w", err)
		}
		if b[0] != 0xff {
			return 0, r.errorf("expected marker at %d, got 0x%02X", r.off, b[0])
		}
		if b[1] != 0xff {
			return b[1], nil
		}
		r.off++
	}
}

// accept consumes the two marker bytes previously returned by peekMarker.
func (r *reader) accept() {
	r.off += 2
	r.last = r.off
}

// payload reads the segment length and returns the bytes that follow it.
func (r *reader) payload() ([]byte, error) {
	length, err := r.u16()
	if err != nil {
		return nil, err
	}
	if length < 2 {
		return nil, r.errorf("segment length %d too short", length)
	}
	data, err := r.read(length - 2)
	if err != nil {
		return nil, err
	}
	// the stream may reuse its buffer on the next read
	return append([]byte(nil), data...), nil
}

// skip consumes a length-prefixed segment without interpreting it.
func (r *reader) skip() error {
	length, err := r.u16()
	if err != nil {
		return err
	}
	if length < 2 {
		return r.errorf("segment length %d too short", length)
	}
	if !r.s.Available(r.off, length-2) {
		return r.errorf("unexpected end of data in segment of length %d", length)
	}
	r.off += int64(length - 2)
	return nil
}
