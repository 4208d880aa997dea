// Package stream provides random-access byte sources for the validator.
// A ByteStream answers "are n bytes available at offset" and "read n bytes
// at offset" without requiring the whole input to be held in memory.
package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrShortRead is returned when a read extends past the end of the stream.
var ErrShortRead = errors.New("stream: read past end of data")

// ByteStream is a fixed-length, random-access source of bytes.
type ByteStream interface {
	// Len is the total number of bytes in the stream.
	Len() int64
	// Available reports whether n bytes can be read starting at offset.
	Available(offset int64, n int) bool
	// Read returns n bytes starting at offset. The returned slice must not be
	// modified and is only valid until the next call to Read.
	Read(offset int64, n int) ([]byte, error)
}

// Bytes is an in-memory ByteStream.
type Bytes []byte

func (b Bytes) Len() int64 { return int64(len(b)) }

func (b Bytes) Available(offset int64, n int) bool {
	return offset >= 0 && n >= 0 && offset+int64(n) <= int64(len(b))
}

func (b Bytes) Read(offset int64, n int) ([]byte, error) {
	if !b.Available(offset, n) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d (len %d)", ErrShortRead, n, offset, len(b))
	}
	return b[offset : offset+int64(n)], nil
}

// Concat joins several in-memory parts into a single stream.
func Concat(parts ...[]byte) Bytes {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make(Bytes, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// DefaultPageSize is the read granularity of a ReaderAt stream.
const DefaultPageSize = 64 * 1024

// ReaderAt adapts an io.ReaderAt of known size. It keeps a single page of
// data cached, so the sequential access pattern of the bit cursor costs one
// underlying read per page.
type ReaderAt struct {
	r        io.ReaderAt
	size     int64
	pageSize int

	page    []byte
	pageOff int64
}

// NewReaderAt wraps r, which must hold exactly size bytes.
func NewReaderAt(r io.ReaderAt, size int64) *ReaderAt {
	return &ReaderAt{r: r, size: size, pageSize: DefaultPageSize, pageOff: -1}
}

func (s *ReaderAt) Len() int64 { return s.size }

func (s *ReaderAt) Available(offset int64, n int) bool {
	return offset >= 0 && n >= 0 && offset+int64(n) <= s.size
}

func (s *ReaderAt) Read(offset int64, n int) ([]byte, error) {
	if !s.Available(offset, n) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d (len %d)", ErrShortRead, n, offset, s.size)
	}
	if s.pageOff >= 0 && offset >= s.pageOff && offset+int64(n) <= s.pageOff+int64(len(s.page)) {
		start := offset - s.pageOff
		return s.page[start : start+int64(n)], nil
	}
	if n > s.pageSize {
		buf := make([]byte, n)
		if _, err := s.r.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading %d bytes at offset %d: %w", n, offset, err)
		}
		return buf, nil
	}
	size := int64(s.pageSize)
	if offset+size > s.size {
		size = s.size - offset
	}
	if cap(s.page) < int(size) {
		s.page = make([]byte, size)
	}
	s.page = s.page[:size]
	if _, err := s.r.ReadAt(s.page, offset); err != nil && !errors.Is(err, io.EOF) {
		s.pageOff = -1
		return nil, fmt.Errorf("reading page at offset %d: %w", offset, err)
	}
	s.pageOff = offset
	return s.page[:n], nil
}

// File is a ByteStream backed by an open file.
type File struct {
	*ReaderAt
	f *os.File
}

// Open opens path as a file-backed ByteStream.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}
	return &File{ReaderAt: NewReaderAt(f, fi.Size()), f: f}, nil
}

func (f *File) Close() error { return f.f.Close() }

// Reader reads a ByteStream from the start in pieces of at most one page.
type Reader struct {
	s   ByteStream
	off int64
}

// NewReader returns an io.Reader over s.
func NewReader(s ByteStream) *Reader {
	return &Reader{s: s}
}

func (r *Reader) Read(p []byte) (int, error) {
	remaining := r.s.Len() - r.off
	if remaining <= 0 {
		return 0, io.EOF
	}
	n := int(min(int64(len(p)), remaining, DefaultPageSize))
	if n == 0 {
		return 0, nil
	}
	data, err := r.s.Read(r.off, n)
	if err != nil {
		return 0, err
	}
	copy(p, data)
	r.off += int64(n)
	return n, nil
}
