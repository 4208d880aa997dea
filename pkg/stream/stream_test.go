package stream

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes(t *testing.T) {
	b := Bytes{0x01, 0x02, 0x03, 0x04}

	assert.Equal(t, int64(4), b.Len())
	assert.True(t, b.Available(0, 4))
	assert.True(t, b.Available(4, 0))
	assert.False(t, b.Available(3, 2))
	assert.False(t, b.Available(-1, 1))

	got, err := b.Read(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x03}, got)

	_, err = b.Read(3, 2)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestConcat(t *testing.T) {
	b := Concat([]byte{1, 2}, nil, []byte{3})
	assert.Equal(t, Bytes{1, 2, 3}, b)
}

func TestReaderAt_PageBoundaries(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	s := NewReaderAt(bytes.NewReader(data), int64(len(data)))
	s.pageSize = 64

	tests := []struct {
		name   string
		offset int64
		n      int
	}{
		{"first byte", 0, 1},
		{"inside page", 10, 20},
		{"crosses page", 60, 10},
		{"larger than page", 100, 200},
		{"tail", 990, 10},
		{"empty", 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Read(tt.offset, tt.n)
			require.NoError(t, err)
			assert.Equal(t, data[tt.offset:tt.offset+int64(tt.n)], got)
		})
	}

	_, err := s.Read(995, 10)
	require.ErrorIs(t, err, ErrShortRead)
	assert.False(t, s.Available(995, 10))
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(4), f.Len())
	got, err := f.Read(2, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD9}, got)

	_, err = Open(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}

// largestRead records the biggest single Read issued against a stream.
type largestRead struct {
	ByteStream
	max int
}

func (l *largestRead) Read(offset int64, n int) ([]byte, error) {
	l.max = max(l.max, n)
	return l.ByteStream.Read(offset, n)
}

func TestReader(t *testing.T) {
	data := make([]byte, 3*DefaultPageSize+17)
	for i := range data {
		data[i] = byte(i * 7)
	}
	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	rec := &largestRead{ByteStream: f}
	var got bytes.Buffer
	n, err := got.ReadFrom(NewReader(rec))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, got.Bytes())
	assert.LessOrEqual(t, rec.max, DefaultPageSize)

	buf := make([]byte, 4)
	n2, err := NewReader(Bytes(nil)).Read(buf)
	assert.Zero(t, n2)
	assert.ErrorIs(t, err, io.EOF)
}
