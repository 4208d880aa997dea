package jpegfrag

import (
	"github.com/jpfielding/jpegfrag.go/pkg/stream"
)

// cursorWindow is how many physical bytes the cursor pulls from the stream at
// a time.
const cursorWindow = 4096

// bitCursor reads an entropy-coded segment MSB first. A byte following a
// physical 0xFF is dropped when it is 0x00 or 0xFF (byte stuffing), so every
// other byte, including marker identifiers, is visible as data. The cursor
// only moves forward.
type bitCursor struct {
	src stream.ByteStream
	off int64 // physical offset of the current byte
	bit int   // bits consumed from the current logical byte, [0,8)
	err error // first stream failure other than running out of data

	win    []byte
	winOff int64
}

func newBitCursor(src stream.ByteStream, off int64) *bitCursor {
	return &bitCursor{src: src, off: off}
}

func (c *bitCursor) byteAt(p int64) (byte, bool) {
	if p >= c.winOff && p < c.winOff+int64(len(c.win)) {
		return c.win[p-c.winOff], true
	}
	if p < 0 || p >= c.src.Len() || c.err != nil {
		return 0, false
	}
	n := cursorWindow
	if rem := c.src.Len() - p; rem < int64(n) {
		n = int(rem)
	}
	b, err := c.src.Read(p, n)
	if err != nil {
		c.err = err
		return 0, false
	}
	c.win = append(c.win[:0], b...)
	c.winOff = p
	return c.win[0], true
}

// logical collects n destuffed bytes starting at the current offset. It
// returns the last eight of them packed big-endian, and the number of
// physical bytes they span. The byte before the current offset takes part in
// destuffing, so a stuffing byte left behind by a previous skip is dropped.
func (c *bitCursor) logical(n int) (uint64, int64, bool) {
	var prev byte
	if c.off > 0 {
		b, ok := c.byteAt(c.off - 1)
		if !ok {
			return 0, 0, false
		}
		prev = b
	}
	var v uint64
	p := c.off
	for got := 0; got < n; p++ {
		b, ok := c.byteAt(p)
		if !ok {
			return 0, 0, false
		}
		if prev != 0xff || (b != 0x00 && b != 0xff) {
			v = v<<8 | uint64(b)
			got++
		}
		prev = b
	}
	return v, p - c.off, true
}

// Peek returns the next n bits (n <= 32) without consuming them. It fails
// when fewer than n bits remain.
func (c *bitCursor) Peek(n int) (uint32, bool) {
	if n <= 0 {
		return 0, true
	}
	need := (c.bit + n + 7) / 8
	v, _, ok := c.logical(need)
	if !ok {
		return 0, false
	}
	v >>= uint(need*8 - c.bit - n)
	return uint32(v & (1<<uint(n) - 1)), true
}

// Skip consumes n bits. Nothing moves when fewer than n bits remain.
func (c *bitCursor) Skip(n int) bool {
	if n <= 0 {
		return true
	}
	total := c.bit + n
	if total%8 != 0 {
		if _, _, ok := c.logical(total/8 + 1); !ok {
			return false
		}
	}
	var span int64
	if whole := total / 8; whole > 0 {
		var ok bool
		if _, span, ok = c.logical(whole); !ok {
			return false
		}
	}
	c.off += span
	c.bit = total % 8
	return true
}

// Align discards the remaining bits of a partially consumed byte.
func (c *bitCursor) Align() bool {
	if c.bit == 0 {
		return true
	}
	return c.Skip(8 - c.bit)
}

// BitOffset is the number of bits consumed from the current byte.
func (c *bitCursor) BitOffset() int { return c.bit }

// skipStuffing advances p past stuffing bytes, judging each against the
// physical byte before it.
func (c *bitCursor) skipStuffing(p int64) int64 {
	if p <= 0 {
		return p
	}
	prev, ok := c.byteAt(p - 1)
	for ok && prev == 0xff {
		b, found := c.byteAt(p)
		if !found || (b != 0x00 && b != 0xff) {
			break
		}
		p++
		prev = b
	}
	return p
}

// Offset is the physical offset of the first byte that still holds
// unconsumed bits. A stuffing byte left at the current offset is passed.
func (c *bitCursor) Offset() int64 {
	return c.skipStuffing(c.off)
}

// Reached is the offset just past every byte that contributed a consumed
// bit, including the stuffing byte that belongs to it.
func (c *bitCursor) Reached() int64 {
	if c.bit == 0 {
		return c.Offset()
	}
	return c.skipStuffing(c.Offset() + 1)
}

// Err returns the first stream failure the cursor hit, if any.
func (c *bitCursor) Err() error { return c.err }
