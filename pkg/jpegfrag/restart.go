package jpegfrag

import (
	"github.com/jpfielding/jpegfrag.go/pkg/jpegfrag/marker"
)

func restartDue(unit, interval int) bool {
	return unit > 0 && interval > 0 && unit%interval == 0
}

// expectedRestartMarker is the RSTn identifier that must precede unit. The
// markers cycle RST0..RST7 starting with the first interval.
func expectedRestartMarker(unit, interval int) byte {
	return marker.RST0 + byte((unit/interval-1)%8)
}

// checkRestart verifies and consumes the restart marker due before unit. It
// reports false when a marker was due but not found.
func checkRestart(c *bitCursor, unit, interval int) bool {
	if !restartDue(unit, interval) {
		return true
	}
	c.Align()
	v, ok := c.Peek(16)
	if !ok || v != 0xff00|uint32(expectedRestartMarker(unit, interval)) {
		return false
	}
	return c.Skip(16)
}

// skipTrailingRestart consumes a restart marker that some encoders emit after
// the last unit of a scan. The cursor is left untouched when there is none.
func skipTrailingRestart(c *bitCursor, units, interval int) bool {
	if !restartDue(units, interval) {
		return false
	}
	off, bit := c.off, c.bit
	if checkRestart(c, units, interval) {
		return true
	}
	c.off, c.bit = off, bit
	return false
}
