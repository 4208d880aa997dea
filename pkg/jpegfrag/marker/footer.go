package marker

import (
	"github.com/jpfielding/jpegfrag.go/pkg/stream"
)

// ParseFooter accepts any number of COM segments and stray FF00 pairs
// followed by EOI, and returns the offset just past EOI.
func ParseFooter(s stream.ByteStream, off int64) (int64, error) {
	r := newReader(s, off)
	for {
		m, err := r.peekMarker()
		if err != nil {
			return 0, err
		}
		switch m {
		case EOI:
			r.accept()
			return r.off, nil
		case 0x00:
			r.accept()
		case COM:
			r.accept()
			if err := r.skip(); err != nil {
				return 0, err
			}
		default:
			return 0, r.errorf("unexpected marker 0x%02X in footer", m)
		}
	}
}
