package marker

import (
	"github.com/jpfielding/jpegfrag.go/pkg/stream"
)

// ScanComponent is one component selector of a SOS segment.
type ScanComponent struct {
	Selector byte
	DC       byte
	AC       byte
}

// Scan is a parsed scan header together with the table and restart interval
// definitions that preceded it.
type Scan struct {
	Tables []HuffmanDef
	// RestartInterval is only meaningful when HasRestartInterval is set.
	RestartInterval    int
	HasRestartInterval bool

	Components []ScanComponent
	Ss, Se     int
	Ah, Al     int
	// DataOffset is the first byte of entropy-coded data.
	DataOffset int64
}

// ParseScan parses DHT, DRI and other sized segments starting at off until it
// has consumed a SOS segment. Stray FF00 pairs left by encoders that pad a
// scan with a whole byte of 1 bits are skipped.
func ParseScan(s stream.ByteStream, off int64) (*Scan, error) {
	r := newReader(s, off)
	sc := &Scan{}
	for {
		m, err := r.peekMarker()
		if err != nil {
			return nil, err
		}
		switch {
		case m == SOS:
			r.accept()
			if err := r.scanHeader(sc); err != nil {
				return nil, err
			}
			sc.DataOffset = r.off
			return sc, nil
		case m == DHT:
			r.accept()
			defs, err := r.huffmanTables()
			if err != nil {
				return nil, err
			}
			sc.Tables = append(sc.Tables, defs...)
		case m == DRI:
			r.accept()
			if sc.RestartInterval, err = r.restartInterval(); err != nil {
				return nil, err
			}
			sc.HasRestartInterval = true
		case m == 0x00:
			r.accept()
		case m == SOI, m == EOI, IsRST(m), IsSOF(m):
			return nil, r.errorf("unexpected marker 0x%02X before scan", m)
		default:
			r.accept()
			if err := r.skip(); err != nil {
				return nil, err
			}
		}
	}
}

func (r *reader) scanHeader(sc *Scan) error {
	data, err := r.payload()
	if err != nil {
		return err
	}
	if len(data) < 1 {
		return r.errorf("SOS segment too short")
	}
	ns := int(data[0])
	if ns < 1 || ns > 4 {
		return r.errorf("invalid scan component count %d", ns)
	}
	if len(data) != 4+2*ns {
		return r.errorf("SOS length %d does not match %d components", len(data)+2, ns)
	}
	for i := 0; i < ns; i++ {
		sel := data[2+2*i]
		sc.Components = append(sc.Components, ScanComponent{
			Selector: data[1+2*i],
			DC:       sel >> 4,
			AC:       sel & 0x0f,
		})
	}
	tail := data[1+2*ns:]
	sc.Ss = int(tail[0])
	sc.Se = int(tail[1])
	sc.Ah = int(tail[2] >> 4)
	sc.Al = int(tail[2] & 0x0f)
	return nil
}
