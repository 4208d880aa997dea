package marker

import (
	"fmt"

	"github.com/jpfielding/jpegfrag.go/pkg/stream"
)

// FrameType selects the entropy validation strategy for a frame.
type FrameType int

const (
	FrameSequential FrameType = iota
	FrameProgressive
)

func (t FrameType) String() string {
	switch t {
	case FrameSequential:
		return "sequential"
	case FrameProgressive:
		return "progressive"
	default:
		return fmt.Sprintf("FrameType(%d)", int(t))
	}
}

// FrameComponent is one component specification of a SOFn segment.
type FrameComponent struct {
	ID byte
	H  int
	V  int
	Tq byte
}

// Frame is the parsed SOFn segment.
type Frame struct {
	Marker     byte
	Type       FrameType
	Precision  int
	Height     int
	Width      int
	Components []FrameComponent
}

// Index returns the position of the component with the given identifier, or -1.
func (f *Frame) Index(id byte) int {
	for i, c := range f.Components {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// HuffmanDef is one table from a DHT segment. Identifier is the raw Tc/Th
// byte: the high nibble is the table class (0 DC, 1 AC), the low nibble the
// destination id. Offset is the end of the DHT marker that declared it.
type HuffmanDef struct {
	Identifier byte
	Counts     [16]byte
	Symbols    []byte
	Offset     int64
}

// Header holds everything declared between SOI and the first SOS marker.
type Header struct {
	Frame           *Frame
	Tables          []HuffmanDef
	RestartInterval int
	// End is the offset of the first SOS marker.
	End int64
}

// ParseHeader parses SOI and the table/misc segments that follow it, up to
// but not including the first SOS marker.
func ParseHeader(s stream.ByteStream) (*Header, error) {
	r := newReader(s, 0)
	m, err := r.peekMarker()
	if err != nil {
		return nil, err
	}
	if m != SOI {
		return nil, r.errorf("missing SOI marker, got 0x%02X", m)
	}
	r.accept()

	h := &Header{}
	for {
		m, err := r.peekMarker()
		if err != nil {
			return nil, err
		}
		switch {
		case m == SOS:
			if h.Frame == nil {
				return nil, r.errorf("SOS before any SOF marker")
			}
			h.End = r.off
			return h, nil
		case IsSOF(m):
			if h.Frame != nil {
				return nil, r.errorf("multiple SOF markers")
			}
			r.accept()
			if h.Frame, err = r.frame(m); err != nil {
				return nil, err
			}
		case m == DHT:
			r.accept()
			defs, err := r.huffmanTables()
			if err != nil {
				return nil, err
			}
			h.Tables = append(h.Tables, defs...)
		case m == DRI:
			r.accept()
			if h.RestartInterval, err = r.restartInterval(); err != nil {
				return nil, err
			}
		case m == SOI, m == EOI, IsRST(m), m == 0x00:
			return nil, r.errorf("unexpected marker 0x%02X in header", m)
		default:
			// APPn, DQT, COM and other sized segments
			r.accept()
			if err := r.skip(); err != nil {
				return nil, err
			}
		}
	}
}

func (r *reader) frame(m byte) (*Frame, error) {
	f := &Frame{Marker: m}
	switch m {
	case SOF0, SOF1:
		f.Type = FrameSequential
	case SOF2:
		f.Type = FrameProgressive
	default:
		return nil, r.errorf("unsupported frame type SOF%d", m-SOF0)
	}
	data, err := r.payload()
	if err != nil {
		return nil, err
	}
	if len(data) < 6 {
		return nil, r.errorf("SOF segment too short: %d", len(data))
	}
	f.Precision = int(data[0])
	f.Height = int(data[1])<<8 | int(data[2])
	f.Width = int(data[3])<<8 | int(data[4])
	nf := int(data[5])
	switch {
	case f.Precision != 8 && f.Precision != 12:
		return nil, r.errorf("unsupported sample precision %d", f.Precision)
	case m == SOF0 && f.Precision != 8:
		return nil, r.errorf("baseline frame with precision %d", f.Precision)
	case f.Height == 0 || f.Width == 0:
		return nil, r.errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	case nf < 1 || nf > 4:
		return nil, r.errorf("invalid component count %d", nf)
	case len(data) != 6+3*nf:
		return nil, r.errorf("SOF length %d does not match %d components", len(data)+2, nf)
	}
	for i := 0; i < nf; i++ {
		c := FrameComponent{
			ID: data[6+3*i],
			H:  int(data[7+3*i] >> 4),
			V:  int(data[7+3*i] & 0x0f),
			Tq: data[8+3*i],
		}
		if c.H < 1 || c.H > 4 || c.V < 1 || c.V > 4 {
			return nil, r.errorf("invalid sampling factors %dx%d for component %d", c.H, c.V, c.ID)
		}
		if c.Tq > 3 {
			return nil, r.errorf("invalid quantization table %d for component %d", c.Tq, c.ID)
		}
		if f.Index(c.ID) >= 0 {
			return nil, r.errorf("duplicate component id %d", c.ID)
		}
		f.Components = append(f.Components, c)
	}
	return f, nil
}

func (r *reader) huffmanTables() ([]HuffmanDef, error) {
	data, err := r.payload()
	if err != nil {
		return nil, err
	}
	var defs []HuffmanDef
	for len(data) > 0 {
		if len(data) < 17 {
			return nil, r.errorf("DHT segment truncated")
		}
		def := HuffmanDef{Identifier: data[0], Offset: r.last}
		if def.Identifier>>4 > 1 || def.Identifier&0x0f > 3 {
			return nil, r.errorf("invalid Huffman table identifier 0x%02X", def.Identifier)
		}
		total := 0
		for i := range def.Counts {
			def.Counts[i] = data[1+i]
			total += int(def.Counts[i])
		}
		data = data[17:]
		if total > 256 || total > len(data) {
			return nil, r.errorf("DHT declares %d symbols, %d available", total, len(data))
		}
		def.Symbols = data[:total:total]
		data = data[total:]
		defs = append(defs, def)
	}
	return defs, nil
}

func (r *reader) restartInterval() (int, error) {
	data, err := r.payload()
	if err != nil {
		return 0, err
	}
	if len(data) != 2 {
		return 0, r.errorf("DRI length %d, expected 4", len(data)+2)
	}
	return int(data[0])<<8 | int(data[1]), nil
}
