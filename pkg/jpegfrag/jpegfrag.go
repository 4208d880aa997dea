// Package jpegfrag validates the Huffman-coded entropy data of baseline,
// extended sequential and progressive JPEG images and reports the earliest
// byte offset at which a stream stops being a valid image. It is meant for
// file carving: the offset points at the likely fragmentation point when an
// image has been spliced with unrelated data.
//
// Validation never reconstructs coefficients or pixels. It tracks only the
// state that determines how many bits the next symbol occupies.
package jpegfrag

import (
	"fmt"
	"log/slog"

	"github.com/jpfielding/jpegfrag.go/pkg/jpegfrag/marker"
	"github.com/jpfielding/jpegfrag.go/pkg/stream"
)

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// Validator holds validation options. It keeps no per-stream state and may
// be shared between goroutines.
type Validator struct {
	log *slog.Logger
}

// New returns a Validator with the given options applied.
func New(opts ...Option) *Validator {
	v := &Validator{log: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate is shorthand for New(opts...).Validate(s).
func Validate(s stream.ByteStream, opts ...Option) (Result, error) {
	return New(opts...).Validate(s)
}

// Validate checks s from SOI to EOI. Structural and entropy-coding faults are
// reported in the Result; the error is reserved for stream failures and for
// a *LinkageError.
func (v *Validator) Validate(s stream.ByteStream) (Result, error) {
	h, err := marker.ParseHeader(s)
	if err != nil {
		if fe, ok := marker.IsFormatError(err); ok {
			return v.done(fail(fe.Offset, TagHeader, fe.Msg), nil)
		}
		return Result{}, fmt.Errorf("parsing header: %w", err)
	}
	st := &validation{
		s:        s,
		log:      v.log,
		frame:    h.Frame,
		geo:      newGeometry(h.Frame),
		interval: h.RestartInterval,
	}
	for _, def := range h.Tables {
		if err := st.tables.install(def); err != nil {
			return v.done(fail(def.Offset, TagHeader, err.Error()), nil)
		}
	}
	v.log.Debug("jpeg header",
		slog.String("frame", h.Frame.Type.String()),
		slog.Int("width", h.Frame.Width),
		slog.Int("height", h.Frame.Height),
		slog.Int("components", len(h.Frame.Components)),
		slog.Int("restart", h.RestartInterval),
		slog.Int64("offset", h.End))

	var res Result
	switch h.Frame.Type {
	case marker.FrameProgressive:
		res, err = st.progressive(h.End)
	default:
		res, err = st.sequential(h.End)
	}
	if err != nil || !res.Completed {
		return v.done(res, err)
	}

	end, err := marker.ParseFooter(s, res.Offset)
	if err != nil {
		if fe, ok := marker.IsFormatError(err); ok {
			return v.done(fail(res.Offset, TagFooter, fe.Msg), nil)
		}
		return Result{}, fmt.Errorf("parsing footer: %w", err)
	}
	return v.done(complete(end), nil)
}

func (v *Validator) done(res Result, err error) (Result, error) {
	if err != nil {
		v.log.Debug("jpeg validation error", slog.Int64("offset", res.Offset), slog.Any("error", err))
		return res, err
	}
	v.log.Debug("jpeg validated",
		slog.Bool("completed", res.Completed),
		slog.Int64("offset", res.Offset),
		slog.String("tag", string(res.Tag)),
		slog.String("detail", res.Detail))
	return res, nil
}

// validation is the state of a single Validate call.
type validation struct {
	s        stream.ByteStream
	log      *slog.Logger
	frame    *marker.Frame
	geo      *geometry
	tables   huffmanTables
	interval int
}

// nextScan parses the scan header at off and applies the table and restart
// interval definitions that precede it. A nil scan comes with the failure
// result to report.
func (st *validation) nextScan(off int64) (*marker.Scan, Result, error) {
	sc, err := marker.ParseScan(st.s, off)
	if err != nil {
		if fe, ok := marker.IsFormatError(err); ok {
			return nil, fail(fe.Offset, TagSOSBlock, fe.Msg), nil
		}
		return nil, Result{}, fmt.Errorf("parsing scan header: %w", err)
	}
	for _, def := range sc.Tables {
		if err := st.tables.install(def); err != nil {
			return nil, fail(def.Offset, TagSOSBlock, err.Error()), nil
		}
	}
	if sc.HasRestartInterval {
		st.interval = sc.RestartInterval
	}
	st.log.Debug("jpeg scan",
		slog.Int64("offset", sc.DataOffset),
		slog.Int("components", len(sc.Components)),
		slog.Int("ss", sc.Ss),
		slog.Int("se", sc.Se),
		slog.Int("ah", sc.Ah),
		slog.Int("al", sc.Al),
		slog.Int("restart", st.interval))
	return sc, Result{}, nil
}

// scanComponents resolves the selectors of sc against the frame.
func (st *validation) scanComponents(sc *marker.Scan) ([]*component, Result, error) {
	comps := make([]*component, 0, len(sc.Components))
	for _, sel := range sc.Components {
		i := st.frame.Index(sel.Selector)
		if i < 0 {
			return nil, fail(sc.DataOffset, TagNone, ""), &LinkageError{Offset: sc.DataOffset, Selector: sel.Selector}
		}
		c := &st.geo.components[i]
		for _, prev := range comps {
			if prev == c {
				return nil, fail(sc.DataOffset, TagSOSBlock, fmt.Sprintf("component %d selected twice", sel.Selector)), nil
			}
		}
		comps = append(comps, c)
	}
	return comps, Result{}, nil
}

// scanTables looks up the tables each scan component uses. A nil class is not
// needed by the scan.
func (st *validation) scanTables(sc *marker.Scan, dc, ac bool) ([]*HuffmanTable, []*HuffmanTable, Result, bool) {
	dcs := make([]*HuffmanTable, len(sc.Components))
	acs := make([]*HuffmanTable, len(sc.Components))
	for i, sel := range sc.Components {
		if dc {
			if dcs[i] = st.tables.get(ClassDC, sel.DC); dcs[i] == nil {
				return nil, nil, fail(sc.DataOffset, TagSOSBlock, fmt.Sprintf("undefined DC table %d", sel.DC)), false
			}
		}
		if ac {
			if acs[i] = st.tables.get(ClassAC, sel.AC); acs[i] == nil {
				return nil, nil, fail(sc.DataOffset, TagSOSBlock, fmt.Sprintf("undefined AC table %d", sel.AC)), false
			}
		}
	}
	return dcs, acs, Result{}, true
}

// failAt reports a data fault at the cursor. Stream failures take precedence.
func failAt(c *bitCursor, tag Tag, name string) (Result, error) {
	if err := c.Err(); err != nil {
		return fail(c.Offset(), TagNone, ""), fmt.Errorf("reading entropy data: %w", err)
	}
	switch tag {
	case TagEOF, TagRestartMarker:
		name = ""
	}
	return fail(c.Offset(), tag, name), nil
}
