package jpegfrag

import (
	"fmt"
)

// sequential validates the scans of a baseline or extended sequential frame.
// Each frame component is coded by exactly one scan; validation ends once
// every component has been seen.
func (st *validation) sequential(off int64) (Result, error) {
	coded := make([]bool, len(st.geo.components))
	for remaining := len(coded); remaining > 0; {
		sc, res, err := st.nextScan(off)
		if sc == nil {
			return res, err
		}
		comps, res, err := st.scanComponents(sc)
		if comps == nil {
			return res, err
		}
		for _, c := range comps {
			if coded[c.index] {
				return fail(sc.DataOffset, TagSOSBlock, fmt.Sprintf("component %d coded twice", c.id)), nil
			}
		}
		dcs, acs, res, ok := st.scanTables(sc, true, true)
		if !ok {
			return res, nil
		}
		res, err = st.sequentialScan(sc.DataOffset, comps, dcs, acs)
		if err != nil || !res.Completed {
			return res, err
		}
		for _, c := range comps {
			coded[c.index] = true
			remaining--
		}
		off = res.Offset
	}
	return complete(off), nil
}

// sequentialScan walks the data units of one scan. The result offset is the
// end of the last fully validated unit on success and the cursor position on
// failure.
func (st *validation) sequentialScan(off int64, comps []*component, dcs, acs []*HuffmanTable) (Result, error) {
	c := newBitCursor(st.s, off)
	plan := st.geo.plan(comps)
	units := plan.units()
	var blocks []blockRef
	for u := 0; u < units; u++ {
		if !checkRestart(c, u, st.interval) {
			return failAt(c, TagRestartMarker, "")
		}
		blocks = plan.blocks(u, blocks)
		for _, b := range blocks {
			if tag := sequentialBlock(c, dcs[b.comp], acs[b.comp]); tag != TagNone {
				return failAt(c, tag, comps[b.comp].name)
			}
		}
		off = c.Reached()
	}
	if skipTrailingRestart(c, units, st.interval) {
		off = c.Reached()
	}
	if err := c.Err(); err != nil {
		return Result{}, fmt.Errorf("reading entropy data: %w", err)
	}
	return complete(off), nil
}

// sequentialBlock skips one 8x8 block: a DC difference followed by run/size
// coded AC coefficients up to EOB or the end of the block.
func sequentialBlock(c *bitCursor, dc, ac *HuffmanTable) Tag {
	s, tag := readSymbol(c, dc, TagHuffmanDC)
	if tag != TagNone {
		return tag
	}
	if !c.Skip(int(s & 0x0f)) {
		return TagEOF
	}
	for k := 1; k < 64; {
		s, tag := readSymbol(c, ac, TagHuffmanAC)
		if tag != TagNone {
			return tag
		}
		if s == 0x00 {
			break
		}
		k += int(s>>4) + 1
		if k > 64 {
			return TagQASize
		}
		if !c.Skip(int(s & 0x0f)) {
			return TagEOF
		}
	}
	return TagNone
}
