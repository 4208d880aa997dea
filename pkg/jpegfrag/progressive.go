package jpegfrag

import (
	"fmt"
)

// refinablePage is the number of blocks per page of refinement bits.
const refinablePage = 1024

// progressiveState is the refinement state that persists across the scans
// of a progressive frame.
type progressiveState struct {
	// refinable holds, per frame component and block, a bit for every
	// coefficient that has become non-zero in an earlier pass. Pages are
	// allocated on first use.
	refinable []map[int]*[refinablePage]uint64
	// prevLow is the last successive approximation low bit coded for every
	// coefficient, -1 before the first pass.
	prevLow [][64]int
	eobRun  int
}

func newProgressiveState(n int) *progressiveState {
	p := &progressiveState{
		refinable: make([]map[int]*[refinablePage]uint64, n),
		prevLow:   make([][64]int, n),
	}
	for i := range p.prevLow {
		p.refinable[i] = map[int]*[refinablePage]uint64{}
		for k := range p.prevLow[i] {
			p.prevLow[i][k] = -1
		}
	}
	return p
}

func (p *progressiveState) isRefinable(comp, block, k int) bool {
	page := p.refinable[comp][block/refinablePage]
	return page != nil && page[block%refinablePage]&(1<<uint(k)) != 0
}

func (p *progressiveState) markRefinable(comp, block, k int) {
	page := p.refinable[comp][block/refinablePage]
	if page == nil {
		page = new([refinablePage]uint64)
		p.refinable[comp][block/refinablePage] = page
	}
	page[block%refinablePage] |= 1 << uint(k)
}

// finished reports whether every coefficient of every component has been
// coded down to bit 0.
func (p *progressiveState) finished() bool {
	for _, lows := range p.prevLow {
		for _, l := range lows {
			if l != 0 {
				return false
			}
		}
	}
	return true
}

func (p *progressiveState) update(comps []*component, ss, se, al int) {
	for _, c := range comps {
		for k := ss; k <= se; k++ {
			p.prevLow[c.index][k] = al
		}
	}
}

// checkScanParameters enforces the progressive constraints on spectral
// selection and successive approximation.
func checkScanParameters(ss, se, ah, al, ns int) error {
	switch {
	case ss > se || se > 63:
		return fmt.Errorf("invalid spectral selection %d..%d", ss, se)
	case ss == 0 && se != 0:
		return fmt.Errorf("DC scan with spectral end %d", se)
	case ss > 0 && ns != 1:
		return fmt.Errorf("AC scan with %d components", ns)
	case ah != 0 && al != ah-1:
		return fmt.Errorf("refinement from bit %d to bit %d", ah, al)
	}
	return nil
}

// progressive validates scans until every coefficient of every component has
// reached full precision.
func (st *validation) progressive(off int64) (Result, error) {
	p := newProgressiveState(len(st.geo.components))
	for !p.finished() {
		sc, res, err := st.nextScan(off)
		if sc == nil {
			return res, err
		}
		comps, res, err := st.scanComponents(sc)
		if comps == nil {
			return res, err
		}
		if err := checkScanParameters(sc.Ss, sc.Se, sc.Ah, sc.Al, len(comps)); err != nil {
			return fail(sc.DataOffset, TagSOSBlock, err.Error()), nil
		}
		dc := sc.Ss == 0 && sc.Ah == 0
		ac := sc.Ss > 0
		dcs, acs, res, ok := st.scanTables(sc, dc, ac)
		if !ok {
			return res, nil
		}
		res, err = st.progressiveScan(p, sc.DataOffset, sc.Ss, sc.Se, sc.Ah, comps, dcs, acs)
		if err != nil || !res.Completed {
			return res, err
		}
		p.update(comps, sc.Ss, sc.Se, sc.Al)
		off = res.Offset
	}
	return complete(off), nil
}

func (st *validation) progressiveScan(p *progressiveState, off int64, ss, se, ah int, comps []*component, dcs, acs []*HuffmanTable) (Result, error) {
	c := newBitCursor(st.s, off)
	plan := st.geo.plan(comps)
	units := plan.units()
	p.eobRun = 0
	var blocks []blockRef
	for u := 0; u < units; u++ {
		if restartDue(u, st.interval) {
			if !checkRestart(c, u, st.interval) {
				return failAt(c, TagRestartMarker, "")
			}
			p.eobRun = 0
		}
		blocks = plan.blocks(u, blocks)
		for _, b := range blocks {
			comp := comps[b.comp]
			var tag Tag
			switch {
			case ss == 0 && ah == 0:
				tag = dcFirst(c, dcs[b.comp])
			case ss == 0:
				if !c.Skip(1) {
					tag = TagEOF
				}
			case ah == 0:
				tag = p.acFirst(c, acs[b.comp], ss, se, comp.index, b.index)
			default:
				tag = p.acRefine(c, acs[b.comp], ss, se, comp.index, b.index)
			}
			if tag != TagNone {
				return failAt(c, tag, comp.name)
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

func dcFirst(c *bitCursor, t *HuffmanTable) Tag {
	s, tag := readSymbol(c, t, TagHuffmanDC)
	if tag != TagNone {
		return tag
	}
	if !c.Skip(int(s & 0x0f)) {
		return TagEOF
	}
	return TagNone
}

// readEOBRun reads the r extra bits of an EOBr symbol and returns 2^r + bits.
func readEOBRun(c *bitCursor, r int) (int, bool) {
	run := 1 << uint(r)
	if r > 0 {
		bits, ok := c.Peek(r)
		if !ok {
			return 0, false
		}
		c.Skip(r)
		run += int(bits)
	}
	return run, true
}

// acFirst skips the first pass of one block's spectral band.
func (p *progressiveState) acFirst(c *bitCursor, t *HuffmanTable, ss, se, comp, block int) Tag {
	if p.eobRun > 0 {
		p.eobRun--
		return TagNone
	}
	for k := ss; k <= se; k++ {
		sym, tag := readSymbol(c, t, TagHuffmanAC)
		if tag != TagNone {
			return tag
		}
		r, s := int(sym>>4), int(sym&0x0f)
		if s == 0 {
			if r != 15 {
				run, ok := readEOBRun(c, r)
				if !ok {
					return TagEOF
				}
				// the current block ends the run's first band
				p.eobRun = run - 1
				return TagNone
			}
			k += 15
			if k > se {
				return TagQASize
			}
			continue
		}
		k += r
		if k > se {
			return TagQASize
		}
		if !c.Skip(s) {
			return TagEOF
		}
		p.markRefinable(comp, block, k)
	}
	return TagNone
}

// acRefine skips one refinement pass of a block: new coefficients with their
// sign bits, and a correction bit for every coefficient that is already
// non-zero.
func (p *progressiveState) acRefine(c *bitCursor, t *HuffmanTable, ss, se, comp, block int) Tag {
	k := ss
	if p.eobRun == 0 {
		for ; k <= se; k++ {
			sym, tag := readSymbol(c, t, TagHuffmanAC)
			if tag != TagNone {
				return tag
			}
			r, s := int(sym>>4), int(sym&0x0f)
			if s != 0 {
				if s != 1 {
					return TagCoeffACR
				}
				if !c.Skip(1) {
					return TagEOF
				}
			} else if r != 15 {
				run, ok := readEOBRun(c, r)
				if !ok {
					return TagEOF
				}
				p.eobRun = run
				break
			}
			// pass over r zero-history coefficients, correcting the
			// non-zero ones along the way
			placed := false
			for ; k <= se; k++ {
				if p.isRefinable(comp, block, k) {
					if !c.Skip(1) {
						return TagEOF
					}
					continue
				}
				if r == 0 {
					placed = true
					break
				}
				r--
			}
			if !placed {
				return TagQASize
			}
			if s != 0 {
				p.markRefinable(comp, block, k)
			}
		}
	}
	if p.eobRun > 0 {
		for ; k <= se; k++ {
			if p.isRefinable(comp, block, k) && !c.Skip(1) {
				return TagEOF
			}
		}
		p.eobRun--
	}
	return TagNone
}
