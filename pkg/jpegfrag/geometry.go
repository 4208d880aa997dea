package jpegfrag

import (
	"fmt"

	"github.com/jpfielding/jpegfrag.go/pkg/jpegfrag/marker"
)

var componentNames = []string{"Luminance", "Blueness", "Redness"}

// component is a frame component with its block grid. The grid is padded to
// whole MCUs; blocksWide and blocksHigh count the blocks a non-interleaved
// scan actually codes.
type component struct {
	id         byte
	index      int
	name       string
	h, v       int
	stride     int // padded grid width in blocks
	blocksWide int
	blocksHigh int
}

// geometry is the MCU layout of a frame.
type geometry struct {
	width, height int
	hmax, vmax    int
	mcuCols       int
	mcuRows       int
	components    []component
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func newGeometry(f *marker.Frame) *geometry {
	g := &geometry{width: f.Width, height: f.Height, hmax: 1, vmax: 1}
	for _, c := range f.Components {
		g.hmax = max(g.hmax, c.H)
		g.vmax = max(g.vmax, c.V)
	}
	g.mcuCols = ceilDiv(f.Width, 8*g.hmax)
	g.mcuRows = ceilDiv(f.Height, 8*g.vmax)
	for i, fc := range f.Components {
		c := component{
			id:         fc.ID,
			index:      i,
			h:          fc.H,
			v:          fc.V,
			stride:     g.mcuCols * fc.H,
			blocksWide: ceilDiv(ceilDiv(f.Width*fc.H, g.hmax), 8),
			blocksHigh: ceilDiv(ceilDiv(f.Height*fc.V, g.vmax), 8),
		}
		if i < len(componentNames) {
			c.name = componentNames[i]
		} else {
			c.name = fmt.Sprintf("Component%d", fc.ID)
		}
		g.components = append(g.components, c)
	}
	return g
}

// blockRef identifies one block visited by a scan: the position of its
// component in the scan header and its index in the component's grid.
type blockRef struct {
	comp  int
	index int
}

// scanPlan enumerates the data units of one scan. Interleaved scans code
// whole MCUs; a single-component scan codes one block per unit and covers
// only the blocks inside the image.
type scanPlan struct {
	comps       []*component
	interleaved bool
	cols, rows  int
}

func (g *geometry) plan(comps []*component) *scanPlan {
	p := &scanPlan{comps: comps, interleaved: len(comps) > 1}
	if p.interleaved {
		p.cols, p.rows = g.mcuCols, g.mcuRows
	} else {
		p.cols, p.rows = comps[0].blocksWide, comps[0].blocksHigh
	}
	return p
}

func (p *scanPlan) units() int { return p.cols * p.rows }

// blocks appends the blocks of unit u, in coding order, to dst.
func (p *scanPlan) blocks(u int, dst []blockRef) []blockRef {
	dst = dst[:0]
	col, row := u%p.cols, u/p.cols
	if !p.interleaved {
		c := p.comps[0]
		return append(dst, blockRef{comp: 0, index: row*c.stride + col})
	}
	for i, c := range p.comps {
		for by := 0; by < c.v; by++ {
			for bx := 0; bx < c.h; bx++ {
				idx := (row*c.v+by)*c.stride + col*c.h + bx
				dst = append(dst, blockRef{comp: i, index: idx})
			}
		}
	}
	return dst
}
