package jpegfrag

import (
	"testing"

	"github.com/jpfielding/jpegfrag.go/pkg/jpegfrag/marker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(width, height int, comps ...marker.FrameComponent) *marker.Frame {
	return &marker.Frame{Width: width, Height: height, Components: comps}
}

func TestGeometry(t *testing.T) {
	g := newGeometry(frame(17, 9,
		marker.FrameComponent{ID: 1, H: 2, V: 2},
		marker.FrameComponent{ID: 2, H: 1, V: 1},
		marker.FrameComponent{ID: 3, H: 1, V: 1},
		marker.FrameComponent{ID: 4, H: 1, V: 1},
	))
	assert.Equal(t, 2, g.hmax)
	assert.Equal(t, 2, g.vmax)
	assert.Equal(t, 2, g.mcuCols)
	assert.Equal(t, 1, g.mcuRows)
	require.Len(t, g.components, 4)

	y := g.components[0]
	assert.Equal(t, "Luminance", y.name)
	assert.Equal(t, 3, y.blocksWide)
	assert.Equal(t, 2, y.blocksHigh)
	assert.Equal(t, 4, y.stride)

	cb := g.components[1]
	assert.Equal(t, "Blueness", cb.name)
	assert.Equal(t, 2, cb.blocksWide)
	assert.Equal(t, 1, cb.blocksHigh)
	assert.Equal(t, "Redness", g.components[2].name)
	assert.Equal(t, "Component4", g.components[3].name)
}

func TestGeometry_Gray(t *testing.T) {
	// sampling factors of a single component frame do not change coverage
	g := newGeometry(frame(17, 9, marker.FrameComponent{ID: 1, H: 2, V: 2}))
	p := g.plan([]*component{&g.components[0]})
	assert.False(t, p.interleaved)
	assert.Equal(t, 6, p.units())
}

func TestScanPlan_Interleaved(t *testing.T) {
	g := newGeometry(frame(24, 24,
		marker.FrameComponent{ID: 1, H: 2, V: 2},
		marker.FrameComponent{ID: 2, H: 1, V: 1},
		marker.FrameComponent{ID: 3, H: 1, V: 1},
	))
	p := g.plan([]*component{&g.components[0], &g.components[1], &g.components[2]})
	assert.True(t, p.interleaved)
	assert.Equal(t, 4, p.units())

	blocks := p.blocks(3, nil)
	assert.Equal(t, []blockRef{
		{comp: 0, index: 10}, {comp: 0, index: 11}, {comp: 0, index: 14}, {comp: 0, index: 15},
		{comp: 1, index: 3},
		{comp: 2, index: 3},
	}, blocks)

	luma := g.plan([]*component{&g.components[0]})
	assert.Equal(t, 9, luma.units())
	assert.Equal(t, []blockRef{{comp: 0, index: 4*2 + 2}}, luma.blocks(8, blocks))

	chroma := g.plan([]*component{&g.components[2]})
	assert.Equal(t, 4, chroma.units())
}
