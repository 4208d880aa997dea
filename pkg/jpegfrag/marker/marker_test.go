package marker

import (
	"testing"

	"github.com/jpfielding/jpegfrag.go/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segment(m byte, payload ...byte) []byte {
	n := len(payload) + 2
	return append([]byte{0xff, m, byte(n >> 8), byte(n)}, payload...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var (
	soi     = []byte{0xff, SOI}
	eoi     = []byte{0xff, EOI}
	app0    = segment(0xe0, 'J', 'F', 'I', 'F', 0)
	dqt     = segment(DQT, append([]byte{0x00}, make([]byte, 64)...)...)
	sofGray = segment(SOF0, 8, 0, 8, 0, 16, 1, 1, 0x11, 0)
	dhtDC   = segment(DHT, 0x00, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5)
	dri     = segment(DRI, 0, 2)
	sosGray = segment(SOS, 1, 1, 0x00, 0, 63, 0)
)

func TestParseHeader(t *testing.T) {
	data := cat(soi, app0, dqt, sofGray, dhtDC, dri, sosGray, []byte{0x12, 0x34})
	h, err := ParseHeader(stream.Bytes(data))
	require.NoError(t, err)
	require.NotNil(t, h.Frame)

	assert.Equal(t, byte(SOF0), h.Frame.Marker)
	assert.Equal(t, FrameSequential, h.Frame.Type)
	assert.Equal(t, 8, h.Frame.Precision)
	assert.Equal(t, 8, h.Frame.Height)
	assert.Equal(t, 16, h.Frame.Width)
	require.Len(t, h.Frame.Components, 1)
	assert.Equal(t, FrameComponent{ID: 1, H: 1, V: 1}, h.Frame.Components[0])
	assert.Equal(t, 0, h.Frame.Index(1))
	assert.Equal(t, -1, h.Frame.Index(2))

	require.Len(t, h.Tables, 1)
	assert.Equal(t, byte(0x00), h.Tables[0].Identifier)
	assert.Equal(t, byte(1), h.Tables[0].Counts[1])
	assert.Equal(t, []byte{5}, h.Tables[0].Symbols)
	assert.Equal(t, 2, h.RestartInterval)

	sosAt := len(soi) + len(app0) + len(dqt) + len(sofGray) + len(dhtDC) + len(dri)
	assert.Equal(t, int64(sosAt), h.End)
}

func TestParseHeader_Progressive(t *testing.T) {
	sof := segment(SOF2, 8, 0, 16, 0, 16, 3, 1, 0x22, 0, 2, 0x11, 1, 3, 0x11, 1)
	h, err := ParseHeader(stream.Bytes(cat(soi, sof, sosGray)))
	require.NoError(t, err)
	assert.Equal(t, FrameProgressive, h.Frame.Type)
	require.Len(t, h.Frame.Components, 3)
	assert.Equal(t, 2, h.Frame.Components[0].H)
	assert.Equal(t, 2, h.Frame.Components[0].V)
	assert.Equal(t, 2, h.Frame.Index(3))
}

func TestParseHeader_FillBytes(t *testing.T) {
	data := cat(soi, []byte{0xff, 0xff}, sofGray, []byte{0xff}, sosGray)
	h, err := ParseHeader(stream.Bytes(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(soi)+2+len(sofGray)+1), h.End)
}

func TestParseHeader_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		offset int64
	}{
		{"empty", nil, 0},
		{"missing SOI", cat(app0, sofGray, sosGray), 0},
		{"truncated after SOI", cat(soi, []byte{0xff}), 2},
		{"not a marker", cat(soi, []byte{0x00, 0x01}), 2},
		{"multiple SOF", cat(soi, sofGray, sofGray, sosGray), int64(2 + len(sofGray))},
		{"SOS before SOF", cat(soi, dhtDC, sosGray), int64(2 + len(dhtDC))},
		{"EOI in header", cat(soi, sofGray, eoi), int64(2 + len(sofGray))},
		{"RST in header", cat(soi, []byte{0xff, RST0}), 2},
		{"unsupported frame", cat(soi, segment(0xc3, 8, 0, 8, 0, 8, 1, 1, 0x11, 0), sosGray), 4},
		{"SOF length mismatch", cat(soi, segment(SOF0, 8, 0, 8, 0, 8, 2, 1, 0x11, 0), sosGray), 4},
		{"zero width", cat(soi, segment(SOF0, 8, 0, 8, 0, 0, 1, 1, 0x11, 0), sosGray), 4},
		{"bad sampling", cat(soi, segment(SOF0, 8, 0, 8, 0, 8, 1, 1, 0x51, 0), sosGray), 4},
		{"no components", cat(soi, segment(SOF0, 8, 0, 8, 0, 8, 0), sosGray), 4},
		{"baseline precision", cat(soi, segment(SOF0, 12, 0, 8, 0, 8, 1, 1, 0x11, 0), sosGray), 4},
		{"duplicate component", cat(soi, segment(SOF0, 8, 0, 8, 0, 8, 2, 1, 0x11, 0, 1, 0x11, 0), sosGray), 4},
		{"DRI length", cat(soi, segment(DRI, 0, 0, 2), sofGray, sosGray), 4},
		{"DHT identifier", cat(soi, segment(DHT, 0x24, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0), sofGray, sosGray), 4},
		{"DHT symbols", cat(soi, segment(DHT, 0x00, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1), sofGray, sosGray), 4},
		{"short segment", cat(soi, []byte{0xff, 0xe0, 0x00, 0x01}), 4},
		{"segment past end", cat(soi, []byte{0xff, 0xe0, 0x00, 0x10, 1, 2}), 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHeader(stream.Bytes(tc.data))
			require.Error(t, err)
			fe, ok := IsFormatError(err)
			require.True(t, ok, "expected a FormatError, got %v", err)
			assert.Equal(t, tc.offset, fe.Offset)
		})
	}
}

func TestParseScan(t *testing.T) {
	dhtAC := segment(DHT, 0x11, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x00, 0x01)
	sos := segment(SOS, 3, 1, 0x00, 2, 0x11, 3, 0x11, 0, 0, 0x01)
	prefix := []byte{0xde, 0xad}
	data := cat(prefix, dhtAC, dri, segment(COM, 'h', 'i'), sos, []byte{0x55})

	sc, err := ParseScan(stream.Bytes(data), int64(len(prefix)))
	require.NoError(t, err)
	require.Len(t, sc.Tables, 1)
	assert.Equal(t, byte(0x11), sc.Tables[0].Identifier)
	assert.True(t, sc.HasRestartInterval)
	assert.Equal(t, 2, sc.RestartInterval)
	assert.Equal(t, []ScanComponent{
		{Selector: 1, DC: 0, AC: 0},
		{Selector: 2, DC: 1, AC: 1},
		{Selector: 3, DC: 1, AC: 1},
	}, sc.Components)
	assert.Equal(t, 0, sc.Ss)
	assert.Equal(t, 0, sc.Se)
	assert.Equal(t, 0, sc.Ah)
	assert.Equal(t, 1, sc.Al)
	assert.Equal(t, int64(len(data)-1), sc.DataOffset)
}

func TestParseScan_StuffedPadding(t *testing.T) {
	data := cat([]byte{0xff, 0x00, 0xff, 0x00}, segment(COM, 'x'), []byte{0xff, 0x00}, sosGray, []byte{0x55})
	sc, err := ParseScan(stream.Bytes(data), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)-1), sc.DataOffset)

	_, err = ParseScan(stream.Bytes([]byte{0xff, 0x00, 0x12}), 0)
	fe, ok := IsFormatError(err)
	require.True(t, ok)
	assert.Equal(t, int64(2), fe.Offset)
}

func TestParseScan_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"EOI", eoi},
		{"SOF", sofGray},
		{"RST", []byte{0xff, RST0 + 3}},
		{"no components", segment(SOS, 0, 0, 63, 0)},
		{"too many components", segment(SOS, 5, 1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 0, 63, 0)},
		{"length mismatch", segment(SOS, 2, 1, 0, 0, 63, 0)},
		{"truncated", sosGray[:5]},
		{"entropy bytes", []byte{0x12, 0x34}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScan(stream.Bytes(tc.data), 0)
			require.Error(t, err)
			_, ok := IsFormatError(err)
			assert.True(t, ok)
		})
	}
}

func TestParseFooter(t *testing.T) {
	data := cat([]byte{0x01}, segment(COM, 'x'), []byte{0xff, 0x00}, eoi, []byte{0x99})
	end, err := ParseFooter(stream.Bytes(data), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)-1), end)

	end, err = ParseFooter(stream.Bytes(eoi), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), end)

	tests := []struct {
		name   string
		data   []byte
		offset int64
	}{
		{"missing EOI", segment(COM, 'x'), 5},
		{"APP segment", cat(segment(0xe1, 1), eoi), 0},
		{"garbage", []byte{0x12, 0xff, EOI}, 0},
		{"after stuffing", []byte{0xff, 0x00, 0x12}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFooter(stream.Bytes(tc.data), 0)
			fe, ok := IsFormatError(err)
			require.True(t, ok)
			assert.Equal(t, tc.offset, fe.Offset)
		})
	}
}

func TestIsSOF(t *testing.T) {
	assert.True(t, IsSOF(SOF0))
	assert.True(t, IsSOF(SOF2))
	assert.True(t, IsSOF(0xcf))
	assert.False(t, IsSOF(DHT))
	assert.False(t, IsSOF(JPG))
	assert.False(t, IsSOF(DAC))
	assert.False(t, IsSOF(SOS))
	assert.True(t, IsRST(0xd5))
	assert.False(t, IsRST(SOI))
}
