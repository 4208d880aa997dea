package jpegfrag

import (
	"fmt"

	"github.com/jpfielding/jpegfrag.go/pkg/jpegfrag/marker"
)

// TableClass is the coefficient class a Huffman table codes for.
type TableClass int

const (
	ClassDC TableClass = iota
	ClassAC
)

func (c TableClass) String() string {
	if c == ClassAC {
		return "AC"
	}
	return "DC"
}

type huffmanCode struct {
	length int
	code   uint16
	symbol byte
}

// Match is a successful table lookup.
type Match struct {
	Bits   int
	Symbol byte
}

// HuffmanTable is a canonical Huffman code built from a DHT definition.
// Codes are kept in construction order: ascending length, then ascending
// code value.
type HuffmanTable struct {
	Class         TableClass
	ID            int
	MaxCodeLength int
	codes         []huffmanCode
}

// NewHuffmanTable builds the canonical code for a DHT table. The identifier
// is the raw Tc/Th byte.
func NewHuffmanTable(identifier byte, counts [16]byte, symbols []byte) (*HuffmanTable, error) {
	t := &HuffmanTable{ID: int(identifier & 0x0f)}
	if identifier > 15 {
		t.Class = ClassAC
	}
	if t.ID > 3 {
		return nil, fmt.Errorf("huffman table %s%d: invalid destination", t.Class, t.ID)
	}
	code, next := 0, 0
	for i, n := range counts {
		length := i + 1
		if n > 0 {
			t.MaxCodeLength = length
		}
		for j := 0; j < int(n); j++ {
			if next >= len(symbols) {
				return nil, fmt.Errorf("huffman table %s%d: counts declare more than %d symbols", t.Class, t.ID, len(symbols))
			}
			if code >= 1<<length {
				return nil, fmt.Errorf("huffman table %s%d: code space over-subscribed at length %d", t.Class, t.ID, length)
			}
			t.codes = append(t.codes, huffmanCode{length: length, code: uint16(code), symbol: symbols[next]})
			next++
			code++
		}
		code <<= 1
	}
	return t, nil
}

// FindShortestMatch looks up the leading bits of a MaxCodeLength-bit window.
func (t *HuffmanTable) FindShortestMatch(bits uint32) (Match, bool) {
	for _, c := range t.codes {
		if bits>>uint(t.MaxCodeLength-c.length) == uint32(c.code) {
			return Match{Bits: c.length, Symbol: c.symbol}, true
		}
	}
	return Match{}, false
}

// huffmanTables holds the current table for every class and destination.
// Later definitions replace earlier ones.
type huffmanTables [2][4]*HuffmanTable

func (ts *huffmanTables) install(def marker.HuffmanDef) error {
	t, err := NewHuffmanTable(def.Identifier, def.Counts, def.Symbols)
	if err != nil {
		return err
	}
	ts[t.Class][t.ID] = t
	return nil
}

func (ts *huffmanTables) get(class TableClass, id byte) *HuffmanTable {
	if id > 3 {
		return nil
	}
	return ts[class][id]
}

// readSymbol decodes one Huffman symbol at the cursor. A failed lookup is
// reported as miss, short data as TagEOF.
func readSymbol(c *bitCursor, t *HuffmanTable, miss Tag) (byte, Tag) {
	if t.MaxCodeLength == 0 {
		return 0, miss
	}
	bits, ok := c.Peek(t.MaxCodeLength)
	if !ok {
		return 0, TagEOF
	}
	m, ok := t.FindShortestMatch(bits)
	if !ok {
		return 0, miss
	}
	c.Skip(m.Bits)
	return m.Symbol, TagNone
}
