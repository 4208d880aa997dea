package jpegfrag

import (
	"fmt"
)

// Tag classifies why validation stopped. The string values are stable and
// appear in reports.
type Tag string

const (
	TagNone          Tag = ""
	TagEOF           Tag = "EOF"
	TagHuffmanDC     Tag = "Huffman-DC"
	TagHuffmanAC     Tag = "Huffman-AC"
	TagQASize        Tag = "QASize"
	TagRestartMarker Tag = "RestartMarker"
	TagSOSBlock      Tag = "SOSBlock"
	TagCoeffACR      Tag = "Coeff-AC-R"
	TagHeader        Tag = "JpegHeader"
	TagFooter        Tag = "JpegFooter"
)

// Result is the outcome of validating one stream. When Completed is false,
// Offset is the earliest byte offset known not to belong to the image.
// When Completed is true it is the offset just past EOI.
type Result struct {
	Completed bool   `json:"completed"`
	Offset    int64  `json:"offset"`
	Tag       Tag    `json:"tag,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Info joins the tag and detail the way reports print them.
func (r Result) Info() string {
	switch {
	case r.Detail == "":
		return string(r.Tag)
	case r.Tag == TagNone:
		return r.Detail
	default:
		return string(r.Tag) + "; " + r.Detail
	}
}

func (r Result) String() string {
	if r.Completed {
		return fmt.Sprintf("completed at %d", r.Offset)
	}
	return fmt.Sprintf("failed at %d: %s", r.Offset, r.Info())
}

func complete(off int64) Result {
	return Result{Completed: true, Offset: off}
}

func fail(off int64, tag Tag, detail string) Result {
	return Result{Offset: off, Tag: tag, Detail: detail}
}

// LinkageError reports a scan that references state the frame never
// declared, such as a component selector absent from the SOF segment.
type LinkageError struct {
	Offset   int64
	Selector byte
}

func (e *LinkageError) Error() string {
	return fmt.Sprintf("jpegfrag: scan at offset %d selects component %d which is not in the frame", e.Offset, e.Selector)
}
