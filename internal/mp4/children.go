package mp4

import (
	"fmt"

	"github.com/vireostream/corestream/internal/bytestream"
)

// child is one nested box found while walking a parent box's body.
type child struct {
	FourCC string
	Body   []byte
}

// walkChildren splits body into a sequence of nested boxes, in order. It
// supports the 64-bit largesize form but not run-to-EOF (only mdat, a
// top-level-only box, may use that form).
func walkChildren(body []byte) ([]child, error) {
	var out []child
	pos := 0

	for pos < len(body) {
		if len(body)-pos < 8 {
			return nil, fmt.Errorf("%w: truncated nested box header", ErrMalformed)
		}

		size32, err := bytestream.ReadU32(body[pos : pos+4])
		if err != nil {
			return nil, err
		}
		fourCC := string(body[pos+4 : pos+8])

		headerLen := 8
		var totalSize uint64 = uint64(size32)

		if size32 == 1 {
			if len(body)-pos < 16 {
				return nil, fmt.Errorf("%w: truncated largesize header", ErrMalformed)
			}
			totalSize, err = bytestream.ReadU64(body[pos+8 : pos+16])
			if err != nil {
				return nil, err
			}
			headerLen = 16
		}

		if totalSize < uint64(headerLen) || int(totalSize) > len(body)-pos {
			return nil, fmt.Errorf("%w: box %q size %d exceeds remaining %d",
				ErrMalformed, fourCC, totalSize, len(body)-pos)
		}

		out = append(out, child{
			FourCC: fourCC,
			Body:   body[pos+headerLen : pos+int(totalSize)],
		})

		pos += int(totalSize)
	}

	return out, nil
}

// find returns the body of the first child with the given fourcc.
func find(children []child, fourCC string) ([]byte, bool) {
	for _, c := range children {
		if c.FourCC == fourCC {
			return c.Body, true
		}
	}
	return nil, false
}
