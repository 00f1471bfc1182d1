package mp4

import (
	"fmt"
	"io"

	"github.com/vireostream/corestream/internal/bytestream"
)

// maxBoxHeaderSize is the largest box header: 32-bit size, fourcc and
// 64-bit largesize.
const maxBoxHeaderSize = 16

// BoxHeader is the common prefix of every top-level box: its fourcc tag,
// its total size in bytes (header included), and its byte offset from the
// start of the file.
type BoxHeader struct {
	FourCC string
	Size   uint64
	Offset int64
}

// Box is a parsed top-level box. Composition over the teacher language's
// base-class hierarchy, per spec §9: each concrete type owns its fields
// directly instead of inheriting from a common box base.
type Box interface {
	Header() BoxHeader
}

// Ftyp is a file-type box.
type Ftyp struct {
	BoxHeader
	MajorBrand       string
	MinorVersion     uint32
	CompatibleBrands []string
}

// Header implements Box.
func (b *Ftyp) Header() BoxHeader { return b.BoxHeader }

// Free is a free-space box; its payload is never interpreted.
type Free struct {
	BoxHeader
}

// Header implements Box.
func (b *Free) Header() BoxHeader { return b.BoxHeader }

// Mdat is a media-data box. Its payload is never read into memory by the
// box parser: samples are pulled later, directly from an io.ReaderAt, at
// the absolute file offsets recorded in stco.
type Mdat struct {
	BoxHeader
	// PayloadOffset is the file offset of the first payload byte.
	PayloadOffset int64
	// RunToEOF records whether this mdat used the size==0 run-to-EOF form.
	RunToEOF bool
}

// Header implements Box.
func (b *Mdat) Header() BoxHeader { return b.BoxHeader }

// Moov is a movie box: its payload is fully parsed into a MovInfo.
type Moov struct {
	BoxHeader
	Info *MovInfo
}

// Header implements Box.
func (b *Moov) Header() BoxHeader { return b.BoxHeader }

// Unknown is a top-level box of a type this parser does not interpret.
// It is retained by size only, so that byte offsets downstream of it stay
// aligned (spec §4.C).
type Unknown struct {
	BoxHeader
}

// Header implements Box.
func (b *Unknown) Header() BoxHeader { return b.BoxHeader }

// Tree is the result of walking a file's top-level boxes in order.
type Tree struct {
	Boxes []Box
}

// Movie returns the MovInfo parsed out of the first moov box, or an error
// if none was present.
func (t *Tree) Movie() (*MovInfo, error) {
	for _, b := range t.Boxes {
		if m, ok := b.(*Moov); ok {
			return m.Info, nil
		}
	}
	return nil, fmt.Errorf("%w: no moov box", ErrMalformed)
}

// readBoxHeader reads the 32-bit-size+fourcc header (and, when size==1,
// the following 64-bit largesize), returning the declared total box size
// (header included) and the number of header bytes consumed.
func readBoxHeader(r io.Reader) (fourCC string, totalSize uint64, headerLen int, err error) {
	var hdr [8]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return "", 0, 0, err
	}

	size32, err := bytestream.ReadU32(hdr[:4])
	if err != nil {
		return "", 0, 0, err
	}
	fourCC = string(hdr[4:8])
	headerLen = 8

	switch size32 {
	case 1:
		var ext [8]byte
		if _, err = io.ReadFull(r, ext[:]); err != nil {
			return "", 0, 0, err
		}
		totalSize, err = bytestream.ReadU64(ext[:])
		if err != nil {
			return "", 0, 0, err
		}
		headerLen = 16

	case 0:
		totalSize = 0 // run-to-EOF, only legal for mdat

	default:
		totalSize = uint64(size32)
	}

	return fourCC, totalSize, headerLen, nil
}

// Parse walks the top-level boxes of r in order, parsing ftyp/moov fully
// and recording free/mdat without reading their payload into memory.
func Parse(r io.Reader) (*Tree, error) {
	tree := &Tree{}
	var offset int64

	for {
		fourCC, totalSize, headerLen, err := readBoxHeader(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading box header at %d: %v", ErrMalformed, offset, err)
		}

		boxStart := offset
		bodyLen := int64(totalSize) - int64(headerLen)

		if totalSize == 0 {
			if fourCC != "mdat" {
				return nil, fmt.Errorf("%w: run-to-EOF size only allowed for mdat, got %q", ErrMalformed, fourCC)
			}

			tree.Boxes = append(tree.Boxes, &Mdat{
				BoxHeader:     BoxHeader{FourCC: fourCC, Size: 0, Offset: boxStart},
				PayloadOffset: boxStart + int64(headerLen),
				RunToEOF:      true,
			})
			// run-to-EOF must be the last box; stop walking.
			break
		}

		if bodyLen < 0 {
			return nil, fmt.Errorf("%w: box %q at %d smaller than its own header", ErrMalformed, fourCC, boxStart)
		}

		switch fourCC {
		case "ftyp":
			body := make([]byte, bodyLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("%w: short ftyp body: %v", ErrMalformed, err)
			}
			ftyp, err := parseFtyp(body)
			if err != nil {
				return nil, err
			}
			ftyp.BoxHeader = BoxHeader{FourCC: fourCC, Size: totalSize, Offset: boxStart}
			tree.Boxes = append(tree.Boxes, ftyp)

		case "moov":
			body := make([]byte, bodyLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("%w: short moov body: %v", ErrMalformed, err)
			}
			info, err := parseMoov(body)
			if err != nil {
				return nil, err
			}
			tree.Boxes = append(tree.Boxes, &Moov{
				BoxHeader: BoxHeader{FourCC: fourCC, Size: totalSize, Offset: boxStart},
				Info:      info,
			})

		case "free":
			if _, err := io.CopyN(io.Discard, r, bodyLen); err != nil {
				return nil, fmt.Errorf("%w: short free body: %v", ErrMalformed, err)
			}
			tree.Boxes = append(tree.Boxes, &Free{
				BoxHeader: BoxHeader{FourCC: fourCC, Size: totalSize, Offset: boxStart},
			})

		case "mdat":
			if _, err := io.CopyN(io.Discard, r, bodyLen); err != nil {
				return nil, fmt.Errorf("%w: short mdat body: %v", ErrMalformed, err)
			}
			tree.Boxes = append(tree.Boxes, &Mdat{
				BoxHeader:     BoxHeader{FourCC: fourCC, Size: totalSize, Offset: boxStart},
				PayloadOffset: boxStart + int64(headerLen),
			})

		default:
			if _, err := io.CopyN(io.Discard, r, bodyLen); err != nil {
				return nil, fmt.Errorf("%w: short %q body: %v", ErrMalformed, fourCC, err)
			}
			tree.Boxes = append(tree.Boxes, &Unknown{
				BoxHeader: BoxHeader{FourCC: fourCC, Size: totalSize, Offset: boxStart},
			})
		}

		offset = boxStart + int64(totalSize)
	}

	return tree, nil
}

func parseFtyp(body []byte) (*Ftyp, error) {
	if len(body) < 8 {
		return nil, fmt.Errorf("%w: ftyp too short", ErrMalformed)
	}

	f := &Ftyp{
		MajorBrand:   string(body[0:4]),
		MinorVersion: mustU32(body[4:8]),
	}

	for i := 8; i+4 <= len(body); i += 4 {
		f.CompatibleBrands = append(f.CompatibleBrands, string(body[i:i+4]))
	}

	return f, nil
}

func mustU32(b []byte) uint32 {
	v, _ := bytestream.ReadU32(b)
	return v
}
