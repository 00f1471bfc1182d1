package mp4

import (
	"fmt"

	"github.com/vireostream/corestream/internal/bytestream"
)

// MPEG-4 descriptor tags relevant to esds (ISO/IEC 14496-1 §7.2.6).
const (
	descTagESDescriptor        = 0x03
	descTagDecoderConfig       = 0x04
	descTagDecoderSpecificInfo = 0x05
)

// parseEsds extracts the raw AudioSpecificConfig bytes and the bit-rate
// fields carried inside an esds box's ES_Descriptor tree (spec §4.C).
func parseEsds(body []byte) (asc []byte, maxBitRate, avgBitRate uint32, err error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, 0, 0, err
	}

	c := bytestream.NewCursor(rest)

	tag, length, err := readDescriptorHeader(c)
	if err != nil {
		return nil, 0, 0, err
	}
	if tag != descTagESDescriptor {
		return nil, 0, 0, fmt.Errorf("%w: esds expected ES_Descriptor tag, got 0x%02x", ErrExtradataInvalid, tag)
	}
	esBody, err := c.Bytes(int(length))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: ES_Descriptor truncated", ErrExtradataInvalid)
	}

	ec := bytestream.NewCursor(esBody)
	// ES_ID(2)
	if err := ec.Skip(2); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: ES_Descriptor missing ES_ID", ErrExtradataInvalid)
	}
	flags, err := ec.U8()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: ES_Descriptor missing flags", ErrExtradataInvalid)
	}
	if flags&0x80 != 0 { // streamDependenceFlag
		if err := ec.Skip(2); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: ES_Descriptor truncated dependsOn_ES_ID", ErrExtradataInvalid)
		}
	}
	if flags&0x40 != 0 { // URL_Flag
		urlLen, err := ec.U8()
		if err != nil {
			return nil, 0, 0, fmt.Errorf("%w: ES_Descriptor truncated URLlength", ErrExtradataInvalid)
		}
		if err := ec.Skip(int(urlLen)); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: ES_Descriptor truncated URLstring", ErrExtradataInvalid)
		}
	}
	if flags&0x20 != 0 { // OCRstreamFlag
		if err := ec.Skip(2); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: ES_Descriptor truncated OCR_ES_Id", ErrExtradataInvalid)
		}
	}

	dcTag, dcLength, err := readDescriptorHeader(ec)
	if err != nil {
		return nil, 0, 0, err
	}
	if dcTag != descTagDecoderConfig {
		return nil, 0, 0, fmt.Errorf("%w: esds expected DecoderConfigDescriptor tag, got 0x%02x", ErrExtradataInvalid, dcTag)
	}
	dcBody, err := ec.Bytes(int(dcLength))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: DecoderConfigDescriptor truncated", ErrExtradataInvalid)
	}

	dc := bytestream.NewCursor(dcBody)
	// objectTypeIndication(1) streamType+upStream+reserved(1) bufferSizeDB(3)
	if err := dc.Skip(1); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: DecoderConfigDescriptor truncated", ErrExtradataInvalid)
	}
	if err := dc.Skip(1); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: DecoderConfigDescriptor truncated", ErrExtradataInvalid)
	}
	if err := dc.Skip(3); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: DecoderConfigDescriptor truncated bufferSizeDB", ErrExtradataInvalid)
	}
	maxBitRate, err = dc.U32()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: DecoderConfigDescriptor truncated maxBitrate", ErrExtradataInvalid)
	}
	avgBitRate, err = dc.U32()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: DecoderConfigDescriptor truncated avgBitrate", ErrExtradataInvalid)
	}

	if dc.Remaining() == 0 {
		// No DecoderSpecificInfo: return bit rates only.
		return nil, maxBitRate, avgBitRate, nil
	}

	dsTag, dsLength, err := readDescriptorHeader(dc)
	if err != nil {
		return nil, 0, 0, err
	}
	if dsTag != descTagDecoderSpecificInfo {
		return nil, maxBitRate, avgBitRate, nil
	}
	asc, err = dc.Bytes(int(dsLength))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: DecoderSpecificInfo truncated", ErrExtradataInvalid)
	}

	return asc, maxBitRate, avgBitRate, nil
}

// readDescriptorHeader reads an MPEG-4 descriptor's tag byte and its
// BER-style variable-length size: each size byte contributes its low 7
// bits to a big-endian accumulator, with the top bit set on every byte
// but the last (spec §4.C).
func readDescriptorHeader(c *bytestream.Cursor) (tag uint8, length uint32, err error) {
	tag, err = c.U8()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: descriptor missing tag", ErrExtradataInvalid)
	}

	for i := 0; i < 4; i++ {
		b, err := c.U8()
		if err != nil {
			return 0, 0, fmt.Errorf("%w: descriptor length truncated", ErrExtradataInvalid)
		}
		length = length<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return tag, length, nil
		}
	}

	return 0, 0, fmt.Errorf("%w: descriptor length exceeds 4 continuation bytes", ErrExtradataInvalid)
}
