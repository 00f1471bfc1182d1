package mp4

import (
	"fmt"

	"github.com/vireostream/corestream/internal/bytestream"
)

func parseStbl(body []byte) (*TrackInfo, error) {
	children, err := walkChildren(body)
	if err != nil {
		return nil, err
	}

	stsdBody, ok := find(children, "stsd")
	if !ok {
		return nil, fmt.Errorf("%w: stbl missing stsd", ErrMalformed)
	}
	track, err := parseStsd(stsdBody)
	if err != nil {
		return nil, err
	}

	sttsBody, ok := find(children, "stts")
	if !ok {
		return nil, fmt.Errorf("%w: stbl missing stts", ErrMalformed)
	}
	track.SampleEntries, err = parseStts(sttsBody)
	if err != nil {
		return nil, err
	}

	if cttsBody, ok := find(children, "ctts"); ok {
		track.SampleOffsets, err = parseCtts(cttsBody)
		if err != nil {
			return nil, err
		}
	}

	if stssBody, ok := find(children, "stss"); ok {
		track.IframeSamples, err = parseStss(stssBody)
		if err != nil {
			return nil, err
		}
		track.HasStss = true
	}

	stscBody, ok := find(children, "stsc")
	if !ok {
		return nil, fmt.Errorf("%w: stbl missing stsc", ErrMalformed)
	}
	track.ChunkSamples, err = parseStsc(stscBody)
	if err != nil {
		return nil, err
	}

	stszBody, ok := find(children, "stsz")
	if !ok {
		return nil, fmt.Errorf("%w: stbl missing stsz", ErrMalformed)
	}
	track.SampleSizes, err = parseStsz(stszBody)
	if err != nil {
		return nil, err
	}

	stcoBody, hasStco := find(children, "stco")
	co64Body, hasCo64 := find(children, "co64")
	switch {
	case hasStco:
		track.ChunkOffsets, err = parseStco(stcoBody)
	case hasCo64:
		track.ChunkOffsets, err = parseCo64(co64Body)
	default:
		return nil, fmt.Errorf("%w: stbl missing stco/co64", ErrMalformed)
	}
	if err != nil {
		return nil, err
	}

	return track, nil
}

func parseStts(body []byte) ([]SttsEntry, error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: stts missing entry_count", ErrMalformed)
	}
	count, _ := bytestream.ReadU32(rest[:4])
	rest = rest[4:]

	if len(rest) < int(count)*8 {
		return nil, fmt.Errorf("%w: stts truncated", ErrMalformed)
	}

	out := make([]SttsEntry, count)
	for i := range out {
		out[i].Count, _ = bytestream.ReadU32(rest[i*8 : i*8+4])
		out[i].Delta, _ = bytestream.ReadU32(rest[i*8+4 : i*8+8])
	}
	return out, nil
}

func parseCtts(body []byte) ([]CttsEntry, error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: ctts missing entry_count", ErrMalformed)
	}
	count, _ := bytestream.ReadU32(rest[:4])
	rest = rest[4:]

	if len(rest) < int(count)*8 {
		return nil, fmt.Errorf("%w: ctts truncated", ErrMalformed)
	}

	out := make([]CttsEntry, count)
	for i := range out {
		out[i].Count, _ = bytestream.ReadU32(rest[i*8 : i*8+4])
		v, _ := bytestream.ReadU32(rest[i*8+4 : i*8+8])
		out[i].Offset = int32(v)
	}
	return out, nil
}

func parseStss(body []byte) ([]uint32, error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: stss missing entry_count", ErrMalformed)
	}
	count, _ := bytestream.ReadU32(rest[:4])
	rest = rest[4:]

	if len(rest) < int(count)*4 {
		return nil, fmt.Errorf("%w: stss truncated", ErrMalformed)
	}

	out := make([]uint32, count)
	for i := range out {
		out[i], _ = bytestream.ReadU32(rest[i*4 : i*4+4])
	}
	return out, nil
}

func parseStsc(body []byte) ([]StscEntry, error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: stsc missing entry_count", ErrMalformed)
	}
	count, _ := bytestream.ReadU32(rest[:4])
	rest = rest[4:]

	if len(rest) < int(count)*12 {
		return nil, fmt.Errorf("%w: stsc truncated", ErrMalformed)
	}

	out := make([]StscEntry, count)
	for i := range out {
		out[i].FirstChunk, _ = bytestream.ReadU32(rest[i*12 : i*12+4])
		out[i].SamplesPerChunk, _ = bytestream.ReadU32(rest[i*12+4 : i*12+8])
		out[i].SampleDescIndex, _ = bytestream.ReadU32(rest[i*12+8 : i*12+12])
	}
	return out, nil
}

func parseStsz(body []byte) ([]uint32, error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 8 {
		return nil, fmt.Errorf("%w: stsz missing sample_size/count", ErrMalformed)
	}
	sampleSize, _ := bytestream.ReadU32(rest[:4])
	count, _ := bytestream.ReadU32(rest[4:8])
	rest = rest[8:]

	out := make([]uint32, count)

	if sampleSize != 0 {
		for i := range out {
			out[i] = sampleSize
		}
		return out, nil
	}

	if len(rest) < int(count)*4 {
		return nil, fmt.Errorf("%w: stsz truncated", ErrMalformed)
	}
	for i := range out {
		out[i], _ = bytestream.ReadU32(rest[i*4 : i*4+4])
	}
	return out, nil
}

func parseStco(body []byte) ([]uint64, error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: stco missing entry_count", ErrMalformed)
	}
	count, _ := bytestream.ReadU32(rest[:4])
	rest = rest[4:]

	if len(rest) < int(count)*4 {
		return nil, fmt.Errorf("%w: stco truncated", ErrMalformed)
	}

	out := make([]uint64, count)
	for i := range out {
		v, _ := bytestream.ReadU32(rest[i*4 : i*4+4])
		out[i] = uint64(v)
	}
	return out, nil
}

func parseCo64(body []byte) ([]uint64, error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: co64 missing entry_count", ErrMalformed)
	}
	count, _ := bytestream.ReadU32(rest[:4])
	rest = rest[4:]

	if len(rest) < int(count)*8 {
		return nil, fmt.Errorf("%w: co64 truncated", ErrMalformed)
	}

	out := make([]uint64, count)
	for i := range out {
		out[i], _ = bytestream.ReadU64(rest[i*8 : i*8+8])
	}
	return out, nil
}
