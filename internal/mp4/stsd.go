package mp4

import (
	"fmt"

	"github.com/vireostream/corestream/internal/bytestream"
	"github.com/vireostream/corestream/internal/pkt"
)

// maxHvcCPayload defends against malformed input: a HEVC decoder
// configuration record this large cannot be legitimate (spec §4.C).
const maxHvcCPayload = 5120

func parseStsd(body []byte) (*TrackInfo, error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("%w: stsd missing entry_count", ErrMalformed)
	}
	// entry_count is always 1 for the tracks this parser supports.
	children, err := walkChildren(rest[4:])
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: stsd has no sample entry", ErrMalformed)
	}

	entry := children[0]

	switch entry.FourCC {
	case "avc1":
		return parseVisualSampleEntry(entry.Body, pkt.CodecH264)
	case "hvc1", "hev1":
		return parseVisualSampleEntry(entry.Body, pkt.CodecH265)
	case "av01":
		return parseVisualSampleEntry(entry.Body, pkt.CodecAV1)
	case "mp4a":
		return parseAudioSampleEntry(entry.Body)
	default:
		return nil, fmt.Errorf("%w: sample description %q", ErrCodecUnsupported, entry.FourCC)
	}
}

// visualSampleEntryFixedLen is the byte length of a VisualSampleEntry's
// fixed fields (reserved/data_reference_index through pre_defined),
// following the 8-byte box header already stripped by walkChildren.
const visualSampleEntryFixedLen = 78

func parseVisualSampleEntry(body []byte, codec pkt.CodecType) (*TrackInfo, error) {
	if len(body) < visualSampleEntryFixedLen {
		return nil, fmt.Errorf("%w: visual sample entry too short", ErrMalformed)
	}

	// reserved(6) data_reference_index(2) pre_defined(2) reserved(2)
	// pre_defined(12) width(2) height(2) horizresolution(4) vertresolution(4)
	// reserved(4) frame_count(2) compressorname(32) depth(2) pre_defined(2)
	width, _ := bytestream.ReadU16(body[24:26])
	height, _ := bytestream.ReadU16(body[26:28])
	horizRes, _ := bytestream.ReadU32(body[28:32])
	vertRes, _ := bytestream.ReadU32(body[32:36])

	track := &TrackInfo{
		CodecType:            codec,
		Width:                width,
		Height:               height,
		HorizontalResolution: horizRes,
		VerticalResolution:   vertRes,
	}

	children, err := walkChildren(body[visualSampleEntryFixedLen:])
	if err != nil {
		return nil, err
	}

	switch codec {
	case pkt.CodecH264:
		avcC, ok := find(children, "avcC")
		if !ok {
			return nil, fmt.Errorf("%w: avc1 missing avcC", ErrExtradataInvalid)
		}
		track.SequenceData = avcC

	case pkt.CodecH265:
		hvcC, ok := find(children, "hvcC")
		if !ok {
			return nil, fmt.Errorf("%w: hvc1 missing hvcC", ErrExtradataInvalid)
		}
		if len(hvcC) > maxHvcCPayload {
			return nil, fmt.Errorf("%w: hvcC payload %d bytes exceeds %d", ErrMalformed, len(hvcC), maxHvcCPayload)
		}
		track.SequenceData = hvcC

	case pkt.CodecAV1:
		av1C, ok := find(children, "av1C")
		if !ok {
			return nil, fmt.Errorf("%w: av01 missing av1C", ErrExtradataInvalid)
		}
		track.SequenceData = av1C
	}

	if btrt, ok := find(children, "btrt"); ok && len(btrt) >= 12 {
		track.BufferSize, _ = bytestream.ReadU32(btrt[0:4])
		track.MaxBitRate, _ = bytestream.ReadU32(btrt[4:8])
		track.AvgBitRate, _ = bytestream.ReadU32(btrt[8:12])
	}

	return track, nil
}

// audioSampleEntryFixedLen is the byte length of an AudioSampleEntry's
// fixed (version 0) fields, following the 8-byte box header.
const audioSampleEntryFixedLen = 28

func parseAudioSampleEntry(body []byte) (*TrackInfo, error) {
	if len(body) < audioSampleEntryFixedLen {
		return nil, fmt.Errorf("%w: audio sample entry too short", ErrMalformed)
	}

	// reserved(6) data_reference_index(2) reserved(8) channelcount(2)
	// samplesize(2) pre_defined(2) reserved(2) samplerate(4, 16.16)
	channelCount, _ := bytestream.ReadU16(body[16:18])
	sampleSize, _ := bytestream.ReadU16(body[18:20])
	sampleRateFixed, _ := bytestream.ReadU32(body[24:28])

	track := &TrackInfo{
		CodecType:    pkt.CodecAAC,
		ChannelCount: channelCount,
		SampleSize:   sampleSize,
		SampleRate:   sampleRateFixed >> 16,
	}

	children, err := walkChildren(body[audioSampleEntryFixedLen:])
	if err != nil {
		return nil, err
	}

	esdsBody, ok := find(children, "esds")
	if !ok {
		return nil, fmt.Errorf("%w: mp4a missing esds", ErrExtradataInvalid)
	}

	asc, maxBitRate, avgBitRate, err := parseEsds(esdsBody)
	if err != nil {
		return nil, err
	}
	if len(asc) == 0 {
		return nil, fmt.Errorf("%w: esds has no AudioSpecificConfig", ErrExtradataInvalid)
	}
	track.SequenceData = asc
	track.MaxBitRate = maxBitRate
	track.AvgBitRate = avgBitRate

	return track, nil
}
