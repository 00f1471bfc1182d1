package mp4

import "github.com/vireostream/corestream/internal/pkt"

// MovInfo is the result of parsing an ISO base media file's moov tree: a
// read-only, sample-addressable description of the movie. It is built in
// one pass and never mutated afterward (spec §3, "Lifecycle").
type MovInfo struct {
	MajorBrand       string
	MinorVersion     uint32
	CompatibleBrands []string

	// DurationUs is mvhd.duration * 1e6 / mvhd.timescale.
	DurationUs int64

	NextTrackID uint32
	Tracks      []*TrackInfo
}

// SttsEntry is one (count, delta) run from a stts box.
type SttsEntry struct {
	Count uint32
	Delta uint32
}

// CttsEntry is one (count, offset) run from a ctts box.
type CttsEntry struct {
	Count  uint32
	Offset int32
}

// StscEntry is one (first_chunk, samples_per_chunk, desc_index) run from
// an stsc box. The record covers chunk indices [FirstChunk, next record's
// FirstChunk); the last record extends to infinity.
type StscEntry struct {
	FirstChunk      uint32
	SamplesPerChunk uint32
	SampleDescIndex uint32
}

// TrackInfo is one trak's worth of timing and codec metadata, plus the
// parallel, 1-indexed sample tables the demux scheduler walks.
type TrackInfo struct {
	TrackID    uint32
	Timescale  uint32
	DurationUs int64

	// HandlerType is "soun", "vide", or any other mdia hdlr value.
	HandlerType string
	CodecType   pkt.CodecType

	// Video geometry.
	Width                uint16
	Height               uint16
	HorizontalResolution uint32 // 16.16 fixed point
	VerticalResolution   uint32 // 16.16 fixed point

	// Audio geometry.
	ChannelCount uint16
	SampleSize   uint16
	SampleRate   uint32

	BufferSize  uint32
	MaxBitRate  uint32
	AvgBitRate  uint32

	// SequenceData is the codec-config payload: an
	// AVCDecoderConfigurationRecord, HEVCDecoderConfigurationRecord, or
	// AudioSpecificConfig, depending on CodecType.
	SequenceData []byte

	SampleEntries []SttsEntry // stts
	SampleOffsets []CttsEntry // ctts, empty if absent
	IframeSamples []uint32    // stss, sorted 1-indexed sample numbers
	ChunkSamples  []StscEntry // stsc
	SampleSizes   []uint32    // stsz, 1-indexed by position
	ChunkOffsets  []uint64    // stco, 1-indexed by position

	// HasStss records whether an stss box was present; when absent, every
	// sample in the track is treated as a keyframe (spec §4.D.2).
	HasStss bool
}
