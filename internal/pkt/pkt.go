// Package pkt contains the Packet type, the uniform in-flight unit that
// flows between streamers.
package pkt

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// AVType identifies what a Packet carries.
type AVType int

// AVType values.
const (
	AVTypeUnknown AVType = iota
	AVTypeVideo
	AVTypeAudio
	AVTypeMetadata
	AVTypeMovBox
)

// String implements fmt.Stringer.
func (t AVType) String() string {
	switch t {
	case AVTypeVideo:
		return "video"
	case AVTypeAudio:
		return "audio"
	case AVTypeMetadata:
		return "metadata"
	case AVTypeMovBox:
		return "mov-box"
	default:
		return "unknown"
	}
}

// CodecType identifies the codec of a Packet's payload.
type CodecType int

// CodecType values.
const (
	CodecUnknown CodecType = iota
	CodecH264
	CodecH265
	CodecH266
	CodecAV1
	CodecAAC
	CodecOpus
)

// String implements fmt.Stringer.
func (c CodecType) String() string {
	switch c {
	case CodecH264:
		return "H264"
	case CodecH265:
		return "H265"
	case CodecH266:
		return "H266"
	case CodecAV1:
		return "AV1"
	case CodecAAC:
		return "AAC"
	case CodecOpus:
		return "Opus"
	default:
		return "unknown"
	}
}

// FormatType tells whether a payload is a raw elementary stream or still
// wrapped in container-specific framing.
type FormatType int

// FormatType values.
const (
	FormatRaw FormatType = iota
	FormatContainer
)

// Reader is a back-channel handle to a random-access byte source. Only
// source streamers that drive their own pull loop (the MP4 demux engine)
// use it; it is nil on packets produced any other way. A positioned read
// that returns fewer bytes than requested without io.EOF is a short read
// (error kind io-short-read); this is exactly io.ReaderAt's contract.
type Reader = io.ReaderAt

// Box is an opaque, read-only reference to a parsed container box, carried
// by packets with AVType == AVTypeMovBox for inspection by sinkers.
type Box interface {
	Type() string
}

// Packet is the unit carried between streamers. Once handed to
// SourceData, a Packet is immutable: sinkers must treat Payload as
// read-only, and must deep-copy before rewriting. A Packet may be shared
// by multiple sinkers simultaneously (Go's ordinary pointer/GC semantics
// provide the shared ownership; no explicit refcounting type is needed).
type Packet struct {
	AVType           AVType
	CodecType        CodecType
	FormatType       FormatType
	DTS              time.Duration
	PTS              time.Duration
	IsKeyframe       bool
	IsSequenceHeader bool
	StreamID         int
	Payload          []byte
	Reader           Reader
	Box              Box
	BoxType          string
}

// IsKey reports whether the packet is a keyframe, satisfying the
// queue.Item interface so a Packet can be carried by a keyframe-aware
// bounded queue without that package needing to import pkt.
func (p *Packet) IsKey() bool {
	return p.IsKeyframe
}

// New returns a Packet with an empty owned payload of the given capacity.
func New(capacity int) *Packet {
	return &Packet{
		Payload: make([]byte, 0, capacity),
	}
}

// CopyProperties copies every field of other except Payload.
func (p *Packet) CopyProperties(other *Packet) {
	p.AVType = other.AVType
	p.CodecType = other.CodecType
	p.FormatType = other.FormatType
	p.DTS = other.DTS
	p.PTS = other.PTS
	p.IsKeyframe = other.IsKeyframe
	p.IsSequenceHeader = other.IsSequenceHeader
	p.StreamID = other.StreamID
	p.Reader = other.Reader
	p.Box = other.Box
	p.BoxType = other.BoxType
}

// Dump returns a JSON-ish string representation, used by reporters.
// Payload is included as hex only when requested.
func (p *Packet) Dump(withHex bool) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"av_type":%q,"codec_type":%q,"dts":%d,"pts":%d,`+
		`"is_keyframe":%t,"is_sequence_header":%t,"stream_id":%d,"len":%d`,
		p.AVType, p.CodecType, p.DTS.Microseconds(), p.PTS.Microseconds(),
		p.IsKeyframe, p.IsSequenceHeader, p.StreamID, len(p.Payload))
	if p.BoxType != "" {
		fmt.Fprintf(&buf, `,"box_type":%q`, p.BoxType)
	}
	if withHex {
		fmt.Fprintf(&buf, `,"payload":%q`, hex.EncodeToString(p.Payload))
	}
	buf.WriteByte('}')
	return buf.String()
}
