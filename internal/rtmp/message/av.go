package message

import (
	"fmt"
	"time"

	"github.com/notedit/rtmp/format/flv/flvio"

	"github.com/vireostream/corestream/internal/rtmp/base"
	"github.com/vireostream/corestream/internal/rtmp/rawmessage"
)

// AudioCodec values recognized in the FLV-style audio tag header.
const (
	AudioCodecMPEG2Audio uint8 = 2
	AudioCodecMPEG4Audio uint8 = 10
)

// AACPacketType distinguishes an AAC sequence header from an access unit.
type AACPacketType uint8

// AACPacketType values.
const (
	AACPacketTypeConfig AACPacketType = 0
	AACPacketTypeAU     AACPacketType = 1
)

// Audio is an audio message, FLV-tag-encoded per spec §4.E.
type Audio struct {
	ChunkStreamID   uint32
	DTS             time.Duration
	MessageStreamID uint32
	Codec           uint8
	Rate            uint8
	Depth           uint8
	Channels        uint8
	AACType         AACPacketType // only meaningful when Codec == AudioCodecMPEG4Audio
	Payload         []byte
}

// Unmarshal implements Message.
func (m *Audio) Unmarshal(raw *rawmessage.Message) error {
	m.ChunkStreamID = raw.ChunkStreamID
	m.DTS = raw.Timestamp
	m.MessageStreamID = raw.MessageStreamID

	if len(raw.Body) < 2 {
		return fmt.Errorf("invalid body size")
	}

	m.Codec = raw.Body[0] >> 4
	switch m.Codec {
	case AudioCodecMPEG2Audio, AudioCodecMPEG4Audio:
	default:
		return fmt.Errorf("unsupported audio codec: %d", m.Codec)
	}

	m.Rate = (raw.Body[0] >> 2) & 0x03
	m.Depth = (raw.Body[0] >> 1) & 0x01
	m.Channels = raw.Body[0] & 0x01

	if m.Codec == AudioCodecMPEG2Audio {
		m.Payload = raw.Body[1:]
		return nil
	}

	m.AACType = AACPacketType(raw.Body[1])
	switch m.AACType {
	case AACPacketTypeConfig, AACPacketTypeAU:
	default:
		return fmt.Errorf("unsupported AAC packet type: %d", m.AACType)
	}
	m.Payload = raw.Body[2:]
	return nil
}

// Marshal implements Message.
func (m Audio) Marshal() (*rawmessage.Message, error) {
	var l int
	if m.Codec == AudioCodecMPEG2Audio {
		l = 1 + len(m.Payload)
	} else {
		l = 2 + len(m.Payload)
	}
	body := make([]byte, l)
	body[0] = m.Codec<<4 | m.Rate<<2 | m.Depth<<1 | m.Channels

	if m.Codec == AudioCodecMPEG2Audio {
		copy(body[1:], m.Payload)
	} else {
		body[1] = uint8(m.AACType)
		copy(body[2:], m.Payload)
	}

	return &rawmessage.Message{
		ChunkStreamID:   m.ChunkStreamID,
		Timestamp:       m.DTS,
		Type:            base.MessageTypeAudio,
		MessageStreamID: m.MessageStreamID,
		Body:            body,
	}, nil
}

// CodecH264 is the FLV-tag video codec id used for H.264 payloads.
const CodecH264 = flvio.VIDEO_H264

// Video is a video message, FLV-tag-encoded per spec §4.E. Only H.264 is
// supported.
type Video struct {
	ChunkStreamID   uint32
	DTS             time.Duration
	MessageStreamID uint32
	IsKeyFrame      bool
	H264Type        uint8
	PTSDelta        time.Duration
	Payload         []byte
}

// Unmarshal implements Message.
func (m *Video) Unmarshal(raw *rawmessage.Message) error {
	m.ChunkStreamID = raw.ChunkStreamID
	m.DTS = raw.Timestamp
	m.MessageStreamID = raw.MessageStreamID

	if len(raw.Body) < 5 {
		return fmt.Errorf("invalid body size")
	}

	m.IsKeyFrame = (raw.Body[0] >> 4) == flvio.FRAME_KEY

	codec := raw.Body[0] & 0x0F
	if codec != flvio.VIDEO_H264 {
		return fmt.Errorf("unsupported video codec: %d", codec)
	}

	m.H264Type = raw.Body[1]

	tmp := uint32(raw.Body[2])<<16 | uint32(raw.Body[3])<<8 | uint32(raw.Body[4])
	m.PTSDelta = time.Duration(tmp) * time.Millisecond

	m.Payload = raw.Body[5:]
	return nil
}

// Marshal implements Message.
func (m Video) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 5+len(m.Payload))

	if m.IsKeyFrame {
		body[0] = flvio.FRAME_KEY << 4
	} else {
		body[0] = flvio.FRAME_INTER << 4
	}
	body[0] |= flvio.VIDEO_H264
	body[1] = m.H264Type

	tmp := uint32(m.PTSDelta / time.Millisecond)
	body[2] = uint8(tmp >> 16)
	body[3] = uint8(tmp >> 8)
	body[4] = uint8(tmp)

	copy(body[5:], m.Payload)

	return &rawmessage.Message{
		ChunkStreamID:   m.ChunkStreamID,
		Timestamp:       m.DTS,
		Type:            base.MessageTypeVideo,
		MessageStreamID: m.MessageStreamID,
		Body:            body,
	}, nil
}
