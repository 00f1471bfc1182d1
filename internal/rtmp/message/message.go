// Package message types and encodes/decodes the RTMP protocol-control and
// command messages the client state machine exchanges with a server:
// chunk-size/window/bandwidth negotiation, acknowledge, user control
// events, AMF0 command dialogue, and audio/video/data payloads.
package message

import (
	"github.com/vireostream/corestream/internal/rtmp/base"
	"github.com/vireostream/corestream/internal/rtmp/rawmessage"
)

// Message is a typed RTMP message.
type Message interface {
	Unmarshal(*rawmessage.Message) error
	Marshal() (*rawmessage.Message, error)
}

// ControlChunkStreamID is the chunk stream ID used for protocol control
// messages and command dialogue.
const ControlChunkStreamID = base.ControlChunkStreamID
