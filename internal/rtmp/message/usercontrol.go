package message

import (
	"encoding/binary"
	"fmt"

	"github.com/vireostream/corestream/internal/rtmp/base"
	"github.com/vireostream/corestream/internal/rtmp/rawmessage"
)

// UserControlType is the 2-byte event subtype of a UserControl message.
type UserControlType uint16

// User control event subtypes.
const (
	UserControlTypeStreamBegin      UserControlType = 0
	UserControlTypeStreamEOF        UserControlType = 1
	UserControlTypeStreamDry        UserControlType = 2
	UserControlTypeSetBufferLength  UserControlType = 3
	UserControlTypeStreamIsRecorded UserControlType = 4
	UserControlTypePingRequest      UserControlType = 6
	UserControlTypePingResponse     UserControlType = 7
)

func userControlRaw(body []byte) *rawmessage.Message {
	return &rawmessage.Message{
		ChunkStreamID: ControlChunkStreamID,
		Type:          base.MessageTypeUserControl,
		Body:          body,
	}
}

func checkUserControl(raw *rawmessage.Message, wantLen int) error {
	if raw.ChunkStreamID != ControlChunkStreamID {
		return fmt.Errorf("unexpected chunk stream ID")
	}
	if len(raw.Body) != wantLen {
		return fmt.Errorf("invalid body size")
	}
	return nil
}

// UserControlStreamBegin signals that a stream has started.
type UserControlStreamBegin struct {
	StreamID uint32
}

// Unmarshal implements Message.
func (m *UserControlStreamBegin) Unmarshal(raw *rawmessage.Message) error {
	if err := checkUserControl(raw, 6); err != nil {
		return err
	}
	m.StreamID = binary.BigEndian.Uint32(raw.Body[2:])
	return nil
}

// Marshal implements Message.
func (m UserControlStreamBegin) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body, uint16(UserControlTypeStreamBegin))
	binary.BigEndian.PutUint32(body[2:], m.StreamID)
	return userControlRaw(body), nil
}

// UserControlStreamEOF signals that a stream has ended.
type UserControlStreamEOF struct {
	StreamID uint32
}

// Unmarshal implements Message.
func (m *UserControlStreamEOF) Unmarshal(raw *rawmessage.Message) error {
	if err := checkUserControl(raw, 6); err != nil {
		return err
	}
	m.StreamID = binary.BigEndian.Uint32(raw.Body[2:])
	return nil
}

// Marshal implements Message.
func (m UserControlStreamEOF) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body, uint16(UserControlTypeStreamEOF))
	binary.BigEndian.PutUint32(body[2:], m.StreamID)
	return userControlRaw(body), nil
}

// UserControlStreamIsRecorded signals that a stream is a recorded asset.
type UserControlStreamIsRecorded struct {
	StreamID uint32
}

// Unmarshal implements Message.
func (m *UserControlStreamIsRecorded) Unmarshal(raw *rawmessage.Message) error {
	if err := checkUserControl(raw, 6); err != nil {
		return err
	}
	m.StreamID = binary.BigEndian.Uint32(raw.Body[2:])
	return nil
}

// Marshal implements Message.
func (m UserControlStreamIsRecorded) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body, uint16(UserControlTypeStreamIsRecorded))
	binary.BigEndian.PutUint32(body[2:], m.StreamID)
	return userControlRaw(body), nil
}

// UserControlPingRequest is a server-initiated keepalive probe.
type UserControlPingRequest struct {
	ServerTime uint32
}

// Unmarshal implements Message.
func (m *UserControlPingRequest) Unmarshal(raw *rawmessage.Message) error {
	if err := checkUserControl(raw, 6); err != nil {
		return err
	}
	m.ServerTime = binary.BigEndian.Uint32(raw.Body[2:])
	return nil
}

// Marshal implements Message.
func (m UserControlPingRequest) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body, uint16(UserControlTypePingRequest))
	binary.BigEndian.PutUint32(body[2:], m.ServerTime)
	return userControlRaw(body), nil
}

// UserControlPingResponse answers a PingRequest.
type UserControlPingResponse struct {
	ServerTime uint32
}

// Unmarshal implements Message.
func (m *UserControlPingResponse) Unmarshal(raw *rawmessage.Message) error {
	if err := checkUserControl(raw, 6); err != nil {
		return err
	}
	m.ServerTime = binary.BigEndian.Uint32(raw.Body[2:])
	return nil
}

// Marshal implements Message.
func (m UserControlPingResponse) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 6)
	binary.BigEndian.PutUint16(body, uint16(UserControlTypePingResponse))
	binary.BigEndian.PutUint32(body[2:], m.ServerTime)
	return userControlRaw(body), nil
}

// UserControlSetBufferLength tells the server how large a client's
// playback buffer is, in milliseconds.
type UserControlSetBufferLength struct {
	StreamID     uint32
	BufferLength uint32
}

// Unmarshal implements Message.
func (m *UserControlSetBufferLength) Unmarshal(raw *rawmessage.Message) error {
	if err := checkUserControl(raw, 10); err != nil {
		return err
	}
	m.StreamID = binary.BigEndian.Uint32(raw.Body[2:])
	m.BufferLength = binary.BigEndian.Uint32(raw.Body[6:])
	return nil
}

// Marshal implements Message.
func (m UserControlSetBufferLength) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 10)
	binary.BigEndian.PutUint16(body, uint16(UserControlTypeSetBufferLength))
	binary.BigEndian.PutUint32(body[2:], m.StreamID)
	binary.BigEndian.PutUint32(body[6:], m.BufferLength)
	return userControlRaw(body), nil
}

// UnmarshalUserControlType peeks a raw user-control message's event
// subtype, so a caller can decide which concrete type to unmarshal into.
func UnmarshalUserControlType(raw *rawmessage.Message) (UserControlType, error) {
	if raw.ChunkStreamID != ControlChunkStreamID {
		return 0, fmt.Errorf("unexpected chunk stream ID")
	}
	if len(raw.Body) < 2 {
		return 0, fmt.Errorf("invalid body size")
	}
	return UserControlType(binary.BigEndian.Uint16(raw.Body)), nil
}
