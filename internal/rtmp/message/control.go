package message

import (
	"encoding/binary"
	"fmt"

	"github.com/vireostream/corestream/internal/rtmp/base"
	"github.com/vireostream/corestream/internal/rtmp/rawmessage"
)

// SetChunkSize negotiates the maximum chunk body size.
type SetChunkSize struct {
	Value uint32
}

// Unmarshal implements Message.
func (m *SetChunkSize) Unmarshal(raw *rawmessage.Message) error {
	if raw.ChunkStreamID != ControlChunkStreamID {
		return fmt.Errorf("unexpected chunk stream ID")
	}
	if len(raw.Body) != 4 {
		return fmt.Errorf("unexpected body size")
	}
	m.Value = binary.BigEndian.Uint32(raw.Body)
	return nil
}

// Marshal implements Message.
func (m SetChunkSize) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, m.Value)
	return &rawmessage.Message{
		ChunkStreamID: ControlChunkStreamID,
		Type:          base.MessageTypeSetChunkSize,
		Body:          body,
	}, nil
}

// SetWindowAckSize tells the peer how many bytes to send before expecting
// an Acknowledge back.
type SetWindowAckSize struct {
	Value uint32
}

// Unmarshal implements Message.
func (m *SetWindowAckSize) Unmarshal(raw *rawmessage.Message) error {
	if raw.ChunkStreamID != ControlChunkStreamID {
		return fmt.Errorf("unexpected chunk stream ID")
	}
	if len(raw.Body) != 4 {
		return fmt.Errorf("unexpected body size")
	}
	m.Value = binary.BigEndian.Uint32(raw.Body)
	return nil
}

// Marshal implements Message.
func (m SetWindowAckSize) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, m.Value)
	return &rawmessage.Message{
		ChunkStreamID: ControlChunkStreamID,
		Type:          base.MessageTypeSetWindowAckSize,
		Body:          body,
	}, nil
}

// SetPeerBandwidth caps how fast the peer may send.
type SetPeerBandwidth struct {
	Value uint32
	Type  byte
}

// Unmarshal implements Message.
func (m *SetPeerBandwidth) Unmarshal(raw *rawmessage.Message) error {
	if raw.ChunkStreamID != ControlChunkStreamID {
		return fmt.Errorf("unexpected chunk stream ID")
	}
	if len(raw.Body) != 5 {
		return fmt.Errorf("unexpected body size")
	}
	m.Value = binary.BigEndian.Uint32(raw.Body)
	m.Type = raw.Body[4]
	return nil
}

// Marshal implements Message.
func (m SetPeerBandwidth) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 5)
	binary.BigEndian.PutUint32(body, m.Value)
	body[4] = m.Type
	return &rawmessage.Message{
		ChunkStreamID: ControlChunkStreamID,
		Type:          base.MessageTypeSetPeerBandwidth,
		Body:          body,
	}, nil
}

// Acknowledge reports how many bytes have been received so far.
type Acknowledge struct {
	Value uint32
}

// Unmarshal implements Message.
func (m *Acknowledge) Unmarshal(raw *rawmessage.Message) error {
	if raw.ChunkStreamID != ControlChunkStreamID {
		return fmt.Errorf("unexpected chunk stream ID")
	}
	if len(raw.Body) != 4 {
		return fmt.Errorf("unexpected body size")
	}
	m.Value = binary.BigEndian.Uint32(raw.Body)
	return nil
}

// Marshal implements Message.
func (m Acknowledge) Marshal() (*rawmessage.Message, error) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, m.Value)
	return &rawmessage.Message{
		ChunkStreamID: ControlChunkStreamID,
		Type:          base.MessageTypeAcknowledge,
		Body:          body,
	}, nil
}
