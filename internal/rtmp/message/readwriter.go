package message

import (
	"fmt"

	"github.com/vireostream/corestream/internal/rtmp/base"
	"github.com/vireostream/corestream/internal/rtmp/bytecounter"
	"github.com/vireostream/corestream/internal/rtmp/rawmessage"
)

// decode picks the concrete Message type for a reassembled raw message and
// unmarshals into it.
func decode(raw *rawmessage.Message) (Message, error) {
	var msg Message

	switch raw.Type {
	case base.MessageTypeSetChunkSize:
		msg = &SetChunkSize{}

	case base.MessageTypeAbortMessage:
		return nil, fmt.Errorf("abort message not supported")

	case base.MessageTypeAcknowledge:
		msg = &Acknowledge{}

	case base.MessageTypeUserControl:
		typ, err := UnmarshalUserControlType(raw)
		if err != nil {
			return nil, err
		}
		switch typ {
		case UserControlTypeStreamBegin:
			msg = &UserControlStreamBegin{}
		case UserControlTypeStreamEOF:
			msg = &UserControlStreamEOF{}
		case UserControlTypeStreamIsRecorded:
			msg = &UserControlStreamIsRecorded{}
		case UserControlTypePingRequest:
			msg = &UserControlPingRequest{}
		case UserControlTypePingResponse:
			msg = &UserControlPingResponse{}
		case UserControlTypeSetBufferLength:
			msg = &UserControlSetBufferLength{}
		default:
			return nil, fmt.Errorf("unsupported user control type: %d", typ)
		}

	case base.MessageTypeSetWindowAckSize:
		msg = &SetWindowAckSize{}

	case base.MessageTypeSetPeerBandwidth:
		msg = &SetPeerBandwidth{}

	case base.MessageTypeAudio:
		msg = &Audio{}

	case base.MessageTypeVideo:
		msg = &Video{}

	case base.MessageTypeCommandAMF0:
		msg = &CommandAMF0{}

	case base.MessageTypeDataAMF0:
		msg = &DataAMF0{}

	case base.MessageTypeDataAMF3, base.MessageTypeCommandAMF3:
		msg = &Unknown{}

	default:
		return nil, fmt.Errorf("unsupported message type: %d", raw.Type)
	}

	if err := msg.Unmarshal(raw); err != nil {
		return nil, err
	}
	return msg, nil
}

// Unknown is a message type the client tolerates but does not decode
// (the AMF3 data/command variants). It carries the raw reassembled
// message for callers that want to inspect it; Reader.Read never returns
// one, skipping past it to the next message instead.
type Unknown struct {
	Type base.MessageType
	Raw  *rawmessage.Message
}

// Unmarshal implements Message.
func (m *Unknown) Unmarshal(raw *rawmessage.Message) error {
	m.Type = raw.Type
	m.Raw = raw
	return nil
}

// Marshal implements Message.
func (m *Unknown) Marshal() (*rawmessage.Message, error) {
	return m.Raw, nil
}

// Reader reads and decodes typed RTMP messages.
type Reader struct {
	r *rawmessage.Reader
}

// NewReader allocates a Reader. onAckNeeded is invoked once the read
// byte count since the last acknowledge exceeds the negotiated window.
func NewReader(bcr *bytecounter.Reader, onAckNeeded func(uint32) error) *Reader {
	return &Reader{r: rawmessage.NewReader(bcr, onAckNeeded)}
}

// Read reads the next message, applying any chunk-size/window-size
// negotiation messages to the reader's own state as they arrive. AMF3
// data/command messages are tolerated but not decoded: they are consumed
// and skipped rather than returned or treated as an error.
func (r *Reader) Read() (Message, error) {
	for {
		raw, err := r.r.Read()
		if err != nil {
			return nil, err
		}

		msg, err := decode(raw)
		if err != nil {
			return nil, err
		}

		switch tmsg := msg.(type) {
		case *SetChunkSize:
			r.r.SetChunkSize(tmsg.Value)
		case *SetWindowAckSize:
			r.r.SetWindowAckSize(tmsg.Value)
		case *Unknown:
			continue
		}

		return msg, nil
	}
}

// Writer encodes and writes typed RTMP messages.
type Writer struct {
	w *rawmessage.Writer
}

// NewWriter allocates a Writer.
func NewWriter(bcw *bytecounter.Writer, checkAcknowledge bool) *Writer {
	return &Writer{w: rawmessage.NewWriter(bcw, checkAcknowledge)}
}

// SetAcknowledgeValue records the last acknowledge sequence number seen
// from the peer.
func (w *Writer) SetAcknowledgeValue(v uint32) {
	w.w.SetAcknowledgeValue(v)
}

// Write marshals and writes msg, applying any chunk-size/window-size
// negotiation messages to the writer's own state as they're sent.
func (w *Writer) Write(msg Message) error {
	raw, err := msg.Marshal()
	if err != nil {
		return err
	}

	if err := w.w.Write(raw); err != nil {
		return err
	}

	switch tmsg := msg.(type) {
	case *SetChunkSize:
		w.w.SetChunkSize(tmsg.Value)
	case *SetWindowAckSize:
		w.w.SetWindowAckSize(tmsg.Value)
	}

	return nil
}

// ReadWriter combines a Reader and a Writer over the same connection.
type ReadWriter struct {
	*Reader
	*Writer
}

// NewReadWriter allocates a ReadWriter over bc, a byte-counting wrapper of
// the underlying net.Conn. onAckNeeded fires when an Acknowledge is due.
func NewReadWriter(bc *bytecounter.ReadWriter, onAckNeeded func(uint32) error) *ReadWriter {
	return &ReadWriter{
		Reader: NewReader(bc.Reader, onAckNeeded),
		Writer: NewWriter(bc.Writer, true),
	}
}
