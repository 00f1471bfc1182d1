package message

import (
	"fmt"

	"github.com/notedit/rtmp/format/flv/flvio"

	"github.com/vireostream/corestream/internal/rtmp/base"
	"github.com/vireostream/corestream/internal/rtmp/rawmessage"
)

// CommandAMF0 is an AMF0 command message: the dialogue vehicle for
// connect/createStream/play/publish and the server's onStatus/_result
// replies.
type CommandAMF0 struct {
	ChunkStreamID   uint32
	MessageStreamID uint32
	Name            string
	CommandID       int
	Arguments       []interface{}
}

// Unmarshal implements Message.
func (m *CommandAMF0) Unmarshal(raw *rawmessage.Message) error {
	m.ChunkStreamID = raw.ChunkStreamID
	m.MessageStreamID = raw.MessageStreamID

	vals, err := flvio.ParseAMFVals(raw.Body, false)
	if err != nil {
		return err
	}
	if len(vals) < 2 {
		return fmt.Errorf("invalid command payload")
	}

	name, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("invalid command payload: name")
	}
	m.Name = name

	id, ok := vals[1].(float64)
	if !ok {
		return fmt.Errorf("invalid command payload: command ID")
	}
	m.CommandID = int(id)

	m.Arguments = vals[2:]
	return nil
}

// Marshal implements Message.
func (m CommandAMF0) Marshal() (*rawmessage.Message, error) {
	vals := append([]interface{}{m.Name, float64(m.CommandID)}, m.Arguments...)
	return &rawmessage.Message{
		ChunkStreamID:   m.ChunkStreamID,
		Type:            base.MessageTypeCommandAMF0,
		MessageStreamID: m.MessageStreamID,
		Body:            flvio.FillAMF0ValsMalloc(vals),
	}, nil
}

// DataAMF0 is an AMF0 data message, used for onMetaData and similar
// out-of-band metadata notifications.
type DataAMF0 struct {
	ChunkStreamID   uint32
	MessageStreamID uint32
	Payload         []interface{}
}

// Unmarshal implements Message.
func (m *DataAMF0) Unmarshal(raw *rawmessage.Message) error {
	m.ChunkStreamID = raw.ChunkStreamID
	m.MessageStreamID = raw.MessageStreamID

	vals, err := flvio.ParseAMFVals(raw.Body, false)
	if err != nil {
		return err
	}
	m.Payload = vals
	return nil
}

// Marshal implements Message.
func (m DataAMF0) Marshal() (*rawmessage.Message, error) {
	return &rawmessage.Message{
		ChunkStreamID:   m.ChunkStreamID,
		Type:            base.MessageTypeDataAMF0,
		MessageStreamID: m.MessageStreamID,
		Body:            flvio.FillAMF0ValsMalloc(m.Payload),
	}, nil
}

// FlattenAMFMap converts an AMF0 command-object argument into a flat
// string map, for callers that just want human-readable event metadata
// rather than the full typed AMF value tree.
func FlattenAMFMap(v interface{}) map[string]string {
	m, ok := v.(flvio.AMFMap)
	if !ok {
		return nil
	}

	out := make(map[string]string, len(m))
	for _, kv := range m {
		out[kv.K] = fmt.Sprint(kv.V)
	}
	return out
}
