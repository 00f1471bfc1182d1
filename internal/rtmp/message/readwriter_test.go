package message

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vireostream/corestream/internal/rtmp/bytecounter"
)

func TestReadWriterNegotiatesChunkSize(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bytecounter.NewWriter(&buf), false)

	require.NoError(t, w.Write(&SetChunkSize{Value: 4096}))
	require.NoError(t, w.Write(&Video{ChunkStreamID: 4, MessageStreamID: 1, Payload: bytes.Repeat([]byte{0x09}, 300)}))

	r := NewReader(bytecounter.NewReader(&buf), func(uint32) error { return nil })

	m1, err := r.Read()
	require.NoError(t, err)
	_, ok := m1.(*SetChunkSize)
	require.True(t, ok)

	m2, err := r.Read()
	require.NoError(t, err)
	video, ok := m2.(*Video)
	require.True(t, ok)
	require.Len(t, video.Payload, 300)
}

func TestReadWriterCommandDialogue(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bytecounter.NewWriter(&buf), false)

	cmd := &CommandAMF0{ChunkStreamID: 3, Name: "connect", CommandID: 1, Arguments: []interface{}{nil}}
	require.NoError(t, w.Write(cmd))

	r := NewReader(bytecounter.NewReader(&buf), func(uint32) error { return nil })
	got, err := r.Read()
	require.NoError(t, err)

	gotCmd, ok := got.(*CommandAMF0)
	require.True(t, ok)
	require.Equal(t, "connect", gotCmd.Name)
	require.Equal(t, 1, gotCmd.CommandID)
}

func TestReadWriterSkipsAMF3Data(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bytecounter.NewWriter(&buf), false)

	raw, err := (&DataAMF0{Payload: []interface{}{"ignored"}}).Marshal()
	require.NoError(t, err)
	raw.Type = 15 // MessageTypeDataAMF3
	raw.ChunkStreamID = 5
	require.NoError(t, w.w.Write(raw))

	require.NoError(t, w.Write(&Video{ChunkStreamID: 4, MessageStreamID: 1, Payload: []byte{0x01}}))

	r := NewReader(bytecounter.NewReader(&buf), func(uint32) error { return nil })
	got, err := r.Read()
	require.NoError(t, err)
	_, ok := got.(*Video)
	require.True(t, ok)
}

func TestReadWriterUnsupportedTypeErrors(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(bytecounter.NewWriter(&buf), false)
	require.NoError(t, w.Write(&SetChunkSize{Value: 1}))

	// corrupt the encoded message type byte (offset 7 in a type-0 chunk:
	// 1 basic header byte + 3 timestamp + 3 body length).
	raw := buf.Bytes()
	raw[7] = 2 // MessageTypeAbortMessage

	r := NewReader(bytecounter.NewReader(bytes.NewReader(raw)), func(uint32) error { return nil })
	_, err := r.Read()
	require.Error(t, err)
}
