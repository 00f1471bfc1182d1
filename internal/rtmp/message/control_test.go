package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetChunkSizeRoundTrip(t *testing.T) {
	m := SetChunkSize{Value: 4096}
	raw, err := m.Marshal()
	require.NoError(t, err)

	var dec SetChunkSize
	require.NoError(t, dec.Unmarshal(raw))
	require.Equal(t, m.Value, dec.Value)
}

func TestSetWindowAckSizeRoundTrip(t *testing.T) {
	m := SetWindowAckSize{Value: 2500000}
	raw, err := m.Marshal()
	require.NoError(t, err)

	var dec SetWindowAckSize
	require.NoError(t, dec.Unmarshal(raw))
	require.Equal(t, m.Value, dec.Value)
}

func TestSetPeerBandwidthRoundTrip(t *testing.T) {
	m := SetPeerBandwidth{Value: 2500000, Type: 2}
	raw, err := m.Marshal()
	require.NoError(t, err)

	var dec SetPeerBandwidth
	require.NoError(t, dec.Unmarshal(raw))
	require.Equal(t, m.Value, dec.Value)
	require.Equal(t, m.Type, dec.Type)
}

func TestAcknowledgeRoundTrip(t *testing.T) {
	m := Acknowledge{Value: 123456}
	raw, err := m.Marshal()
	require.NoError(t, err)

	var dec Acknowledge
	require.NoError(t, dec.Unmarshal(raw))
	require.Equal(t, m.Value, dec.Value)
}

func TestControlMessagesRejectWrongChunkStreamID(t *testing.T) {
	m := SetChunkSize{Value: 1}
	raw, err := m.Marshal()
	require.NoError(t, err)
	raw.ChunkStreamID = 9

	var dec SetChunkSize
	require.Error(t, dec.Unmarshal(raw))
}
