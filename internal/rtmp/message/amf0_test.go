package message

import (
	"testing"

	"github.com/notedit/rtmp/format/flv/flvio"
	"github.com/stretchr/testify/require"
)

func TestCommandAMF0RoundTrip(t *testing.T) {
	m := CommandAMF0{
		ChunkStreamID:   3,
		MessageStreamID: 0,
		Name:            "connect",
		CommandID:       1,
		Arguments: []interface{}{
			flvio.AMFMap{
				{K: "app", V: "live"},
				{K: "tcUrl", V: "rtmp://example.com/live"},
			},
		},
	}

	raw, err := m.Marshal()
	require.NoError(t, err)

	var dec CommandAMF0
	require.NoError(t, dec.Unmarshal(raw))
	require.Equal(t, m.Name, dec.Name)
	require.Equal(t, m.CommandID, dec.CommandID)
	require.Len(t, dec.Arguments, 1)

	flat := FlattenAMFMap(dec.Arguments[0])
	require.Equal(t, "live", flat["app"])
	require.Equal(t, "rtmp://example.com/live", flat["tcUrl"])
}

func TestCommandAMF0RejectsShortPayload(t *testing.T) {
	raw, err := (&DataAMF0{Payload: []interface{}{"onlyone"}}).Marshal()
	require.NoError(t, err)
	raw.Type = 0

	var dec CommandAMF0
	require.Error(t, dec.Unmarshal(raw))
}

func TestDataAMF0RoundTrip(t *testing.T) {
	m := DataAMF0{
		ChunkStreamID:   4,
		MessageStreamID: 1,
		Payload: []interface{}{
			"onMetaData",
			flvio.AMFMap{
				{K: "duration", V: float64(0)},
			},
		},
	}

	raw, err := m.Marshal()
	require.NoError(t, err)

	var dec DataAMF0
	require.NoError(t, dec.Unmarshal(raw))
	require.Equal(t, m.Payload[0], dec.Payload[0])
}

func TestFlattenAMFMapNonMapReturnsNil(t *testing.T) {
	require.Nil(t, FlattenAMFMap("not a map"))
}
