package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAudioAACRoundTrip(t *testing.T) {
	m := Audio{
		ChunkStreamID:   4,
		DTS:             10 * time.Millisecond,
		MessageStreamID: 1,
		Codec:           AudioCodecMPEG4Audio,
		Rate:            3,
		Depth:           1,
		Channels:        1,
		AACType:         AACPacketTypeAU,
		Payload:         []byte{0x01, 0x02, 0x03},
	}

	raw, err := m.Marshal()
	require.NoError(t, err)

	var dec Audio
	require.NoError(t, dec.Unmarshal(raw))
	require.Equal(t, m.Codec, dec.Codec)
	require.Equal(t, m.AACType, dec.AACType)
	require.Equal(t, m.Payload, dec.Payload)
}

func TestAudioRejectsUnsupportedCodec(t *testing.T) {
	raw, err := (Audio{Codec: AudioCodecMPEG4Audio, AACType: AACPacketTypeAU}).Marshal()
	require.NoError(t, err)
	raw.Body[0] = 5 << 4

	var dec Audio
	require.Error(t, dec.Unmarshal(raw))
}

func TestVideoRoundTrip(t *testing.T) {
	m := Video{
		ChunkStreamID:   4,
		DTS:             20 * time.Millisecond,
		MessageStreamID: 1,
		IsKeyFrame:      true,
		H264Type:        1,
		PTSDelta:        5 * time.Millisecond,
		Payload:         []byte{0xAA, 0xBB},
	}

	raw, err := m.Marshal()
	require.NoError(t, err)

	var dec Video
	require.NoError(t, dec.Unmarshal(raw))
	require.True(t, dec.IsKeyFrame)
	require.Equal(t, m.H264Type, dec.H264Type)
	require.Equal(t, m.PTSDelta, dec.PTSDelta)
	require.Equal(t, m.Payload, dec.Payload)
}

func TestVideoRejectsUnsupportedCodec(t *testing.T) {
	raw, err := (Video{Payload: []byte{0x00}}).Marshal()
	require.NoError(t, err)
	raw.Body[0] = (raw.Body[0] & 0xF0) | 0x02

	var dec Video
	require.Error(t, dec.Unmarshal(raw))
}
