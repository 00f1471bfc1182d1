package client

import (
	"testing"
	"time"

	"github.com/notedit/rtmp/format/flv/flvio"
	"github.com/stretchr/testify/require"

	"github.com/vireostream/corestream/internal/pkt"
	"github.com/vireostream/corestream/internal/rtmp/message"
)

func TestPacketToMessageVideo(t *testing.T) {
	p := pkt.New(4)
	p.AVType = pkt.AVTypeVideo
	p.CodecType = pkt.CodecH264
	p.DTS = 10 * time.Millisecond
	p.PTS = 15 * time.Millisecond
	p.IsKeyframe = true
	p.Payload = []byte{1, 2, 3}

	msg, err := packetToMessage(p, 7)
	require.NoError(t, err)

	v, ok := msg.(*message.Video)
	require.True(t, ok)
	require.Equal(t, uint32(7), v.MessageStreamID)
	require.True(t, v.IsKeyFrame)
	require.Equal(t, uint8(1), v.H264Type)
	require.Equal(t, 5*time.Millisecond, v.PTSDelta)
}

func TestPacketToMessageVideoSequenceHeader(t *testing.T) {
	p := pkt.New(0)
	p.AVType = pkt.AVTypeVideo
	p.CodecType = pkt.CodecH264
	p.IsSequenceHeader = true

	msg, err := packetToMessage(p, 1)
	require.NoError(t, err)
	require.Equal(t, uint8(h264TypeConfig), msg.(*message.Video).H264Type)
}

func TestPacketToMessageRejectsUnsupportedVideoCodec(t *testing.T) {
	p := pkt.New(0)
	p.AVType = pkt.AVTypeVideo
	p.CodecType = pkt.CodecH265

	_, err := packetToMessage(p, 1)
	require.Error(t, err)
}

func TestPacketToMessageAudio(t *testing.T) {
	p := pkt.New(0)
	p.AVType = pkt.AVTypeAudio
	p.CodecType = pkt.CodecAAC
	p.IsSequenceHeader = true

	msg, err := packetToMessage(p, 2)
	require.NoError(t, err)

	a, ok := msg.(*message.Audio)
	require.True(t, ok)
	require.Equal(t, message.AACPacketTypeConfig, a.AACType)
}

func TestPacketToMessageMetadataIsIgnored(t *testing.T) {
	p := pkt.New(0)
	p.AVType = pkt.AVTypeMetadata

	msg, err := packetToMessage(p, 1)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestResultIsSuccess(t *testing.T) {
	ok := &message.CommandAMF0{Arguments: []interface{}{nil, flvio.AMFMap{{K: "level", V: "status"}}}}
	require.True(t, resultIsSuccess(ok))

	bad := &message.CommandAMF0{Arguments: []interface{}{nil, flvio.AMFMap{{K: "level", V: "error"}}}}
	require.False(t, resultIsSuccess(bad))

	noArgs := &message.CommandAMF0{}
	require.True(t, resultIsSuccess(noArgs))
}

func TestWriteRejectsWrongRole(t *testing.T) {
	c := NewClient(nil, RolePlay, nil, nil)
	err := c.Write(pkt.New(0))
	require.Error(t, err)
}
