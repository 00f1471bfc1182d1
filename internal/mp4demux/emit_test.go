package mp4demux

import (
	"bytes"
	"testing"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/stretchr/testify/require"

	"github.com/vireostream/corestream/internal/h264"
	"github.com/vireostream/corestream/internal/h264conf"
	"github.com/vireostream/corestream/internal/mp4"
	"github.com/vireostream/corestream/internal/pkt"
)

type capturingSinker struct {
	name string
	got  []*pkt.Packet
}

func (s *capturingSinker) StreamerName() string { return s.name }

func (s *capturingSinker) SourceData(p *pkt.Packet) error {
	cp := &pkt.Packet{}
	cp.CopyProperties(p)
	cp.Payload = append([]byte(nil), p.Payload...)
	s.got = append(s.got, cp)
	return nil
}

func newTestSource(t *testing.T) (*Source, *capturingSinker) {
	t.Helper()
	src := NewSource("mp4")
	sink := &capturingSinker{name: "sink"}
	src.AddSinker(sink)
	return src, sink
}

func TestEmitVideoSampleSplitsAndClassifiesH264(t *testing.T) {
	src, sink := newTestSource(t)

	sps := []byte{0x67, 0xaa, 0xbb, 0xcc}
	pps := []byte{0x68, 0xdd}
	idr := []byte{0x65, 0x01, 0x02}

	buf, err := h264.EncodeAVCC([][]byte{sps, pps, idr})
	require.NoError(t, err)

	err = src.emitVideoSample(buf, scheduledSample{
		codecType: pkt.CodecH264,
		dtsUs:     1000,
		ptsUs:     1000,
	})
	require.NoError(t, err)
	require.Len(t, sink.got, 3)

	require.True(t, sink.got[0].IsSequenceHeader)
	require.False(t, sink.got[0].IsKeyframe)
	require.True(t, sink.got[1].IsSequenceHeader)
	require.False(t, sink.got[2].IsSequenceHeader)
	require.True(t, sink.got[2].IsKeyframe)

	for _, p := range sink.got {
		require.Equal(t, pkt.AVTypeVideo, p.AVType)
		require.True(t, bytes.HasPrefix(p.Payload, []byte{0x00, 0x00, 0x00, 0x01}))
	}
}

func TestEmitVideoSampleRejectsOversizeNALU(t *testing.T) {
	src, _ := newTestSource(t)

	huge := make([]byte, maxNALULen+1)
	buf, err := h264.EncodeAVCC([][]byte{huge})
	require.NoError(t, err)

	err = src.emitVideoSample(buf, scheduledSample{codecType: pkt.CodecH264})
	require.ErrorIs(t, err, mp4.ErrMalformed)
}

func TestEmitVideoSampleRejectsMalformedAVCC(t *testing.T) {
	src, _ := newTestSource(t)

	err := src.emitVideoSample([]byte{0x00, 0x00, 0x00, 0xff}, scheduledSample{codecType: pkt.CodecH264})
	require.Error(t, err)
}

func TestEmitSamplesAudioOrderAndTiming(t *testing.T) {
	src, sink := newTestSource(t)

	data := []byte{0xAA, 0xBB, 0xCC}
	r := bytes.NewReader(data)

	schedule := []scheduledSample{
		{avType: pkt.AVTypeAudio, codecType: pkt.CodecAAC, fileOffset: 0, size: 3, dtsUs: 500, ptsUs: 500, isKey: true},
	}

	err := src.emitSamples(r, schedule)
	require.NoError(t, err)
	require.Len(t, sink.got, 1)
	require.Equal(t, data, sink.got[0].Payload)
	require.True(t, sink.got[0].IsKeyframe)
	require.Equal(t, int64(500), sink.got[0].DTS.Microseconds())
}

func TestEmitSamplesShortReadFails(t *testing.T) {
	src, _ := newTestSource(t)

	r := bytes.NewReader([]byte{0x01, 0x02})
	schedule := []scheduledSample{
		{avType: pkt.AVTypeAudio, codecType: pkt.CodecAAC, fileOffset: 0, size: 10},
	}

	err := src.emitSamples(r, schedule)
	require.ErrorIs(t, err, mp4.ErrShortRead)
}

func TestEmitCodecConfigsH264(t *testing.T) {
	src, sink := newTestSource(t)

	sps := []byte{0x67, 0x42, 0x00, 0x1f, 0x00}
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	conf := h264conf.Conf{SPS: sps, PPS: pps}
	raw, err := conf.Marshal()
	require.NoError(t, err)

	movie := &mp4.MovInfo{
		Tracks: []*mp4.TrackInfo{
			{CodecType: pkt.CodecH264, SequenceData: raw},
		},
	}

	require.NoError(t, src.emitCodecConfigs(movie))
	require.Len(t, sink.got, 2)
	require.True(t, sink.got[0].IsSequenceHeader)
	require.True(t, sink.got[1].IsSequenceHeader)
	require.Equal(t, pkt.CodecH264, sink.got[0].CodecType)
}

func TestEmitCodecConfigsAAC(t *testing.T) {
	src, sink := newTestSource(t)

	asc := mpeg4audio.Config{Type: mpeg4audio.ObjectTypeAACLC, SampleRate: 44100, ChannelCount: 2}
	raw, err := asc.Marshal()
	require.NoError(t, err)

	movie := &mp4.MovInfo{
		Tracks: []*mp4.TrackInfo{
			{CodecType: pkt.CodecAAC, SequenceData: raw},
		},
	}

	require.NoError(t, src.emitCodecConfigs(movie))
	require.Len(t, sink.got, 1)
	require.True(t, sink.got[0].IsSequenceHeader)
	require.Equal(t, pkt.AVTypeAudio, sink.got[0].AVType)
	require.Equal(t, raw, sink.got[0].Payload)
}

func TestEmitCodecConfigsRejectsUnsupportedCodec(t *testing.T) {
	src, _ := newTestSource(t)

	movie := &mp4.MovInfo{
		Tracks: []*mp4.TrackInfo{
			{CodecType: pkt.CodecOpus, SequenceData: []byte{0x00}},
		},
	}

	err := src.emitCodecConfigs(movie)
	require.ErrorIs(t, err, mp4.ErrCodecUnsupported)
}

func TestSourceDataFanoutsDirectly(t *testing.T) {
	src, sink := newTestSource(t)

	p := pkt.New(0)
	p.AVType = pkt.AVTypeMetadata
	require.NoError(t, src.SourceData(p))
	require.Len(t, sink.got, 1)
}

func TestAddOptionUnknownKeyFails(t *testing.T) {
	src := NewSource("mp4")
	err := src.AddOption("bogus", "true")
	require.Error(t, err)
}

func TestAddOptionRateLimitAndBoxDetail(t *testing.T) {
	src := NewSource("mp4")
	require.NoError(t, src.AddOption("re", "true"))
	require.True(t, src.rateLimit)
	require.NoError(t, src.AddOption("box_detail", "true"))
	require.True(t, src.boxDetail)
	require.Error(t, src.AddOption("re", "bad"))
}
