package mp4demux

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vireostream/corestream/internal/mp4"
	"github.com/vireostream/corestream/internal/pkt"
)

func TestExpandStts(t *testing.T) {
	out := expandStts([]mp4.SttsEntry{
		{Count: 2, Delta: 1000},
		{Count: 1, Delta: 500},
	})
	require.Equal(t, []uint32{1000, 1000, 500}, out)
}

func TestExpandCtts(t *testing.T) {
	out := expandCtts([]mp4.CttsEntry{{Count: 2, Offset: 200}}, 4)
	require.Equal(t, []int32{200, 200, 0, 0}, out)
}

func TestExpandCttsEmpty(t *testing.T) {
	out := expandCtts(nil, 3)
	require.Equal(t, []int32{0, 0, 0}, out)
}

func TestIframeSet(t *testing.T) {
	set := iframeSet([]uint32{1, 4})
	require.True(t, set[1])
	require.True(t, set[4])
	require.False(t, set[2])
}

// TestBuildTrackScheduleChunkOffsetCursor checks that the per-sample file
// offset advances within a chunk by each preceding sample's size and
// resets to the chunk's own base offset at a chunk boundary, rather than
// drifting across chunks.
func TestBuildTrackScheduleChunkOffsetCursor(t *testing.T) {
	tr := &mp4.TrackInfo{
		Timescale:   1000,
		HandlerType: "vide",
		CodecType:   pkt.CodecH264,
		SampleEntries: []mp4.SttsEntry{
			{Count: 4, Delta: 100},
		},
		ChunkSamples: []mp4.StscEntry{
			{FirstChunk: 1, SamplesPerChunk: 2, SampleDescIndex: 1},
		},
		SampleSizes:  []uint32{10, 20, 30, 40},
		ChunkOffsets: []uint64{1000, 2000},
	}

	sched, err := buildTrackSchedule(tr)
	require.NoError(t, err)
	require.Len(t, sched, 4)

	require.Equal(t, uint64(1000), sched[0].fileOffset)
	require.Equal(t, uint64(1010), sched[1].fileOffset) // second sample of chunk 1: base + first size
	require.Equal(t, uint64(2000), sched[2].fileOffset) // resets to chunk 2's base, not 1010+20
	require.Equal(t, uint64(2030), sched[3].fileOffset)
}

func TestBuildTrackScheduleDTS(t *testing.T) {
	tr := &mp4.TrackInfo{
		Timescale:   1000,
		HandlerType: "vide",
		CodecType:   pkt.CodecH264,
		SampleEntries: []mp4.SttsEntry{
			{Count: 3, Delta: 100},
		},
		ChunkSamples: []mp4.StscEntry{
			{FirstChunk: 1, SamplesPerChunk: 3, SampleDescIndex: 1},
		},
		SampleSizes:  []uint32{10, 10, 10},
		ChunkOffsets: []uint64{0},
	}

	sched, err := buildTrackSchedule(tr)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 100_000, 200_000}, []int64{sched[0].dtsUs, sched[1].dtsUs, sched[2].dtsUs})
}

func TestBuildTrackScheduleNoStssTreatsEveryoneAsKey(t *testing.T) {
	tr := &mp4.TrackInfo{
		Timescale:   1000,
		HandlerType: "soun",
		CodecType:   pkt.CodecAAC,
		SampleEntries: []mp4.SttsEntry{
			{Count: 2, Delta: 50},
		},
		ChunkSamples: []mp4.StscEntry{
			{FirstChunk: 1, SamplesPerChunk: 2, SampleDescIndex: 1},
		},
		SampleSizes:  []uint32{5, 5},
		ChunkOffsets: []uint64{0},
		HasStss:      false,
	}

	sched, err := buildTrackSchedule(tr)
	require.NoError(t, err)
	require.True(t, sched[0].isKey)
	require.True(t, sched[1].isKey)
}

func TestBuildTrackScheduleRespectsStss(t *testing.T) {
	tr := &mp4.TrackInfo{
		Timescale:   1000,
		HandlerType: "vide",
		CodecType:   pkt.CodecH264,
		SampleEntries: []mp4.SttsEntry{
			{Count: 3, Delta: 100},
		},
		ChunkSamples: []mp4.StscEntry{
			{FirstChunk: 1, SamplesPerChunk: 3, SampleDescIndex: 1},
		},
		SampleSizes:   []uint32{10, 10, 10},
		ChunkOffsets:  []uint64{0},
		IframeSamples: []uint32{1, 3},
		HasStss:       true,
	}

	sched, err := buildTrackSchedule(tr)
	require.NoError(t, err)
	require.True(t, sched[0].isKey)
	require.False(t, sched[1].isKey)
	require.True(t, sched[2].isKey)
}

func TestBuildScheduleMergesTracksByDTS(t *testing.T) {
	movie := &mp4.MovInfo{
		Tracks: []*mp4.TrackInfo{
			{
				Timescale:     1000,
				HandlerType:   "vide",
				CodecType:     pkt.CodecH264,
				SampleEntries: []mp4.SttsEntry{{Count: 2, Delta: 100}},
				ChunkSamples:  []mp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: 2, SampleDescIndex: 1}},
				SampleSizes:   []uint32{10, 10},
				ChunkOffsets:  []uint64{0},
			},
			{
				Timescale:     1000,
				HandlerType:   "soun",
				CodecType:     pkt.CodecAAC,
				SampleEntries: []mp4.SttsEntry{{Count: 2, Delta: 50}},
				ChunkSamples:  []mp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: 2, SampleDescIndex: 1}},
				SampleSizes:   []uint32{5, 5},
				ChunkOffsets:  []uint64{1000},
			},
		},
	}

	sched, err := buildSchedule(movie)
	require.NoError(t, err)
	require.Len(t, sched, 4)
	for i := 1; i < len(sched); i++ {
		require.LessOrEqual(t, sched[i-1].dtsUs, sched[i].dtsUs)
	}
}

func TestAlignTrackBasesShiftsLaterTrack(t *testing.T) {
	movie := &mp4.MovInfo{
		Tracks: []*mp4.TrackInfo{
			{HandlerType: "vide"},
			{HandlerType: "soun"},
		},
	}
	perTrack := [][]scheduledSample{
		{{dtsUs: 0}, {dtsUs: 100_000}},
		{{dtsUs: 50_000}, {dtsUs: 150_000}},
	}

	alignTrackBases(movie, perTrack)

	// audio is the later-indexed track, so it gets shifted to sit one
	// audio-sample-duration after the video track's first DTS.
	require.Equal(t, int64(100_000), perTrack[1][0].dtsUs)
	require.Equal(t, int64(200_000), perTrack[1][1].dtsUs)
	require.Equal(t, int64(0), perTrack[0][0].dtsUs)
}

func TestAlignTrackBasesNoopWhenAligned(t *testing.T) {
	movie := &mp4.MovInfo{
		Tracks: []*mp4.TrackInfo{
			{HandlerType: "vide"},
			{HandlerType: "soun"},
		},
	}
	perTrack := [][]scheduledSample{
		{{dtsUs: 0}},
		{{dtsUs: 0}},
	}

	alignTrackBases(movie, perTrack)
	require.Equal(t, int64(0), perTrack[0][0].dtsUs)
	require.Equal(t, int64(0), perTrack[1][0].dtsUs)
}
