// Package mp4demux builds a DTS-ordered sample schedule out of a parsed
// MP4 movie and emits it as elementary-stream Packets through the
// streamer substrate (spec §4.D). It has no network lifecycle of its
// own: unlike the RTMP client, an MP4 file is read once, front to back,
// against a caller-supplied random-access reader, so there is no
// StartNetwork/StopNetwork pair to implement (§4.B: "start_network is
// optional").
package mp4demux

import (
	"fmt"
	"io"
	"sort"
	"time"

	mch265 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"

	"github.com/vireostream/corestream/internal/h264"
	"github.com/vireostream/corestream/internal/h264conf"
	"github.com/vireostream/corestream/internal/h265"
	"github.com/vireostream/corestream/internal/logger"
	"github.com/vireostream/corestream/internal/mp4"
	"github.com/vireostream/corestream/internal/pkt"
	"github.com/vireostream/corestream/internal/streamer"
)

// maxNALULen bounds an individual AVCC NALU length against corruption
// (spec §4.D.3: "reject any length > 10,000,000").
const maxNALULen = 10_000_000

// Reader is what Demux needs to both walk the box tree and pull sample
// bytes at arbitrary file offsets.
type Reader interface {
	io.Reader
	io.ReaderAt
}

// Source is the MP4 demux engine, a source streamer whose sinkers
// receive codec-config and elementary-stream Packets in DTS order.
type Source struct {
	*streamer.Base

	rateLimit bool
	boxDetail bool
}

// NewSource allocates an MP4 demux source streamer.
func NewSource(name string) *Source {
	s := &Source{}
	s.Base = streamer.NewBase(name, map[string]streamer.OptionValidator{
		"re":         s.setRateLimit,
		"box_detail": s.setBoxDetail,
	})
	return s
}

func (s *Source) setRateLimit(v string) error {
	switch v {
	case "true":
		s.rateLimit = true
	case "false", "":
		s.rateLimit = false
	default:
		return fmt.Errorf("invalid re value %q", v)
	}
	return nil
}

func (s *Source) setBoxDetail(v string) error {
	switch v {
	case "true":
		s.boxDetail = true
	case "false", "":
		s.boxDetail = false
	default:
		return fmt.Errorf("invalid box_detail value %q", v)
	}
	return nil
}

// SourceData implements streamer.Streamer. The MP4 source never
// receives packets from upstream in practice (it originates them), but
// every node in the substrate carries the full capability set (§4.B).
func (s *Source) SourceData(p *pkt.Packet) error {
	return s.Fanout(p)
}

// Demux parses r's box tree, optionally reports it box by box, emits
// every track's codec-config packets, then walks the DTS-ordered
// sample schedule emitting elementary-stream packets (spec §4.D, three
// phases in order).
func (s *Source) Demux(r Reader) error {
	tree, err := mp4.Parse(r)
	if err != nil {
		return err
	}

	if s.boxDetail {
		if err := s.emitBoxDetail(tree); err != nil {
			return err
		}
	}

	movie, err := tree.Movie()
	if err != nil {
		return err
	}

	s.Logger().Log(logger.Debug, "parsed movie: %d track(s), duration %dus", len(movie.Tracks), movie.DurationUs)

	if err := s.emitCodecConfigs(movie); err != nil {
		return err
	}

	schedule, err := buildSchedule(movie)
	if err != nil {
		return err
	}

	return s.emitSamples(r, schedule)
}

type movBox struct{ b mp4.Box }

func (w movBox) Type() string { return w.b.Header().FourCC }

func (s *Source) emitBoxDetail(tree *mp4.Tree) error {
	for _, b := range tree.Boxes {
		p := pkt.New(0)
		p.AVType = pkt.AVTypeMovBox
		p.Box = movBox{b}
		p.BoxType = b.Header().FourCC
		if err := s.Fanout(p); err != nil {
			return err
		}
	}
	return nil
}

// emitCodecConfigs implements spec §4.D.1: for each track, before any
// sample, emit the Annex-B parameter-set packets (H.264/H.265) or the
// raw AudioSpecificConfig (AAC), each with IsSequenceHeader set.
func (s *Source) emitCodecConfigs(movie *mp4.MovInfo) error {
	for _, tr := range movie.Tracks {
		switch tr.CodecType {
		case pkt.CodecH264:
			var conf h264conf.Conf
			if err := conf.Unmarshal(tr.SequenceData); err != nil {
				return fmt.Errorf("%w: h264 avcC: %v", mp4.ErrExtradataInvalid, err)
			}
			if len(conf.SPS) == 0 || len(conf.PPS) == 0 {
				return fmt.Errorf("%w: h264 sps or pps has zero length", mp4.ErrExtradataInvalid)
			}
			for _, nalu := range [][]byte{conf.SPS, conf.PPS} {
				if err := s.emitSequenceHeader(pkt.CodecH264, nalu); err != nil {
					return err
				}
			}

		case pkt.CodecH265:
			cfg, err := h265.ParseDecoderConfig(tr.SequenceData)
			if err != nil {
				return fmt.Errorf("%w: h265 hvcC: %v", mp4.ErrExtradataInvalid, err)
			}
			if len(cfg.VPS) == 0 || len(cfg.SPS) == 0 || len(cfg.PPS) == 0 {
				return fmt.Errorf("%w: h265 vps, sps or pps missing", mp4.ErrExtradataInvalid)
			}
			for _, nalu := range cfg.OrderedParameterSets() {
				if err := s.emitSequenceHeader(pkt.CodecH265, nalu); err != nil {
					return err
				}
			}

		case pkt.CodecAAC:
			var asc mpeg4audio.Config
			if err := asc.Unmarshal(tr.SequenceData); err != nil {
				return fmt.Errorf("%w: aac AudioSpecificConfig: %v", mp4.ErrExtradataInvalid, err)
			}
			p := pkt.New(len(tr.SequenceData))
			p.Payload = append(p.Payload, tr.SequenceData...)
			p.AVType = pkt.AVTypeAudio
			p.CodecType = pkt.CodecAAC
			p.IsSequenceHeader = true
			if err := s.Fanout(p); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: track codec %v", mp4.ErrCodecUnsupported, tr.CodecType)
		}
	}
	return nil
}

func (s *Source) emitSequenceHeader(codec pkt.CodecType, nalu []byte) error {
	annexB, err := h264.EncodeAnnexB([][]byte{nalu})
	if err != nil {
		return err
	}
	p := pkt.New(len(annexB))
	p.Payload = annexB
	p.AVType = pkt.AVTypeVideo
	p.CodecType = codec
	p.IsSequenceHeader = true
	return s.Fanout(p)
}

// scheduledSample is one entry of the DTS-ordered sample schedule
// (spec §4.D.2's multimap<dts, SampleRef>, flattened into a slice and
// sorted once since Go has no sorted multimap in the standard library).
type scheduledSample struct {
	avType     pkt.AVType
	codecType  pkt.CodecType
	fileOffset uint64
	size       uint32
	dtsUs      int64
	ptsUs      int64
	isKey      bool
}

func buildSchedule(movie *mp4.MovInfo) ([]scheduledSample, error) {
	perTrack := make([][]scheduledSample, len(movie.Tracks))
	for i, tr := range movie.Tracks {
		sched, err := buildTrackSchedule(tr)
		if err != nil {
			return nil, err
		}
		perTrack[i] = sched
	}

	alignTrackBases(movie, perTrack)

	var all []scheduledSample
	for _, sched := range perTrack {
		all = append(all, sched...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].dtsUs < all[j].dtsUs })
	return all, nil
}

// alignTrackBases implements the audio/video DTS-alignment step of
// spec §4.D.2. Which side gets shifted when the two tracks start at
// different base DTS is left ambiguous by the spec itself (see the
// Open Questions); this implementation shifts whichever of the first
// video/audio track is found later while iterating movie.Tracks, and
// that decision is recorded in DESIGN.md.
func alignTrackBases(movie *mp4.MovInfo, perTrack [][]scheduledSample) {
	videoIdx, audioIdx := -1, -1
	for i, tr := range movie.Tracks {
		switch tr.HandlerType {
		case "vide":
			if videoIdx == -1 {
				videoIdx = i
			}
		case "soun":
			if audioIdx == -1 {
				audioIdx = i
			}
		}
	}

	if videoIdx == -1 || audioIdx == -1 || len(perTrack[videoIdx]) == 0 || len(perTrack[audioIdx]) == 0 {
		return
	}

	videoFirst := perTrack[videoIdx][0].dtsUs
	audioFirst := perTrack[audioIdx][0].dtsUs
	if videoFirst == audioFirst {
		return
	}

	shiftIdx, baseIdx := videoIdx, audioIdx
	if audioIdx > videoIdx {
		shiftIdx, baseIdx = audioIdx, videoIdx
	}

	oneSampleUs := int64(0)
	if len(perTrack[shiftIdx]) >= 2 {
		oneSampleUs = perTrack[shiftIdx][1].dtsUs - perTrack[shiftIdx][0].dtsUs
	}

	target := perTrack[baseIdx][0].dtsUs + oneSampleUs
	delta := target - perTrack[shiftIdx][0].dtsUs
	for i := range perTrack[shiftIdx] {
		perTrack[shiftIdx][i].dtsUs += delta
		perTrack[shiftIdx][i].ptsUs += delta
	}
}

func buildTrackSchedule(tr *mp4.TrackInfo) ([]scheduledSample, error) {
	total := len(tr.SampleSizes)
	durations := expandStts(tr.SampleEntries)
	if len(durations) < total {
		return nil, fmt.Errorf("%w: stts covers fewer samples than stsz declares", mp4.ErrMalformed)
	}
	offsets := expandCtts(tr.SampleOffsets, total)
	keySet := iframeSet(tr.IframeSamples)

	avType := pkt.AVTypeUnknown
	switch tr.HandlerType {
	case "vide":
		avType = pkt.AVTypeVideo
	case "soun":
		avType = pkt.AVTypeAudio
	}

	out := make([]scheduledSample, 0, total)
	sampleIndex := 0 // 0-indexed into the parallel tables
	var dts int64
	stscPos := 0

	for chunkIdx := uint32(1); int(chunkIdx) <= len(tr.ChunkOffsets); chunkIdx++ {
		for stscPos+1 < len(tr.ChunkSamples) && chunkIdx >= tr.ChunkSamples[stscPos+1].FirstChunk {
			stscPos++
		}
		if stscPos >= len(tr.ChunkSamples) {
			return nil, fmt.Errorf("%w: stsc has no entry covering chunk %d", mp4.ErrMalformed, chunkIdx)
		}

		samplesPerChunk := tr.ChunkSamples[stscPos].SamplesPerChunk
		cur := tr.ChunkOffsets[chunkIdx-1]

		for i := uint32(0); i < samplesPerChunk; i++ {
			if sampleIndex >= total {
				return nil, fmt.Errorf("%w: stsc describes more samples than stsz", mp4.ErrMalformed)
			}

			size := tr.SampleSizes[sampleIndex]
			duration := durations[sampleIndex]
			cts := offsets[sampleIndex]

			isKey := true
			if tr.HasStss {
				isKey = keySet[uint32(sampleIndex+1)]
			}

			var dtsUs, ptsUs int64
			if tr.Timescale != 0 {
				dtsUs = dts * 1_000_000 / int64(tr.Timescale)
				ptsUs = (dts + int64(cts)) * 1_000_000 / int64(tr.Timescale)
			}

			out = append(out, scheduledSample{
				avType:     avType,
				codecType:  tr.CodecType,
				fileOffset: cur,
				size:       size,
				dtsUs:      dtsUs,
				ptsUs:      ptsUs,
				isKey:      isKey,
			})

			cur += uint64(size)
			dts += int64(duration)
			sampleIndex++
		}
	}

	return out, nil
}

func expandStts(entries []mp4.SttsEntry) []uint32 {
	var out []uint32
	for _, e := range entries {
		for i := uint32(0); i < e.Count; i++ {
			out = append(out, e.Delta)
		}
	}
	return out
}

func expandCtts(entries []mp4.CttsEntry, total int) []int32 {
	out := make([]int32, 0, total)
	for _, e := range entries {
		for i := uint32(0); i < e.Count; i++ {
			out = append(out, e.Offset)
		}
	}
	for len(out) < total {
		out = append(out, 0)
	}
	return out[:total]
}

func iframeSet(ids []uint32) map[uint32]bool {
	m := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// emitSamples implements spec §4.D.3: read each scheduled sample's
// bytes, convert video AVCC to Annex-B NALU-by-NALU, and emit every
// other payload as a single raw packet, honoring the "re" rate-limit
// option along the way.
func (s *Source) emitSamples(r io.ReaderAt, schedule []scheduledSample) error {
	var wallStart time.Time
	var firstDtsUs int64
	started := false

	for _, ss := range schedule {
		buf := make([]byte, ss.size)
		n, err := r.ReadAt(buf, int64(ss.fileOffset))
		if err != nil && err != io.EOF {
			return fmt.Errorf("%w: %v", mp4.ErrShortRead, err)
		}
		if n < int(ss.size) {
			return fmt.Errorf("%w: read %d of %d bytes at offset %d", mp4.ErrShortRead, n, ss.size, ss.fileOffset)
		}

		if s.rateLimit {
			if !started {
				wallStart = time.Now()
				firstDtsUs = ss.dtsUs
				started = true
			}
			deadline := wallStart.Add(time.Duration(ss.dtsUs-firstDtsUs) * time.Microsecond)
			if d := time.Until(deadline); d > 0 {
				time.Sleep(d)
			}
		}

		if ss.avType == pkt.AVTypeVideo && (ss.codecType == pkt.CodecH264 || ss.codecType == pkt.CodecH265) {
			if err := s.emitVideoSample(buf, ss); err != nil {
				return err
			}
			continue
		}

		p := pkt.New(len(buf))
		p.Payload = append(p.Payload, buf...)
		p.AVType = ss.avType
		p.CodecType = ss.codecType
		p.DTS = time.Duration(ss.dtsUs) * time.Microsecond
		p.PTS = time.Duration(ss.ptsUs) * time.Microsecond
		p.IsKeyframe = ss.isKey
		if err := s.Fanout(p); err != nil {
			return err
		}
	}

	return nil
}

func (s *Source) emitVideoSample(buf []byte, ss scheduledSample) error {
	nalus, err := h264.DecodeAVCC(buf)
	if err != nil {
		return fmt.Errorf("%w: avcc decode: %v", mp4.ErrMalformed, err)
	}

	dts := time.Duration(ss.dtsUs) * time.Microsecond
	pts := time.Duration(ss.ptsUs) * time.Microsecond

	for _, nalu := range nalus {
		if len(nalu) > maxNALULen {
			return fmt.Errorf("%w: NALU length %d exceeds %d", mp4.ErrMalformed, len(nalu), maxNALULen)
		}

		annexB, err := h264.EncodeAnnexB([][]byte{nalu})
		if err != nil {
			return err
		}

		p := pkt.New(len(annexB))
		p.Payload = annexB
		p.AVType = pkt.AVTypeVideo
		p.CodecType = ss.codecType
		p.DTS = dts
		p.PTS = pts

		switch ss.codecType {
		case pkt.CodecH264:
			switch h264.NALUType(nalu[0] & 0x1F) {
			case h264.NALUTypeSPS, h264.NALUTypePPS:
				p.IsSequenceHeader = true
			case h264.NALUTypeIDR:
				p.IsKeyframe = true
			}

		case pkt.CodecH265:
			typ := mch265.NALUType((nalu[0] >> 1) & 0x3F)
			if h265.IsParameterSet(typ) {
				p.IsSequenceHeader = true
			}
			if h265.IsIDR(typ) {
				p.IsKeyframe = true
			}
		}

		if err := s.Fanout(p); err != nil {
			return err
		}
	}

	return nil
}
