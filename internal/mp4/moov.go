package mp4

import (
	"fmt"

	"github.com/vireostream/corestream/internal/bytestream"
)

func versionFlags(body []byte) (version uint8, flags uint32, rest []byte, err error) {
	if len(body) < 4 {
		return 0, 0, nil, fmt.Errorf("%w: missing version/flags", ErrMalformed)
	}
	vf, _ := bytestream.ReadU32(body[:4])
	return uint8(vf >> 24), vf & 0x00FFFFFF, body[4:], nil
}

func parseMoov(body []byte) (*MovInfo, error) {
	children, err := walkChildren(body)
	if err != nil {
		return nil, err
	}

	mvhdBody, ok := find(children, "mvhd")
	if !ok {
		return nil, fmt.Errorf("%w: moov missing mvhd", ErrMalformed)
	}

	info, err := parseMvhd(mvhdBody)
	if err != nil {
		return nil, err
	}

	for _, c := range children {
		if c.FourCC != "trak" {
			continue
		}
		track, err := parseTrak(c.Body)
		if err != nil {
			return nil, err
		}
		info.Tracks = append(info.Tracks, track)
	}

	return info, nil
}

func parseMvhd(body []byte) (*MovInfo, error) {
	version, _, rest, err := versionFlags(body)
	if err != nil {
		return nil, err
	}

	var timescale uint32
	var duration uint64
	var nextTrackID uint32

	if version == 1 {
		// creation_time(8) modification_time(8) timescale(4) duration(8)
		if len(rest) < 28 {
			return nil, fmt.Errorf("%w: mvhd v1 too short", ErrMalformed)
		}
		timescale, _ = bytestream.ReadU32(rest[16:20])
		duration, _ = bytestream.ReadU64(rest[20:28])
		rest = rest[28:]
	} else {
		// creation_time(4) modification_time(4) timescale(4) duration(4)
		if len(rest) < 16 {
			return nil, fmt.Errorf("%w: mvhd v0 too short", ErrMalformed)
		}
		timescale, _ = bytestream.ReadU32(rest[8:12])
		d32, _ := bytestream.ReadU32(rest[12:16])
		duration = uint64(d32)
		rest = rest[16:]
	}

	// rate(4) volume(2) reserved(10) matrix(36) pre_defined(24) = 76 bytes,
	// then next_track_ID(4).
	if len(rest) < 80 {
		return nil, fmt.Errorf("%w: mvhd missing next_track_ID", ErrMalformed)
	}
	nextTrackID, _ = bytestream.ReadU32(rest[76:80])

	var durationUs int64
	if timescale != 0 {
		durationUs = int64(duration) * 1_000_000 / int64(timescale)
	}

	return &MovInfo{
		DurationUs:  durationUs,
		NextTrackID: nextTrackID,
	}, nil
}

func parseTrak(body []byte) (*TrackInfo, error) {
	children, err := walkChildren(body)
	if err != nil {
		return nil, err
	}

	tkhdBody, ok := find(children, "tkhd")
	if !ok {
		return nil, fmt.Errorf("%w: trak missing tkhd", ErrMalformed)
	}
	trackID, width, height, err := parseTkhd(tkhdBody)
	if err != nil {
		return nil, err
	}

	mdiaBody, ok := find(children, "mdia")
	if !ok {
		return nil, fmt.Errorf("%w: trak missing mdia", ErrMalformed)
	}

	track, err := parseMdia(mdiaBody)
	if err != nil {
		return nil, err
	}

	track.TrackID = trackID
	if track.Width == 0 {
		track.Width = width
	}
	if track.Height == 0 {
		track.Height = height
	}

	return track, nil
}

func parseTkhd(body []byte) (trackID uint32, width, height uint16, err error) {
	version, _, rest, err := versionFlags(body)
	if err != nil {
		return 0, 0, 0, err
	}

	if version == 1 {
		// creation(8) modification(8) track_ID(4) reserved(4) duration(8)
		if len(rest) < 32 {
			return 0, 0, 0, fmt.Errorf("%w: tkhd v1 too short", ErrMalformed)
		}
		trackID, _ = bytestream.ReadU32(rest[16:20])
		rest = rest[32:]
	} else {
		// creation(4) modification(4) track_ID(4) reserved(4) duration(4)
		if len(rest) < 20 {
			return 0, 0, 0, fmt.Errorf("%w: tkhd v0 too short", ErrMalformed)
		}
		trackID, _ = bytestream.ReadU32(rest[8:12])
		rest = rest[20:]
	}

	// reserved(8) layer(2) alternate_group(2) volume(2) reserved(2)
	// matrix(36) width(4, 16.16) height(4, 16.16)
	if len(rest) < 60 {
		return 0, 0, 0, fmt.Errorf("%w: tkhd missing width/height", ErrMalformed)
	}
	w, _ := bytestream.ReadU32(rest[52:56])
	h, _ := bytestream.ReadU32(rest[56:60])
	width = uint16(w >> 16)
	height = uint16(h >> 16)

	return trackID, width, height, nil
}

func parseMdia(body []byte) (*TrackInfo, error) {
	children, err := walkChildren(body)
	if err != nil {
		return nil, err
	}

	mdhdBody, ok := find(children, "mdhd")
	if !ok {
		return nil, fmt.Errorf("%w: mdia missing mdhd", ErrMalformed)
	}
	timescale, durationUs, err := parseMdhd(mdhdBody)
	if err != nil {
		return nil, err
	}

	hdlrBody, ok := find(children, "hdlr")
	if !ok {
		return nil, fmt.Errorf("%w: mdia missing hdlr", ErrMalformed)
	}
	handlerType, err := parseHdlr(hdlrBody)
	if err != nil {
		return nil, err
	}

	minfBody, ok := find(children, "minf")
	if !ok {
		return nil, fmt.Errorf("%w: mdia missing minf", ErrMalformed)
	}
	track, err := parseMinf(minfBody)
	if err != nil {
		return nil, err
	}

	track.Timescale = timescale
	track.DurationUs = durationUs
	track.HandlerType = handlerType

	return track, nil
}

func parseMdhd(body []byte) (timescale uint32, durationUs int64, err error) {
	version, _, rest, err := versionFlags(body)
	if err != nil {
		return 0, 0, err
	}

	var duration uint64

	if version == 1 {
		if len(rest) < 28 {
			return 0, 0, fmt.Errorf("%w: mdhd v1 too short", ErrMalformed)
		}
		timescale, _ = bytestream.ReadU32(rest[16:20])
		duration, _ = bytestream.ReadU64(rest[20:28])
	} else {
		if len(rest) < 16 {
			return 0, 0, fmt.Errorf("%w: mdhd v0 too short", ErrMalformed)
		}
		timescale, _ = bytestream.ReadU32(rest[8:12])
		d32, _ := bytestream.ReadU32(rest[12:16])
		duration = uint64(d32)
	}

	if timescale != 0 {
		durationUs = int64(duration) * 1_000_000 / int64(timescale)
	}

	return timescale, durationUs, nil
}

func parseHdlr(body []byte) (string, error) {
	_, _, rest, err := versionFlags(body)
	if err != nil {
		return "", err
	}
	// pre_defined(4) handler_type(4)
	if len(rest) < 8 {
		return "", fmt.Errorf("%w: hdlr too short", ErrMalformed)
	}
	return string(rest[4:8]), nil
}

func parseMinf(body []byte) (*TrackInfo, error) {
	children, err := walkChildren(body)
	if err != nil {
		return nil, err
	}

	stblBody, ok := find(children, "stbl")
	if !ok {
		return nil, fmt.Errorf("%w: minf missing stbl", ErrMalformed)
	}

	return parseStbl(stblBody)
}
