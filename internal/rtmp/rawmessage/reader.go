package rawmessage

import (
	"errors"
	"fmt"
	"time"

	"github.com/vireostream/corestream/internal/rtmp/base"
	"github.com/vireostream/corestream/internal/rtmp/bytecounter"
)

var errMoreChunksNeeded = errors.New("more chunks are needed")

type readerChunkStream struct {
	mr                 *Reader
	curTimestamp       *uint32
	curType            *base.MessageType
	curMessageStreamID *uint32
	curBodyLen         *uint32
	curBody            []byte
	curTimestampDelta  *uint32
}

func (rc *readerChunkStream) checkAck() error {
	if rc.mr.ackWindowSize == 0 {
		return nil
	}

	count := rc.mr.bcr.Count()
	diff := count - rc.mr.lastAckCount

	if diff > rc.mr.ackWindowSize {
		if err := rc.mr.onAckNeeded(count); err != nil {
			return err
		}
		rc.mr.lastAckCount += rc.mr.ackWindowSize
	}

	return nil
}

func (rc *readerChunkStream) readMessage(fmtID byte, csid uint32) (*Message, error) {
	switch fmtID {
	case 0:
		if rc.curBody != nil {
			return nil, fmt.Errorf("received type 0 chunk but expected type 3 chunk")
		}

		var c0 base.Chunk0
		if err := c0.Read(rc.mr.r, csid, rc.mr.chunkSize); err != nil {
			return nil, err
		}
		if err := rc.checkAck(); err != nil {
			return nil, err
		}

		ts := c0.Timestamp
		rc.curTimestamp = &ts
		typ := c0.Type
		rc.curType = &typ
		msid := c0.MessageStreamID
		rc.curMessageStreamID = &msid
		bl := c0.BodyLen
		rc.curBodyLen = &bl
		rc.curTimestampDelta = nil

		if c0.BodyLen != uint32(len(c0.Body)) {
			rc.curBody = c0.Body
			return nil, errMoreChunksNeeded
		}

		return &Message{
			ChunkStreamID:   csid,
			Timestamp:       time.Duration(c0.Timestamp) * time.Millisecond,
			Type:            c0.Type,
			MessageStreamID: c0.MessageStreamID,
			Body:            c0.Body,
		}, nil

	case 1:
		if rc.curTimestamp == nil {
			return nil, fmt.Errorf("received type 1 chunk without previous chunk")
		}
		if rc.curBody != nil {
			return nil, fmt.Errorf("received type 1 chunk but expected type 3 chunk")
		}

		var c1 base.Chunk1
		if err := c1.Read(rc.mr.r, csid, rc.mr.chunkSize); err != nil {
			return nil, err
		}
		if err := rc.checkAck(); err != nil {
			return nil, err
		}

		typ := c1.Type
		rc.curType = &typ
		ts := *rc.curTimestamp + c1.TimestampDelta
		rc.curTimestamp = &ts
		bl := c1.BodyLen
		rc.curBodyLen = &bl
		delta := c1.TimestampDelta
		rc.curTimestampDelta = &delta

		if c1.BodyLen != uint32(len(c1.Body)) {
			rc.curBody = c1.Body
			return nil, errMoreChunksNeeded
		}

		return &Message{
			ChunkStreamID:   csid,
			Timestamp:       time.Duration(ts) * time.Millisecond,
			Type:            c1.Type,
			MessageStreamID: *rc.curMessageStreamID,
			Body:            c1.Body,
		}, nil

	case 2:
		if rc.curTimestamp == nil {
			return nil, fmt.Errorf("received type 2 chunk without previous chunk")
		}
		if rc.curBody != nil {
			return nil, fmt.Errorf("received type 2 chunk but expected type 3 chunk")
		}

		chunkBodyLen := *rc.curBodyLen
		if chunkBodyLen > rc.mr.chunkSize {
			chunkBodyLen = rc.mr.chunkSize
		}

		var c2 base.Chunk2
		if err := c2.Read(rc.mr.r, csid, chunkBodyLen); err != nil {
			return nil, err
		}
		if err := rc.checkAck(); err != nil {
			return nil, err
		}

		ts := *rc.curTimestamp + c2.TimestampDelta
		rc.curTimestamp = &ts
		delta := c2.TimestampDelta
		rc.curTimestampDelta = &delta

		if *rc.curBodyLen != uint32(len(c2.Body)) {
			rc.curBody = c2.Body
			return nil, errMoreChunksNeeded
		}

		return &Message{
			ChunkStreamID:   csid,
			Timestamp:       time.Duration(ts) * time.Millisecond,
			Type:            *rc.curType,
			MessageStreamID: *rc.curMessageStreamID,
			Body:            c2.Body,
		}, nil

	default: // 3
		if rc.curBody == nil && rc.curTimestampDelta == nil {
			return nil, fmt.Errorf("received type 3 chunk without previous chunk")
		}

		if rc.curBody != nil {
			chunkBodyLen := *rc.curBodyLen - uint32(len(rc.curBody))
			if chunkBodyLen > rc.mr.chunkSize {
				chunkBodyLen = rc.mr.chunkSize
			}

			var c3 base.Chunk3
			if err := c3.Read(rc.mr.r, csid, chunkBodyLen); err != nil {
				return nil, err
			}
			if err := rc.checkAck(); err != nil {
				return nil, err
			}

			rc.curBody = append(rc.curBody, c3.Body...)

			if *rc.curBodyLen != uint32(len(rc.curBody)) {
				return nil, errMoreChunksNeeded
			}

			body := rc.curBody
			rc.curBody = nil

			return &Message{
				ChunkStreamID:   csid,
				Timestamp:       time.Duration(*rc.curTimestamp) * time.Millisecond,
				Type:            *rc.curType,
				MessageStreamID: *rc.curMessageStreamID,
				Body:            body,
			}, nil
		}

		chunkBodyLen := *rc.curBodyLen
		if chunkBodyLen > rc.mr.chunkSize {
			chunkBodyLen = rc.mr.chunkSize
		}

		var c3 base.Chunk3
		if err := c3.Read(rc.mr.r, csid, chunkBodyLen); err != nil {
			return nil, err
		}
		if err := rc.checkAck(); err != nil {
			return nil, err
		}

		ts := *rc.curTimestamp + *rc.curTimestampDelta
		rc.curTimestamp = &ts

		if *rc.curBodyLen != uint32(len(c3.Body)) {
			rc.curBody = c3.Body
			return nil, errMoreChunksNeeded
		}

		return &Message{
			ChunkStreamID:   csid,
			Timestamp:       time.Duration(ts) * time.Millisecond,
			Type:            *rc.curType,
			MessageStreamID: *rc.curMessageStreamID,
			Body:            c3.Body,
		}, nil
	}
}

// Reader reassembles RTMP messages out of a chunk stream.
type Reader struct {
	r             *bytecounter.Reader
	bcr           *bytecounter.Reader
	onAckNeeded   func(uint32) error
	chunkSize     uint32
	ackWindowSize uint32
	lastAckCount  uint32
	chunkStreams  map[uint32]*readerChunkStream
}

// NewReader allocates a Reader. onAckNeeded is invoked once the number of
// bytes read since the last acknowledge exceeds the negotiated window size.
func NewReader(bcr *bytecounter.Reader, onAckNeeded func(uint32) error) *Reader {
	return &Reader{
		r:            bcr,
		bcr:          bcr,
		onAckNeeded:  onAckNeeded,
		chunkSize:    128,
		chunkStreams: make(map[uint32]*readerChunkStream),
	}
}

// SetChunkSize sets the maximum chunk body size expected on read.
func (r *Reader) SetChunkSize(v uint32) {
	r.chunkSize = v
}

// SetWindowAckSize sets the number of bytes between required acknowledges.
func (r *Reader) SetWindowAckSize(v uint32) {
	r.ackWindowSize = v
}

// Read reads the next fully reassembled Message, consuming as many chunks
// as needed from the underlying stream.
func (r *Reader) Read() (*Message, error) {
	for {
		fmtID, csid, err := base.ReadBasicHeader(r.r)
		if err != nil {
			return nil, err
		}

		rc, ok := r.chunkStreams[csid]
		if !ok {
			rc = &readerChunkStream{mr: r}
			r.chunkStreams[csid] = rc
		}

		msg, err := rc.readMessage(fmtID, csid)
		if err != nil {
			if errors.Is(err, errMoreChunksNeeded) {
				continue
			}
			return nil, err
		}

		return msg, nil
	}
}
