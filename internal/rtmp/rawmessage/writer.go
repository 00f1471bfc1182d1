package rawmessage

import (
	"fmt"
	"time"

	"github.com/vireostream/corestream/internal/rtmp/base"
	"github.com/vireostream/corestream/internal/rtmp/bytecounter"
)

type writerChunkStream struct {
	mw                  *Writer
	lastMessageStreamID *uint32
	lastType            *base.MessageType
	lastBodyLen         *uint32
	lastTimestamp       *int64
	lastTimestampDelta  *int64
}

func (wc *writerChunkStream) writeChunk(marshal func() ([]byte, error)) error {
	if wc.mw.checkAcknowledge && wc.mw.ackWindowSize != 0 {
		diff := wc.mw.bcw.Count() - wc.mw.ackValue
		if diff > wc.mw.ackWindowSize*3/2 {
			return fmt.Errorf("no acknowledge received within window")
		}
	}

	buf, err := marshal()
	if err != nil {
		return err
	}

	_, err = wc.mw.w.Write(buf)
	return err
}

func (wc *writerChunkStream) writeMessage(msg *Message) error {
	bodyLen := uint32(len(msg.Body))
	pos := uint32(0)
	firstChunk := true

	timestamp := int64(msg.Timestamp / time.Millisecond)

	var timestampDelta *int64
	if wc.lastTimestamp != nil {
		diff := timestamp - *wc.lastTimestamp
		if diff >= 0 {
			timestampDelta = &diff
		}
	}

	for {
		chunkBodyLen := bodyLen - pos
		if chunkBodyLen > wc.mw.chunkSize {
			chunkBodyLen = wc.mw.chunkSize
		}
		body := msg.Body[pos : pos+chunkBodyLen]

		if firstChunk {
			firstChunk = false

			switch {
			case wc.lastMessageStreamID == nil || timestampDelta == nil || *wc.lastMessageStreamID != msg.MessageStreamID:
				c := base.Chunk0{
					ChunkStreamID:   msg.ChunkStreamID,
					Timestamp:       uint32(timestamp),
					Type:            msg.Type,
					MessageStreamID: msg.MessageStreamID,
					BodyLen:         bodyLen,
					Body:            body,
				}
				if err := wc.writeChunk(c.Marshal); err != nil {
					return err
				}

			case *wc.lastType != msg.Type || *wc.lastBodyLen != bodyLen:
				c := base.Chunk1{
					ChunkStreamID:  msg.ChunkStreamID,
					TimestampDelta: uint32(*timestampDelta),
					Type:           msg.Type,
					BodyLen:        bodyLen,
					Body:           body,
				}
				if err := wc.writeChunk(c.Marshal); err != nil {
					return err
				}

			case wc.lastTimestampDelta == nil || *wc.lastTimestampDelta != *timestampDelta:
				c := base.Chunk2{
					ChunkStreamID:  msg.ChunkStreamID,
					TimestampDelta: uint32(*timestampDelta),
					Body:           body,
				}
				if err := wc.writeChunk(c.Marshal); err != nil {
					return err
				}

			default:
				c := base.Chunk3{
					ChunkStreamID: msg.ChunkStreamID,
					Body:          body,
				}
				if err := wc.writeChunk(c.Marshal); err != nil {
					return err
				}
			}

			msid := msg.MessageStreamID
			wc.lastMessageStreamID = &msid
			typ := msg.Type
			wc.lastType = &typ
			bl := bodyLen
			wc.lastBodyLen = &bl
			ts := timestamp
			wc.lastTimestamp = &ts

			if timestampDelta != nil {
				d := *timestampDelta
				wc.lastTimestampDelta = &d
			}
		} else {
			c := base.Chunk3{
				ChunkStreamID: msg.ChunkStreamID,
				Body:          body,
			}
			if err := wc.writeChunk(c.Marshal); err != nil {
				return err
			}
		}

		pos += chunkBodyLen

		if bodyLen-pos == 0 {
			return nil
		}
	}
}

// Writer splits and writes RTMP messages onto the chunk stream, picking
// the cheapest chunk type (0-3) based on what changed since the last
// message on that chunk stream ID.
type Writer struct {
	w                *bytecounter.Writer
	bcw              *bytecounter.Writer
	checkAcknowledge bool
	chunkSize        uint32
	ackWindowSize    uint32
	ackValue         uint32
	chunkStreams     map[uint32]*writerChunkStream
}

// NewWriter allocates a Writer. When checkAcknowledge is set, writes fail
// once the peer falls more than 1.5 ack windows behind on acknowledging.
func NewWriter(bcw *bytecounter.Writer, checkAcknowledge bool) *Writer {
	return &Writer{
		w:                bcw,
		bcw:              bcw,
		checkAcknowledge: checkAcknowledge,
		chunkSize:        128,
		chunkStreams:     make(map[uint32]*writerChunkStream),
	}
}

// SetChunkSize sets the maximum chunk body size used on write.
func (w *Writer) SetChunkSize(v uint32) {
	w.chunkSize = v
}

// SetWindowAckSize sets the number of bytes between required acknowledges.
func (w *Writer) SetWindowAckSize(v uint32) {
	w.ackWindowSize = v
}

// SetAcknowledgeValue records the last acknowledge sequence number seen
// from the peer.
func (w *Writer) SetAcknowledgeValue(v uint32) {
	w.ackValue = v
}

// Write splits msg into chunks and writes them.
func (w *Writer) Write(msg *Message) error {
	wc, ok := w.chunkStreams[msg.ChunkStreamID]
	if !ok {
		wc = &writerChunkStream{mw: w}
		w.chunkStreams[msg.ChunkStreamID] = wc
	}

	return wc.writeMessage(msg)
}
