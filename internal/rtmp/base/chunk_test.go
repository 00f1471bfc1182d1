package base

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunk0RoundTrip(t *testing.T) {
	c := Chunk0{
		ChunkStreamID:   4,
		Timestamp:       1000,
		Type:            MessageTypeVideo,
		MessageStreamID: 1,
		BodyLen:         3,
		Body:            []byte{0x01, 0x02, 0x03},
	}

	enc, err := c.Marshal()
	require.NoError(t, err)

	fmtID, csid, err := ReadBasicHeader(bytes.NewReader(enc))
	require.NoError(t, err)
	require.Equal(t, byte(0), fmtID)
	require.Equal(t, uint32(4), csid)

	var dec Chunk0
	require.NoError(t, dec.Read(bytes.NewReader(enc[1:]), csid, 128))
	require.Equal(t, c.Timestamp, dec.Timestamp)
	require.Equal(t, c.Type, dec.Type)
	require.Equal(t, c.MessageStreamID, dec.MessageStreamID)
	require.Equal(t, c.BodyLen, dec.BodyLen)
	require.Equal(t, c.Body, dec.Body)
}

func TestChunk0ExtendedTimestamp(t *testing.T) {
	c := Chunk0{
		ChunkStreamID:   2,
		Timestamp:       0x01000000,
		Type:            MessageTypeSetChunkSize,
		MessageStreamID: 0,
		BodyLen:         4,
		Body:            []byte{0, 0, 1, 0},
	}

	enc, err := c.Marshal()
	require.NoError(t, err)

	_, csid, err := ReadBasicHeader(bytes.NewReader(enc))
	require.NoError(t, err)

	var dec Chunk0
	require.NoError(t, dec.Read(bytes.NewReader(enc[1:]), csid, 128))
	require.Equal(t, c.Timestamp, dec.Timestamp)
	require.Equal(t, c.Body, dec.Body)
}

func TestChunk1RoundTrip(t *testing.T) {
	c := Chunk1{
		ChunkStreamID:  3,
		TimestampDelta: 40,
		Type:           MessageTypeAudio,
		BodyLen:        2,
		Body:           []byte{0xAA, 0xBB},
	}

	enc, err := c.Marshal()
	require.NoError(t, err)

	_, csid, err := ReadBasicHeader(bytes.NewReader(enc))
	require.NoError(t, err)

	var dec Chunk1
	require.NoError(t, dec.Read(bytes.NewReader(enc[1:]), csid, 128))
	require.Equal(t, c.TimestampDelta, dec.TimestampDelta)
	require.Equal(t, c.Type, dec.Type)
	require.Equal(t, c.BodyLen, dec.BodyLen)
	require.Equal(t, c.Body, dec.Body)
}

func TestChunk2RoundTrip(t *testing.T) {
	c := Chunk2{
		ChunkStreamID:  3,
		TimestampDelta: 40,
		Body:           []byte{0x01, 0x02, 0x03, 0x04},
	}

	enc, err := c.Marshal()
	require.NoError(t, err)

	_, csid, err := ReadBasicHeader(bytes.NewReader(enc))
	require.NoError(t, err)

	var dec Chunk2
	require.NoError(t, dec.Read(bytes.NewReader(enc[1:]), csid, uint32(len(c.Body))))
	require.Equal(t, c.TimestampDelta, dec.TimestampDelta)
	require.Equal(t, c.Body, dec.Body)
}

func TestChunk3RoundTrip(t *testing.T) {
	c := Chunk3{
		ChunkStreamID: 3,
		Body:          []byte{0x09, 0x08},
	}

	enc, err := c.Marshal()
	require.NoError(t, err)

	_, csid, err := ReadBasicHeader(bytes.NewReader(enc))
	require.NoError(t, err)

	var dec Chunk3
	require.NoError(t, dec.Read(bytes.NewReader(enc[1:]), csid, uint32(len(c.Body))))
	require.Equal(t, c.Body, dec.Body)
}

func TestChunk0ClipsBodyToChunkSize(t *testing.T) {
	c := Chunk0{
		ChunkStreamID:   4,
		BodyLen:         10,
		MessageStreamID: 1,
		Body:            bytes.Repeat([]byte{0x5}, 10),
	}
	enc, err := c.Marshal()
	require.NoError(t, err)

	_, csid, err := ReadBasicHeader(bytes.NewReader(enc))
	require.NoError(t, err)

	var dec Chunk0
	require.NoError(t, dec.Read(bytes.NewReader(enc[1:]), csid, 4))
	require.Len(t, dec.Body, 4)
}
