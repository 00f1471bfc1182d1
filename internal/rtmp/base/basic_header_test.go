package base

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicHeaderOneByte(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBasicHeader(&buf, 2, 5))
	require.Equal(t, []byte{2<<6 | 5}, buf.Bytes())

	fmtID, csid, err := ReadBasicHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, byte(2), fmtID)
	require.Equal(t, uint32(5), csid)
}

func TestBasicHeaderTwoByte(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBasicHeader(&buf, 1, 200))
	require.Len(t, buf.Bytes(), 2)

	fmtID, csid, err := ReadBasicHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, byte(1), fmtID)
	require.Equal(t, uint32(200), csid)
}

func TestBasicHeaderThreeByte(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBasicHeader(&buf, 0, 1000))
	require.Len(t, buf.Bytes(), 3)

	fmtID, csid, err := ReadBasicHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, byte(0), fmtID)
	require.Equal(t, uint32(1000), csid)
}

func TestBasicHeaderBoundaries(t *testing.T) {
	for _, csid := range []uint32{2, 63, 64, 319, 320, 65599} {
		var buf bytes.Buffer
		require.NoError(t, WriteBasicHeader(&buf, 3, csid))
		_, got, err := ReadBasicHeader(&buf)
		require.NoError(t, err)
		require.Equal(t, csid, got)
	}
}

func TestWriteBasicHeaderInvalidFmt(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBasicHeader(&buf, 4, 10)
	require.Error(t, err)
}

func TestWriteBasicHeaderOutOfRange(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBasicHeader(&buf, 0, 70000)
	require.Error(t, err)
}
