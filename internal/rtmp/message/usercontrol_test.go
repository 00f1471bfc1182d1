package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserControlSetBufferLengthRoundTrip(t *testing.T) {
	m := UserControlSetBufferLength{StreamID: 1, BufferLength: 100}
	raw, err := m.Marshal()
	require.NoError(t, err)

	typ, err := UnmarshalUserControlType(raw)
	require.NoError(t, err)
	require.Equal(t, UserControlTypeSetBufferLength, typ)

	var dec UserControlSetBufferLength
	require.NoError(t, dec.Unmarshal(raw))
	require.Equal(t, m.StreamID, dec.StreamID)
	require.Equal(t, m.BufferLength, dec.BufferLength)
}

func TestUserControlPingRoundTrip(t *testing.T) {
	req := UserControlPingRequest{ServerTime: 555}
	raw, err := req.Marshal()
	require.NoError(t, err)

	typ, err := UnmarshalUserControlType(raw)
	require.NoError(t, err)
	require.Equal(t, UserControlTypePingRequest, typ)

	resp := UserControlPingResponse{ServerTime: 555}
	raw2, err := resp.Marshal()
	require.NoError(t, err)

	typ2, err := UnmarshalUserControlType(raw2)
	require.NoError(t, err)
	require.Equal(t, UserControlTypePingResponse, typ2)
}

func TestUserControlStreamEventsRoundTrip(t *testing.T) {
	begin := UserControlStreamBegin{StreamID: 1}
	raw, err := begin.Marshal()
	require.NoError(t, err)
	var decBegin UserControlStreamBegin
	require.NoError(t, decBegin.Unmarshal(raw))
	require.Equal(t, begin.StreamID, decBegin.StreamID)

	eof := UserControlStreamEOF{StreamID: 1}
	raw2, err := eof.Marshal()
	require.NoError(t, err)
	var decEOF UserControlStreamEOF
	require.NoError(t, decEOF.Unmarshal(raw2))
	require.Equal(t, eof.StreamID, decEOF.StreamID)
}
