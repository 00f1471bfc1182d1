package handshake

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough of the simple handshake to exercise DoClient.
func fakeServer(t *testing.T, conn net.Conn) {
	t.Helper()

	var ver [1]byte
	_, err := io.ReadFull(conn, ver[:])
	require.NoError(t, err)
	require.Equal(t, byte(rtmpVersion), ver[0])

	c1 := make([]byte, packetSize)
	_, err = io.ReadFull(conn, c1)
	require.NoError(t, err)

	_, err = conn.Write([]byte{rtmpVersion})
	require.NoError(t, err)

	s1 := make([]byte, packetSize)
	_, err = conn.Write(s1)
	require.NoError(t, err)

	_, err = conn.Write(c1) // S2 echoes C1
	require.NoError(t, err)

	c2 := make([]byte, packetSize)
	_, err = io.ReadFull(conn, c2)
	require.NoError(t, err)
	require.Equal(t, s1, c2)
}

func TestDoClientStrict(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fakeServer(t, serverConn)
	}()

	require.NoError(t, DoClient(clientConn, true))
	<-done
}

func TestDoClientRejectsWrongVersion(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		var ver [1]byte
		io.ReadFull(serverConn, ver[:])
		c1 := make([]byte, packetSize)
		io.ReadFull(serverConn, c1)
		serverConn.Write([]byte{9})
	}()

	err := DoClient(clientConn, false)
	require.Error(t, err)
}

func TestDoClientStrictRejectsMismatchedS2(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		var ver [1]byte
		io.ReadFull(serverConn, ver[:])
		c1 := make([]byte, packetSize)
		io.ReadFull(serverConn, c1)

		serverConn.Write([]byte{rtmpVersion})
		s1 := make([]byte, packetSize)
		serverConn.Write(s1)
		mismatched := make([]byte, packetSize)
		mismatched[0] = 0xFF
		serverConn.Write(mismatched)
	}()

	err := DoClient(clientConn, true)
	require.Error(t, err)
}
