// Package handshake implements RTMP's simple (non-digest) handshake: the
// C0/C1 the client sends, the S0/S1/S2 the server replies with, and the
// C2 the client echoes back.
package handshake

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	rtmpVersion  = 0x03
	packetSize   = 1536
	timeFieldLen = 8
)

// C0C1 is the client's handshake opener: a 1-byte version followed by a
// 1536-byte C1 body (4-byte time, 4 zero bytes, then random padding).
type C0C1 struct {
	Time uint32
	Data []byte // the 1536-byte C1 body; generated on Write if nil
}

// Write writes C0 followed by C1.
func (c *C0C1) Write(w io.Writer) error {
	if _, err := w.Write([]byte{rtmpVersion}); err != nil {
		return err
	}

	body := c.Data
	if body == nil {
		body = make([]byte, packetSize)
		binary.BigEndian.PutUint32(body, c.Time)
		if _, err := rand.Read(body[timeFieldLen:]); err != nil {
			return err
		}
		c.Data = body
	}

	_, err := w.Write(body)
	return err
}

// S0S1S2 is the server's handshake reply: a 1-byte version, a 1536-byte
// S1 body, and a 1536-byte S2 body that echoes the client's C1.
type S0S1S2 struct {
	Version byte
	S1      []byte
	S2      []byte
}

// Read reads S0, S1 and S2.
func (s *S0S1S2) Read(r io.Reader) error {
	var ver [1]byte
	if _, err := io.ReadFull(r, ver[:]); err != nil {
		return err
	}
	s.Version = ver[0]
	if s.Version != rtmpVersion {
		return fmt.Errorf("server replied with unexpected RTMP version %d", s.Version)
	}

	s.S1 = make([]byte, packetSize)
	if _, err := io.ReadFull(r, s.S1); err != nil {
		return err
	}

	s.S2 = make([]byte, packetSize)
	_, err := io.ReadFull(r, s.S2)
	return err
}

// C2 echoes the server's S1 body back to close the handshake.
type C2 struct {
	Data []byte
}

// Write writes C2.
func (c C2) Write(w io.Writer) error {
	_, err := w.Write(c.Data)
	return err
}

// DoClient performs the simple RTMP client handshake over rw: it sends
// C0C1, reads S0S1S2 and sends C2. When strict is set, it additionally
// verifies that S2's body matches the C1 it sent, rejecting a server that
// isn't echoing the client's own handshake.
func DoClient(rw io.ReadWriter, strict bool) error {
	c1 := &C0C1{}
	if err := c1.Write(rw); err != nil {
		return err
	}

	var s0s1s2 S0S1S2
	if err := s0s1s2.Read(rw); err != nil {
		return err
	}

	if strict && !bytes.Equal(s0s1s2.S2, c1.Data) {
		return fmt.Errorf("data in S2 does not correspond to C1")
	}

	return C2{Data: s0s1s2.S1}.Write(rw)
}
