// Package rtmp wires the RTMP client state machine (package client) and
// chunk-stream/message layers into the streamer substrate, exposing the
// two concrete nodes the spec calls for: a play-mode source and a
// publish-mode sinker. URL splitting (tcUrl/app/stream) is adapted from
// the teacher's protocols/rtmp.splitPath/getTcURL.
package rtmp

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/vireostream/corestream/internal/pkt"
	"github.com/vireostream/corestream/internal/queue"
	"github.com/vireostream/corestream/internal/rtmp/client"
	"github.com/vireostream/corestream/internal/streamer"
)

// publishQueueSize bounds the keyframe-aware queue sitting in front of
// the wire. PublishSink always creates that queue with
// queue.DropOldestNonKey; it has no option that selects another policy.
const publishQueueSize = 128

// dialTimeout bounds the initial TCP connect; the handshake and dialogue
// themselves are left without a deadline per spec §5 ("no built-in read
// or write timeouts").
const dialTimeout = 10 * time.Second

// splitPath extracts app and stream name from the path of a parsed RTMP
// URL, matching the 2/3/N-segment rule the teacher's RTMP connector uses.
func splitPath(u *url.URL) (app, stream string) {
	nu := *u
	nu.ForceQuery = false

	segs := strings.Split(nu.RequestURI(), "/")
	switch {
	case len(segs) == 2:
		app = segs[1]
	case len(segs) == 3:
		app = segs[1]
		stream = segs[2]
	case len(segs) > 3:
		app = strings.Join(segs[1:3], "/")
		stream = strings.Join(segs[3:], "/")
	}
	return app, stream
}

// tcURL rebuilds the tcUrl the connect command carries: scheme://host/app,
// with no path or query beyond the app segment.
func tcURL(u *url.URL, app string) string {
	nu := *u
	nu.RawQuery = ""
	nu.Path = "/"
	return nu.String() + app
}

func dial(rawURL string) (conn net.Conn, app, stream, tc string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", "", "", fmt.Errorf("invalid RTMP URL: %w", err)
	}
	if u.Scheme != "rtmp" {
		return nil, "", "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	app, stream = splitPath(u)
	tc = tcURL(u, app)

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "1935")
	}

	conn, err = net.DialTimeout("tcp", host, dialTimeout)
	if err != nil {
		return nil, "", "", "", err
	}
	return conn, app, stream, tc, nil
}

// PlaySource is a source streamer that pulls a remote RTMP stream in
// play mode and fans the reassembled media out to its sinkers. It has no
// sample-table bookkeeping of its own: every packet it emits already
// carries the timing and flags the wire message encoded.
type PlaySource struct {
	*streamer.Base

	cl *client.Client
}

// NewPlaySource allocates an RTMP play-mode source streamer.
func NewPlaySource(name string) *PlaySource {
	s := &PlaySource{}
	s.Base = streamer.NewBase(name, nil)
	return s
}

// SourceData implements streamer.Streamer; a play source never receives
// packets from upstream (§4.B: every node carries the full capability
// set regardless of role).
func (s *PlaySource) SourceData(p *pkt.Packet) error {
	return s.Fanout(p)
}

// StartNetwork implements streamer.NetworkStreamer: dials url, runs the
// handshake/connect/createStream/play dialogue, and starts the read loop.
// When loop is nil the read loop runs on its own goroutine, per §4.B's
// "must spawn its own event loop thread" default.
func (s *PlaySource) StartNetwork(url string, loop streamer.Loop) error {
	conn, app, stream, tc, err := dial(url)
	if err != nil {
		return err
	}

	s.cl = client.NewClient(conn, client.RolePlay,
		func(event, value string) { s.Report(event, value) },
		func(p *pkt.Packet) error { return s.Fanout(p) },
	)
	s.cl.SetLogger(s.Logger())

	if err := s.cl.Start(app, stream, tc); err != nil {
		return err
	}

	run := func() { _ = s.cl.ReadLoop() }
	if loop != nil {
		loop.Run(run)
	} else {
		go run()
	}
	return nil
}

// StopNetwork implements streamer.NetworkStreamer. It closes the
// connection, which ends the read loop; it does not wait for the read
// loop to return.
func (s *PlaySource) StopNetwork() error {
	if s.cl == nil {
		return nil
	}
	return s.cl.Close()
}

// PublishSink is a sinker streamer that forwards packets handed to it
// via SourceData onto a remote RTMP server in publish mode, per §4.E's
// "Packets arriving via rtmp_write(packet) are serialised to csid 4
// (audio) or 6 (video)".
type PublishSink struct {
	*streamer.Base

	cl      *client.Client
	pending *queue.Bounded
}

// NewPublishSink allocates an RTMP publish-mode sinker streamer.
func NewPublishSink(name string) *PublishSink {
	s := &PublishSink{}
	s.Base = streamer.NewBase(name, nil)
	return s
}

// SourceData implements streamer.Streamer: every packet handed to a
// publish sink is enqueued for the wire (dropping per the queue's
// overflow policy if the connection can't keep up) and also fanned out
// to any of its own sinkers (loopback observers, matching the generic
// capability set every node carries).
func (s *PublishSink) SourceData(p *pkt.Packet) error {
	if s.pending != nil {
		s.pending.Push(p)
	}
	return s.Fanout(p)
}

// StartNetwork implements streamer.NetworkStreamer: dials url, runs the
// handshake/connect/createStream/publish dialogue, and starts the read
// loop, which only drains control traffic in publish mode (§4.E). The
// read loop runs on loop when one is given, and on its own goroutine
// otherwise.
func (s *PublishSink) StartNetwork(url string, loop streamer.Loop) error {
	conn, app, stream, tc, err := dial(url)
	if err != nil {
		return err
	}

	s.cl = client.NewClient(conn, client.RolePublish,
		func(event, value string) { s.Report(event, value) },
		nil,
	)
	s.cl.SetLogger(s.Logger())

	if err := s.cl.Start(app, stream, tc); err != nil {
		return err
	}

	s.pending = queue.NewBounded(publishQueueSize, queue.DropOldestNonKey, s.Logger())
	go s.drainPending()

	run := func() { _ = s.cl.ReadLoop() }
	if loop != nil {
		loop.Run(run)
	} else {
		go run()
	}
	return nil
}

// drainPending pulls queued packets and writes them through the client's
// own outbound buffering, until the queue is closed by StopNetwork.
func (s *PublishSink) drainPending() {
	for {
		v, ok := s.pending.Pull()
		if !ok {
			return
		}
		if err := s.cl.Write(v.(*pkt.Packet)); err != nil {
			return
		}
	}
}

// StopNetwork implements streamer.NetworkStreamer. It closes the queue
// and the connection, which ends the read loop; it does not wait for the
// read loop to return.
func (s *PublishSink) StopNetwork() error {
	if s.pending != nil {
		s.pending.Close()
	}
	if s.cl == nil {
		return nil
	}
	return s.cl.Close()
}
