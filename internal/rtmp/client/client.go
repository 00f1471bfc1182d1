// Package client drives the client side of a RTMP session: handshake,
// connect/createStream/play/publish dialogue, chunk-size/window-size
// negotiation, and the play/publish media loops, as a role-parameterized
// phase state machine.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4/pkg/ringbuffer"
	"github.com/notedit/rtmp/format/flv/flvio"

	"github.com/vireostream/corestream/internal/asyncwriter"
	"github.com/vireostream/corestream/internal/errordumper"
	"github.com/vireostream/corestream/internal/logger"
	"github.com/vireostream/corestream/internal/pkt"
	"github.com/vireostream/corestream/internal/rtmp/bytecounter"
	"github.com/vireostream/corestream/internal/rtmp/handshake"
	"github.com/vireostream/corestream/internal/rtmp/message"
)

// Role selects which half of the connect/createStream dialogue a Client
// plays: the reader of a remote stream, or the publisher of a local one.
type Role int

// Role values.
const (
	RolePlay Role = iota
	RolePublish
)

// Phase is a point in the client connection lifecycle, named per the
// session state machine: init, handshake steps, connect/createStream
// steps, play-or-publish, stream_ready, and the terminal closed state.
type Phase int

// Phase values, in the order the state machine moves through them.
const (
	PhaseInit Phase = iota
	PhaseHandshakeC0C1Sent
	PhaseHandshakeS0S1S2Received
	PhaseHandshakeC2Sent
	PhaseConnectSent
	PhaseConnectResponseReceived
	PhaseCreateStreamSent
	PhaseCreateStreamResponseReceived
	PhasePlaySent
	PhasePublishSent
	PhaseStreamReady
	PhaseClosed
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseHandshakeC0C1Sent:
		return "handshake_c0c1_sent"
	case PhaseHandshakeS0S1S2Received:
		return "handshake_s0s1s2_received"
	case PhaseHandshakeC2Sent:
		return "handshake_c2_sent"
	case PhaseConnectSent:
		return "connect_sent"
	case PhaseConnectResponseReceived:
		return "connect_response_received"
	case PhaseCreateStreamSent:
		return "create_stream_sent"
	case PhaseCreateStreamResponseReceived:
		return "create_stream_response_received"
	case PhasePlaySent:
		return "play_sent"
	case PhasePublishSent:
		return "publish_sent"
	case PhaseStreamReady:
		return "stream_ready"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	commandChunkStreamID = 3
	audioChunkStreamID   = 4
	videoChunkStreamID   = 6

	// h264 video message byte layout, per message.Video.H264Type.
	h264TypeConfig = 0

	// publish-mode defaults for audio framing; Packet carries no explicit
	// sample rate or channel count, so the client assumes the common FLV
	// AAC case (44 kHz, 16-bit, stereo).
	defaultAudioRate     = 3
	defaultAudioDepth    = 1
	defaultAudioChannels = 1

	outboundQueueSize = 256
	ackQueueSize      = 32

	defaultWindowAckSize = 2500000
	defaultChunkSize     = 65536
)

// ControlCallback receives every required control-plane notification
// (handshake, connect, chunk/window/bandwidth negotiation, ack,
// createStream, play/publish, close), named per the event list the
// reporter surfaces. value is a JSON-ish string, ready to hand to a
// reporter as-is.
type ControlCallback func(event string, value string)

// DataCallback receives reassembled media in play mode. A non-nil error
// closes the session.
type DataCallback func(p *pkt.Packet) error

// Client is a single RTMP client session, either reading (play) or
// writing (publish) one stream.
type Client struct {
	conn     net.Conn
	bc       *bytecounter.ReadWriter
	mrw      *message.ReadWriter
	role     Role
	phase    Phase
	streamID uint32
	log      logger.Writer

	control ControlCallback
	data    DataCallback

	writeMu   sync.Mutex
	ackWriter *asyncwriter.Writer
	ackErrors *errordumper.Dumper

	outbound     *ringbuffer.RingBuffer
	encodeErrors *errordumper.Dumper
	closeOnce    sync.Once
}

// NewClient allocates a Client over conn. control and data may be nil.
func NewClient(conn net.Conn, role Role, control ControlCallback, data DataCallback) *Client {
	if control == nil {
		control = func(string, string) {}
	}
	if data == nil {
		data = func(*pkt.Packet) error { return nil }
	}

	return &Client{
		conn:    conn,
		role:    role,
		phase:   PhaseInit,
		control: control,
		data:    data,
		log:     discardLogger{},
	}
}

// SetLogger installs the destination for warnings the client itself
// generates (dropped or failed acks) rather than reporting through the
// control callback. Unencodable publish packets are reported through the
// control callback as "PublishEncodeError" events.
func (c *Client) SetLogger(l logger.Writer) {
	if l != nil {
		c.log = l
	}
}

// Phase returns the current state machine phase.
func (c *Client) Phase() Phase {
	return c.phase
}

type discardLogger struct{}

func (discardLogger) Log(logger.Level, string, ...interface{}) {}

func (c *Client) report(event string, format string, args ...interface{}) {
	c.control(event, fmt.Sprintf(format, args...))
}

// writeMessage serializes a message.Message write against every other
// writer of this session: the dialogue itself runs single-threaded, but
// once stream_ready is reached the ack writeback (driven by the read
// loop) and the publish writer goroutine both call this, and both write
// to the same net.Conn.
func (c *Client) writeMessage(msg message.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.mrw.Write(msg)
}

// Start runs the handshake and the connect/createStream/play|publish
// dialogue against app/streamName, reachable at tcURL. On success the
// client reaches PhaseStreamReady; in publish mode the outbound queue
// and writer are also started. Any failure closes the session.
func (c *Client) Start(app, streamName, tcURL string) error {
	if err := c.runDialogue(app, streamName, tcURL); err != nil {
		c.fail(err)
		return err
	}

	c.phase = PhaseStreamReady

	if c.role == RolePublish {
		c.outbound, _ = ringbuffer.New(outboundQueueSize)
		c.encodeErrors = &errordumper.Dumper{
			OnReport: func(n uint64, last error) {
				c.report("PublishEncodeError", `{"count":%d,"last":%q}`, n, last.Error())
			},
		}
		c.encodeErrors.Start()
		go c.runWriter()
	}

	return nil
}

func (c *Client) runDialogue(app, streamName, tcURL string) error {
	c.report("SendC0C1", `{"bytes":1537}`)
	if err := handshake.DoClient(c.conn, false); err != nil {
		return err
	}
	c.phase = PhaseHandshakeC0C1Sent
	c.phase = PhaseHandshakeS0S1S2Received
	c.report("RecvS0S1S2", `{"bytes":3073}`)
	c.phase = PhaseHandshakeC2Sent

	c.bc = bytecounter.NewReadWriter(c.conn)

	// Acks are due on a threshold computed inside Reader.Read, i.e. from
	// whichever goroutine happens to be reading (the dialogue goroutine
	// now, the ReadLoop goroutine later). Writing them back through
	// ackWriter rather than inline keeps that callback non-blocking; the
	// ack write itself goes through writeMessage, whose mutex serializes
	// it against the publish writer goroutine's media writes on c.conn.
	c.ackWriter = asyncwriter.New(ackQueueSize, c.log)
	c.ackWriter.Start()
	c.ackErrors = &errordumper.Dumper{
		OnReport: func(n uint64, last error) {
			c.log.Log(logger.Warn, "%d ack write(s) failed, last: %v", n, last)
		},
	}
	c.ackErrors.Start()
	go func() {
		if err, ok := <-c.ackWriter.Error(); ok && err != nil && c.phase != PhaseClosed {
			c.ackErrors.Add(err)
		}
	}()

	var mrw *message.ReadWriter
	mrw = message.NewReadWriter(c.bc, func(count uint32) error {
		c.ackWriter.Push(func() error {
			if err := c.writeMessage(&message.Acknowledge{Value: count}); err != nil {
				return err
			}
			c.report("CtrlAck", `{"count":%d}`, count)
			return nil
		})
		return nil
	})
	c.mrw = mrw

	if err := c.writeMessage(&message.SetWindowAckSize{Value: defaultWindowAckSize}); err != nil {
		return err
	}
	c.report("WindowSize", `{"value":%d}`, defaultWindowAckSize)

	if err := c.writeMessage(&message.SetPeerBandwidth{Value: defaultWindowAckSize, Type: 2}); err != nil {
		return err
	}
	c.report("BandWidth", `{"value":%d,"type":2}`, defaultWindowAckSize)

	if err := c.writeMessage(&message.SetChunkSize{Value: defaultChunkSize}); err != nil {
		return err
	}
	c.report("ChunkSize", `{"value":%d}`, defaultChunkSize)

	if err := c.connect(app, tcURL); err != nil {
		return err
	}

	if err := c.createStream(); err != nil {
		return err
	}

	if c.role == RolePlay {
		return c.play(streamName)
	}
	return c.publish(streamName, app)
}

func (c *Client) connect(app, tcURL string) error {
	c.phase = PhaseConnectSent
	c.report("RtmpConnectSend", `{"app":%q,"tcUrl":%q}`, app, tcURL)

	err := c.writeMessage(&message.CommandAMF0{
		ChunkStreamID: commandChunkStreamID,
		Name:          "connect",
		CommandID:     1,
		Arguments: []interface{}{
			flvio.AMFMap{
				{K: "app", V: app},
				{K: "type", V: "nonprivate"},
				{K: "flashVer", V: "FMS.3.1"},
				{K: "tcUrl", V: tcURL},
			},
		},
	})
	if err != nil {
		return err
	}

	cmd, err := c.readCommandResult(1, "connect")
	if err != nil {
		return err
	}

	c.phase = PhaseConnectResponseReceived
	c.report("RtmpConnectRecv", `{"items":%q}`, flattenForReport(cmd))
	return nil
}

func (c *Client) createStream() error {
	c.phase = PhaseCreateStreamSent
	c.report("CreateStreamSend", "{}")

	err := c.writeMessage(&message.CommandAMF0{
		ChunkStreamID: commandChunkStreamID,
		Name:          "createStream",
		CommandID:     2,
		Arguments:     []interface{}{nil},
	})
	if err != nil {
		return err
	}

	cmd, err := c.readCommandResult(2, "createStream")
	if err != nil {
		return err
	}

	if len(cmd.Arguments) >= 2 {
		if id, ok := cmd.Arguments[1].(float64); ok {
			c.streamID = uint32(id)
		}
	}

	c.phase = PhaseCreateStreamResponseReceived
	c.report("CreateStreamRecv", `{"stream_id":%d}`, c.streamID)
	return nil
}

func (c *Client) play(streamName string) error {
	c.phase = PhasePlaySent
	c.report("PlayPublishSend", `{"action":"play","stream":%q}`, streamName)

	err := c.writeMessage(&message.UserControlSetBufferLength{
		StreamID:     c.streamID,
		BufferLength: 0x64,
	})
	if err != nil {
		return err
	}

	err = c.writeMessage(&message.CommandAMF0{
		ChunkStreamID:   audioChunkStreamID,
		MessageStreamID: c.streamID,
		Name:            "play",
		CommandID:       0,
		Arguments:       []interface{}{nil, streamName},
	})
	if err != nil {
		return err
	}

	cmd, err := c.readCommandResult(0, "onStatus")
	if err != nil {
		return err
	}

	c.report("PlayPublishRecv", `{"action":"play","items":%q}`, flattenForReport(cmd))
	return nil
}

func (c *Client) publish(streamName, app string) error {
	c.phase = PhasePublishSent
	c.report("PlayPublishSend", `{"action":"publish","stream":%q}`, streamName)

	err := c.writeMessage(&message.CommandAMF0{
		ChunkStreamID:   audioChunkStreamID,
		MessageStreamID: c.streamID,
		Name:            "publish",
		CommandID:       0,
		Arguments:       []interface{}{nil, streamName, "live"},
	})
	if err != nil {
		return err
	}

	cmd, err := c.readCommandResult(0, "onStatus")
	if err != nil {
		return err
	}

	c.report("PlayPublishRecv", `{"action":"publish","items":%q}`, flattenForReport(cmd))
	return nil
}

// readCommandResult reads messages until it sees a CommandAMF0 named
// "_result"/"_error" (or, for play/publish, "onStatus") matching
// commandID; an "_error" or a rejecting onStatus/level fails the phase.
func (c *Client) readCommandResult(commandID int, forPhase string) (*message.CommandAMF0, error) {
	for {
		msg, err := c.mrw.Read()
		if err != nil {
			return nil, err
		}

		cmd, ok := msg.(*message.CommandAMF0)
		if !ok || cmd.CommandID != commandID {
			continue
		}

		switch cmd.Name {
		case "_error":
			return nil, fmt.Errorf("server refused %s: %s", forPhase, flattenForReport(cmd))
		case "_result", "onStatus":
			if !resultIsSuccess(cmd) {
				return nil, fmt.Errorf("server rejected %s: %s", forPhase, flattenForReport(cmd))
			}
			return cmd, nil
		}
	}
}

func resultIsSuccess(cmd *message.CommandAMF0) bool {
	if len(cmd.Arguments) < 2 {
		return true
	}
	if m := message.FlattenAMFMap(cmd.Arguments[1]); m != nil {
		if level, ok := m["level"]; ok {
			return level != "error"
		}
	}
	return true
}

func flattenForReport(cmd *message.CommandAMF0) string {
	if cmd == nil || len(cmd.Arguments) < 2 {
		return "{}"
	}
	m := message.FlattenAMFMap(cmd.Arguments[1])
	if m == nil {
		return "{}"
	}
	out := "{"
	first := true
	for k, v := range m {
		if !first {
			out += ","
		}
		first = false
		out += fmt.Sprintf("%q:%q", k, v)
	}
	return out + "}"
}

// ReadLoop reads and dispatches messages until the connection fails or
// is closed. In play mode, audio/video messages become Packets delivered
// to the DataCallback; AMF0 data messages are reported as "MetaData"
// control events and are not delivered as Packets. In publish mode, it only drains control
// traffic (acks, bandwidth changes) since media flows outbound.
func (c *Client) ReadLoop() error {
	for {
		msg, err := c.mrw.Read()
		if err != nil {
			c.fail(err)
			return err
		}

		if c.role != RolePlay {
			continue
		}

		var p *pkt.Packet
		switch tmsg := msg.(type) {
		case *message.Video:
			p = videoToPacket(tmsg)
		case *message.Audio:
			p = audioToPacket(tmsg)
		case *message.DataAMF0:
			c.report("MetaData", metadataForReport(tmsg))
			continue
		default:
			continue
		}
		if p == nil {
			continue
		}

		if err := c.data(p); err != nil {
			c.fail(err)
			return err
		}
	}
}

func metadataForReport(m *message.DataAMF0) string {
	if len(m.Payload) < 2 {
		return "{}"
	}
	if flat := message.FlattenAMFMap(m.Payload[1]); flat != nil {
		out := "{"
		first := true
		for k, v := range flat {
			if !first {
				out += ","
			}
			first = false
			out += fmt.Sprintf("%q:%q", k, v)
		}
		return out + "}"
	}
	return "{}"
}

func videoToPacket(m *message.Video) *pkt.Packet {
	p := pkt.New(len(m.Payload))
	p.AVType = pkt.AVTypeVideo
	p.CodecType = pkt.CodecH264
	p.FormatType = pkt.FormatContainer
	p.DTS = m.DTS
	p.PTS = m.DTS + m.PTSDelta
	p.IsKeyframe = m.IsKeyFrame
	p.IsSequenceHeader = m.H264Type == h264TypeConfig
	p.Payload = append(p.Payload, m.Payload...)
	return p
}

func audioToPacket(m *message.Audio) *pkt.Packet {
	p := pkt.New(len(m.Payload))
	p.AVType = pkt.AVTypeAudio
	p.FormatType = pkt.FormatContainer
	p.DTS = m.DTS
	p.PTS = m.DTS
	if m.Codec == message.AudioCodecMPEG4Audio {
		p.CodecType = pkt.CodecAAC
		p.IsSequenceHeader = m.AACType == message.AACPacketTypeConfig
	}
	p.Payload = append(p.Payload, m.Payload...)
	return p
}

// Write enqueues a Packet for transmission in publish mode. Per the
// routing rule, metadata packets are dropped rather than sent. The
// queue is a plain bounded ring buffer: on overflow the newest packet is
// dropped, with no keyframe awareness (that policy belongs to the
// queue.Bounded that rtmp.PublishSink keeps in front of this one).
func (c *Client) Write(p *pkt.Packet) error {
	if c.role != RolePublish {
		return fmt.Errorf("client is not in publish mode")
	}
	if p.AVType == pkt.AVTypeMetadata {
		return nil
	}
	if c.outbound == nil {
		return fmt.Errorf("client is not ready")
	}

	if !c.outbound.Push(p) {
		c.report("PlayPublishSend", `{"dropped":true}`)
	}
	return nil
}

// runWriter drains the outbound queue until it is closed, serializing
// each Packet to the wire. It exits on its own once Close/fail closes
// the ring buffer; nothing waits on it.
func (c *Client) runWriter() {
	for {
		v, ok := c.outbound.Pull()
		if !ok {
			return
		}

		p := v.(*pkt.Packet)
		msg, err := packetToMessage(p, c.streamID)
		if err != nil {
			c.encodeErrors.Add(err)
			continue
		}
		if msg == nil {
			continue
		}

		if err := c.writeMessage(msg); err != nil {
			c.fail(err)
			return
		}
	}
}

func packetToMessage(p *pkt.Packet, streamID uint32) (message.Message, error) {
	switch p.AVType {
	case pkt.AVTypeVideo:
		if p.CodecType != pkt.CodecH264 {
			return nil, fmt.Errorf("unsupported video codec for publish: %s", p.CodecType)
		}
		h264Type := uint8(1)
		if p.IsSequenceHeader {
			h264Type = h264TypeConfig
		}
		return &message.Video{
			ChunkStreamID:   videoChunkStreamID,
			MessageStreamID: streamID,
			DTS:             p.DTS,
			IsKeyFrame:      p.IsKeyframe,
			H264Type:        h264Type,
			PTSDelta:        p.PTS - p.DTS,
			Payload:         p.Payload,
		}, nil

	case pkt.AVTypeAudio:
		if p.CodecType != pkt.CodecAAC {
			return nil, fmt.Errorf("unsupported audio codec for publish: %s", p.CodecType)
		}
		aacType := message.AACPacketTypeAU
		if p.IsSequenceHeader {
			aacType = message.AACPacketTypeConfig
		}
		return &message.Audio{
			ChunkStreamID:   audioChunkStreamID,
			MessageStreamID: streamID,
			DTS:             p.DTS,
			Codec:           message.AudioCodecMPEG4Audio,
			Rate:            defaultAudioRate,
			Depth:           defaultAudioDepth,
			Channels:        defaultAudioChannels,
			AACType:         aacType,
			Payload:         p.Payload,
		}, nil

	default:
		return nil, nil
	}
}

// Close terminates the session, reporting the close event once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.phase = PhaseClosed
		c.stopAuxiliaries()
		if c.outbound != nil {
			c.outbound.Close()
		}
		err = c.conn.Close()
		c.report("close", `{"code":0}`)
	})
	return err
}

// fail closes the session the same way Close does, but tags the close
// event with the error that caused it. Safe to call from the read loop
// or from the publish writer goroutine; closeOnce makes it idempotent
// with a concurrent Close.
func (c *Client) fail(cause error) {
	c.closeOnce.Do(func() {
		c.phase = PhaseClosed
		c.stopAuxiliaries()
		if c.outbound != nil {
			c.outbound.Close()
		}
		c.conn.Close()
		c.report("close", `{"code":1,"reason":%q}`, cause.Error())
	})
}

// stopAuxiliaries tears down the background counters and the ack writer
// started by runDialogue. Called once, under closeOnce.
func (c *Client) stopAuxiliaries() {
	if c.ackWriter != nil {
		c.ackWriter.Stop()
	}
	if c.ackErrors != nil {
		c.ackErrors.Stop()
	}
	if c.encodeErrors != nil {
		c.encodeErrors.Stop()
	}
}

// WriteDeadline applies t to the underlying connection's write deadline;
// a zero Time disables it, matching how the teacher toggles deadlines
// around the handshake and the long-lived read loop.
func (c *Client) WriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

// ReadDeadline applies t to the underlying connection's read deadline.
func (c *Client) ReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}
