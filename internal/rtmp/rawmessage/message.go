// Package rawmessage reassembles and fragments RTMP messages from/to the
// chunk stream, without any knowledge of what a message's body means.
package rawmessage

import (
	"time"

	"github.com/vireostream/corestream/internal/rtmp/base"
)

// Message is a RTMP message with its body fully reassembled.
type Message struct {
	ChunkStreamID   uint32
	Timestamp       time.Duration
	Type            base.MessageType
	MessageStreamID uint32
	Body            []byte
}
