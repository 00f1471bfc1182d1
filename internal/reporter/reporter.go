// Package reporter contains the event-reporting surface that streamers use
// to notify best-effort observers of protocol events (handshake steps,
// control messages, close), distinct from the logger.
package reporter

import (
	"encoding/json"
	"io"
	"sync"
)

// Reporter receives best-effort event notifications from a streamer.
// name identifies the streamer (see Streamer.StreamerName), typ is an event kind
// such as "SendC0C1" or "ChunkSize", and value is a short JSON-ish payload.
type Reporter interface {
	OnReport(name, typ, value string)
}

// JSON is a Reporter that writes one JSON line per event to an io.Writer.
// It never returns an error to the caller: reporting is best-effort, per
// the streamer substrate's contract.
type JSON struct {
	W io.Writer

	mutex sync.Mutex
}

type jsonEvent struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// OnReport implements Reporter.
func (j *JSON) OnReport(name, typ, value string) {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	enc := json.NewEncoder(j.W)
	_ = enc.Encode(jsonEvent{Name: name, Type: typ, Value: value})
}
