// Package streamer defines the node substrate that media pipelines are
// built from: named streamers wired into a directed graph of sinkers,
// carrying *pkt.Packet downstream.
package streamer

import (
	"fmt"

	"github.com/vireostream/corestream/internal/logger"
	"github.com/vireostream/corestream/internal/pkt"
	"github.com/vireostream/corestream/internal/reporter"
)

// ErrUnknownOption is returned by AddOption for an unrecognized key.
var ErrUnknownOption = fmt.Errorf("unknown option")

// Loop is an externally supplied event-loop handle. A nil Loop passed to
// StartNetwork tells the streamer to run its loop on a goroutine of its
// own. The StopNetwork implementations in this repository end that loop
// by closing the connection and do not wait for the goroutine to exit.
type Loop interface {
	Run(func())
}

// Sinker is anything that can receive packets from upstream.
type Sinker interface {
	StreamerName() string
	SourceData(p *pkt.Packet) error
}

// Streamer is the capability set every node in the pipeline implements.
type Streamer interface {
	StreamerName() string
	SetLogger(l logger.Writer)
	AddSinker(s Sinker)
	RemoveSinker(name string) int
	SourceData(p *pkt.Packet) error
	AddOption(key, value string) error
	SetReporter(r reporter.Reporter)
}

// NetworkStreamer is implemented by streamers with a network lifecycle.
// Not every Streamer needs one (§4.B: "start_network is optional").
type NetworkStreamer interface {
	Streamer
	StartNetwork(url string, loop Loop) error
	StopNetwork() error
}

// OptionValidator checks and applies a single option value.
type OptionValidator func(value string) error

// Base is an embeddable implementation of sinker fanout, reporter
// dispatch, and option-key validation, shared by every concrete streamer
// in this repository.
type Base struct {
	name    string
	logger  logger.Writer
	report  reporter.Reporter
	sinkers []Sinker

	options map[string]OptionValidator
}

// NewBase allocates a Base for a streamer with the given name and
// recognized option keys.
func NewBase(name string, options map[string]OptionValidator) *Base {
	return &Base{
		name:    name,
		options: options,
	}
}

// StreamerName implements Streamer.
func (b *Base) StreamerName() string {
	return b.name
}

// SetLogger implements Streamer.
func (b *Base) SetLogger(l logger.Writer) {
	b.logger = l
}

// Logger returns the current logger, or a no-op one if none was set.
func (b *Base) Logger() logger.Writer {
	if b.logger == nil {
		return discardLogger{}
	}
	return b.logger
}

// SetReporter implements Streamer.
func (b *Base) SetReporter(r reporter.Reporter) {
	b.report = r
}

// Report delivers a best-effort event through the configured reporter, if
// any.
func (b *Base) Report(typ, value string) {
	if b.report != nil {
		b.report.OnReport(b.name, typ, value)
	}
}

// AddSinker inserts a sinker by name; a repeat insertion under the same
// name overwrites the previous one.
func (b *Base) AddSinker(s Sinker) {
	name := s.StreamerName()
	for i, existing := range b.sinkers {
		if existing.StreamerName() == name {
			b.sinkers[i] = s
			return
		}
	}
	b.sinkers = append(b.sinkers, s)
}

// RemoveSinker removes sinkers registered under name, returning the
// number removed (0 or 1, since AddSinker enforces uniqueness by name).
func (b *Base) RemoveSinker(name string) int {
	removed := 0
	out := b.sinkers[:0]
	for _, s := range b.sinkers {
		if s.StreamerName() == name {
			removed++
			continue
		}
		out = append(out, s)
	}
	b.sinkers = out
	return removed
}

// Sinkers returns the current fanout list, in registration order.
func (b *Base) Sinkers() []Sinker {
	return b.sinkers
}

// Fanout synchronously calls SourceData on every registered sinker, in
// order, stopping at the first error. Because this call is synchronous,
// a slow sinker back-pressures the caller by blocking return, per §5.
func (b *Base) Fanout(p *pkt.Packet) error {
	for _, s := range b.sinkers {
		if err := s.SourceData(p); err != nil {
			return err
		}
	}
	return nil
}

// AddOption implements Streamer. An unrecognized key fails with
// ErrUnknownOption.
func (b *Base) AddOption(key, value string) error {
	v, ok := b.options[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, key)
	}
	return v(value)
}

type discardLogger struct{}

func (discardLogger) Log(logger.Level, string, ...interface{}) {}
