// Package logger contains a logger implementation, shared by every
// streamer in this repository via the Writer interface.
package logger

import (
	"io"
	"os"
	"sync"
	"time"
)

// Logger is a log handler that fans a line out to one or more
// destinations.
type Logger struct {
	Level        Level
	Destinations []Destination
	Structured   bool
	File         string
	SyslogPrefix string

	mutex        sync.Mutex
	destinations []destination

	// overridable for tests
	timeNow func() time.Time
	stdout  io.Writer
}

// Initialize opens every configured destination.
func (lh *Logger) Initialize() error {
	if lh.timeNow == nil {
		lh.timeNow = time.Now
	}
	if lh.stdout == nil {
		lh.stdout = os.Stdout
	}

	for _, destType := range lh.Destinations {
		switch destType {
		case DestinationStdout:
			lh.destinations = append(lh.destinations, newDestionationStdout(lh.Structured, lh.stdout))

		case DestinationFile:
			dest, err := newDestinationFile(lh.Structured, lh.File)
			if err != nil {
				lh.Close()
				return err
			}
			lh.destinations = append(lh.destinations, dest)

		case DestinationSyslog:
			dest, err := newDestinationSyslog(lh.SyslogPrefix)
			if err != nil {
				lh.Close()
				return err
			}
			lh.destinations = append(lh.destinations, dest)
		}
	}

	return nil
}

// Close closes every open destination.
func (lh *Logger) Close() {
	for _, dest := range lh.destinations {
		dest.close()
	}
}

// Log implements Writer.
func (lh *Logger) Log(level Level, format string, args ...interface{}) {
	if level < lh.Level {
		return
	}

	lh.mutex.Lock()
	defer lh.mutex.Unlock()

	t := lh.timeNow()

	for _, dest := range lh.destinations {
		dest.log(t, level, format, args...)
	}
}
