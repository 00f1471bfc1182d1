package logger

import "time"

// Level is a log severity.
type Level int

// Log levels.
const (
	Debug Level = iota
	Info
	Warn
	Error
)

// Destination is a log destination.
type Destination int

// Log destinations.
const (
	DestinationStdout Destination = iota
	DestinationFile
	DestinationSyslog
)

// Writer is anything that can receive log lines. Streamers accept a
// Writer rather than a concrete *Logger so tests can inject a recorder.
type Writer interface {
	Log(level Level, format string, args ...interface{})
}

type destination interface {
	log(t time.Time, level Level, format string, args ...any)
	close()
}
