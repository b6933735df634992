// Package logging provides the pluggable logger the core uses for
// warnings (§7: "Warnings ... are logged through a pluggable logger,
// never raised"). It deliberately stays on the standard library's log
// package, matching the teacher's own cmd-level logging idiom rather
// than introducing a logging dependency the teacher never used.
package logging

import (
	"log"
	"os"
)

// Logger is the minimal surface the store and query engine need.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StdLogger adapts the standard library's *log.Logger to Logger.
type StdLogger struct {
	*log.Logger
	debug bool
}

// NewStdLogger returns a Logger writing to stderr with a timestamp
// prefix, matching the default flags of the standard library logger.
func NewStdLogger(debug bool) *StdLogger {
	return &StdLogger{Logger: log.New(os.Stderr, "", log.LstdFlags), debug: debug}
}

func (l *StdLogger) Debugf(format string, args ...any) {
	if l.debug {
		l.Printf("DEBUG "+format, args...)
	}
}

func (l *StdLogger) Warnf(format string, args ...any) {
	l.Printf("WARN "+format, args...)
}

func (l *StdLogger) Errorf(format string, args ...any) {
	l.Printf("ERROR "+format, args...)
}

// Noop discards everything. Useful as a default when the caller does
// not supply a logger.
type Noop struct{}

func (Noop) Debugf(string, ...any) {}
func (Noop) Warnf(string, ...any)  {}
func (Noop) Errorf(string, ...any) {}
