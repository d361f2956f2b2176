// Package trace provides a decorator for the line transport that logs
// every raw write and raw line read at debug level, using the same
// logrus logger the rest of the driver uses for structured logging.
// It sits below atline.Line: atline logs the stripped, framed
// command/response; Trace logs the exact bytes/line that crossed the
// wire, which is occasionally what a field debugging session actually
// needs (e.g. to see whether a trailing '\r' made it through).
package trace

import (
	"github.com/sirupsen/logrus"
)

// Transport is the line-oriented transport Trace wraps — the same
// shape serial.Port and atline.Transport present.
type Transport interface {
	Write(data []byte) error
	ReadLine() (string, error)
}

// Trace decorates a Transport, logging all writes and reads to the
// logger at debug level.
type Trace struct {
	t    Transport
	l    *logrus.Logger
	wfmt string
	rfmt string
}

// Option modifies a Trace object created by New.
type Option func(*Trace)

// New creates a new trace on the Transport. The default logger is
// logrus's standard logger; use WithLogger to supply one wired to the
// driver's own output.
func New(t Transport, opts ...Option) *Trace {
	tr := &Trace{t: t, l: logrus.StandardLogger(), wfmt: "w: %s", rfmt: "r: %s"}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// WithLogger sets the logger used to record traffic.
func WithLogger(l *logrus.Logger) Option {
	return func(t *Trace) {
		t.l = l
	}
}

// WithReadFormat sets the format used for read logs.
func WithReadFormat(format string) Option {
	return func(t *Trace) {
		t.rfmt = format
	}
}

// WithWriteFormat sets the format used for write logs.
func WithWriteFormat(format string) Option {
	return func(t *Trace) {
		t.wfmt = format
	}
}

// Write passes data through to the wrapped Transport, logging it on
// success.
func (t *Trace) Write(data []byte) error {
	err := t.t.Write(data)
	if err == nil {
		t.l.Debugf(t.wfmt, string(data))
	}
	return err
}

// ReadLine passes through to the wrapped Transport, logging non-empty
// lines on success.
func (t *Trace) ReadLine() (string, error) {
	line, err := t.t.ReadLine()
	if err == nil && line != "" {
		t.l.Debugf(t.rfmt, line)
	}
	return line, err
}
