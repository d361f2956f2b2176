// Package atline provides the low level AT command framing used by the
// RockBLOCK driver: one command out, one response line back. Unlike a
// full AT modem driver built around an actor loop, Line is a plain
// sequential type — every call blocks the caller directly, matching the
// single-threaded cooperative model the RockBLOCK protocol state machine
// requires (a satellite session runs for tens of seconds and nothing
// else may be interleaved with it on the same transport).
package atline

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cuspaceflight/rockblock-ui/rberrors"
)

// StatusOK is the success sentinel returned by the modem on its own
// line once echo and verbose have both been disabled.
const StatusOK = "0"

// Transport is the minimal byte-oriented link the line layer requires.
// serial.Port satisfies this interface, as does any io.ReadWriter
// wrapped to provide ReadLine semantics (empty, nil on timeout).
type Transport interface {
	Write(data []byte) error
	ReadLine() (string, error)
}

// Line frames AT commands onto a Transport and parses the single-line
// responses the RockBLOCK returns once non-verbose mode is in effect.
type Line struct {
	t   Transport
	log *logrus.Logger
}

// Option configures a Line built by New.
type Option func(*Line)

// WithLogger sets the logger used to record commands and responses at
// debug level. Defaults to logrus's standard logger.
func WithLogger(l *logrus.Logger) Option {
	return func(a *Line) { a.log = l }
}

// New creates a Line over the given Transport.
func New(t Transport, opts ...Option) *Line {
	l := &Line{t: t, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Command sends "AT" + cmd + "\r" to the modem.
func (l *Line) Command(cmd string) error {
	line := "AT" + cmd + "\r"
	l.log.WithField("tx", cmd).Debug("issuing AT command")
	if err := l.t.Write([]byte(line)); err != nil {
		return rberrors.TransportError{Cause: errors.Wrap(err, "write command")}
	}
	return nil
}

// Write sends raw bytes directly to the transport, bypassing the
// "AT"+cmd+"\r" command framing. Used for the payload that follows a
// READY prompt (+SBDWT).
func (l *Line) Write(data string) error {
	l.log.WithField("tx", data).Debug("writing raw payload")
	if err := l.t.Write([]byte(data)); err != nil {
		return rberrors.TransportError{Cause: errors.Wrap(err, "write payload")}
	}
	return nil
}

// Response reads one line from the modem and strips trailing
// whitespace. The modem intermittently emits empty lines between framed
// responses; if the raw (unstripped) line was empty and retry > 0, up
// to retry additional lines are read looking for a non-empty one. If
// still empty, Response fails with rberrors.TimeoutError{Query: "Read"}.
// If expect is non-empty, the stripped line must equal it or Response
// fails with rberrors.ExpectationFailureError.
func (l *Line) Response(expect string, retry int) (string, error) {
	raw, err := l.t.ReadLine()
	if err != nil {
		return "", rberrors.TransportError{Cause: errors.Wrap(err, "read response")}
	}
	if raw == "" && retry > 0 {
		for i := 0; i < retry && raw == ""; i++ {
			raw, err = l.t.ReadLine()
			if err != nil {
				return "", rberrors.TransportError{Cause: errors.Wrap(err, "read response")}
			}
		}
		if raw == "" {
			return "", rberrors.TimeoutError{Query: "Read", Attempts: retry}
		}
	}
	stripped := strings.TrimRight(raw, " \t\r\n")
	l.log.WithField("rx", stripped).Debug("received response")
	if expect != "" && stripped != expect {
		return "", rberrors.ExpectationFailureError{Expected: expect, Actual: stripped}
	}
	return stripped, nil
}

// ParseCommaList parses a string of the form " a, b, c" into the
// integers [a, b, c], as returned by +SBDSX and +SBDIX/+SBDIXA.
func ParseCommaList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing comma list %q", s)
		}
		vals[i] = v
	}
	return vals, nil
}
