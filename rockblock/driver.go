// Package rockblock composes the line layer, negotiator, poller, and
// session engine into the public driver facade: send_recv, recv_all,
// msg_waiting, close. It is also where the message log and structured
// logging attach, since those are facade-level concerns rather than
// protocol concerns.
package rockblock

import (
	"github.com/sirupsen/logrus"

	"github.com/cuspaceflight/rockblock-ui/atline"
	"github.com/cuspaceflight/rockblock-ui/negotiator"
	"github.com/cuspaceflight/rockblock-ui/poller"
	"github.com/cuspaceflight/rockblock-ui/rberrors"
	"github.com/cuspaceflight/rockblock-ui/session"
)

// maxMOLen is the 340 byte SBD text payload limit enforced before any
// wire traffic is attempted.
const maxMOLen = 340

// Transport is the byte-oriented link the Driver owns for its entire
// lifetime; serial.Port satisfies this, as does any test double.
type Transport interface {
	atline.Transport
	Close() error
}

// Driver is the public facade over a RockBLOCK modem. A Driver owns
// exactly one Transport and, optionally, one MessageLog; both are
// closed together by Close.
type Driver struct {
	transport  Transport
	line       *atline.Line
	status     *poller.Poller
	engine     *session.Engine
	msgLog     *MessageLog
	log        *logrus.Logger
	retries    Retries
	retriesSet bool
}

// Retries controls the bounded-retry counts used internally by the
// poller and session engine: how many times NetworkTimeOK and SignalOK
// poll before giving up, how many sessions SendBuffer/RecvBuffer run,
// and how many times Session and Close's E1V1 re-enable read re-read
// after an empty line before failing. Field deployments tune these via
// internal/config without recompiling.
type Retries struct {
	NetworkTime int
	Signal      int
	Session     int
	LineReread  int
}

// Option configures a Driver built by New.
type Option func(*Driver)

// WithLogger sets the structured logger used for wire traffic (debug)
// and once-per-failure error reporting. Defaults to logrus's standard
// logger.
func WithLogger(l *logrus.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithMessageLog attaches a durable message log. RecvAll appends each
// MT message as soon as it is read, so a crash mid-drain preserves
// partial progress. SendRecv appends the sent message and any incidental
// MT messages only after the send has succeeded; incidentals read during
// a send that then fails are not logged.
func WithMessageLog(ml *MessageLog) Option {
	return func(d *Driver) { d.msgLog = ml }
}

// WithRetries overrides the poller and session engine's default retry
// counts with r. Omitting this option leaves the poller and session
// packages' own built-in defaults in effect.
func WithRetries(r Retries) Option {
	return func(d *Driver) {
		d.retries = r
		d.retriesSet = true
	}
}

// New opens a Driver over transport and negotiates its line discipline
// to (echo=false, verbose=false). The transport is not closed on
// failure and no Driver is returned, so the caller remains responsible
// for closing transport itself when New fails, mirroring the teacher's
// own open/negotiate ordering.
func New(transport Transport, opts ...Option) (*Driver, error) {
	d := &Driver{transport: transport, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(d)
	}
	d.line = atline.New(transport, atline.WithLogger(d.log))
	if _, err := negotiator.Negotiate(d.line); err != nil {
		return nil, d.fail(err)
	}
	var pollerOpts []poller.Option
	var sessionOpts []session.Option
	if d.retriesSet {
		pollerOpts = append(pollerOpts, poller.WithAttempts(d.retries.NetworkTime, d.retries.Signal))
		sessionOpts = append(sessionOpts, session.WithAttempts(d.retries.Session, d.retries.LineReread))
	}
	d.status = poller.New(d.line, pollerOpts...)
	d.engine = session.New(d.line, d.status, sessionOpts...)
	return d, nil
}

// lineReread returns the blank-line reread tolerance to use for Close's
// E1V1 re-enable read, matching the same value configured for Session's
// substantive read (default 5 when WithRetries was not given).
func (d *Driver) lineReread() int {
	if d.retriesSet {
		return d.retries.LineReread
	}
	return 5
}

// fail logs err once at the outermost boundary and returns it
// unchanged; Go has no exceptions to re-raise, so "re-raise" means
// "return the same error after logging its context exactly once".
func (d *Driver) fail(err error) error {
	d.log.WithError(err).Error("rockblock operation failed")
	return err
}

// SendRecv writes msg into the MO buffer, runs sessions until it is
// delivered, and returns any MT messages read incidentally along the
// way. Payloads over 340 bytes are rejected before any wire traffic.
func (d *Driver) SendRecv(msg string) ([]string, error) {
	if len(msg) > maxMOLen {
		return nil, d.fail(rberrors.MessageTooLongError{})
	}
	if err := d.status.NetworkTimeOK(); err != nil {
		return nil, d.fail(err)
	}
	if err := d.status.SignalOK(); err != nil {
		return nil, d.fail(err)
	}
	incidentals, err := d.engine.SendBuffer(msg)
	if err != nil {
		return nil, d.fail(err)
	}
	if d.msgLog != nil {
		if err := d.msgLog.Append(Sent, msg); err != nil {
			return incidentals, d.fail(err)
		}
		for _, m := range incidentals {
			if err := d.msgLog.Append(Received, m); err != nil {
				return incidentals, d.fail(err)
			}
		}
	}
	return incidentals, nil
}

// RecvAll drains every MT message currently queued or waiting at the
// gateway. Each message is logged at the point it is read, not after
// the loop completes.
func (d *Driver) RecvAll() ([]string, error) {
	received, err := d.engine.DrainAll(func(msg string) {
		if d.msgLog != nil {
			// Logging failures here are not fatal to the drain loop;
			// the payload has already been returned to the caller.
			_ = d.msgLog.Append(Received, msg)
		}
	})
	if err != nil {
		return received, d.fail(err)
	}
	return received, nil
}

// MsgWaiting reports whether the gateway or local buffer currently
// holds an MT message.
func (d *Driver) MsgWaiting() (bool, error) {
	status, err := d.status.CheckStatus()
	if err != nil {
		return false, d.fail(err)
	}
	return poller.MsgWaiting(status), nil
}

// Close restores the modem's line discipline to (echo=true,
// verbose=true) so the next process sees a predictable baseline, then
// closes the transport and message log. Close may be called at most
// once per Driver. The E1V1 re-enable read tolerates blank lines the
// same way Session's substantive read does, since both can race a
// keep-alive "\r\n" from the modem.
func (d *Driver) Close() error {
	var first error
	if err := d.line.Command("E1V1"); err != nil {
		first = err
	} else if _, err := d.line.Response(atline.StatusOK, d.lineReread()); err != nil {
		first = err
	}
	if err := d.transport.Close(); err != nil && first == nil {
		first = err
	}
	if d.msgLog != nil {
		if err := d.msgLog.Close(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return d.fail(first)
	}
	return nil
}
