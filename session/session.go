// Package session runs RockBLOCK satellite sessions: writing the MO
// buffer, invoking +SBDIX/+SBDIXA with retry gating, draining the MT
// buffer, and clearing buffers once consumed. Engine is the component
// that actually talks to the modem during a session; the facade layer
// is responsible for confirming network time and signal strength
// before calling SendBuffer.
package session

import (
	"time"

	"github.com/cuspaceflight/rockblock-ui/atline"
	"github.com/cuspaceflight/rockblock-ui/info"
	"github.com/cuspaceflight/rockblock-ui/poller"
	"github.com/cuspaceflight/rockblock-ui/rberrors"
)

// Buffer identifiers, arguments to +SBDD{id}.
const (
	BufferMO  = "0"
	BufferMT  = "1"
	BufferAll = "2"
)

// SBDIXStatus is the result of a session (+SBDIX/+SBDIXA).
type SBDIXStatus struct {
	MO       int
	MOMSN    int
	MT       int
	MTMSN    int
	MTLen    int
	MTQueued int
}

// Engine runs sessions over an already line-disciplined atline.Line. It
// holds a Poller so that DrainAll can poll status, network time, and
// signal strength as the drain loop progresses.
type Engine struct {
	l          *atline.Line
	status     *poller.Poller
	sleep      time.Duration
	attempts   int
	lineReread int
}

// Option configures an Engine built by New.
type Option func(*Engine)

// WithSleep overrides the 1s inter-attempt delay used by SendBuffer and
// RecvBuffer's retry loops. Tests use this to avoid real-time sleeps.
func WithSleep(d time.Duration) Option {
	return func(e *Engine) { e.sleep = d }
}

// WithAttempts overrides the retry count used by SendBuffer/RecvBuffer's
// session loops (default 3) and the blank-line reread count tolerated on
// Session's substantive read (default 5), letting field deployments
// tune both without recompiling.
func WithAttempts(attempts, lineReread int) Option {
	return func(e *Engine) {
		e.attempts = attempts
		e.lineReread = lineReread
	}
}

// New creates an Engine. status is used by DrainAll to re-check the
// local buffer and by SendBuffer's stale-MT precheck.
func New(l *atline.Line, status *poller.Poller, opts ...Option) *Engine {
	e := &Engine{l: l, status: status, sleep: time.Second, attempts: 3, lineReread: 5}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WriteMsgToBuffer writes msg into the MO buffer via +SBDWT. Caller is
// responsible for the 340 byte length check before calling this.
func (e *Engine) WriteMsgToBuffer(msg string) error {
	if err := e.l.Command("+SBDWT"); err != nil {
		return err
	}
	if _, err := e.l.Response("READY", 0); err != nil {
		return err
	}
	if err := e.l.Write(msg + "\r"); err != nil {
		return err
	}
	if _, err := e.l.Response(atline.StatusOK, 0); err != nil {
		return err
	}
	if _, err := e.l.Response(atline.StatusOK, 0); err != nil {
		return err
	}
	return nil
}

// Session invokes +SBDIX (or +SBDIXA if alert) and parses the result.
// A session takes roughly 20 seconds and the modem emits blank lines
// during it, hence the reread tolerance (default 5, e.lineReread) on
// the substantive read.
func (e *Engine) Session(alert bool) (SBDIXStatus, error) {
	cmd := "+SBDIX"
	if alert {
		cmd = "+SBDIXA"
	}
	if err := e.l.Command(cmd); err != nil {
		return SBDIXStatus{}, err
	}
	raw, err := e.l.Response("", e.lineReread)
	if err != nil {
		return SBDIXStatus{}, err
	}
	if !info.HasPrefix(raw, cmd) {
		return SBDIXStatus{}, rberrors.DeviceError{Context: "session", Raw: raw}
	}
	vals, err := atline.ParseCommaList(info.TrimPrefix(raw, cmd))
	if err != nil || len(vals) != 6 {
		return SBDIXStatus{}, rberrors.DeviceError{Context: "session", Raw: raw}
	}
	if _, err := e.l.Response(atline.StatusOK, 0); err != nil {
		return SBDIXStatus{}, err
	}
	return SBDIXStatus{
		MO:       vals[0],
		MOMSN:    vals[1],
		MT:       vals[2],
		MTMSN:    vals[3],
		MTLen:    vals[4],
		MTQueued: vals[5],
	}, nil
}

// SendBuffer writes msg into the MO buffer and runs up to the configured
// number of sessions (default 3) until the MO status reports success (mo <= 4). Incidental MT reads
// encountered along the way are returned. On exhaustion the MO buffer
// is left uncleared and a TimeoutError is returned.
func (e *Engine) SendBuffer(msg string) ([]string, error) {
	var incidentals []string

	stale, err := e.status.CheckStatus()
	if err != nil {
		return nil, err
	}
	if stale.MT == 1 {
		m, err := e.ReadMsgFromBuffer(-1)
		if err != nil {
			return nil, err
		}
		incidentals = append(incidentals, m)
	}

	if err := e.WriteMsgToBuffer(msg); err != nil {
		return nil, err
	}

	attempts := e.attempts
	succeeded := false
	for i := 0; i < attempts; i++ {
		status, err := e.Session(false)
		if err != nil {
			return nil, err
		}
		if status.MT == 1 {
			m, err := e.ReadMsgFromBuffer(status.MTLen)
			if err != nil {
				return nil, err
			}
			incidentals = append(incidentals, m)
		}
		if status.MO <= 4 {
			succeeded = true
			break
		}
		if i < attempts-1 {
			time.Sleep(e.sleep)
		}
	}
	if !succeeded {
		return nil, rberrors.TimeoutError{Query: "Buffer send", Attempts: attempts}
	}

	if err := e.clearBuffer(BufferMO); err != nil {
		return nil, err
	}
	return incidentals, nil
}

// RecvBuffer runs up to the configured number of sessions (default 3)
// until one reports an MT message in
// the local buffer, then reads it.
func (e *Engine) RecvBuffer(alert bool) (string, error) {
	attempts := e.attempts
	var status SBDIXStatus
	found := false
	for i := 0; i < attempts; i++ {
		s, err := e.Session(alert)
		if err != nil {
			return "", err
		}
		if s.MT == 1 {
			status = s
			found = true
			break
		}
		if i < attempts-1 {
			time.Sleep(e.sleep)
		}
	}
	if !found {
		return "", rberrors.TimeoutError{Query: "Buffer recv", Attempts: attempts}
	}
	return e.ReadMsgFromBuffer(status.MTLen)
}

// ReadMsgFromBuffer reads the MT buffer via +SBDRT and clears it.
// expectedLen, if >= 0, must equal the byte length of the recovered
// payload; pass -1 when the length is unknown (a stale MT read has no
// associated SBDIXStatus).
func (e *Engine) ReadMsgFromBuffer(expectedLen int) (string, error) {
	if err := e.l.Command("+SBDRT"); err != nil {
		return "", err
	}
	header, err := e.l.Response("", 0)
	if err != nil {
		return "", err
	}
	if !info.HasPrefix(header, "+SBDRT") {
		return "", rberrors.DeviceError{Context: "MT read", Raw: header}
	}
	cont, err := e.l.Response("", 0)
	if err != nil {
		return "", err
	}
	if len(cont) == 0 || cont[len(cont)-1] != '0' {
		return "", rberrors.DeviceError{Context: "MT read", Raw: cont}
	}
	if expectedLen >= 0 && len(cont) != expectedLen+1 {
		return "", rberrors.IncorrectContentLengthError{Expected: expectedLen, Content: cont}
	}
	payload := cont[:len(cont)-1]

	if err := e.clearBuffer(BufferMT); err != nil {
		return "", err
	}
	return payload, nil
}

func (e *Engine) clearBuffer(id string) error {
	if err := e.l.Command("+SBDD" + id); err != nil {
		return err
	}
	if _, err := e.l.Response(atline.StatusOK, 0); err != nil {
		return err
	}
	if _, err := e.l.Response(atline.StatusOK, 0); err != nil {
		return err
	}
	return nil
}

// DrainAll loops while the status poller reports a waiting MT, reading
// directly when the local buffer already holds one and otherwise
// polling network time and signal before running a session. Each MT
// recovered is appended to the returned slice as soon as it is read.
func (e *Engine) DrainAll(onRecv func(msg string)) ([]string, error) {
	var received []string
	for {
		status, err := e.status.CheckStatus()
		if err != nil {
			return received, err
		}
		if !poller.MsgWaiting(status) {
			return received, nil
		}
		var msg string
		if status.MT == 1 {
			msg, err = e.ReadMsgFromBuffer(-1)
		} else {
			if err = e.status.NetworkTimeOK(); err != nil {
				return received, err
			}
			if err = e.status.SignalOK(); err != nil {
				return received, err
			}
			msg, err = e.RecvBuffer(status.RA == 1)
		}
		if err != nil {
			return received, err
		}
		received = append(received, msg)
		if onRecv != nil {
			onRecv(msg)
		}
	}
}
