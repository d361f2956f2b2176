// Package poller implements the status and signal queries that gate a
// RockBLOCK satellite session: network time availability, signal
// strength, and the local MO/MT buffer status. Each bounded-retry gate
// sleeps a fixed delay between attempts rather than backing off
// exponentially, matching the modem's own retry guidance.
package poller

import (
	"strconv"
	"time"

	"github.com/cuspaceflight/rockblock-ui/atline"
	"github.com/cuspaceflight/rockblock-ui/info"
	"github.com/cuspaceflight/rockblock-ui/rberrors"
)

// SBDSXStatus is the result of an +SBDSX status query.
type SBDSXStatus struct {
	MO         int
	MOMSN      int
	MT         int
	MTMSN      int
	RA         int
	MsgWaiting int
}

// MsgWaiting reports whether the gateway or local buffer has an MT
// message waiting: the local buffer already holds one (MT==1), a ring
// alert is pending (RA==1), or the gateway reports a queued count.
func MsgWaiting(s SBDSXStatus) bool {
	return s.MT == 1 || s.RA == 1 || s.MsgWaiting > 0
}

// Poller issues the +CSQF, +SBDSX, and -MSSTM queries and the two
// bounded-retry gates built on top of them.
type Poller struct {
	l               *atline.Line
	signalSleep     time.Duration
	networkSleep    time.Duration
	networkAttempts int
	signalAttempts  int
}

// Option configures a Poller built by New.
type Option func(*Poller)

// WithSleep overrides the inter-attempt delays used by NetworkTimeOK
// (default 1s) and SignalOK (default 10s). Tests use this to avoid
// real-time sleeps.
func WithSleep(network, signal time.Duration) Option {
	return func(p *Poller) {
		p.networkSleep = network
		p.signalSleep = signal
	}
}

// WithAttempts overrides the retry counts used by NetworkTimeOK
// (default 20) and SignalOK (default 3), letting field deployments
// tune how long each gate waits without recompiling.
func WithAttempts(network, signal int) Option {
	return func(p *Poller) {
		p.networkAttempts = network
		p.signalAttempts = signal
	}
}

// New creates a Poller over an already line-disciplined atline.Line.
func New(l *atline.Line, opts ...Option) *Poller {
	p := &Poller{
		l:               l,
		signalSleep:     10 * time.Second,
		networkSleep:    1 * time.Second,
		networkAttempts: 20,
		signalAttempts:  3,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckSignalStrength sends +CSQF and returns the signal strength digit
// (0-5) found at offset 6 of the response.
func (p *Poller) CheckSignalStrength() (int, error) {
	if err := p.l.Command("+CSQF"); err != nil {
		return 0, err
	}
	raw, err := p.l.Response("", 0)
	if err != nil {
		return 0, err
	}
	if !info.HasPrefix(raw, "+CSQF") {
		return 0, rberrors.DeviceError{Context: "signal strength", Raw: raw}
	}
	digits := info.TrimPrefix(raw, "+CSQF")
	if len(digits) == 0 {
		return 0, rberrors.DeviceError{Context: "signal strength", Raw: raw}
	}
	signal, err := strconv.Atoi(digits[:1])
	if err != nil {
		return 0, rberrors.DeviceError{Context: "signal strength", Raw: raw}
	}
	if _, err := p.l.Response(atline.StatusOK, 0); err != nil {
		return 0, err
	}
	return signal, nil
}

// CheckStatus sends +SBDSX and parses the local MO/MT buffer status.
func (p *Poller) CheckStatus() (SBDSXStatus, error) {
	if err := p.l.Command("+SBDSX"); err != nil {
		return SBDSXStatus{}, err
	}
	raw, err := p.l.Response("", 0)
	if err != nil {
		return SBDSXStatus{}, err
	}
	if !info.HasPrefix(raw, "+SBDSX") {
		return SBDSXStatus{}, rberrors.DeviceError{Context: "status query", Raw: raw}
	}
	vals, err := atline.ParseCommaList(info.TrimPrefix(raw, "+SBDSX"))
	if err != nil || len(vals) != 6 {
		return SBDSXStatus{}, rberrors.DeviceError{Context: "status query", Raw: raw}
	}
	if _, err := p.l.Response(atline.StatusOK, 0); err != nil {
		return SBDSXStatus{}, err
	}
	return SBDSXStatus{
		MO:         vals[0],
		MOMSN:      vals[1],
		MT:         vals[2],
		MTMSN:      vals[3],
		RA:         vals[4],
		MsgWaiting: vals[5],
	}, nil
}

// CheckNetworkTime sends -MSSTM and reports whether the modem has
// synchronized to network time (as opposed to "no network service").
func (p *Poller) CheckNetworkTime() (bool, error) {
	if err := p.l.Command("-MSSTM"); err != nil {
		return false, err
	}
	raw, err := p.l.Response("", 0)
	if err != nil {
		return false, err
	}
	if !info.HasPrefix(raw, "-MSSTM") {
		return false, rberrors.DeviceError{Context: "network time", Raw: raw}
	}
	suffix := info.TrimPrefix(raw, "-MSSTM")
	available := suffix != "no network service"
	if _, err := p.l.Response(atline.StatusOK, 0); err != nil {
		return false, err
	}
	return available, nil
}

// NetworkTimeOK retries CheckNetworkTime up to the configured number of
// attempts (default 20), sleeping the configured delay (default 1s)
// between failed attempts, until the modem reports network time
// available. Exhaustion fails with rberrors.TimeoutError.
func (p *Poller) NetworkTimeOK() error {
	attempts := p.networkAttempts
	for i := 0; i < attempts; i++ {
		ok, err := p.CheckNetworkTime()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(p.networkSleep)
		}
	}
	return rberrors.TimeoutError{Query: "Network time", Attempts: attempts}
}

// SignalOK retries CheckSignalStrength up to the configured number of
// attempts (default 3), sleeping the configured delay (default 10s)
// between failed attempts, until the signal strength is at least 2.
// Exhaustion fails with rberrors.TimeoutError.
func (p *Poller) SignalOK() error {
	attempts := p.signalAttempts
	const threshold = 2
	for i := 0; i < attempts; i++ {
		signal, err := p.CheckSignalStrength()
		if err != nil {
			return err
		}
		if signal >= threshold {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(p.signalSleep)
		}
	}
	return rberrors.TimeoutError{Query: "Signal strength", Attempts: attempts}
}
