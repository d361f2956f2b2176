// Package negotiator implements the one-shot probe that resolves a
// RockBLOCK modem's echo/verbose line discipline and forces it to
// (off, off) before any further command is issued. It is the only code
// path that tolerates mixed line discipline; everything downstream of
// Negotiate assumes (false, false) and treats "0" as the success
// sentinel.
package negotiator

import (
	"github.com/cuspaceflight/rockblock-ui/atline"
	"github.com/cuspaceflight/rockblock-ui/rberrors"
)

// LineDiscipline is the (echo, verbose) pair observed during the probe.
type LineDiscipline struct {
	Echo    bool
	Verbose bool
}

// Negotiate probes the modem's current line discipline with a bare AT
// command and forces it to (echo=false, verbose=false), disabling ring
// alerts (+SBDMTA=0) once the discipline is known. The returned
// LineDiscipline is always (false, false) on success; it is returned
// rather than hard-coded so callers can log what was actually observed.
func Negotiate(l *atline.Line) (LineDiscipline, error) {
	if err := l.Command(""); err != nil {
		return LineDiscipline{}, err
	}
	first, err := l.Response("", 0)
	if err != nil {
		return LineDiscipline{}, err
	}

	var observed LineDiscipline
	switch first {
	case "0":
		observed = LineDiscipline{Echo: false, Verbose: false}
	case "AT\r0":
		observed = LineDiscipline{Echo: true, Verbose: false}
	case "AT", "":
		second, err := l.Response("", 0)
		if err != nil {
			return LineDiscipline{}, err
		}
		// Per the decision table, a second line of "OK" means (true,
		// true) regardless of whether the first line was "AT" or
		// empty; any other second line means (false, true).
		observed = LineDiscipline{Echo: second == "OK", Verbose: true}
	default:
		return LineDiscipline{}, deviceError(first)
	}

	if observed.Echo {
		if err := l.Command("E0"); err != nil {
			return LineDiscipline{}, err
		}
		if observed.Verbose {
			if _, err := l.Response("ATE0", 0); err != nil {
				return LineDiscipline{}, err
			}
			if _, err := l.Response("OK", 0); err != nil {
				return LineDiscipline{}, err
			}
		} else {
			if _, err := l.Response("ATE0\r0", 0); err != nil {
				return LineDiscipline{}, err
			}
		}
	}

	if observed.Verbose {
		if err := l.Command("V0"); err != nil {
			return LineDiscipline{}, err
		}
		if _, err := l.Response(atline.StatusOK, 0); err != nil {
			return LineDiscipline{}, err
		}
	}

	if err := l.Command("+SBDMTA=0"); err != nil {
		return LineDiscipline{}, err
	}
	if _, err := l.Response(atline.StatusOK, 0); err != nil {
		return LineDiscipline{}, err
	}

	return LineDiscipline{Echo: false, Verbose: false}, nil
}

func deviceError(raw string) error {
	return rberrors.DeviceError{Context: "line discipline probe", Raw: raw}
}
