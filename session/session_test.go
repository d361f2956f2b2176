package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuspaceflight/rockblock-ui/atline"
	"github.com/cuspaceflight/rockblock-ui/poller"
	"github.com/cuspaceflight/rockblock-ui/rberrors"
	"github.com/cuspaceflight/rockblock-ui/session"
)

type mockTransport struct {
	written []string
	lines   []string
}

func (m *mockTransport) Write(data []byte) error {
	m.written = append(m.written, string(data))
	return nil
}

func (m *mockTransport) ReadLine() (string, error) {
	if len(m.lines) == 0 {
		return "", nil
	}
	l := m.lines[0]
	m.lines = m.lines[1:]
	return l, nil
}

func newEngine(lines []string) (*session.Engine, *mockTransport) {
	mt := &mockTransport{lines: lines}
	l := atline.New(mt)
	p := poller.New(l, poller.WithSleep(0, 0))
	return session.New(l, p, session.WithSleep(0)), mt
}

func TestWriteMsgToBuffer(t *testing.T) {
	e, mt := newEngine([]string{"READY", "0", "0"})
	err := e.WriteMsgToBuffer("HELLO")
	require.NoError(t, err)
	assert.Equal(t, []string{"AT+SBDWT\r", "HELLO\r"}, mt.written)
}

func TestSessionParsesStatus(t *testing.T) {
	e, mt := newEngine([]string{"+SBDIX:1,42,0,0,0,0", "0"})
	status, err := e.Session(false)
	require.NoError(t, err)
	assert.Equal(t, session.SBDIXStatus{MO: 1, MOMSN: 42}, status)
	assert.Equal(t, []string{"AT+SBDIX\r"}, mt.written)
}

func TestSessionAlert(t *testing.T) {
	e, _ := newEngine([]string{"+SBDIXA:0,1,1,17,5,0", "0"})
	status, err := e.Session(true)
	require.NoError(t, err)
	assert.Equal(t, session.SBDIXStatus{MO: 0, MOMSN: 1, MT: 1, MTMSN: 17, MTLen: 5}, status)
}

func TestSessionBadPrefix(t *testing.T) {
	e, _ := newEngine([]string{"garbage"})
	_, err := e.Session(false)
	var de rberrors.DeviceError
	assert.ErrorAs(t, err, &de)
}

func TestSendBufferCleanNoMT(t *testing.T) {
	e, mt := newEngine([]string{
		"+SBDSX:0,0,0,0,0,0", "0", // stale status check
		"READY", "0", "0", // write
		"+SBDIX:1,42,0,0,0,0", "0", // session
		"0", "0", // clear MO
	})
	incidentals, err := e.SendBuffer("HELLO")
	require.NoError(t, err)
	assert.Empty(t, incidentals)
	assert.Contains(t, mt.written, "AT+SBDD0\r")
}

func TestSendBufferIncidentalMT(t *testing.T) {
	e, mt := newEngine([]string{
		"+SBDSX:0,0,0,0,0,0", "0",
		"READY", "0", "0",
		"+SBDIX:2,43,1,17,5,0", "0",
		"+SBDRT:", "WORLD0", "0", "0", // incidental MT read + clear MT
		"0", "0", // clear MO
	})
	incidentals, err := e.SendBuffer("HELLO")
	require.NoError(t, err)
	assert.Equal(t, []string{"WORLD"}, incidentals)
	assert.Contains(t, mt.written, "AT+SBDD1\r")
	assert.Contains(t, mt.written, "AT+SBDD0\r")
}

func TestSendBufferStaleMTReadFirst(t *testing.T) {
	e, _ := newEngine([]string{
		"+SBDSX:0,0,1,9,0,0", "0", // stale status: mt == 1
		"+SBDRT:", "STALE0", "0", "0", // stale read (expectedLen == -1) + clear MT
		"READY", "0", "0",
		"+SBDIX:1,44,0,0,0,0", "0",
		"0", "0",
	})
	incidentals, err := e.SendBuffer("HELLO")
	require.NoError(t, err)
	assert.Equal(t, []string{"STALE"}, incidentals)
}

func TestSendBufferRetryOnTransientMO(t *testing.T) {
	e, mt := newEngine([]string{
		"+SBDSX:0,0,0,0,0,0", "0",
		"READY", "0", "0",
		"+SBDIX:5,43,0,0,0,0", "0", // transient, retry
		"+SBDIX:0,44,0,0,0,0", "0", // success
		"0", "0",
	})
	_, err := e.SendBuffer("HELLO")
	require.NoError(t, err)
	count := 0
	for _, w := range mt.written {
		if w == "AT+SBDIX\r" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestSendBufferExhausted(t *testing.T) {
	e, mt := newEngine([]string{
		"+SBDSX:0,0,0,0,0,0", "0",
		"READY", "0", "0",
		"+SBDIX:18,1,0,0,0,0", "0",
		"+SBDIX:18,2,0,0,0,0", "0",
		"+SBDIX:18,3,0,0,0,0", "0",
	})
	_, err := e.SendBuffer("HELLO")
	var te rberrors.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Buffer send", te.Query)
	assert.NotContains(t, mt.written, "AT+SBDD0\r")
}

func TestReadMsgFromBufferLengthMismatch(t *testing.T) {
	e, _ := newEngine([]string{"+SBDRT:", "SHORT0"})
	_, err := e.ReadMsgFromBuffer(99)
	var le rberrors.IncorrectContentLengthError
	assert.ErrorAs(t, err, &le)
}

func TestReadMsgFromBufferUnknownLengthBypass(t *testing.T) {
	e, _ := newEngine([]string{"+SBDRT:", "ANYTHING0", "0", "0"})
	msg, err := e.ReadMsgFromBuffer(-1)
	require.NoError(t, err)
	assert.Equal(t, "ANYTHING", msg)
}

func TestRecvBufferExhausted(t *testing.T) {
	e, _ := newEngine([]string{
		"+SBDIX:0,1,0,0,0,0", "0",
		"+SBDIX:0,2,0,0,0,0", "0",
		"+SBDIX:0,3,0,0,0,0", "0",
	})
	_, err := e.RecvBuffer(false)
	var te rberrors.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Buffer recv", te.Query)
}

func TestDrainAllViaRingAlert(t *testing.T) {
	e, _ := newEngine([]string{
		"+SBDSX:0,0,0,0,1,0", "0", // ra == 1, mt == 0
		"-MSSTM: 12abcd", "0", // network time ok
		"+CSQF:4", "0", // signal ok
		"+SBDIXA:0,1,1,17,5,0", "0", // session sees MT
		"+SBDRT:", "HELLO0", "0", "0", // read + clear MT
		"+SBDSX:0,1,0,17,0,0", "0", // re-check: nothing waiting
	})
	var seen []string
	received, err := e.DrainAll(func(msg string) { seen = append(seen, msg) })
	require.NoError(t, err)
	assert.Equal(t, []string{"HELLO"}, received)
	assert.Equal(t, []string{"HELLO"}, seen)
}

func TestDrainAllNothingWaiting(t *testing.T) {
	e, _ := newEngine([]string{"+SBDSX:0,0,0,0,0,0", "0"})
	received, err := e.DrainAll(nil)
	require.NoError(t, err)
	assert.Empty(t, received)
}

func TestWithAttemptsLowersSessionAttempts(t *testing.T) {
	mt := &mockTransport{lines: []string{
		"+SBDIX:0,1,0,0,0,0", "0",
		"+SBDIX:0,2,0,0,0,0", "0",
	}}
	l := atline.New(mt)
	p := poller.New(l, poller.WithSleep(0, 0))
	e := session.New(l, p, session.WithSleep(0), session.WithAttempts(2, 5))
	_, err := e.RecvBuffer(false)
	var te rberrors.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Attempts)
}

func TestWithAttemptsToleratesBlankLineOnSession(t *testing.T) {
	mt := &mockTransport{lines: []string{"", "+SBDIX:1,42,0,0,0,0", "0"}}
	l := atline.New(mt)
	p := poller.New(l, poller.WithSleep(0, 0))
	e := session.New(l, p, session.WithSleep(0), session.WithAttempts(3, 1))
	status, err := e.Session(false)
	require.NoError(t, err)
	assert.Equal(t, session.SBDIXStatus{MO: 1, MOMSN: 42}, status)
}
