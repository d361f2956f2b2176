// Package serial provides the line-oriented serial transport that
// connects the atline package to the physical RockBLOCK modem.
package serial

import (
	"bytes"
	"time"

	"github.com/tarm/serial"
)

// Config holds the parameters used to open the port. The zero value is
// never used directly; New always starts from the per-platform
// defaultConfig and applies Options on top of it.
type Config struct {
	port        string
	baud        int
	readTimeout time.Duration
}

// Option configures a Config built by New.
type Option func(*Config)

// WithPort overrides the device path (default /dev/ttyUSB0 on Linux).
func WithPort(port string) Option {
	return func(c *Config) { c.port = port }
}

// WithBaud overrides the baud rate (default 19200, the RockBLOCK's
// fixed serial configuration).
func WithBaud(baud int) Option {
	return func(c *Config) { c.baud = baud }
}

// WithReadTimeout overrides the per-read timeout (default 5s).
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) { c.readTimeout = d }
}

// Port is a line-oriented, byte-clean serial connection. Reads that
// time out before a full line arrives return an empty string and a nil
// error rather than failing the caller.
type Port struct {
	port *serial.Port
	buf  []byte
}

// New opens a serial port using the given options layered over the
// per-platform defaults (8N1, no flow control).
func New(opts ...Option) (*Port, error) {
	cfg := defaultConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	sc := &serial.Config{
		Name:        cfg.port,
		Baud:        cfg.baud,
		ReadTimeout: cfg.readTimeout,
	}
	p, err := serial.OpenPort(sc)
	if err != nil {
		return nil, err
	}
	return &Port{port: p}, nil
}

// Write pushes all of data to the modem.
func (p *Port) Write(data []byte) error {
	_, err := p.port.Write(data)
	return err
}

// ReadLine reads until '\n', returning the line without the '\n' itself
// but otherwise byte-for-byte as received — a trailing '\r' is data, not
// framing, and is left for atline.Response to deal with at the AT line
// layer. If the underlying read times out before a newline arrives,
// ReadLine returns ("", nil) rather than an error; partial data read so
// far is retained and prefixed to the next call.
func (p *Port) ReadLine() (string, error) {
	chunk := make([]byte, 256)
	for {
		if i := bytes.IndexByte(p.buf, '\n'); i >= 0 {
			line := p.buf[:i]
			p.buf = p.buf[i+1:]
			return string(line), nil
		}
		n, err := p.port.Read(chunk)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", nil
		}
		p.buf = append(p.buf, chunk[:n]...)
	}
}

// Close releases the underlying port.
func (p *Port) Close() error {
	return p.port.Close()
}
