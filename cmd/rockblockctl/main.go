// rockblockctl is a thin shell over the rockblock driver: it parses a
// subcommand, wires up logging and the serial transport, and invokes
// the driver. All protocol logic lives in the rockblock/session/poller
// packages; this file only does subcommand dispatch, signal handling,
// and log configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cuspaceflight/rockblock-ui/internal/config"
	"github.com/cuspaceflight/rockblock-ui/rockblock"
	"github.com/cuspaceflight/rockblock-ui/serial"
	"github.com/cuspaceflight/rockblock-ui/trace"
)

const pollInterval = 10 * time.Second

// fileHook writes every log entry to a file regardless of the
// console's configured level, implementing the "file always at debug"
// half of the dual logging the CLI front-end carries forward.
type fileHook struct {
	file *os.File
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.file.WriteString(line)
	return err
}

// consoleHook writes log entries to out, but only up to a configured
// level; this is the "console at configurable level" half of the dual
// logging. It is a hook rather than the logger's own level because the
// logger's level gates every hook, including fileHook, which must see
// everything regardless of what the console shows.
type consoleHook struct {
	out   io.Writer
	level logrus.Level
}

func (h *consoleHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *consoleHook) Fire(e *logrus.Entry) error {
	if e.Level > h.level {
		return nil
	}
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.out.Write([]byte(line))
	return err
}

// tracedTransport adds Close to a trace.Trace so the combination
// satisfies rockblock.Transport; trace.Trace itself only forwards
// Write/ReadLine, since tracing applies to every Transport consumer,
// not just the one the Driver happens to own.
type tracedTransport struct {
	*trace.Trace
	port *serial.Port
}

func (t tracedTransport) Close() error { return t.port.Close() }

func main() {
	dev := flag.String("d", "", "path to modem device (overrides RBUI_PORT)")
	baud := flag.Int("b", 0, "baud rate (overrides config default)")
	timeout := flag.Duration("t", 0, "read timeout (overrides config default)")
	verbose := flag.Bool("v", false, "trace raw wire traffic below the AT line layer")
	debug := flag.Bool("debug", false, "log at debug level to the console as well as the debug log")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		log.Fatal("usage: rockblockctl <send <msg>|recv>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if *dev != "" {
		cfg.Port = *dev
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if *timeout != 0 {
		cfg.ReadTimeout = *timeout
	}

	logger, closeLog, err := setupLogging(cfg, *debug)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	port, err := serial.New(serial.WithPort(cfg.Port), serial.WithBaud(cfg.Baud), serial.WithReadTimeout(cfg.ReadTimeout))
	if err != nil {
		log.Fatal(err)
	}

	var transport rockblock.Transport = port
	if *verbose {
		transport = tracedTransport{Trace: trace.New(port, trace.WithLogger(logger)), port: port}
	}

	msgLog, err := rockblock.OpenMessageLog(cfg.LogMessages)
	if err != nil {
		log.Fatal(err)
	}

	driver, err := rockblock.New(transport,
		rockblock.WithLogger(logger),
		rockblock.WithMessageLog(msgLog),
		rockblock.WithRetries(rockblock.Retries{
			NetworkTime: cfg.Retries.NetworkTime,
			Signal:      cfg.Retries.Signal,
			Session:     cfg.Retries.Session,
			LineReread:  cfg.Retries.LineReread,
		}),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer driver.Close()

	switch args[0] {
	case "send":
		if len(args) < 2 {
			log.Fatal("usage: rockblockctl send <msg>")
		}
		runSend(driver, args[1])
	case "recv":
		runRecv(driver, logger)
	default:
		log.Fatalf("unknown subcommand %q", args[0])
	}
}

// runSend ignores SIGINT for the duration of the call, matching the
// Python original's signal.SIG_IGN around send_recv: a send session is
// a single uninterruptible unit of work.
func runSend(driver *rockblock.Driver, msg string) {
	signal.Ignore(os.Interrupt)
	incidentals, err := driver.SendRecv(msg)
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range incidentals {
		fmt.Println(m)
	}
}

// runRecv polls recv_all every pollInterval until SIGINT is observed
// between polls; cancellation is never checked mid-poll, only in the
// gap between one drain and the next.
func runRecv(driver *rockblock.Driver, logger *logrus.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		received, err := driver.RecvAll()
		for _, m := range received {
			fmt.Println(m)
		}
		if err != nil {
			logger.WithError(err).Error("recv poll failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}

// setupLogging builds a logger kept at DebugLevel so that every hook,
// including fileHook, sees the full wire traffic the atline/poller/
// session packages log at debug; the console's narrower view is
// enforced by consoleHook's own level filter instead of the logger's
// level, which would otherwise gate fileHook too.
func setupLogging(cfg config.Config, debug bool) (*logrus.Logger, func(), error) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)

	consoleLevel := logrus.InfoLevel
	if debug {
		consoleLevel = logrus.DebugLevel
	}
	logger.AddHook(&consoleHook{out: os.Stdout, level: consoleLevel})

	debugFile, err := os.OpenFile(cfg.LogDebug, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	logger.AddHook(&fileHook{file: debugFile})

	return logger, func() { debugFile.Close() }, nil
}
