package rockblock

import (
	"fmt"
	"os"
	"time"
)

// Direction marks whether a logged line was sent to or received from
// the gateway.
type Direction int

const (
	// Sent marks an outbound (MO) message, logged with the "--->" arrow.
	Sent Direction = iota
	// Received marks an inbound (MT) message, logged with the "<---" arrow.
	Received
)

func (d Direction) arrow() string {
	if d == Sent {
		return "--->"
	}
	return "<---"
}

// MessageLog is a durable, append-only record of every message sent or
// received. Each line is synced to disk immediately because the host
// may lose power unexpectedly; a crash must never lose more than the
// record currently being written.
type MessageLog struct {
	file *os.File
}

// OpenMessageLog opens (creating if necessary) the log file at path for
// append.
func OpenMessageLog(path string) (*MessageLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &MessageLog{file: f}, nil
}

// Append writes one line — timestamp, direction arrow, payload — and
// syncs the file before returning.
func (m *MessageLog) Append(dir Direction, payload string) error {
	line := fmt.Sprintf("%s %s %s\n", time.Now().UTC().Format(time.RFC3339), dir.arrow(), payload)
	if _, err := m.file.WriteString(line); err != nil {
		return err
	}
	return m.file.Sync()
}

// Close closes the underlying file.
func (m *MessageLog) Close() error {
	return m.file.Close()
}
