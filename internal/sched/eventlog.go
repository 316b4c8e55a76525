package sched

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"sync"
)

// EventLog writes status events as CSV rows.
type EventLog struct {
	mu     sync.Mutex
	closer io.Closer
	w      *csv.Writer
}

// NewEventLog creates (or truncates) the file at path and writes the header.
func NewEventLog(path string) (*EventLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	l, err := newEventLog(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	l.closer = f
	return l, nil
}

func newEventLog(w io.Writer) (*EventLog, error) {
	cw := csv.NewWriter(w)
	// write header
	if err := cw.Write([]string{"tick_ms", "strategy", "event", "task_id", "class", "priority", "remaining_ms"}); err != nil {
		return nil, err
	}
	cw.Flush()
	return &EventLog{w: cw}, cw.Error()
}

// Write appends one event.
func (l *EventLog) Write(ev StatusEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := []string{
		strconv.FormatInt(ev.Time, 10),
		ev.Strategy.String(),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		ev.Class.String(),
		strconv.Itoa(ev.Priority),
		strconv.FormatInt(ev.Remaining, 10),
	}
	if ev.Kind == StatusIdle {
		rec[3], rec[4], rec[5], rec[6] = "", "", "", ""
	}
	if err := l.w.Write(rec); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

// Close flushes and closes the underlying file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if l.closer != nil {
		return l.closer.Close()
	}
	return l.w.Error()
}
