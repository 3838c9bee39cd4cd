// Package events produces the append-only scheduler event stream, the only
// durable artifact of a run. Offline analysis replays it to reconstruct the
// core-allocation timeline, so record order must match the order in which the
// control loop took its actions.
package events

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// Kind is the event record type.
type Kind string

const (
	KindStart       Kind = "start"
	KindEnd         Kind = "end"
	KindUpdateCores Kind = "update_cores"
	KindPause       Kind = "pause"
	KindUnpause     Kind = "unpause"
	KindCustom      Kind = "custom"
)

// Record is one event in the stream.
type Record struct {
	Time    time.Time
	Kind    Kind
	Subject string
	Args    []string
}

// Line renders the record in the log file format:
// "<RFC3339Nano> <kind> <subject> [args...]".
func (r Record) Line() string {
	parts := append([]string{r.Time.Format(time.RFC3339Nano), string(r.Kind), r.Subject}, r.Args...)
	return strings.Join(parts, " ")
}

// Sink receives records in order.
type Sink interface {
	Write(r Record) error
	Close() error
}

// Logger builds records from scheduler actions and writes them, in call order,
// to its sink. Subscribers receive a copy of every record for live observers.
type Logger struct {
	mu     sync.Mutex
	sink   Sink
	now    func() time.Time
	closed bool
	subs   []chan Record
}

// NewLogger opens the event stream and writes the scheduler start record.
func NewLogger(sink Sink, runID string) (*Logger, error) {
	return newLogger(sink, runID, time.Now)
}

func newLogger(sink Sink, runID string, now func() time.Time) (*Logger, error) {
	l := &Logger{sink: sink, now: now}
	if err := l.emit(KindStart, domain.SchedulerSubject, runID); err != nil {
		return nil, fmt.Errorf("writing scheduler start record: %w", err)
	}
	return l, nil
}

// JobStart records a workload (or the service) starting on cores with threads.
func (l *Logger) JobStart(subject string, cores domain.CoreSet, threads int) error {
	return l.emit(KindStart, subject, cores.String(), fmt.Sprintf("%d", threads))
}

// JobEnd records a workload finishing.
func (l *Logger) JobEnd(subject string) error {
	return l.emit(KindEnd, subject)
}

// UpdateCores records a core reassignment.
func (l *Logger) UpdateCores(subject string, cores domain.CoreSet) error {
	return l.emit(KindUpdateCores, subject, cores.String())
}

// JobPause records a workload being frozen.
func (l *Logger) JobPause(subject string) error {
	return l.emit(KindPause, subject)
}

// JobUnpause records a workload being unfrozen.
func (l *Logger) JobUnpause(subject string) error {
	return l.emit(KindUnpause, subject)
}

// Custom records a free-text annotation for a subject.
func (l *Logger) Custom(subject, payload string) error {
	return l.emit(KindCustom, subject, payload)
}

// Subscribe returns a channel receiving every subsequent record. The channel
// is buffered; a slow consumer loses records rather than stalling the loop.
func (l *Logger) Subscribe() <-chan Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan Record, 256)
	l.subs = append(l.subs, ch)
	return ch
}

// Close writes the scheduler end record and closes the sink. Calling Close
// again is a no-op.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	rec := Record{Time: l.now(), Kind: KindEnd, Subject: domain.SchedulerSubject}
	err := l.sink.Write(rec)
	l.closed = true
	for _, ch := range l.subs {
		select {
		case ch <- rec:
		default:
		}
		close(ch)
	}
	l.subs = nil
	l.mu.Unlock()

	if cerr := l.sink.Close(); err == nil {
		err = cerr
	}
	return err
}

func (l *Logger) emit(kind Kind, subject string, args ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("%w: event stream already closed", domain.ErrConflict)
	}
	rec := Record{Time: l.now(), Kind: kind, Subject: subject, Args: args}
	if err := l.sink.Write(rec); err != nil {
		return err
	}
	for _, ch := range l.subs {
		select {
		case ch <- rec:
		default:
		}
	}
	return nil
}
