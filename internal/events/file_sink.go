package events

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// FileSink appends records to a log file, one line per record, flushed per
// write so a crash loses at most the record being written.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates the event log file for this run, truncating any log a
// previous run left at the same path: one file holds exactly one run, so a
// replay never sees two interleaved start/end framings. The run must abort if
// this fails: without the event stream there is no auditable record of
// anything the scheduler does.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log %s: %w", path, err)
	}
	return &FileSink{file: file, w: bufio.NewWriter(file)}, nil
}

// Write appends one record line.
func (s *FileSink) Write(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.WriteString(r.Line() + "\n"); err != nil {
		return fmt.Errorf("writing event record: %w", err)
	}
	return s.w.Flush()
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
