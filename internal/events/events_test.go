package events

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

// memorySink collects records for assertions.
type memorySink struct {
	records []Record
	closed  int
}

func (s *memorySink) Write(r Record) error { s.records = append(s.records, r); return nil }
func (s *memorySink) Close() error         { s.closed++; return nil }

func fixedClock() func() time.Time {
	t := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestLogger_RecordOrderAndFraming(t *testing.T) {
	sink := &memorySink{}
	l, err := newLogger(sink, "run-1", fixedClock())
	if err != nil {
		t.Fatal(err)
	}

	if err := l.JobStart(domain.ServiceSubject, domain.NewCoreSet(0), 2); err != nil {
		t.Fatal(err)
	}
	if err := l.JobStart("canneal", domain.NewCoreSet(1, 2, 3), 3); err != nil {
		t.Fatal(err)
	}
	if err := l.UpdateCores(domain.ServiceSubject, domain.NewCoreSet(0, 1)); err != nil {
		t.Fatal(err)
	}
	if err := l.Custom("canneal", "moved_off_core1"); err != nil {
		t.Fatal(err)
	}
	if err := l.JobEnd("canneal"); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		kind    Kind
		subject string
	}{
		{KindStart, "scheduler"},
		{KindStart, "memcached"},
		{KindStart, "canneal"},
		{KindUpdateCores, "memcached"},
		{KindCustom, "canneal"},
		{KindEnd, "canneal"},
		{KindEnd, "scheduler"},
	}
	if len(sink.records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(sink.records))
	}
	for i, w := range want {
		r := sink.records[i]
		if r.Kind != w.kind || r.Subject != w.subject {
			t.Errorf("record %d = %s %s, want %s %s", i, r.Kind, r.Subject, w.kind, w.subject)
		}
	}

	// Spot-check the line format.
	line := sink.records[3].Line()
	if !strings.HasSuffix(line, " update_cores memcached 0,1") {
		t.Errorf("unexpected update_cores line: %q", line)
	}
	startLine := sink.records[2].Line()
	if !strings.HasSuffix(startLine, " start canneal 1,2,3 3") {
		t.Errorf("unexpected start line: %q", startLine)
	}
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	sink := &memorySink{}
	l, err := newLogger(sink, "run-1", fixedClock())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second close must be a no-op, got %v", err)
	}
	if sink.closed != 1 {
		t.Errorf("sink closed %d times, want once", sink.closed)
	}

	// The end record appears exactly once.
	ends := 0
	for _, r := range sink.records {
		if r.Kind == KindEnd && r.Subject == domain.SchedulerSubject {
			ends++
		}
	}
	if ends != 1 {
		t.Errorf("expected exactly one scheduler end record, got %d", ends)
	}
}

func TestLogger_EmitAfterClose(t *testing.T) {
	sink := &memorySink{}
	l, err := newLogger(sink, "run-1", fixedClock())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.JobEnd("canneal"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict after close, got %v", err)
	}
}

func TestLogger_SubscribeReceivesRecords(t *testing.T) {
	sink := &memorySink{}
	l, err := newLogger(sink, "run-1", fixedClock())
	if err != nil {
		t.Fatal(err)
	}
	ch := l.Subscribe()

	if err := l.JobStart("dedup", domain.NewCoreSet(2), 1); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	var got []Record
	for r := range ch {
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("expected start + scheduler end, got %d records", len(got))
	}
	if got[0].Subject != "dedup" || got[1].Kind != KindEnd {
		t.Errorf("unexpected subscription records: %+v", got)
	}
}
