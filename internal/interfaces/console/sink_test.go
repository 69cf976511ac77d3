package console

import (
	"bytes"
	"testing"
	"time"
)

func TestSinkOutput(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	if err := s.WriteLive("\r[XBOOK] BTC_USD B:100/101"); err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	if err := s.WriteSnapshot(ts, "[XBOOK] BTC_USD B:100/101"); err != nil {
		t.Fatal(err)
	}
	if err := s.NewLine(); err != nil {
		t.Fatal(err)
	}

	want := "\r[XBOOK] BTC_USD B:100/101" +
		"\n2024-05-01 12:30:00 [XBOOK] BTC_USD B:100/101\n\n" +
		"\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
