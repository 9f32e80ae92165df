package transcript

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatal(err)
	}
	svc, err := NewServiceWithDB(db)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestAddAndTail(t *testing.T) {
	svc := newTestService(t)

	events := []Event{
		{ChannelID: "ch1", SenderID: "42", SenderName: "Kai", EventType: EventPlayer, Content: "I open the door"},
		{ChannelID: "ch1", EventType: EventNarration, Content: "The door groans open."},
		{ChannelID: "ch2", SenderID: "7", EventType: EventPlayer, Content: "elsewhere"},
	}
	for i := range events {
		if err := svc.AddEvent(&events[i]); err != nil {
			t.Fatal(err)
		}
		if events[i].EventID == "" {
			t.Error("event id not generated")
		}
	}

	tail, err := svc.Tail("ch1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 2 {
		t.Fatalf("tail len = %d", len(tail))
	}
	if tail[0].Content != "I open the door" || tail[1].EventType != EventNarration {
		t.Errorf("tail out of order: %+v", tail)
	}

	limited, err := svc.Tail("ch1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].EventType != EventNarration {
		t.Errorf("limit should keep the newest: %+v", limited)
	}
}

func TestByTrace(t *testing.T) {
	svc := newTestService(t)

	for _, e := range []Event{
		{ChannelID: "ch1", TraceID: "t-1", EventType: EventPlayer, Content: "in"},
		{ChannelID: "ch1", TraceID: "t-1", EventType: EventNarration, Content: "out"},
		{ChannelID: "ch1", TraceID: "t-2", EventType: EventPlayer, Content: "other"},
	} {
		evt := e
		if err := svc.AddEvent(&evt); err != nil {
			t.Fatal(err)
		}
	}
	got, err := svc.ByTrace("t-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("by trace = %d events", len(got))
	}
}

func TestDeleteChannel(t *testing.T) {
	svc := newTestService(t)

	for i := 0; i < 3; i++ {
		if err := svc.AddEvent(&Event{ChannelID: "gone", EventType: EventPlayer, Content: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.AddEvent(&Event{ChannelID: "kept", EventType: EventPlayer, Content: "y"}); err != nil {
		t.Fatal(err)
	}

	n, err := svc.DeleteChannel("gone")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("deleted = %d", n)
	}
	if count, _ := svc.CountByChannel("kept"); count != 1 {
		t.Errorf("unrelated channel touched: %d", count)
	}
}

func TestSettings(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.GetSetting("missing"); err == nil {
		t.Error("missing setting should error")
	}
	if err := svc.SetSetting("mode", "auto"); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetSetting("mode", "manual"); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetSetting("mode")
	if err != nil {
		t.Fatal(err)
	}
	if got != "manual" {
		t.Errorf("setting = %q", got)
	}
}
