package quest

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lorekeeper/lorekeeper/internal/domain"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := domain.NewStore(t.TempDir(), 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return NewService(store)
}

func TestAddAndCompleteByIndex(t *testing.T) {
	s := newTestService(t)
	ch := "board-1"

	if err := s.Add(ch, "find the lighthouse keeper"); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ch, "map the sunken quarter"); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ch, "find the lighthouse keeper"); err == nil {
		t.Error("duplicate quest accepted")
	}

	done, err := s.Complete(ch, "2")
	if err != nil {
		t.Fatal(err)
	}
	if done != "map the sunken quarter" {
		t.Errorf("completed = %q", done)
	}

	b := s.Board(ch)
	if len(b.Active) != 1 || len(b.Completed) != 1 {
		t.Errorf("board = %+v", b)
	}
	if len(b.Chronicle) != 1 {
		t.Fatalf("chronicle len = %d", len(b.Chronicle))
	}
	entry := b.Chronicle[0]
	if !strings.Contains(entry.Text, "map the sunken quarter") {
		t.Errorf("chronicle text = %q", entry.Text)
	}
	if entry.Day != 1 || entry.ID == "" {
		t.Errorf("chronicle entry = %+v", entry)
	}
}

func TestCompleteBySubstring(t *testing.T) {
	s := newTestService(t)
	ch := "board-2"

	if err := s.Add(ch, "Find the Lighthouse Keeper"); err != nil {
		t.Fatal(err)
	}
	done, err := s.Complete(ch, "lighthouse")
	if err != nil {
		t.Fatal(err)
	}
	if done != "Find the Lighthouse Keeper" {
		t.Errorf("completed = %q", done)
	}

	if _, err := s.Complete(ch, "nothing matches"); !errors.Is(err, ErrQuestNotFound) {
		t.Errorf("err = %v, want ErrQuestNotFound", err)
	}
}

func TestMemoArchive(t *testing.T) {
	s := newTestService(t)
	ch := "board-3"

	for _, m := range []string{"keeper hates salt", "the tide is wrong"} {
		if err := s.AddMemo(ch, m); err != nil {
			t.Fatal(err)
		}
	}
	moved, err := s.ArchiveMemos(ch)
	if err != nil {
		t.Fatal(err)
	}
	if moved != 2 {
		t.Errorf("moved = %d", moved)
	}
	b := s.Board(ch)
	if len(b.Memos) != 0 || len(b.Archive) != 2 {
		t.Errorf("board = %+v", b)
	}
}

func TestMemoRemove(t *testing.T) {
	s := newTestService(t)
	ch := "board-5"

	for _, m := range []string{"keeper hates salt", "the tide is wrong", "ask about the bell"} {
		if err := s.AddMemo(ch, m); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.RemoveMemo(ch, "2")
	if err != nil {
		t.Fatal(err)
	}
	if removed != "the tide is wrong" {
		t.Errorf("removed = %q", removed)
	}

	removed, err = s.RemoveMemo(ch, "Bell")
	if err != nil {
		t.Fatal(err)
	}
	if removed != "ask about the bell" {
		t.Errorf("removed = %q", removed)
	}

	if _, err := s.RemoveMemo(ch, "nothing matches"); !errors.Is(err, ErrMemoNotFound) {
		t.Errorf("err = %v, want ErrMemoNotFound", err)
	}
	if _, err := s.RemoveMemo(ch, ""); !errors.Is(err, ErrMemoNotFound) {
		t.Errorf("empty ref: err = %v, want ErrMemoNotFound", err)
	}

	b := s.Board(ch)
	if len(b.Memos) != 1 || b.Memos[0] != "keeper hates salt" {
		t.Errorf("memos = %v", b.Memos)
	}
}

func TestExportCursor(t *testing.T) {
	s := newTestService(t)
	ch := "board-4"

	for _, line := range []string{"the harbor froze", "the keeper defected"} {
		if err := s.Chronicle(ch, line); err != nil {
			t.Fatal(err)
		}
	}

	first, err := s.ExportNew(ch)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("first export = %d entries", len(first))
	}

	second, err := s.ExportNew(ch)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("second export re-sent %d entries", len(second))
	}

	if err := s.Chronicle(ch, "the light went out"); err != nil {
		t.Fatal(err)
	}
	third, err := s.ExportNew(ch)
	if err != nil {
		t.Fatal(err)
	}
	if len(third) != 1 || third[0].Text != "the light went out" {
		t.Errorf("third export = %+v", third)
	}
}
