package domain

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRegisterLifecycleScenario(t *testing.T) {
	s := newTestStore(t)
	ch := "table-1"

	outcome, err := s.RegisterParticipant(ch, "42", "Kai")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Joined {
		t.Fatalf("outcome = %v, want Joined", outcome)
	}
	p, ok := s.Participant(ch, "42")
	if !ok {
		t.Fatal("participant not persisted")
	}
	if p.Status != StatusActive || p.Mask != "Kai" || p.CoreStats.Level != 1 {
		t.Errorf("fresh participant = %+v", p)
	}

	for i := 1; i <= 45; i++ {
		if err := s.AppendHistory(ch, "Player", fmt.Sprintf("line %d", i)); err != nil {
			t.Fatal(err)
		}
	}
	rec := s.Load(ch)
	if len(rec.History) != DefaultHistoryLimit {
		t.Fatalf("history len = %d, want %d", len(rec.History), DefaultHistoryLimit)
	}
	if rec.History[0].Content != "line 6" {
		t.Errorf("oldest surviving entry = %q, want %q", rec.History[0].Content, "line 6")
	}

	// Leaving and coming back is a rebirth: the old character is gone.
	if err := s.UpdateCoreStats(ch, "42", func(cs *CoreStats) { cs.Level = 9 }); err != nil {
		t.Fatal(err)
	}
	if err := s.SetParticipantStatus(ch, "42", StatusLeft, ""); err != nil {
		t.Fatal(err)
	}
	outcome, err = s.RegisterParticipant(ch, "42", "Kai")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Reborn {
		t.Fatalf("outcome = %v, want Reborn", outcome)
	}
	p, _ = s.Participant(ch, "42")
	if p.CoreStats.Level != 1 || p.Status != StatusActive {
		t.Errorf("reborn participant kept old state: %+v", p)
	}

	if err := s.MergeParticipantMemory(ch, "42", map[string]any{
		"relationships": map[string]any{"Mira": "ally"},
	}, true); err != nil {
		t.Fatal(err)
	}
	if err := s.MergeParticipantMemory(ch, "42", map[string]any{
		"relationships": map[string]any{"Mira": "betrayed"},
	}, true); err != nil {
		t.Fatal(err)
	}
	p, _ = s.Participant(ch, "42")
	if p.Memory.Relationships["Mira"] != "betrayed" {
		t.Errorf("relationship merge did not overwrite: %v", p.Memory.Relationships)
	}
}

func TestSessionLockRefusesUnknownOnly(t *testing.T) {
	s := newTestStore(t)
	ch := "table-2"

	if _, err := s.RegisterParticipant(ch, "known", "Vel"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetParticipantStatus(ch, "known", StatusAway, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.Mutate(ch, func(rec *Record) error {
		rec.Settings.SessionLocked = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.RegisterParticipant(ch, "stranger", "New"); !errors.Is(err, ErrSessionLocked) {
		t.Errorf("unknown registration while locked: err = %v, want ErrSessionLocked", err)
	}
	outcome, err := s.RegisterParticipant(ch, "known", "Vel")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Rejoined {
		t.Errorf("outcome = %v, want Rejoined", outcome)
	}
	p, _ := s.Participant(ch, "known")
	if p.Status != StatusActive {
		t.Errorf("status = %q, want active", p.Status)
	}
}

func TestLeaveWithReasonAppendsSystemLine(t *testing.T) {
	s := newTestStore(t)
	ch := "table-3"

	if _, err := s.RegisterParticipant(ch, "7", "Rook"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetParticipantStatus(ch, "7", StatusLeft, "caught by the patrol"); err != nil {
		t.Fatal(err)
	}
	rec := s.Load(ch)
	if len(rec.History) != 1 {
		t.Fatalf("history len = %d, want 1", len(rec.History))
	}
	entry := rec.History[0]
	if entry.Role != "System" {
		t.Errorf("role = %q", entry.Role)
	}
	want := "[Rook] left the session (caught by the patrol)."
	if entry.Content != want {
		t.Errorf("content = %q, want %q", entry.Content, want)
	}
}

func TestStatusValidation(t *testing.T) {
	s := newTestStore(t)
	ch := "table-4"
	if _, err := s.RegisterParticipant(ch, "1", "A"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetParticipantStatus(ch, "1", "zombie", ""); err == nil {
		t.Error("invalid status accepted")
	}
	if err := s.SetParticipantStatus(ch, "nobody", StatusAfk, ""); !errors.Is(err, ErrUnknownParticipant) {
		t.Errorf("unknown participant: err = %v", err)
	}
}

func TestCorruptFileDegradesToDefaults(t *testing.T) {
	s := newTestStore(t)
	ch := "table-5"

	path := s.sessionPath(ch)
	garbage := []byte("{this is not json")
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatal(err)
	}

	rec := s.Load(ch)
	if len(rec.Participants) != 0 || rec.WorldState.Day != 1 {
		t.Errorf("corrupt load did not degrade to defaults: %+v", rec)
	}

	// The corrupt bytes stay on disk until something writes.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(garbage) {
		t.Error("corrupt bytes were rewritten by a read")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.AppendHistory("table-6", "GM", "the rain starts"); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestConcurrentMutationsAllLand(t *testing.T) {
	s := newTestStore(t)
	ch := "table-7"

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AppendHistory(ch, "Player", fmt.Sprintf("msg %d", i))
		}(i)
	}
	wg.Wait()

	if got := len(s.Load(ch).History); got != n {
		t.Errorf("history len = %d, want %d (lost update)", got, n)
	}
}

func TestInventoryAdjustRemovesAtZero(t *testing.T) {
	s := newTestStore(t)
	ch := "table-8"
	if _, err := s.RegisterParticipant(ch, "1", "A"); err != nil {
		t.Fatal(err)
	}
	if err := s.AdjustInventory(ch, "1", "torch", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.AdjustInventory(ch, "1", "torch", -2); err != nil {
		t.Fatal(err)
	}
	p, _ := s.Participant(ch, "1")
	if _, ok := p.Inventory["torch"]; ok {
		t.Errorf("zero-count item kept: %v", p.Inventory)
	}
}

func TestRebirthDropsCarriedParticipantFields(t *testing.T) {
	s := newTestStore(t)
	ch := "table-11"
	doc := `{"participants": {"42": {"mask": "Kai", "status": "active", "soul_bond": "raven"}}}`
	if err := os.WriteFile(s.sessionPath(ch), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	// A plain mutation keeps the carried field.
	if err := s.SetMask(ch, "42", "Kestrel"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(s.sessionPath(ch))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "soul_bond") {
		t.Error("carried field lost on plain mutation")
	}

	// Rebirth replaces the sheet; the carried field goes with the old one.
	if err := s.SetParticipantStatus(ch, "42", StatusLeft, ""); err != nil {
		t.Fatal(err)
	}
	outcome, err := s.RegisterParticipant(ch, "42", "Kai")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Reborn {
		t.Fatalf("outcome = %v, want Reborn", outcome)
	}
	data, err = os.ReadFile(s.sessionPath(ch))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "soul_bond") {
		t.Error("carried field survived rebirth")
	}
}

func TestResetRemovesRecordAndDocuments(t *testing.T) {
	s := newTestStore(t)
	ch := "table-9"

	if _, err := s.RegisterParticipant(ch, "1", "A"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendLore(ch, "The city floats above a dead sea."); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLoreSummary(ch, "floating city"); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(ch); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Participant(ch, "1"); ok {
		t.Error("participant survived reset")
	}
	if s.HasLore(ch) {
		t.Error("lore survived reset")
	}
	if s.LoreSummary(ch) != "" {
		t.Error("lore summary survived reset")
	}
}

func TestChannelIDSanitised(t *testing.T) {
	s := newTestStore(t)
	ch := "../../etc/passwd"
	if err := s.AppendHistory(ch, "GM", "x"); err != nil {
		t.Fatal(err)
	}
	path := s.sessionPath(ch)
	rel, err := filepath.Rel(s.sessionsDir(), path)
	if err != nil || rel != filepath.Base(rel) {
		t.Errorf("session path escapes sessions dir: %s", path)
	}
}

func TestChannelsListsPersistedSessions(t *testing.T) {
	s := newTestStore(t)
	for _, ch := range []string{"alpha", "beta"} {
		if err := s.AppendHistory(ch, "GM", "x"); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.Channels()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("channels = %v, want 2 entries", ids)
	}
}
