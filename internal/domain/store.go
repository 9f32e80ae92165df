package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Store is the façade over the per-channel persisted campaign records and
// their sibling documents (lore, rules, lore summary). Every mutator is
// load-mutate-save under a per-channel mutex; there is no cross-call cache,
// every Load re-reads the disk.
type Store struct {
	dataDir      string
	historyLimit int
	logger       *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the store and its data directories. historyLimit <= 0
// selects the default window.
func NewStore(dataDir string, historyLimit int, logger *slog.Logger) (*Store, error) {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		dataDir:      dataDir,
		historyLimit: historyLimit,
		logger:       logger,
		locks:        map[string]*sync.Mutex{},
	}
	for _, dir := range []string{s.sessionsDir(), s.loresDir(), s.rulesDir(), s.loreSummariesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}
	return s, nil
}

// HistoryLimit returns the configured history window.
func (s *Store) HistoryLimit() int { return s.historyLimit }

func (s *Store) sessionsDir() string      { return filepath.Join(s.dataDir, "sessions") }
func (s *Store) loresDir() string         { return filepath.Join(s.dataDir, "lores") }
func (s *Store) rulesDir() string         { return filepath.Join(s.dataDir, "rules") }
func (s *Store) loreSummariesDir() string { return filepath.Join(s.dataDir, "lore_summaries") }

// safeChannelID strips path separators and traversal components so a
// channel id can never escape the data directory.
func safeChannelID(channelID string) string {
	id := strings.ReplaceAll(channelID, "/", "_")
	id = strings.ReplaceAll(id, "\\", "_")
	id = strings.ReplaceAll(id, "..", "_")
	id = strings.ReplaceAll(id, ":", "_")
	return filepath.Base(id)
}

func (s *Store) sessionPath(channelID string) string {
	return filepath.Join(s.sessionsDir(), safeChannelID(channelID)+".json")
}

func (s *Store) lorePath(channelID string) string {
	return filepath.Join(s.loresDir(), safeChannelID(channelID)+".txt")
}

func (s *Store) rulesPath(channelID string) string {
	return filepath.Join(s.rulesDir(), safeChannelID(channelID)+".txt")
}

func (s *Store) loreSummaryPath(channelID string) string {
	return filepath.Join(s.loreSummariesDir(), safeChannelID(channelID)+"_summary.txt")
}

// channelLock returns the mutex serialising all mutators for one channel.
// Operations for different channels never contend.
func (s *Store) channelLock(channelID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[channelID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[channelID] = lock
	}
	return lock
}

// Load returns the channel's record: decoded and migrated if persisted,
// schema defaults otherwise. Load never fails visibly — a decode failure
// degrades to defaults with a logged warning, and the bytes on disk are
// left untouched for manual recovery.
func (s *Store) Load(channelID string) *Record {
	data, err := os.ReadFile(s.sessionPath(channelID))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("session read failed, using defaults", "channel", channelID, "error", err)
		}
		return Migrate(nil)
	}
	raw, err := Decode(data)
	if err != nil {
		s.logger.Warn("session decode failed, using defaults", "channel", channelID, "error", err)
		return Migrate(nil)
	}
	return Migrate(raw)
}

// Save encodes and persists the record. The write goes to a temp file in
// the same directory followed by a rename, so a concurrent Load never
// observes a half-written record.
func (s *Store) Save(channelID string, rec *Record) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	path := s.sessionPath(channelID)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("save session %s: %w", channelID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save session %s: %w", channelID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save session %s: %w", channelID, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save session %s: %w", channelID, err)
	}
	return nil
}

// Mutate runs a load-transform-save cycle under the channel's lock. The
// transform must be pure against the record: no awaited calls, no I/O —
// that keeps the critical section short and a cancelled caller can never
// leave a half-applied record behind.
func (s *Store) Mutate(channelID string, fn func(*Record) error) error {
	lock := s.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	rec := s.Load(channelID)
	if err := fn(rec); err != nil {
		return err
	}
	return s.Save(channelID, rec)
}

// ---------------------------------------------------------------------------
// Participants
// ---------------------------------------------------------------------------

// RegisterOutcome reports what a registration did.
type RegisterOutcome int

const (
	// Joined: the id was unknown, a fresh participant was created.
	Joined RegisterOutcome = iota
	// Rejoined: the id was known and not Left; status moved to Active.
	Rejoined
	// Reborn: the id was Left; the prior record was replaced by a fresh
	// default one. The old narrative identity is discarded by design.
	Reborn
)

// RegisterParticipant registers or re-activates a participant. New ids are
// refused with ErrSessionLocked while the session is locked; known ids are
// always admitted regardless of lock state.
func (s *Store) RegisterParticipant(channelID, userID, displayName string) (RegisterOutcome, error) {
	outcome := Joined
	err := s.Mutate(channelID, func(rec *Record) error {
		existing, known := rec.Participants[userID]
		if !known {
			if rec.Settings.SessionLocked {
				return ErrSessionLocked
			}
			rec.Participants[userID] = NewParticipant(displayName)
			outcome = Joined
			return nil
		}
		if existing.Status == StatusLeft {
			rec.Participants[userID] = NewParticipant(displayName)
			// The fresh sheet must not inherit fields a newer schema
			// wrote for the old character.
			delete(rec.extraParticipants, userID)
			outcome = Reborn
			return nil
		}
		existing.Status = StatusActive
		outcome = Rejoined
		return nil
	})
	return outcome, err
}

// RemoveParticipant deletes a participant record entirely. Leaving is a
// status transition; this is the explicit removal mutator.
func (s *Store) RemoveParticipant(channelID, userID string) error {
	return s.Mutate(channelID, func(rec *Record) error {
		if _, ok := rec.Participants[userID]; !ok {
			return ErrUnknownParticipant
		}
		delete(rec.Participants, userID)
		delete(rec.extraParticipants, userID)
		return nil
	})
}

// Participant returns a snapshot of one participant. Unknown ids return
// false; a participant is never created implicitly.
func (s *Store) Participant(channelID, userID string) (*Participant, bool) {
	rec := s.Load(channelID)
	p, ok := rec.Participants[userID]
	return p, ok
}

// SetParticipantStatus moves a participant among the defined states. A
// Left transition with a reason appends a system history line.
func (s *Store) SetParticipantStatus(channelID, userID, status, reason string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid participant status %q", status)
	}
	return s.Mutate(channelID, func(rec *Record) error {
		p, ok := rec.Participants[userID]
		if !ok {
			return ErrUnknownParticipant
		}
		p.Status = status
		if status == StatusLeft && reason != "" {
			rec.appendHistory(HistoryEntry{
				Role:    "System",
				Content: fmt.Sprintf("[%s] left the session (%s).", p.Mask, reason),
			}, s.historyLimit)
		}
		return nil
	})
}

// SetMask sets a participant's display alias.
func (s *Store) SetMask(channelID, userID, mask string) error {
	return s.mutateParticipant(channelID, userID, func(p *Participant) {
		p.Mask = mask
	})
}

// SetDescription sets the legacy free-text description.
func (s *Store) SetDescription(channelID, userID, desc string) error {
	return s.mutateParticipant(channelID, userID, func(p *Participant) {
		p.Description = desc
	})
}

// UpdateCoreStats applies a deterministic change to the code-owned stats.
func (s *Store) UpdateCoreStats(channelID, userID string, apply func(*CoreStats)) error {
	return s.mutateParticipant(channelID, userID, func(p *Participant) {
		apply(&p.CoreStats)
	})
}

// AddStatusEffect adds a status effect if not already present.
func (s *Store) AddStatusEffect(channelID, userID, effect string) error {
	return s.mutateParticipant(channelID, userID, func(p *Participant) {
		p.StatusEffects = unionAppend(p.StatusEffects, []string{effect}, 0)
	})
}

// RemoveStatusEffect removes a status effect if present.
func (s *Store) RemoveStatusEffect(channelID, userID, effect string) error {
	return s.mutateParticipant(channelID, userID, func(p *Participant) {
		out := p.StatusEffects[:0]
		for _, e := range p.StatusEffects {
			if e != effect {
				out = append(out, e)
			}
		}
		p.StatusEffects = out
	})
}

// AdjustInventory adds delta to an item count, removing the entry at zero.
func (s *Store) AdjustInventory(channelID, userID, item string, delta int) error {
	return s.mutateParticipant(channelID, userID, func(p *Participant) {
		n := p.Inventory[item] + delta
		if n <= 0 {
			delete(p.Inventory, item)
			return
		}
		p.Inventory[item] = n
	})
}

func (s *Store) mutateParticipant(channelID, userID string, apply func(*Participant)) error {
	return s.Mutate(channelID, func(rec *Record) error {
		p, ok := rec.Participants[userID]
		if !ok {
			return ErrUnknownParticipant
		}
		apply(p)
		return nil
	})
}

// ---------------------------------------------------------------------------
// AI memory merges
// ---------------------------------------------------------------------------

// MergeParticipantMemory merges an AI-authored partial update into a
// participant's memory. merge=false replaces fields verbatim.
func (s *Store) MergeParticipantMemory(channelID, userID string, updates map[string]any, merge bool) error {
	return s.Mutate(channelID, func(rec *Record) error {
		p, ok := rec.Participants[userID]
		if !ok {
			return ErrUnknownParticipant
		}
		MergePlayerMemory(&p.Memory, updates, merge)
		return nil
	})
}

// MergeSessionMemory merges an AI-authored partial update into the session
// memory and stamps last_updated.
func (s *Store) MergeSessionMemory(channelID string, updates map[string]any, merge bool) error {
	return s.Mutate(channelID, func(rec *Record) error {
		MergeSessionMemory(&rec.SessionMemory, updates, merge)
		rec.SessionMemory.LastUpdated = time.Now().Format("2006-01-02 15:04")
		return nil
	})
}

// ResolveThread moves a story thread from active to resolved.
func (s *Store) ResolveThread(channelID, thread string) (bool, error) {
	moved := false
	err := s.Mutate(channelID, func(rec *Record) error {
		mem := &rec.SessionMemory
		for i, t := range mem.ActiveThreads {
			if t == thread {
				mem.ActiveThreads = append(mem.ActiveThreads[:i], mem.ActiveThreads[i+1:]...)
				mem.ResolvedThreads = unionAppend(mem.ResolvedThreads, []string{thread}, memoryListLimit)
				moved = true
				return nil
			}
		}
		return nil
	})
	return moved, err
}

// AddKeyEvent records a day-stamped key event in session memory.
func (s *Store) AddKeyEvent(channelID, event string) error {
	return s.Mutate(channelID, func(rec *Record) error {
		stamped := fmt.Sprintf("Day %d: %s", rec.WorldState.Day, event)
		MergeSessionMemory(&rec.SessionMemory, map[string]any{"key_events": []string{stamped}}, true)
		return nil
	})
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// AppendHistory appends an entry to the rolling history, evicting from the
// front past the cap.
func (s *Store) AppendHistory(channelID, role, content string) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.appendHistory(HistoryEntry{Role: role, Content: content}, s.historyLimit)
		return nil
	})
}

func (r *Record) appendHistory(entry HistoryEntry, limit int) {
	r.History = append(r.History, entry)
	if len(r.History) > limit {
		r.History = r.History[len(r.History)-limit:]
	}
}

// ---------------------------------------------------------------------------
// World state
// ---------------------------------------------------------------------------

// UpdateWorldState replaces the world snapshot wholesale.
func (s *Store) UpdateWorldState(channelID string, ws WorldState) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.WorldState = ws
		return nil
	})
}

// MutateWorldState applies a targeted change to the world snapshot.
func (s *Store) MutateWorldState(channelID string, apply func(*WorldState)) error {
	return s.Mutate(channelID, func(rec *Record) error {
		apply(&rec.WorldState)
		return nil
	})
}

// MergeWorldConstraints merges extracted world rules key-wise.
func (s *Store) MergeWorldConstraints(channelID string, constraints map[string]any) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.WorldState.WorldConstraints = MergeAnyMap(rec.WorldState.WorldConstraints, constraints)
		return nil
	})
}

// ---------------------------------------------------------------------------
// Quest board
// ---------------------------------------------------------------------------

// MutateBoard applies a change to the quest board. The chronicle trims to
// its cap after the change.
func (s *Store) MutateBoard(channelID string, fn func(*Record, *QuestBoard) error) error {
	return s.Mutate(channelID, func(rec *Record) error {
		if err := fn(rec, &rec.QuestBoard); err != nil {
			return err
		}
		if n := len(rec.QuestBoard.Chronicle); n > chronicleLimit {
			trimmed := n - chronicleLimit
			rec.QuestBoard.Chronicle = rec.QuestBoard.Chronicle[trimmed:]
			// Keep the export cursor pointing at the same entry.
			rec.LastExportIndex -= trimmed
			if rec.LastExportIndex < 0 {
				rec.LastExportIndex = 0
			}
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// NPCs
// ---------------------------------------------------------------------------

// UpsertNPC creates or replaces an NPC record.
func (s *Store) UpsertNPC(channelID, name string, npc NPC) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.NPCs[name] = &npc
		return nil
	})
}

// NPCs returns the channel's NPC roster snapshot.
func (s *Store) NPCs(channelID string) map[string]*NPC {
	return s.Load(channelID).NPCs
}

// ---------------------------------------------------------------------------
// Settings and toggles
// ---------------------------------------------------------------------------

// SetResponseMode sets auto or manual narration.
func (s *Store) SetResponseMode(channelID, mode string) error {
	if mode != ResponseAuto && mode != ResponseManual {
		return fmt.Errorf("invalid response mode %q", mode)
	}
	return s.Mutate(channelID, func(rec *Record) error {
		rec.Settings.ResponseMode = mode
		return nil
	})
}

// SetGrowthSystem selects the growth system.
func (s *Store) SetGrowthSystem(channelID, system string) error {
	if system != GrowthStandard && system != GrowthCustom {
		return fmt.Errorf("invalid growth system %q", system)
	}
	return s.Mutate(channelID, func(rec *Record) error {
		rec.Settings.GrowthSystem = system
		return nil
	})
}

// SetBotDisabled toggles the per-channel kill switch.
func (s *Store) SetBotDisabled(channelID string, disabled bool) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.Settings.BotDisabled = disabled
		return nil
	})
}

// SetActiveGenres replaces the active genre list.
func (s *Store) SetActiveGenres(channelID string, genres []string) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.ActiveGenres = genres
		return nil
	})
}

// SetCustomTone sets the custom narration tone; empty clears it.
func (s *Store) SetCustomTone(channelID, tone string) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.CustomTone = tone
		return nil
	})
}

// SetLastExportIndex persists the incremental export cursor.
func (s *Store) SetLastExportIndex(channelID string, idx int) error {
	return s.Mutate(channelID, func(rec *Record) error {
		rec.LastExportIndex = idx
		return nil
	})
}

// ---------------------------------------------------------------------------
// Reset
// ---------------------------------------------------------------------------

// Reset destroys the channel's persisted record and every sibling
// artifact: lore, rules, and the compressed lore summary.
func (s *Store) Reset(channelID string) error {
	lock := s.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	var errs []error
	for _, path := range []string{
		s.sessionPath(channelID),
		s.lorePath(channelID),
		s.rulesPath(channelID),
		s.loreSummaryPath(channelID),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// Channels lists the channel ids with a persisted record.
func (s *Store) Channels() ([]string, error) {
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}
