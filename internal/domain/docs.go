package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// The lore, rules and lore-summary documents live as plain text files next
// to the session record. They are prompt material, not structured state,
// so they stay hand-editable on disk.

// DefaultLore is the placeholder a channel carries before any worldbuilding
// happened. Appending the first real lore replaces it outright.
const DefaultLore = "[Genre: not set]"

// DefaultRules is the baseline rulebook used until a channel writes its own.
const DefaultRules = `[Narrative Growth Rules]
1. Growth follows the story. XP is granted for meaningful choices, clever
   play and dramatic moments, not for raw combat volume.
2. Core stats (HP/MP/level/gold) change only through explicit, deterministic
   events narrated by the game master.
3. Passive traits are earned, never bought. A passive reflects something the
   character has lived through.
4. Death is negotiable, consequences are not. A fallen character may return
   changed, but the world remembers.
5. The doom clock advances when the party stalls or fails. Rising doom
   raises the stakes of every scene.`

func readDoc(path, fallback string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return fallback
	}
	return string(data)
}

func writeDoc(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".doc-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Lore returns the channel's lore document, or the placeholder default.
func (s *Store) Lore(channelID string) string {
	return readDoc(s.lorePath(channelID), DefaultLore)
}

// HasLore reports whether real lore (not the placeholder) exists.
func (s *Store) HasLore(channelID string) bool {
	return s.Lore(channelID) != DefaultLore
}

// AppendLore appends a block to the lore document. The first real append
// replaces the placeholder rather than growing it.
func (s *Store) AppendLore(channelID, block string) error {
	current := s.Lore(channelID)
	if current == DefaultLore {
		return writeDoc(s.lorePath(channelID), block)
	}
	return writeDoc(s.lorePath(channelID), current+"\n\n"+block)
}

// SetLore replaces the lore document wholesale.
func (s *Store) SetLore(channelID, content string) error {
	return writeDoc(s.lorePath(channelID), content)
}

// ResetLore removes the lore document, reverting to the placeholder.
func (s *Store) ResetLore(channelID string) error {
	if err := os.Remove(s.lorePath(channelID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset lore %s: %w", channelID, err)
	}
	return nil
}

// Rules returns the channel's rulebook, or the baseline default.
func (s *Store) Rules(channelID string) string {
	return readDoc(s.rulesPath(channelID), DefaultRules)
}

// AppendRules appends a block to the rulebook. Like lore, the first real
// append replaces the baseline.
func (s *Store) AppendRules(channelID, block string) error {
	path := s.rulesPath(channelID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return writeDoc(path, block)
	}
	return writeDoc(path, s.Rules(channelID)+"\n\n"+block)
}

// ResetRules removes the rulebook, reverting to the baseline.
func (s *Store) ResetRules(channelID string) error {
	if err := os.Remove(s.rulesPath(channelID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset rules %s: %w", channelID, err)
	}
	return nil
}

// LoreSummary returns the compressed lore summary, empty if none exists.
func (s *Store) LoreSummary(channelID string) string {
	return readDoc(s.loreSummaryPath(channelID), "")
}

// SetLoreSummary stores the compressed lore summary.
func (s *Store) SetLoreSummary(channelID, summary string) error {
	return writeDoc(s.loreSummaryPath(channelID), summary)
}
