// Package quest manages the quest board: party goals, scratch memos and
// the dated campaign chronicle.
package quest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lorekeeper/lorekeeper/internal/domain"
)

// ErrQuestNotFound is returned when a completion reference matches nothing.
var ErrQuestNotFound = errors.New("quest not found")

// ErrMemoNotFound is returned when a removal reference matches no memo.
var ErrMemoNotFound = errors.New("memo not found")

// Service wraps the store's quest board with the board operations.
type Service struct {
	store *domain.Store
}

// NewService creates the quest service.
func NewService(store *domain.Store) *Service {
	return &Service{store: store}
}

// Add puts a new quest on the active list. Duplicates are refused.
func (s *Service) Add(channelID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty quest")
	}
	return s.store.MutateBoard(channelID, func(_ *domain.Record, b *domain.QuestBoard) error {
		for _, q := range b.Active {
			if q == text {
				return fmt.Errorf("quest already active: %s", text)
			}
		}
		b.Active = append(b.Active, text)
		return nil
	})
}

// Complete moves an active quest to the completed list and chronicles it.
// ref is either a 1-based index into the active list or a substring; the
// first match wins. The completed quest text is returned.
func (s *Service) Complete(channelID, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	var completed string
	err := s.store.MutateBoard(channelID, func(rec *domain.Record, b *domain.QuestBoard) error {
		idx := -1
		if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(b.Active) {
			idx = n - 1
		} else {
			needle := strings.ToLower(ref)
			for i, q := range b.Active {
				if strings.Contains(strings.ToLower(q), needle) {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			return ErrQuestNotFound
		}
		completed = b.Active[idx]
		b.Active = append(b.Active[:idx], b.Active[idx+1:]...)
		b.Completed = append(b.Completed, completed)
		b.Chronicle = append(b.Chronicle, domain.ChronicleEntry{
			ID:        uuid.NewString(),
			Day:       rec.WorldState.Day,
			Text:      fmt.Sprintf("Quest completed: %s", completed),
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
	return completed, err
}

// AddMemo appends a line to the scratch memo pad.
func (s *Service) AddMemo(channelID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty memo")
	}
	return s.store.MutateBoard(channelID, func(_ *domain.Record, b *domain.QuestBoard) error {
		b.Memos = append(b.Memos, text)
		return nil
	})
}

// RemoveMemo deletes a memo from the pad. ref is either a 1-based index or
// a substring; the first match wins. The removed text is returned.
func (s *Service) RemoveMemo(channelID, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	var removed string
	err := s.store.MutateBoard(channelID, func(_ *domain.Record, b *domain.QuestBoard) error {
		idx := -1
		if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(b.Memos) {
			idx = n - 1
		} else if ref != "" {
			needle := strings.ToLower(ref)
			for i, m := range b.Memos {
				if strings.Contains(strings.ToLower(m), needle) {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			return ErrMemoNotFound
		}
		removed = b.Memos[idx]
		b.Memos = append(b.Memos[:idx], b.Memos[idx+1:]...)
		return nil
	})
	return removed, err
}

// ArchiveMemos moves every memo into the archive, clearing the pad.
func (s *Service) ArchiveMemos(channelID string) (int, error) {
	moved := 0
	err := s.store.MutateBoard(channelID, func(_ *domain.Record, b *domain.QuestBoard) error {
		moved = len(b.Memos)
		b.Archive = append(b.Archive, b.Memos...)
		b.Memos = b.Memos[:0]
		return nil
	})
	return moved, err
}

// Chronicle appends a dated entry to the campaign chronicle.
func (s *Service) Chronicle(channelID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty chronicle entry")
	}
	return s.store.MutateBoard(channelID, func(rec *domain.Record, b *domain.QuestBoard) error {
		b.Chronicle = append(b.Chronicle, domain.ChronicleEntry{
			ID:        uuid.NewString(),
			Day:       rec.WorldState.Day,
			Text:      text,
			CreatedAt: time.Now().UTC(),
		})
		return nil
	})
}

// Board returns a snapshot of the channel's quest board.
func (s *Service) Board(channelID string) domain.QuestBoard {
	return s.store.Load(channelID).QuestBoard
}

// ExportNew returns the chronicle entries appended since the last export
// and advances the cursor. The cursor indexes the current chronicle buffer;
// the board trim adjusts it when old entries fall off, so a trimmed line is
// never re-exported.
func (s *Service) ExportNew(channelID string) ([]domain.ChronicleEntry, error) {
	var out []domain.ChronicleEntry
	err := s.store.Mutate(channelID, func(rec *domain.Record) error {
		start := rec.LastExportIndex
		if start > len(rec.QuestBoard.Chronicle) {
			start = len(rec.QuestBoard.Chronicle)
		}
		out = append(out, rec.QuestBoard.Chronicle[start:]...)
		rec.LastExportIndex = len(rec.QuestBoard.Chronicle)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
