// Package domain implements the per-channel campaign state store: the typed
// record model, its JSON codec, schema backfill, the AI-field merge engine,
// and the store façade every command handler goes through.
package domain

import (
	"encoding/json"
	"time"
)

// Participant status values. These are the only values ever written.
const (
	StatusActive = "active"
	StatusAway   = "away"
	StatusAfk    = "afk"
	StatusLeft   = "left"
)

// Response modes.
const (
	ResponseAuto   = "auto"
	ResponseManual = "manual"
)

// Growth systems.
const (
	GrowthStandard = "standard"
	GrowthCustom   = "custom"
)

const (
	// DefaultHistoryLimit caps the in-prompt history window. Older entries
	// are evicted oldest-first; the full log lives in the transcript db.
	DefaultHistoryLimit = 40

	// memoryListLimit caps session-memory list fields on merge.
	memoryListLimit = 20

	// chronicleLimit caps the chronicle log on merge and append.
	chronicleLimit = 100
)

// HistoryEntry is one line of the rolling narrative history.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CoreStats are the code-owned numeric fields of a participant. The merge
// engine never touches these; deterministic mutators do.
type CoreStats struct {
	HP     int `json:"hp"`
	MaxHP  int `json:"max_hp"`
	MP     int `json:"mp"`
	MaxMP  int `json:"max_mp"`
	Level  int `json:"level"`
	XP     int `json:"xp"`
	NextXP int `json:"next_xp"`
	Gold   int `json:"gold"`
}

// PlayerMemory is the AI-owned narrative memory of one participant. The
// code only stores and merges it; content comes from the analysis model.
type PlayerMemory struct {
	Appearance    string            `json:"appearance"`
	Personality   string            `json:"personality"`
	Background    string            `json:"background"`
	Relationships map[string]string `json:"relationships"`
	Passives      []string          `json:"passives"`
	KnownInfo     []string          `json:"known_info"`
	Foreshadowing []string          `json:"foreshadowing"`
	Normalization map[string]string `json:"normalization"`
	Notes         string            `json:"notes"`
}

// Participant is one registered character, keyed by chat-transport user id.
type Participant struct {
	Mask          string         `json:"mask"`
	Status        string         `json:"status"`
	CoreStats     CoreStats      `json:"core_stats"`
	Inventory     map[string]int `json:"inventory"`
	StatusEffects []string       `json:"status_effects"`
	Memory        PlayerMemory   `json:"ai_memory"`

	// Legacy fields retained for backward merge only.
	Description string         `json:"description,omitempty"`
	Relations   map[string]int `json:"relations,omitempty"`
}

// NPC is a named non-player character tracked in the campaign.
type NPC struct {
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

// ChronicleEntry is one dated line of the campaign chronicle.
type ChronicleEntry struct {
	ID        string    `json:"id"`
	Day       int       `json:"day"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// QuestBoard holds the party's goals, scratch memos and the chronicle.
type QuestBoard struct {
	Active    []string         `json:"active"`
	Completed []string         `json:"completed"`
	Memos     []string         `json:"memos"`
	Archive   []string         `json:"archive"`
	Chronicle []ChronicleEntry `json:"chronicle"`
}

// WorldState is the deterministic world snapshot.
type WorldState struct {
	Day                 int            `json:"day"`
	TimeSlot            string         `json:"time_slot"`
	Weather             string         `json:"weather"`
	Doom                int            `json:"doom"`
	DoomName            string         `json:"doom_name"`
	RiskLevel           string         `json:"risk_level"`
	CurrentLocation     string         `json:"current_location"`
	LocationRules       map[string]any `json:"location_rules"`
	WorldConstraints    map[string]any `json:"world_constraints"`
	ActiveThreads       []string       `json:"active_threads"`
	LastTemporalContext map[string]any `json:"last_temporal_context"`
}

// Settings are the per-channel toggles.
type Settings struct {
	ResponseMode  string `json:"response_mode"`
	SessionLocked bool   `json:"session_locked"`
	GrowthSystem  string `json:"growth_system"`
	BotDisabled   bool   `json:"bot_disabled"`
}

// SessionMemory is the session-level AI-owned narrative memory.
type SessionMemory struct {
	WorldSummary    string            `json:"world_summary"`
	CurrentArc      string            `json:"current_arc"`
	ActiveThreads   []string          `json:"active_threads"`
	ResolvedThreads []string          `json:"resolved_threads"`
	KeyEvents       []string          `json:"key_events"`
	Foreshadowing   []string          `json:"foreshadowing"`
	WorldChanges    []string          `json:"world_changes"`
	NPCSummaries    map[string]string `json:"npc_summaries"`
	PartyDynamics   string            `json:"party_dynamics"`
	LastUpdated     string            `json:"last_updated"`
}

// Record is the full persisted state of one channel's campaign.
type Record struct {
	Participants    map[string]*Participant `json:"participants"`
	NPCs            map[string]*NPC         `json:"npcs"`
	History         []HistoryEntry          `json:"history"`
	QuestBoard      QuestBoard              `json:"quest_board"`
	WorldState      WorldState              `json:"world_state"`
	Settings        Settings                `json:"settings"`
	SessionMemory   SessionMemory           `json:"ai_session_memory"`
	ActiveGenres    []string                `json:"active_genres"`
	CustomTone      string                  `json:"custom_tone,omitempty"`
	Prepared        bool                    `json:"prepared"`
	LastExportIndex int                     `json:"last_export_idx"`

	// extra carries top-level fields written by a newer schema version so a
	// re-save does not lose them. Populated by Migrate, emitted by Encode.
	extra map[string]json.RawMessage

	// extraNested does the same one level down, keyed by the top-level
	// field name ("world_state", "settings", ...) holding the unknown
	// sub-fields of that structure.
	extraNested map[string]map[string]json.RawMessage

	// extraParticipants holds the unknown sub-fields of each participant,
	// keyed by user id. A participant that is removed or reborn drops its
	// carried fields with it.
	extraParticipants map[string]map[string]json.RawMessage
}

// NewRecord returns a record populated with the current schema defaults.
func NewRecord() *Record {
	return &Record{
		Participants:  map[string]*Participant{},
		NPCs:          map[string]*NPC{},
		History:       []HistoryEntry{},
		QuestBoard:    defaultQuestBoard(),
		WorldState:    DefaultWorldState(),
		Settings:      defaultSettings(),
		SessionMemory: defaultSessionMemory(),
		ActiveGenres:  []string{"noir"},
	}
}

// DefaultWorldState returns the schema default world snapshot.
func DefaultWorldState() WorldState {
	return WorldState{
		Day:                 1,
		TimeSlot:            "afternoon",
		Weather:             "clear",
		Doom:                0,
		DoomName:            "Crisis",
		RiskLevel:           "None",
		CurrentLocation:     "Unknown",
		LocationRules:       map[string]any{},
		WorldConstraints:    map[string]any{},
		ActiveThreads:       []string{},
		LastTemporalContext: map[string]any{},
	}
}

func defaultQuestBoard() QuestBoard {
	return QuestBoard{
		Active:    []string{},
		Completed: []string{},
		Memos:     []string{},
		Archive:   []string{},
		Chronicle: []ChronicleEntry{},
	}
}

func defaultSettings() Settings {
	return Settings{
		ResponseMode:  ResponseAuto,
		SessionLocked: false,
		GrowthSystem:  GrowthStandard,
	}
}

func defaultSessionMemory() SessionMemory {
	return SessionMemory{
		ActiveThreads:   []string{},
		ResolvedThreads: []string{},
		KeyEvents:       []string{},
		Foreshadowing:   []string{},
		WorldChanges:    []string{},
		NPCSummaries:    map[string]string{},
	}
}

// NewParticipant returns a fresh participant in Active status with default
// core stats. The display name seeds the mask until the player sets one.
func NewParticipant(displayName string) *Participant {
	return &Participant{
		Mask:          displayName,
		Status:        StatusActive,
		CoreStats:     defaultCoreStats(),
		Inventory:     map[string]int{},
		StatusEffects: []string{},
		Memory:        defaultPlayerMemory(),
	}
}

func defaultCoreStats() CoreStats {
	return CoreStats{
		HP:     100,
		MaxHP:  100,
		MP:     50,
		MaxMP:  50,
		Level:  1,
		XP:     0,
		NextXP: 100,
		Gold:   0,
	}
}

func defaultPlayerMemory() PlayerMemory {
	return PlayerMemory{
		Relationships: map[string]string{},
		Passives:      []string{},
		KnownInfo:     []string{},
		Foreshadowing: []string{},
		Normalization: map[string]string{},
	}
}

// ValidStatus reports whether s is one of the defined participant states.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusAway, StatusAfk, StatusLeft:
		return true
	}
	return false
}

// ActiveParticipants returns the ids of participants in Active status.
func (r *Record) ActiveParticipants() []string {
	var ids []string
	for id, p := range r.Participants {
		if p.Status == StatusActive {
			ids = append(ids, id)
		}
	}
	return ids
}
