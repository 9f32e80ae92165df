package domain

import "encoding/json"

// knownTopLevel lists every record field this schema version understands,
// including legacy spellings that migration absorbs. Anything else is
// preserved verbatim for forward compatibility.
var knownTopLevel = map[string]bool{
	"participants":      true,
	"npcs":              true,
	"history":           true,
	"quest_board":       true,
	"world_state":       true,
	"settings":          true,
	"ai_session_memory": true,
	"active_genres":     true,
	"custom_tone":       true,
	"prepared":          true,
	"last_export_idx":   true,
	"disabled":          true, // legacy: moved to settings.bot_disabled
}

// knownNested lists the sub-fields this schema version understands inside
// each nested structure, legacy spellings included. Unknown sub-fields are
// preserved the same way unknown top-level fields are.
var knownNested = map[string]map[string]bool{
	"world_state": {
		"day":                   true,
		"time_slot":             true,
		"weather":               true,
		"doom":                  true,
		"doom_name":             true,
		"risk_level":            true,
		"current_location":      true,
		"location_rules":        true,
		"world_constraints":     true,
		"active_threads":        true,
		"last_temporal_context": true,
	},
	"settings": {
		"response_mode":  true,
		"session_locked": true,
		"growth_system":  true,
		"bot_disabled":   true,
	},
	"ai_session_memory": {
		"world_summary":    true,
		"current_arc":      true,
		"active_threads":   true,
		"resolved_threads": true,
		"key_events":       true,
		"foreshadowing":    true,
		"world_changes":    true,
		"npc_summaries":    true,
		"party_dynamics":   true,
		"last_updated":     true,
	},
	"quest_board": {
		"active":    true,
		"completed": true,
		"memos":     true,
		"archive":   true,
		"chronicle": true,
		"memo":      true, // legacy: absorbed into memos
		"lore":      true, // legacy: absorbed into chronicle
	},
}

// knownParticipantFields is the per-participant equivalent, legacy counters
// included.
var knownParticipantFields = map[string]bool{
	"mask":           true,
	"status":         true,
	"core_stats":     true,
	"inventory":      true,
	"status_effects": true,
	"ai_memory":      true,
	"description":    true,
	"relations":      true,
	"level":          true, // legacy: absorbed into core_stats
	"xp":             true, // legacy: absorbed into core_stats
	"next_xp":        true, // legacy: absorbed into core_stats
	"passives":       true, // legacy: absorbed into ai_memory
}

// Migrate turns a raw decoded tree (possibly written by an older schema
// version) into a record containing every field the current schema
// requires. Present fields are kept verbatim; absent fields get their
// schema defaults, recursively through the known nested structures.
// Migration cannot fail and is idempotent.
func Migrate(raw RawRecord) *Record {
	rec := NewRecord()
	if len(raw) == 0 {
		return rec
	}

	// Decoding over a default-populated record keeps defaults for absent
	// fields and overwrites present ones, nested structures included.
	if base, err := json.Marshal(raw); err == nil {
		_ = json.Unmarshal(base, rec)
	}

	backfillQuestBoard(rec, raw["quest_board"])
	backfillParticipants(rec, raw["participants"])
	backfillLegacySettings(rec, raw)
	rec.normalize()

	rec.extra = nil
	for k, v := range raw {
		if !knownTopLevel[k] {
			if rec.extra == nil {
				rec.extra = map[string]json.RawMessage{}
			}
			rec.extra[k] = v
		}
	}
	captureNestedExtras(rec, raw)
	return rec
}

// captureNestedExtras records the unknown sub-fields of the known nested
// structures so Encode can re-emit them.
func captureNestedExtras(rec *Record, raw RawRecord) {
	rec.extraNested = nil
	for field, known := range knownNested {
		extras := unknownKeys(raw[field], known)
		if len(extras) == 0 {
			continue
		}
		if rec.extraNested == nil {
			rec.extraNested = map[string]map[string]json.RawMessage{}
		}
		rec.extraNested[field] = extras
	}

	rec.extraParticipants = nil
	var parts map[string]json.RawMessage
	if len(raw["participants"]) == 0 || json.Unmarshal(raw["participants"], &parts) != nil {
		return
	}
	for uid, rawP := range parts {
		extras := unknownKeys(rawP, knownParticipantFields)
		if len(extras) == 0 {
			continue
		}
		if rec.extraParticipants == nil {
			rec.extraParticipants = map[string]map[string]json.RawMessage{}
		}
		rec.extraParticipants[uid] = extras
	}
}

// unknownKeys returns the fields of a raw object not in the known set, nil
// when there are none or the value is not an object.
func unknownKeys(raw json.RawMessage, known map[string]bool) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return nil
	}
	var out map[string]json.RawMessage
	for k, v := range fields {
		if !known[k] {
			if out == nil {
				out = map[string]json.RawMessage{}
			}
			out[k] = v
		}
	}
	return out
}

// backfillQuestBoard absorbs the legacy quest-board spellings: "memo" for
// the memo pad and "lore" for the chronicle (a plain string list in old
// records).
func backfillQuestBoard(rec *Record, rawBoard json.RawMessage) {
	if len(rawBoard) == 0 {
		return
	}
	var board map[string]json.RawMessage
	if json.Unmarshal(rawBoard, &board) != nil {
		return
	}
	if _, ok := board["memos"]; !ok {
		if legacy, ok := board["memo"]; ok {
			var memos []string
			if json.Unmarshal(legacy, &memos) == nil {
				rec.QuestBoard.Memos = memos
			}
		}
	}
	if _, ok := board["chronicle"]; !ok {
		if legacy, ok := board["lore"]; ok {
			var lines []string
			if json.Unmarshal(legacy, &lines) == nil {
				for _, line := range lines {
					rec.QuestBoard.Chronicle = append(rec.QuestBoard.Chronicle, ChronicleEntry{Text: line})
				}
			}
		}
	}
}

// backfillParticipants fills the hybrid fields that predate the current
// participant schema: core_stats (seeded from legacy top-level level/xp
// counters) and ai_memory (seeded from the legacy description and passive
// list).
func backfillParticipants(rec *Record, rawParticipants json.RawMessage) {
	if len(rawParticipants) == 0 {
		return
	}
	var parts map[string]map[string]json.RawMessage
	if json.Unmarshal(rawParticipants, &parts) != nil {
		return
	}
	for uid, fields := range parts {
		p := rec.Participants[uid]
		if p == nil {
			continue
		}
		if _, ok := fields["core_stats"]; !ok {
			cs := defaultCoreStats()
			cs.Level = legacyInt(fields["level"], cs.Level)
			cs.XP = legacyInt(fields["xp"], cs.XP)
			cs.NextXP = legacyInt(fields["next_xp"], cs.NextXP)
			p.CoreStats = cs
		}
		if _, ok := fields["ai_memory"]; !ok {
			mem := defaultPlayerMemory()
			mem.Appearance = p.Description
			mem.Passives = legacyPassiveNames(fields["passives"])
			p.Memory = mem
		}
	}
}

func legacyInt(raw json.RawMessage, fallback int) int {
	if len(raw) == 0 {
		return fallback
	}
	var n int
	if json.Unmarshal(raw, &n) != nil {
		return fallback
	}
	return n
}

// legacyPassiveNames reads the old passive list, which held either plain
// strings or objects with a "name" key.
func legacyPassiveNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var names []string
	if json.Unmarshal(raw, &names) == nil {
		return names
	}
	var objs []struct {
		Name string `json:"name"`
	}
	names = []string{}
	if json.Unmarshal(raw, &objs) == nil {
		for _, o := range objs {
			if o.Name != "" {
				names = append(names, o.Name)
			}
		}
	}
	return names
}

// backfillLegacySettings moves the old top-level "disabled" flag into
// settings.bot_disabled.
func backfillLegacySettings(rec *Record, raw RawRecord) {
	if legacy, ok := raw["disabled"]; ok {
		var disabled bool
		if json.Unmarshal(legacy, &disabled) == nil {
			rec.Settings.BotDisabled = disabled
		}
	}
}

// normalize repairs nil containers and out-of-range enum values so every
// loaded record satisfies the schema invariants regardless of what was on
// disk.
func (r *Record) normalize() {
	if r.Participants == nil {
		r.Participants = map[string]*Participant{}
	}
	if r.NPCs == nil {
		r.NPCs = map[string]*NPC{}
	}
	if r.History == nil {
		r.History = []HistoryEntry{}
	}
	if r.ActiveGenres == nil {
		r.ActiveGenres = []string{"noir"}
	}

	b := &r.QuestBoard
	if b.Active == nil {
		b.Active = []string{}
	}
	if b.Completed == nil {
		b.Completed = []string{}
	}
	if b.Memos == nil {
		b.Memos = []string{}
	}
	if b.Archive == nil {
		b.Archive = []string{}
	}
	if b.Chronicle == nil {
		b.Chronicle = []ChronicleEntry{}
	}

	w := &r.WorldState
	if w.LocationRules == nil {
		w.LocationRules = map[string]any{}
	}
	if w.WorldConstraints == nil {
		w.WorldConstraints = map[string]any{}
	}
	if w.ActiveThreads == nil {
		w.ActiveThreads = []string{}
	}
	if w.LastTemporalContext == nil {
		w.LastTemporalContext = map[string]any{}
	}

	if r.Settings.ResponseMode != ResponseAuto && r.Settings.ResponseMode != ResponseManual {
		r.Settings.ResponseMode = ResponseAuto
	}
	if r.Settings.GrowthSystem != GrowthStandard && r.Settings.GrowthSystem != GrowthCustom {
		r.Settings.GrowthSystem = GrowthStandard
	}

	m := &r.SessionMemory
	if m.ActiveThreads == nil {
		m.ActiveThreads = []string{}
	}
	if m.ResolvedThreads == nil {
		m.ResolvedThreads = []string{}
	}
	if m.KeyEvents == nil {
		m.KeyEvents = []string{}
	}
	if m.Foreshadowing == nil {
		m.Foreshadowing = []string{}
	}
	if m.WorldChanges == nil {
		m.WorldChanges = []string{}
	}
	if m.NPCSummaries == nil {
		m.NPCSummaries = map[string]string{}
	}

	for _, p := range r.Participants {
		normalizeParticipant(p)
	}
}

func normalizeParticipant(p *Participant) {
	if !ValidStatus(p.Status) {
		p.Status = StatusActive
	}
	if p.Inventory == nil {
		p.Inventory = map[string]int{}
	}
	if p.StatusEffects == nil {
		p.StatusEffects = []string{}
	}
	mem := &p.Memory
	if mem.Relationships == nil {
		mem.Relationships = map[string]string{}
	}
	if mem.Passives == nil {
		mem.Passives = []string{}
	}
	if mem.KnownInfo == nil {
		mem.KnownInfo = []string{}
	}
	if mem.Foreshadowing == nil {
		mem.Foreshadowing = []string{}
	}
	if mem.Normalization == nil {
		mem.Normalization = map[string]string{}
	}
}
