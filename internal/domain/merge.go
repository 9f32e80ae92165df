package domain

// The merge engine applies AI-authored partial updates to the loosely
// structured fields of the record. The shape set is closed and enumerated
// per field rather than inferred, so the append/overwrite decision for any
// key is fixed:
//
//	list + list   -> union-append (dedup against existing, order preserved)
//	map + map     -> key-wise overwrite, one level deep
//	anything else -> incoming replaces existing
//
// Callers pass merge=false to replace a field verbatim instead of
// accumulating into it.

// unionAppend appends each incoming element not already present. Existing
// duplicates are never removed. A positive limit trims the result from the
// front, oldest first.
func unionAppend(existing, incoming []string, limit int) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	out := existing
	for _, v := range incoming {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// mergeStringMap overwrites existing keys with incoming ones at this level
// only.
func mergeStringMap(existing, incoming map[string]string) map[string]string {
	if existing == nil {
		existing = map[string]string{}
	}
	for k, v := range incoming {
		existing[k] = v
	}
	return existing
}

// MergeAnyMap is the map-shaped merge for free-form object fields such as
// world constraints: incoming keys overwrite existing keys, one level of
// recursion only.
func MergeAnyMap(existing, incoming map[string]any) map[string]any {
	if existing == nil {
		existing = map[string]any{}
	}
	for k, v := range incoming {
		existing[k] = v
	}
	return existing
}

// MergePlayerMemory applies an incoming partial update to a participant's
// AI memory. Keys outside the schema are dropped.
func MergePlayerMemory(mem *PlayerMemory, updates map[string]any, merge bool) {
	for key, value := range updates {
		switch key {
		case "appearance":
			if s, ok := asString(value); ok {
				mem.Appearance = s
			}
		case "personality":
			if s, ok := asString(value); ok {
				mem.Personality = s
			}
		case "background":
			if s, ok := asString(value); ok {
				mem.Background = s
			}
		case "notes":
			if s, ok := asString(value); ok {
				mem.Notes = s
			}
		case "relationships":
			if m, ok := asStringMap(value); ok {
				if merge {
					mem.Relationships = mergeStringMap(mem.Relationships, m)
				} else {
					mem.Relationships = m
				}
			}
		case "normalization":
			if m, ok := asStringMap(value); ok {
				if merge {
					mem.Normalization = mergeStringMap(mem.Normalization, m)
				} else {
					mem.Normalization = m
				}
			}
		case "passives":
			mem.Passives = mergeList(mem.Passives, value, merge, 0)
		case "known_info":
			mem.KnownInfo = mergeList(mem.KnownInfo, value, merge, 0)
		case "foreshadowing":
			mem.Foreshadowing = mergeList(mem.Foreshadowing, value, merge, 0)
		}
	}
}

// MergeSessionMemory applies an incoming partial update to the session
// level AI memory. List fields are growth-prone and trim to a fixed cap,
// dropping from the front.
func MergeSessionMemory(mem *SessionMemory, updates map[string]any, merge bool) {
	for key, value := range updates {
		switch key {
		case "world_summary":
			if s, ok := asString(value); ok {
				mem.WorldSummary = s
			}
		case "current_arc":
			if s, ok := asString(value); ok {
				mem.CurrentArc = s
			}
		case "party_dynamics":
			if s, ok := asString(value); ok {
				mem.PartyDynamics = s
			}
		case "last_updated":
			if s, ok := asString(value); ok {
				mem.LastUpdated = s
			}
		case "npc_summaries":
			if m, ok := asStringMap(value); ok {
				if merge {
					mem.NPCSummaries = mergeStringMap(mem.NPCSummaries, m)
				} else {
					mem.NPCSummaries = m
				}
			}
		case "active_threads":
			mem.ActiveThreads = mergeList(mem.ActiveThreads, value, merge, memoryListLimit)
		case "resolved_threads":
			mem.ResolvedThreads = mergeList(mem.ResolvedThreads, value, merge, memoryListLimit)
		case "key_events":
			mem.KeyEvents = mergeList(mem.KeyEvents, value, merge, memoryListLimit)
		case "foreshadowing":
			mem.Foreshadowing = mergeList(mem.Foreshadowing, value, merge, memoryListLimit)
		case "world_changes":
			mem.WorldChanges = mergeList(mem.WorldChanges, value, merge, memoryListLimit)
		}
	}
}

func mergeList(existing []string, value any, merge bool, limit int) []string {
	incoming, ok := asStringList(value)
	if !ok {
		return existing
	}
	if !merge {
		if limit > 0 && len(incoming) > limit {
			incoming = incoming[len(incoming)-limit:]
		}
		return incoming
	}
	return unionAppend(existing, incoming, limit)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asStringList accepts the shapes JSON decoding produces for a string
// list: []string directly, or []any of strings.
func asStringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// asStringMap accepts map[string]string directly or map[string]any with
// string values.
func asStringMap(v any) (map[string]string, bool) {
	switch m := v.(type) {
	case map[string]string:
		return m, true
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, item := range m {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	}
	return nil, false
}
