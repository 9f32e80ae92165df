// Package analysis parses the output of the post-turn extraction pass. The
// model replies with two machine-readable shapes: pipe-delimited action
// lines and a fenced JSON block of memory updates. Everything it says
// outside those shapes is discarded.
package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Action is one pipe-delimited action line, e.g.
//
//	QuestAction | Type: Complete | Content: find the lighthouse keeper
//
// The first segment names the action; the rest are Key: Value fields.
type Action struct {
	Name   string
	Fields map[string]string
}

// Field returns a field value, empty if absent. Keys match case-insensitively.
func (a Action) Field(key string) string {
	for k, v := range a.Fields {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Result is everything one extraction reply carried.
type Result struct {
	Actions []Action
	Updates *MemoryUpdates
}

// MemoryUpdates is the fenced JSON payload. All fields are optional; the
// merge flag defaults to true (accumulate rather than replace).
type MemoryUpdates struct {
	Participants     map[string]map[string]any `json:"participants,omitempty"`
	Session          map[string]any            `json:"session,omitempty"`
	NPCs             map[string]NPCUpdate      `json:"npcs,omitempty"`
	WorldConstraints map[string]any            `json:"world_constraints,omitempty"`
	KeyEvent         string                    `json:"key_event,omitempty"`
	Merge            *bool                     `json:"merge,omitempty"`
}

// NPCUpdate describes one NPC mentioned in the turn.
type NPCUpdate struct {
	Summary  string `json:"summary,omitempty"`
	Status   string `json:"status,omitempty"`
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// ShouldMerge reports the effective merge flag.
func (u *MemoryUpdates) ShouldMerge() bool {
	return u.Merge == nil || *u.Merge
}

var (
	fencePattern  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")
	actionPattern = regexp.MustCompile(`^\s*([A-Za-z]+Action)\s*\|(.+)$`)
)

// Parse extracts actions and memory updates from one model reply. Malformed
// pieces are skipped, never fatal: a bad extraction must not block the
// narration that already went out.
func Parse(text string) *Result {
	res := &Result{}

	// Strip fences before scanning lines so JSON content can never be
	// mistaken for an action line.
	remainder := text
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		var updates MemoryUpdates
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &updates); err == nil {
			res.Updates = &updates
		}
		remainder = fencePattern.ReplaceAllString(text, "")
	}

	for _, line := range strings.Split(remainder, "\n") {
		m := actionPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		action := Action{Name: m[1], Fields: map[string]string{}}
		for _, seg := range strings.Split(m[2], "|") {
			key, value, ok := strings.Cut(seg, ":")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if key != "" {
				action.Fields[key] = value
			}
		}
		res.Actions = append(res.Actions, action)
	}
	return res
}
