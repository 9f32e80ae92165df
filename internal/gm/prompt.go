package gm

import (
	"fmt"
	"strings"

	"github.com/lorekeeper/lorekeeper/internal/bus"
	"github.com/lorekeeper/lorekeeper/internal/domain"
	"github.com/lorekeeper/lorekeeper/internal/provider"
)

// narrationMessages builds the prompt for one narration turn. The system
// message carries the world: lore, rules, genres, world state, the party
// and the session memory. The history window follows as alternating turns.
func (s *Service) narrationMessages(channelID string, rec *domain.Record) []provider.Message {
	var sys strings.Builder
	sys.WriteString("You are the game master of an ongoing tabletop roleplaying campaign. ")
	sys.WriteString("Narrate in second person, present tense. Keep scenes short and end with an opening for the players to act.\n\n")

	fmt.Fprintf(&sys, "Genres: %s\n", strings.Join(rec.ActiveGenres, ", "))
	if rec.CustomTone != "" {
		fmt.Fprintf(&sys, "Tone: %s\n", rec.CustomTone)
	}
	sys.WriteString("\n## World lore\n")
	if summary := s.store.LoreSummary(channelID); summary != "" {
		sys.WriteString(summary + "\n")
	} else {
		sys.WriteString(s.store.Lore(channelID) + "\n")
	}
	sys.WriteString("\n## Table rules\n")
	sys.WriteString(s.store.Rules(channelID) + "\n")

	sys.WriteString("\n## World state\n")
	w := rec.WorldState
	fmt.Fprintf(&sys, "Day %d, %s, weather %s. Location: %s. %s: %d (risk %s).\n",
		w.Day, w.TimeSlot, w.Weather, w.CurrentLocation, w.DoomName, w.Doom, w.RiskLevel)
	writeAnyMap(&sys, "World constraints", w.WorldConstraints)

	sys.WriteString("\n## Party\n")
	for _, p := range rec.Participants {
		if p.Status == domain.StatusLeft {
			continue
		}
		writeParticipant(&sys, p)
	}

	if len(rec.NPCs) > 0 {
		sys.WriteString("\n## NPCs\n")
		for name, npc := range rec.NPCs {
			fmt.Fprintf(&sys, "- %s: %s", name, npc.Summary)
			if npc.Location != "" {
				fmt.Fprintf(&sys, " (at %s)", npc.Location)
			}
			sys.WriteString("\n")
		}
	}

	writeSessionMemory(&sys, rec.SessionMemory)

	if len(rec.QuestBoard.Active) > 0 {
		sys.WriteString("\n## Active quests\n")
		for _, q := range rec.QuestBoard.Active {
			sys.WriteString("- " + q + "\n")
		}
	}

	messages := []provider.Message{{Role: "system", Content: sys.String()}}
	for _, h := range rec.History {
		role := "user"
		if h.Role == "GM" {
			role = "assistant"
		}
		content := h.Content
		if role == "user" {
			content = fmt.Sprintf("[%s] %s", h.Role, h.Content)
		}
		messages = append(messages, provider.Message{Role: role, Content: content})
	}
	return messages
}

// analysisMessages builds the extraction-pass prompt: given the latest
// exchange, report state changes as action lines and a fenced JSON block.
func (s *Service) analysisMessages(rec *domain.Record, msg *bus.InboundMessage, narration string) []provider.Message {
	var sys strings.Builder
	sys.WriteString(`You extract campaign state changes from the latest game exchange.
Reply ONLY with these machine-readable shapes, nothing else:

Action lines, one per line, when a state change happened:
  MemoAction | Type: Add | Content: <short fact worth remembering>
  MemoAction | Type: Remove | Content: <memo reference>
  QuestAction | Type: Add | Content: <new quest>
  QuestAction | Type: Complete | Content: <quest reference>
  StatusAction | Type: Add | Effect: <effect name> | Participant: <user-id>
  StatusAction | Type: Remove | Effect: <effect name> | Participant: <user-id>
  XPAction | Type: Award | Amount: <number> | Reason: <short text> | Participant: <user-id>
  ItemAction | Type: Add | Item: <item name> | Count: <number> | Participant: <user-id>
  ItemAction | Type: Remove | Item: <item name> | Count: <number> | Participant: <user-id>
  ChronicleAction | Content: <one dated line for the campaign chronicle>
Participant defaults to the speaking player when omitted.

One fenced JSON block for memory updates (omit keys with no change):
` + "```json\n" + `{
  "participants": {"<user-id>": {"appearance": "...", "personality": "...", "background": "...", "relationships": {"<name>": "<stance>"}, "passives": ["..."], "known_info": ["..."], "foreshadowing": ["..."], "notes": "..."}},
  "session": {"world_summary": "...", "current_arc": "...", "active_threads": ["..."], "resolved_threads": ["..."], "key_events": ["..."], "npc_summaries": {"<name>": "..."}, "party_dynamics": "..."},
  "npcs": {"<name>": {"summary": "...", "status": "...", "location": "...", "notes": "..."}},
  "world_constraints": {"<rule>": "<value>"},
  "key_event": "...",
  "merge": true
}
` + "```\n\nKnown participants:\n")
	for uid, p := range rec.Participants {
		fmt.Fprintf(&sys, "- %s: %s (%s)\n", uid, p.Mask, p.Status)
	}

	exchange := fmt.Sprintf("Player [%s]: %s\n\nGame master: %s", msg.SenderID, msg.Content, narration)
	return []provider.Message{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: exchange},
	}
}

func writeParticipant(b *strings.Builder, p *domain.Participant) {
	cs := p.CoreStats
	fmt.Fprintf(b, "- %s [%s] HP %d/%d MP %d/%d Lv %d, %d gold\n",
		p.Mask, p.Status, cs.HP, cs.MaxHP, cs.MP, cs.MaxMP, cs.Level, cs.Gold)
	m := p.Memory
	if m.Appearance != "" {
		fmt.Fprintf(b, "  Appearance: %s\n", m.Appearance)
	}
	if m.Personality != "" {
		fmt.Fprintf(b, "  Personality: %s\n", m.Personality)
	}
	if m.Background != "" {
		fmt.Fprintf(b, "  Background: %s\n", m.Background)
	}
	if len(m.Relationships) > 0 {
		var rels []string
		for name, stance := range m.Relationships {
			rels = append(rels, name+": "+stance)
		}
		fmt.Fprintf(b, "  Relationships: %s\n", strings.Join(rels, "; "))
	}
	if len(m.Passives) > 0 {
		fmt.Fprintf(b, "  Passives: %s\n", strings.Join(m.Passives, ", "))
	}
	if len(m.KnownInfo) > 0 {
		fmt.Fprintf(b, "  Knows: %s\n", strings.Join(m.KnownInfo, "; "))
	}
	if len(p.StatusEffects) > 0 {
		fmt.Fprintf(b, "  Effects: %s\n", strings.Join(p.StatusEffects, ", "))
	}
}

func writeSessionMemory(b *strings.Builder, m domain.SessionMemory) {
	if m.WorldSummary == "" && m.CurrentArc == "" && len(m.ActiveThreads) == 0 && len(m.KeyEvents) == 0 {
		return
	}
	b.WriteString("\n## Session memory\n")
	if m.WorldSummary != "" {
		fmt.Fprintf(b, "Summary: %s\n", m.WorldSummary)
	}
	if m.CurrentArc != "" {
		fmt.Fprintf(b, "Current arc: %s\n", m.CurrentArc)
	}
	if m.PartyDynamics != "" {
		fmt.Fprintf(b, "Party dynamics: %s\n", m.PartyDynamics)
	}
	if len(m.ActiveThreads) > 0 {
		fmt.Fprintf(b, "Open threads: %s\n", strings.Join(m.ActiveThreads, "; "))
	}
	if len(m.KeyEvents) > 0 {
		fmt.Fprintf(b, "Key events: %s\n", strings.Join(m.KeyEvents, "; "))
	}
	if len(m.Foreshadowing) > 0 {
		fmt.Fprintf(b, "Foreshadowing: %s\n", strings.Join(m.Foreshadowing, "; "))
	}
}

func writeAnyMap(b *strings.Builder, title string, m map[string]any) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for k, v := range m {
		fmt.Fprintf(b, "- %s: %v\n", k, v)
	}
}
