package gm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lorekeeper/lorekeeper/internal/bus"
	"github.com/lorekeeper/lorekeeper/internal/command"
	"github.com/lorekeeper/lorekeeper/internal/domain"
)

// dispatch executes one parsed command and returns the reply text. An
// empty reply means nothing is sent.
func (s *Service) dispatch(ctx context.Context, msg *bus.InboundMessage, cmd *command.Command) string {
	ch := msg.ChannelID
	switch cmd.Kind {
	case command.KindJoin:
		return s.handleJoin(msg)

	case command.KindLeave:
		err := s.store.SetParticipantStatus(ch, msg.SenderID, domain.StatusLeft, cmd.Raw)
		if errors.Is(err, domain.ErrUnknownParticipant) {
			return "You are not registered here."
		}
		if err != nil {
			return s.fail("leave", err)
		}
		return "You step out of the story. Rejoining starts a fresh character."

	case command.KindMask:
		if cmd.Raw == "" {
			return "Usage: " + s.cfg.CommandPrefix + "mask <name>"
		}
		if err := s.store.SetMask(ch, msg.SenderID, cmd.Raw); err != nil {
			if errors.Is(err, domain.ErrUnknownParticipant) {
				return "Join first: " + s.cfg.CommandPrefix + "join"
			}
			return s.fail("mask", err)
		}
		return fmt.Sprintf("You are now known as %s.", cmd.Raw)

	case command.KindDesc:
		if cmd.Raw == "" {
			return "Usage: " + s.cfg.CommandPrefix + "desc <a line about your character>"
		}
		if err := s.store.SetDescription(ch, msg.SenderID, cmd.Raw); err != nil {
			if errors.Is(err, domain.ErrUnknownParticipant) {
				return "Join first: " + s.cfg.CommandPrefix + "join"
			}
			return s.fail("desc", err)
		}
		return "Description set."

	case command.KindInfo:
		return s.handleInfo(ch, msg.SenderID)

	case command.KindStatus:
		return s.handleStatus(msg, cmd)

	case command.KindSheet:
		return s.handleSheet(ch, msg.SenderID)

	case command.KindRoll:
		if cmd.Raw == "" {
			return "Usage: " + s.cfg.CommandPrefix + "roll 2d6+1"
		}
		r, err := s.roll(cmd.Raw)
		if err != nil {
			return err.Error()
		}
		return r.String()

	case command.KindQuest:
		return s.handleQuest(ch, cmd)

	case command.KindMemo:
		return s.handleMemo(ch, cmd)

	case command.KindLore:
		return s.handleLore(ch, cmd)

	case command.KindRules:
		return s.handleRules(ch, cmd)

	case command.KindGenre:
		if cmd.Raw == "" {
			rec := s.store.Load(ch)
			return "Active genres: " + strings.Join(rec.ActiveGenres, ", ")
		}
		genres := splitList(cmd.Raw)
		if err := s.store.SetActiveGenres(ch, genres); err != nil {
			return s.fail("genre", err)
		}
		return "Genres set: " + strings.Join(genres, ", ")

	case command.KindTone:
		if err := s.store.SetCustomTone(ch, cmd.Raw); err != nil {
			return s.fail("tone", err)
		}
		if cmd.Raw == "" {
			return "Custom tone cleared."
		}
		return "Narration tone set."

	case command.KindPrepare:
		r, err := s.store.Prepare(ch)
		if errors.Is(err, domain.ErrNotPrepared) {
			return readinessReport(r, s.cfg.CommandPrefix)
		}
		if err != nil {
			return s.fail("prepare", err)
		}
		return "The table is prepared. Start the session with " + s.cfg.CommandPrefix + "start."

	case command.KindStart:
		if err := s.store.StartSession(ch); err != nil {
			if errors.Is(err, domain.ErrNotPrepared) {
				return "Prepare the session first: " + s.cfg.CommandPrefix + "prepare"
			}
			return s.fail("start", err)
		}
		return "The session begins. Registration is now locked."

	case command.KindLock:
		if err := s.store.LockSession(ch); err != nil {
			return s.fail("lock", err)
		}
		return "Registration is locked."

	case command.KindUnlock:
		if err := s.store.UnlockSession(ch); err != nil {
			return s.fail("unlock", err)
		}
		return "Registration is open again."

	case command.KindNPC:
		return s.handleNPC(ch, cmd)

	case command.KindGrowth:
		switch cmd.Sub {
		case domain.GrowthStandard, domain.GrowthCustom:
			if err := s.store.SetGrowthSystem(ch, cmd.Sub); err != nil {
				return s.fail("growth", err)
			}
			return "Growth system: " + cmd.Sub
		default:
			return "Usage: " + s.cfg.CommandPrefix + "growth standard|custom"
		}

	case command.KindMode:
		switch cmd.Sub {
		case "auto", "manual":
			if err := s.store.SetResponseMode(ch, cmd.Sub); err != nil {
				return s.fail("mode", err)
			}
			return "Response mode: " + cmd.Sub
		default:
			return "Usage: " + s.cfg.CommandPrefix + "mode auto|manual"
		}

	case command.KindGo:
		s.narrate(ctx, msg)
		return ""

	case command.KindWorld:
		return renderWorld(s.store.Load(ch).WorldState)

	case command.KindExport:
		return s.handleExport(ctx, ch)

	case command.KindReset:
		if cmd.Raw != "confirm" {
			return "This erases the whole campaign. Run " + s.cfg.CommandPrefix + "reset confirm to proceed."
		}
		if err := s.store.Reset(ch); err != nil {
			return s.fail("reset", err)
		}
		if s.transcript != nil {
			if _, err := s.transcript.DeleteChannel(ch); err != nil {
				s.logger.Warn("transcript reset failed", "channel", ch, "error", err)
			}
		}
		return "The campaign is erased. A blank page waits."

	case command.KindDisable:
		if err := s.store.SetBotDisabled(ch, true); err != nil {
			return s.fail("disable", err)
		}
		return "Going quiet. " + s.cfg.CommandPrefix + "enable brings me back."

	case command.KindEnable:
		if err := s.store.SetBotDisabled(ch, false); err != nil {
			return s.fail("enable", err)
		}
		return "Back at the table."

	case command.KindHelp:
		return helpText(s.cfg.CommandPrefix)
	}
	return ""
}

func (s *Service) handleJoin(msg *bus.InboundMessage) string {
	name := msg.SenderName
	if name == "" {
		name = msg.SenderID
	}
	outcome, err := s.store.RegisterParticipant(msg.ChannelID, msg.SenderID, name)
	if errors.Is(err, domain.ErrSessionLocked) {
		return "The session is locked. Ask the table to " + s.cfg.CommandPrefix + "unlock."
	}
	if err != nil {
		return s.fail("join", err)
	}
	switch outcome {
	case domain.Reborn:
		return fmt.Sprintf("%s returns as a new soul. The old story is gone; a fresh sheet is ready.", name)
	case domain.Rejoined:
		return fmt.Sprintf("%s is back at the table.", name)
	default:
		return fmt.Sprintf("%s joins the story. Set a name with %smask.", name, s.cfg.CommandPrefix)
	}
}

func (s *Service) handleStatus(msg *bus.InboundMessage, cmd *command.Command) string {
	var status string
	switch cmd.Sub {
	case "away":
		status = domain.StatusAway
	case "afk":
		status = domain.StatusAfk
	case "back", "active", "":
		status = domain.StatusActive
	default:
		return "Usage: " + s.cfg.CommandPrefix + "status away|afk|back"
	}
	err := s.store.SetParticipantStatus(msg.ChannelID, msg.SenderID, status, "")
	if errors.Is(err, domain.ErrUnknownParticipant) {
		return "You are not registered here."
	}
	if err != nil {
		return s.fail("status", err)
	}
	return "Status: " + status
}

func (s *Service) handleSheet(channelID, userID string) string {
	p, ok := s.store.Participant(channelID, userID)
	if !ok {
		return "No sheet. Join first: " + s.cfg.CommandPrefix + "join"
	}
	return renderSheet(p)
}

func (s *Service) handleInfo(channelID, userID string) string {
	p, ok := s.store.Participant(channelID, userID)
	if !ok {
		return "No character. Join first: " + s.cfg.CommandPrefix + "join"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", p.Mask, p.Status)
	if p.Description != "" {
		b.WriteString(p.Description + "\n")
	}
	m := p.Memory
	if m.Appearance != "" {
		fmt.Fprintf(&b, "Appearance: %s\n", m.Appearance)
	}
	if m.Personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", m.Personality)
	}
	if m.Background != "" {
		fmt.Fprintf(&b, "Background: %s\n", m.Background)
	}
	if len(m.KnownInfo) > 0 {
		fmt.Fprintf(&b, "Knows: %s\n", strings.Join(m.KnownInfo, "; "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) handleNPC(ch string, cmd *command.Command) string {
	switch cmd.Sub {
	case "add":
		name, summary, ok := strings.Cut(cmd.Arg, ":")
		name = strings.TrimSpace(name)
		summary = strings.TrimSpace(summary)
		if !ok || name == "" || summary == "" {
			return "Usage: " + s.cfg.CommandPrefix + "npc add <name>: <summary>"
		}
		if err := s.store.UpsertNPC(ch, name, domain.NPC{Summary: summary}); err != nil {
			return s.fail("npc add", err)
		}
		return name + " steps onto the stage."
	case "list", "":
		npcs := s.store.NPCs(ch)
		if len(npcs) == 0 {
			return "No NPCs yet."
		}
		var lines []string
		for name, npc := range npcs {
			line := name + ": " + npc.Summary
			if npc.Location != "" {
				line += " (at " + npc.Location + ")"
			}
			lines = append(lines, line)
		}
		sort.Strings(lines)
		return "NPCs:\n- " + strings.Join(lines, "\n- ")
	default:
		return "Usage: " + s.cfg.CommandPrefix + "npc add <name>: <summary>"
	}
}

func (s *Service) handleQuest(ch string, cmd *command.Command) string {
	switch cmd.Sub {
	case "add":
		if err := s.quests.Add(ch, cmd.Arg); err != nil {
			return err.Error()
		}
		return "Quest added: " + cmd.Arg
	case "done", "complete":
		done, err := s.quests.Complete(ch, cmd.Arg)
		if err != nil {
			return err.Error()
		}
		return "Quest completed: " + done
	case "list", "":
		return renderQuests(s.quests.Board(ch))
	default:
		return "Usage: " + s.cfg.CommandPrefix + "quest add|done|list"
	}
}

func (s *Service) handleMemo(ch string, cmd *command.Command) string {
	switch cmd.Sub {
	case "archive":
		n, err := s.quests.ArchiveMemos(ch)
		if err != nil {
			return s.fail("memo archive", err)
		}
		return fmt.Sprintf("%d memos archived.", n)
	case "list":
		b := s.quests.Board(ch)
		if len(b.Memos) == 0 && len(b.Archive) == 0 {
			return "The memo pad is empty."
		}
		out := "Memos:\n- " + strings.Join(b.Memos, "\n- ")
		if len(b.Memos) == 0 {
			out = "The memo pad is empty."
		}
		if len(b.Archive) > 0 {
			out += fmt.Sprintf("\n(%d archived)", len(b.Archive))
		}
		return out
	default:
		// Bare "!memo text" adds.
		text := strings.TrimSpace(cmd.Sub + " " + cmd.Arg)
		if err := s.quests.AddMemo(ch, text); err != nil {
			return err.Error()
		}
		return "Noted."
	}
}

func (s *Service) handleLore(ch string, cmd *command.Command) string {
	switch cmd.Sub {
	case "add":
		if cmd.Arg == "" {
			return "Usage: " + s.cfg.CommandPrefix + "lore add <text>"
		}
		if err := s.store.AppendLore(ch, cmd.Arg); err != nil {
			return s.fail("lore add", err)
		}
		return "The world grows."
	case "reset":
		if err := s.store.ResetLore(ch); err != nil {
			return s.fail("lore reset", err)
		}
		return "Lore cleared."
	case "summary":
		summary := s.store.LoreSummary(ch)
		if summary == "" {
			return "No lore summary yet."
		}
		return summary
	default:
		return s.store.Lore(ch)
	}
}

func (s *Service) handleRules(ch string, cmd *command.Command) string {
	switch cmd.Sub {
	case "add":
		if cmd.Arg == "" {
			return "Usage: " + s.cfg.CommandPrefix + "rules add <text>"
		}
		if err := s.store.AppendRules(ch, cmd.Arg); err != nil {
			return s.fail("rules add", err)
		}
		return "Rules updated."
	case "reset":
		if err := s.store.ResetRules(ch); err != nil {
			return s.fail("rules reset", err)
		}
		return "Rules restored to the baseline."
	default:
		return s.store.Rules(ch)
	}
}

func (s *Service) handleExport(ctx context.Context, ch string) string {
	entries, err := s.quests.ExportNew(ch)
	if err != nil {
		return s.fail("export", err)
	}
	if len(entries) == 0 {
		return "Nothing new to export."
	}
	if s.relay != nil {
		if err := s.relay.PublishEntries(ctx, ch, entries); err != nil {
			return s.fail("export publish", err)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Exported %d chronicle entries:\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "- Day %d: %s\n", e.Day, e.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) fail(op string, err error) string {
	s.logger.Error("command failed", "op", op, "error", err)
	return "Something went wrong. Try again."
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func readinessReport(r domain.Readiness, prefix string) string {
	var missing []string
	if !r.HasLore {
		missing = append(missing, "lore ("+prefix+"lore add <text>)")
	}
	if !r.HasRules {
		missing = append(missing, "rules ("+prefix+"rules add <text>)")
	}
	return "Not ready yet. Missing: " + strings.Join(missing, ", ")
}

func renderSheet(p *domain.Participant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n", p.Mask, p.Status)
	cs := p.CoreStats
	fmt.Fprintf(&b, "HP %d/%d  MP %d/%d  Lv %d (%d/%d xp)  %d gold\n",
		cs.HP, cs.MaxHP, cs.MP, cs.MaxMP, cs.Level, cs.XP, cs.NextXP, cs.Gold)
	if len(p.StatusEffects) > 0 {
		fmt.Fprintf(&b, "Effects: %s\n", strings.Join(p.StatusEffects, ", "))
	}
	if len(p.Inventory) > 0 {
		var items []string
		for item, n := range p.Inventory {
			if n > 1 {
				items = append(items, fmt.Sprintf("%s x%d", item, n))
			} else {
				items = append(items, item)
			}
		}
		fmt.Fprintf(&b, "Inventory: %s\n", strings.Join(items, ", "))
	}
	if len(p.Memory.Passives) > 0 {
		fmt.Fprintf(&b, "Passives: %s\n", strings.Join(p.Memory.Passives, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderQuests(b domain.QuestBoard) string {
	var out strings.Builder
	out.WriteString("Quest board\n")
	if len(b.Active) == 0 {
		out.WriteString("No active quests.\n")
	}
	for i, q := range b.Active {
		fmt.Fprintf(&out, "%d. %s\n", i+1, q)
	}
	if len(b.Completed) > 0 {
		fmt.Fprintf(&out, "Completed: %d\n", len(b.Completed))
	}
	return strings.TrimRight(out.String(), "\n")
}

func renderWorld(w domain.WorldState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Day %d, %s, %s\n", w.Day, w.TimeSlot, w.Weather)
	fmt.Fprintf(&b, "Location: %s\n", w.CurrentLocation)
	fmt.Fprintf(&b, "%s: %d (risk %s)", w.DoomName, w.Doom, w.RiskLevel)
	return b.String()
}

func helpText(prefix string) string {
	p := prefix
	return strings.Join([]string{
		"Commands:",
		p + "join / " + p + "leave — enter or leave the story",
		p + "mask <name> / " + p + "desc <text> — name and describe your character",
		p + "status away|afk|back — set presence",
		p + "sheet / " + p + "info — show your character",
		p + "roll 2d6+1 — roll dice",
		p + "quest add|done|list — manage the quest board",
		p + "memo <text> / " + p + "memo list|archive — the memo pad",
		p + "lore [add|reset|summary] — the world lore",
		p + "rules [add|reset] — the table rules",
		p + "genre <g1, g2> / " + p + "tone <text> — narration style",
		p + "npc [add <name>: <summary>] — the cast of NPCs",
		p + "prepare / " + p + "start / " + p + "lock / " + p + "unlock — session lifecycle",
		p + "mode auto|manual / " + p + "go — narration pacing",
		p + "growth standard|custom — the character growth system",
		p + "world — the world state",
		p + "export — export new chronicle entries",
		p + "reset confirm — erase the campaign",
		p + "disable / " + p + "enable — silence or wake the game master",
	}, "\n")
}
