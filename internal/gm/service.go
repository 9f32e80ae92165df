// Package gm implements the game-master loop: it consumes player messages
// from the bus, dispatches commands against the campaign state, asks the
// narration model for story text, and runs the post-turn extraction pass
// that keeps the AI memory current.
package gm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lorekeeper/lorekeeper/internal/analysis"
	"github.com/lorekeeper/lorekeeper/internal/bus"
	"github.com/lorekeeper/lorekeeper/internal/command"
	"github.com/lorekeeper/lorekeeper/internal/domain"
	"github.com/lorekeeper/lorekeeper/internal/provider"
	"github.com/lorekeeper/lorekeeper/internal/quest"
	"github.com/lorekeeper/lorekeeper/internal/relay"
	"github.com/lorekeeper/lorekeeper/internal/transcript"
)

// Config carries the game-master tunables.
type Config struct {
	CommandPrefix  string
	NarrationModel string
	AnalysisModel  string
	MaxTokens      int
	Temperature    float64
}

// Service is the game master.
type Service struct {
	cfg    Config
	bus    *bus.MessageBus
	store  *domain.Store
	quests *quest.Service
	llm    provider.LLMProvider
	logger *slog.Logger

	// Optional: nil disables the concern.
	transcript *transcript.Service
	relay      *relay.Relay

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService wires the game master. transcript and chronicleRelay may be nil.
func NewService(
	cfg Config,
	mbus *bus.MessageBus,
	store *domain.Store,
	quests *quest.Service,
	llm provider.LLMProvider,
	ts *transcript.Service,
	chronicleRelay *relay.Relay,
	logger *slog.Logger,
) *Service {
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:        cfg,
		bus:        mbus,
		store:      store,
		quests:     quests,
		llm:        llm,
		transcript: ts,
		relay:      chronicleRelay,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run consumes the bus until ctx is cancelled. Each message is handled in
// its own goroutine; the store's per-channel locks serialise state changes,
// so one table's slow LLM call never blocks another table.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("game master running", "prefix", s.cfg.CommandPrefix)
	for {
		msg, err := s.bus.ConsumeInbound(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		go s.handleInbound(ctx, msg)
	}
}

func (s *Service) handleInbound(ctx context.Context, msg *bus.InboundMessage) {
	if msg.TraceID == "" {
		msg.TraceID = uuid.NewString()
	}
	log := s.logger.With("channel", msg.ChannelID, "sender", msg.SenderID, "trace", msg.TraceID)

	cmd := command.ParseInput(s.cfg.CommandPrefix, msg.Content)

	rec := s.store.Load(msg.ChannelID)
	if rec.Settings.BotDisabled && (cmd == nil || cmd.Kind != command.KindEnable) {
		return
	}

	s.record(msg, transcript.EventPlayer, msg.Content)

	if cmd != nil {
		reply := s.dispatch(ctx, msg, cmd)
		if reply != "" {
			s.reply(msg, reply, transcript.EventSystem)
		}
		return
	}

	// Plain narration input. Only registered participants advance the story.
	p, known := rec.Participants[msg.SenderID]
	if !known || p.Status == domain.StatusLeft {
		log.Debug("ignoring narration from unregistered sender")
		return
	}
	if err := s.store.AppendHistory(msg.ChannelID, p.Mask, msg.Content); err != nil {
		log.Error("append history failed", "error", err)
		return
	}
	if rec.Settings.ResponseMode == domain.ResponseManual {
		return
	}
	s.narrate(ctx, msg)
}

// narrate runs one narration turn: snapshot, model call, commit. The store
// is never locked across the model call; the snapshot is re-read only for
// the short commit mutations.
func (s *Service) narrate(ctx context.Context, msg *bus.InboundMessage) {
	log := s.logger.With("channel", msg.ChannelID, "trace", msg.TraceID)

	rec := s.store.Load(msg.ChannelID)
	if !rec.Prepared {
		s.reply(msg, "The session is not prepared yet. Add lore with "+s.cfg.CommandPrefix+"lore add, then "+s.cfg.CommandPrefix+"prepare.", transcript.EventSystem)
		return
	}

	messages := s.narrationMessages(msg.ChannelID, rec)
	resp, err := s.llm.Chat(ctx, &provider.ChatRequest{
		Messages:    messages,
		Model:       s.cfg.NarrationModel,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		log.Error("narration failed", "error", err)
		s.reply(msg, "The story falters for a moment. Try again.", transcript.EventSystem)
		return
	}

	narration := command.StripMarkdown(resp.Content)
	if err := s.store.AppendHistory(msg.ChannelID, "GM", narration); err != nil {
		log.Error("append narration failed", "error", err)
	}
	s.reply(msg, narration, transcript.EventNarration)

	s.analyze(ctx, msg, narration)
}

// analyze runs the extraction pass over the latest turn and applies the
// result. Extraction failures are logged, never surfaced: the narration
// already went out.
func (s *Service) analyze(ctx context.Context, msg *bus.InboundMessage, narration string) {
	log := s.logger.With("channel", msg.ChannelID, "trace", msg.TraceID)

	rec := s.store.Load(msg.ChannelID)
	resp, err := s.llm.Chat(ctx, &provider.ChatRequest{
		Messages:    s.analysisMessages(rec, msg, narration),
		Model:       s.cfg.AnalysisModel,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		log.Warn("extraction pass failed", "error", err)
		return
	}

	res := analysis.Parse(resp.Content)
	s.applyAnalysis(ctx, msg, res, log)
}

func (s *Service) applyAnalysis(ctx context.Context, msg *bus.InboundMessage, res *analysis.Result, log *slog.Logger) {
	channelID := msg.ChannelID
	for _, action := range res.Actions {
		s.applyAction(msg, action, log)
	}

	u := res.Updates
	if u == nil {
		s.publishChronicle(ctx, channelID, log)
		return
	}
	merge := u.ShouldMerge()

	for uid, updates := range u.Participants {
		if err := s.store.MergeParticipantMemory(channelID, uid, updates, merge); err != nil {
			log.Warn("participant memory update skipped", "participant", uid, "error", err)
		}
	}
	if len(u.Session) > 0 {
		if err := s.store.MergeSessionMemory(channelID, u.Session, merge); err != nil {
			log.Warn("session memory update failed", "error", err)
		}
	}
	for name, npc := range u.NPCs {
		if err := s.store.UpsertNPC(channelID, name, domain.NPC{
			Summary:  npc.Summary,
			Status:   npc.Status,
			Location: npc.Location,
			Notes:    npc.Notes,
		}); err != nil {
			log.Warn("npc update failed", "npc", name, "error", err)
		}
	}
	if len(u.WorldConstraints) > 0 {
		if err := s.store.MergeWorldConstraints(channelID, u.WorldConstraints); err != nil {
			log.Warn("world constraint update failed", "error", err)
		}
	}
	if u.KeyEvent != "" {
		if err := s.store.AddKeyEvent(channelID, u.KeyEvent); err != nil {
			log.Warn("key event update failed", "error", err)
		}
	}

	s.publishChronicle(ctx, channelID, log)
}

func (s *Service) applyAction(msg *bus.InboundMessage, action analysis.Action, log *slog.Logger) {
	channelID := msg.ChannelID
	var err error
	switch action.Name {
	case "MemoAction":
		if action.Field("Type") == "Remove" {
			_, err = s.quests.RemoveMemo(channelID, action.Field("Content"))
		} else {
			err = s.quests.AddMemo(channelID, action.Field("Content"))
		}
	case "QuestAction":
		switch action.Field("Type") {
		case "Add":
			err = s.quests.Add(channelID, action.Field("Content"))
		case "Complete":
			_, err = s.quests.Complete(channelID, action.Field("Content"))
		}
	case "StatusAction":
		err = s.applyStatusChange(channelID, msg.SenderID, action)
	case "XPAction":
		s.applyXPAward(msg, action, log)
		return
	case "ItemAction":
		err = s.applyItemChange(channelID, msg.SenderID, action)
	case "ChronicleAction":
		err = s.quests.Chronicle(channelID, action.Field("Content"))
	default:
		log.Debug("unknown action ignored", "action", action.Name)
		return
	}
	if err != nil {
		log.Warn("action failed", "action", action.Name, "error", err)
	}
}

// applyStatusChange adds or removes a status effect. The action targets the
// speaking player unless it names another participant.
func (s *Service) applyStatusChange(channelID, actorID string, action analysis.Action) error {
	effect := action.Field("Effect")
	if effect == "" {
		return errors.New("status action without an effect")
	}
	target := action.Field("Participant")
	if target == "" {
		target = actorID
	}
	switch action.Field("Type") {
	case "Add":
		return s.store.AddStatusEffect(channelID, target, effect)
	case "Remove":
		return s.store.RemoveStatusEffect(channelID, target, effect)
	}
	return fmt.Errorf("unknown status action type %q", action.Field("Type"))
}

// applyXPAward applies an extracted experience award. The channel's growth
// system decides whether overflow XP levels the character up immediately or
// waits for a table ruling; a level-up is announced at the table.
func (s *Service) applyXPAward(msg *bus.InboundMessage, action analysis.Action, log *slog.Logger) {
	amount, convErr := strconv.Atoi(action.Field("Amount"))
	if convErr != nil || amount <= 0 {
		log.Debug("xp award ignored", "amount", action.Field("Amount"))
		return
	}
	target := action.Field("Participant")
	if target == "" {
		target = msg.SenderID
	}
	system := s.store.Load(msg.ChannelID).Settings.GrowthSystem
	var res domain.GrowthResult
	if err := s.store.UpdateCoreStats(msg.ChannelID, target, func(cs *domain.CoreStats) {
		res = cs.GainExperience(amount, system)
	}); err != nil {
		log.Warn("xp award failed", "participant", target, "error", err)
		return
	}
	if res.LevelsGained > 0 {
		name := target
		if p, ok := s.store.Participant(msg.ChannelID, target); ok {
			name = p.Mask
		}
		s.reply(msg, fmt.Sprintf("%s reaches level %d.", name, res.Level), transcript.EventSystem)
	}
}

// applyItemChange adjusts a participant's inventory.
func (s *Service) applyItemChange(channelID, actorID string, action analysis.Action) error {
	item := action.Field("Item")
	if item == "" {
		return errors.New("item action without an item")
	}
	count := 1
	if raw := action.Field("Count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("bad item count %q", raw)
		}
		count = n
	}
	target := action.Field("Participant")
	if target == "" {
		target = actorID
	}
	switch action.Field("Type") {
	case "Add":
		return s.store.AdjustInventory(channelID, target, item, count)
	case "Remove":
		return s.store.AdjustInventory(channelID, target, item, -count)
	}
	return fmt.Errorf("unknown item action type %q", action.Field("Type"))
}

// publishChronicle relays chronicle entries appended since the last export.
func (s *Service) publishChronicle(ctx context.Context, channelID string, log *slog.Logger) {
	if s.relay == nil {
		return
	}
	entries, err := s.quests.ExportNew(channelID)
	if err != nil {
		log.Warn("chronicle export failed", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	if err := s.relay.PublishEntries(ctx, channelID, entries); err != nil {
		log.Warn("chronicle publish failed", "error", err)
	}
}

// reply publishes an outbound message and records it in the transcript.
func (s *Service) reply(msg *bus.InboundMessage, content, eventType string) {
	s.bus.PublishOutbound(&bus.OutboundMessage{
		Transport: msg.Transport,
		ChannelID: msg.ChannelID,
		TraceID:   msg.TraceID,
		Content:   content,
	})
	if s.transcript != nil {
		evt := &transcript.Event{
			TraceID:   msg.TraceID,
			ChannelID: msg.ChannelID,
			EventType: eventType,
			Content:   content,
		}
		if err := s.transcript.AddEvent(evt); err != nil {
			s.logger.Warn("transcript write failed", "error", err)
		}
	}
}

// record writes an inbound event to the transcript.
func (s *Service) record(msg *bus.InboundMessage, eventType, content string) {
	if s.transcript == nil {
		return
	}
	evt := &transcript.Event{
		TraceID:    msg.TraceID,
		ChannelID:  msg.ChannelID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		EventType:  eventType,
		Content:    content,
	}
	if err := s.transcript.AddEvent(evt); err != nil {
		s.logger.Warn("transcript write failed", "error", err)
	}
}

func (s *Service) roll(expr string) (*command.Roll, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return command.ParseRoll(expr, s.rng)
}
