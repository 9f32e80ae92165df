package gm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lorekeeper/lorekeeper/internal/bus"
	"github.com/lorekeeper/lorekeeper/internal/domain"
	"github.com/lorekeeper/lorekeeper/internal/provider"
	"github.com/lorekeeper/lorekeeper/internal/quest"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	requests  []*provider.ChatRequest
}

func (f *fakeLLM) Chat(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	content := f.responses[0]
	f.responses = f.responses[1:]
	return &provider.ChatResponse{Content: content, FinishReason: "stop"}, nil
}

func (f *fakeLLM) DefaultModel() string { return "fake" }

type harness struct {
	svc      *Service
	store    *domain.Store
	quests   *quest.Service
	llm      *fakeLLM
	outbound chan *bus.OutboundMessage
	cancel   context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := domain.NewStore(t.TempDir(), 0, logger)
	if err != nil {
		t.Fatal(err)
	}
	quests := quest.NewService(store)
	llm := &fakeLLM{}
	mbus := bus.NewMessageBus()

	out := make(chan *bus.OutboundMessage, 100)
	mbus.Subscribe("test", func(m *bus.OutboundMessage) { out <- m })
	ctx, cancel := context.WithCancel(context.Background())
	go mbus.DispatchOutbound(ctx)
	t.Cleanup(cancel)

	cfg := Config{CommandPrefix: "!", NarrationModel: "narr", AnalysisModel: "extract", MaxTokens: 100, Temperature: 0.9}
	svc := NewService(cfg, mbus, store, quests, llm, nil, nil, logger)
	return &harness{svc: svc, store: store, quests: quests, llm: llm, outbound: out, cancel: cancel}
}

func (h *harness) send(t *testing.T, content string) {
	t.Helper()
	h.svc.handleInbound(context.Background(), &bus.InboundMessage{
		Transport:  "test",
		ChannelID:  "table-1",
		SenderID:   "42",
		SenderName: "Kai",
		Content:    content,
	})
}

func (h *harness) nextReply(t *testing.T) string {
	t.Helper()
	select {
	case m := <-h.outbound:
		return m.Content
	case <-time.After(2 * time.Second):
		t.Fatal("no reply on the bus")
		return ""
	}
}

func (h *harness) prepare(t *testing.T) {
	t.Helper()
	if err := h.store.AppendLore("table-1", "A drowned city under a dead lighthouse."); err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.Prepare("table-1"); err != nil {
		t.Fatal(err)
	}
}

func TestJoinAndSheet(t *testing.T) {
	h := newHarness(t)

	h.send(t, "!join")
	if reply := h.nextReply(t); !strings.Contains(reply, "Kai joins the story") {
		t.Errorf("join reply = %q", reply)
	}

	h.send(t, "!sheet")
	reply := h.nextReply(t)
	if !strings.Contains(reply, "HP 100/100") || !strings.Contains(reply, "Lv 1") {
		t.Errorf("sheet reply = %q", reply)
	}
}

func TestNarrationFlowWithExtraction(t *testing.T) {
	h := newHarness(t)
	h.prepare(t)
	h.send(t, "!join")
	h.nextReply(t)

	h.llm.responses = []string{
		"The **door** groans open onto the flooded stairs.",
		`MemoAction | Content: the stairs are flooded

` + "```json\n" + `{
  "participants": {"42": {"known_info": ["the stairs are flooded"]}},
  "session": {"key_events": ["entered the lighthouse"]},
  "merge": true
}
` + "```",
	}

	h.send(t, "I push the lighthouse door open")
	reply := h.nextReply(t)
	if strings.Contains(reply, "**") {
		t.Errorf("markdown not stripped: %q", reply)
	}
	if !strings.Contains(reply, "door groans open") {
		t.Errorf("narration reply = %q", reply)
	}

	rec := h.store.Load("table-1")
	if len(rec.History) != 2 {
		t.Fatalf("history len = %d, want player + GM", len(rec.History))
	}
	if rec.History[0].Role != "Kai" || rec.History[1].Role != "GM" {
		t.Errorf("history roles = %q, %q", rec.History[0].Role, rec.History[1].Role)
	}

	// Extraction results applied.
	p := rec.Participants["42"]
	if len(p.Memory.KnownInfo) != 1 || p.Memory.KnownInfo[0] != "the stairs are flooded" {
		t.Errorf("known info = %v", p.Memory.KnownInfo)
	}
	if len(rec.SessionMemory.KeyEvents) != 1 {
		t.Errorf("key events = %v", rec.SessionMemory.KeyEvents)
	}
	b := h.quests.Board("table-1")
	if len(b.Memos) != 1 || b.Memos[0] != "the stairs are flooded" {
		t.Errorf("memos = %v", b.Memos)
	}

	// Narration and extraction used their configured models.
	if len(h.llm.requests) != 2 {
		t.Fatalf("llm calls = %d", len(h.llm.requests))
	}
	if h.llm.requests[0].Model != "narr" || h.llm.requests[1].Model != "extract" {
		t.Errorf("models = %q, %q", h.llm.requests[0].Model, h.llm.requests[1].Model)
	}
}

func TestUnregisteredNarrationIgnored(t *testing.T) {
	h := newHarness(t)
	h.prepare(t)

	h.send(t, "I sneak in without joining")
	select {
	case m := <-h.outbound:
		t.Errorf("unexpected reply: %q", m.Content)
	case <-time.After(100 * time.Millisecond):
	}
	if len(h.store.Load("table-1").History) != 0 {
		t.Error("unregistered narration reached the history")
	}
}

func TestManualModeWaitsForGo(t *testing.T) {
	h := newHarness(t)
	h.prepare(t)
	h.send(t, "!join")
	h.nextReply(t)
	h.send(t, "!mode manual")
	h.nextReply(t)

	h.send(t, "I wait in the dark")
	select {
	case m := <-h.outbound:
		t.Fatalf("manual mode narrated anyway: %q", m.Content)
	case <-time.After(100 * time.Millisecond):
	}

	h.llm.responses = []string{"Nothing moves. Then something does.", "no changes"}
	h.send(t, "!go")
	if reply := h.nextReply(t); !strings.Contains(reply, "Nothing moves") {
		t.Errorf("go reply = %q", reply)
	}
}

func TestDisableGate(t *testing.T) {
	h := newHarness(t)
	h.send(t, "!join")
	h.nextReply(t)

	h.send(t, "!disable")
	h.nextReply(t)

	h.send(t, "!sheet")
	select {
	case m := <-h.outbound:
		t.Fatalf("disabled bot replied: %q", m.Content)
	case <-time.After(100 * time.Millisecond):
	}

	h.send(t, "!enable")
	if reply := h.nextReply(t); !strings.Contains(reply, "Back at the table") {
		t.Errorf("enable reply = %q", reply)
	}
}

func TestNarrationFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.prepare(t)
	h.send(t, "!join")
	h.nextReply(t)

	// No scripted responses: the model call fails.
	h.send(t, "I open the door")
	reply := h.nextReply(t)
	if !strings.Contains(reply, "falters") {
		t.Errorf("failure reply = %q", reply)
	}
	// The player line stays; a retry narrates over the same history.
	if len(h.store.Load("table-1").History) != 1 {
		t.Errorf("history = %+v", h.store.Load("table-1").History)
	}
}

func TestCharacterAndCastCommands(t *testing.T) {
	h := newHarness(t)
	h.send(t, "!join")
	h.nextReply(t)

	h.send(t, "!desc a tired harbor pilot")
	h.nextReply(t)
	h.send(t, "!info")
	if reply := h.nextReply(t); !strings.Contains(reply, "a tired harbor pilot") {
		t.Errorf("info reply = %q", reply)
	}

	h.send(t, "!npc add Mara: the lighthouse keeper")
	h.nextReply(t)
	h.send(t, "!npc")
	if reply := h.nextReply(t); !strings.Contains(reply, "Mara: the lighthouse keeper") {
		t.Errorf("npc list = %q", reply)
	}

	h.send(t, "!growth custom")
	if reply := h.nextReply(t); !strings.Contains(reply, "custom") {
		t.Errorf("growth reply = %q", reply)
	}
	if got := h.store.Load("table-1").Settings.GrowthSystem; got != "custom" {
		t.Errorf("growth system = %q", got)
	}

	h.send(t, "!growth sideways")
	if reply := h.nextReply(t); !strings.Contains(reply, "standard|custom") {
		t.Errorf("invalid growth reply = %q", reply)
	}
}

func TestExtractionStatusAndItemActions(t *testing.T) {
	h := newHarness(t)
	h.prepare(t)
	h.send(t, "!join")
	h.nextReply(t)

	h.llm.responses = []string{
		"The blade was coated. Poison seeps into the wound.",
		"StatusAction | Type: Add | Effect: Poisoned\nItemAction | Type: Add | Item: antidote | Count: 2",
	}
	h.send(t, "I grab the blade bare-handed")
	h.nextReply(t)

	p, _ := h.store.Participant("table-1", "42")
	if len(p.StatusEffects) != 1 || p.StatusEffects[0] != "Poisoned" {
		t.Errorf("status effects = %v", p.StatusEffects)
	}
	if p.Inventory["antidote"] != 2 {
		t.Errorf("inventory = %v", p.Inventory)
	}

	h.llm.responses = []string{
		"You drink the antidote. The burning fades.",
		"StatusAction | Type: Remove | Effect: Poisoned | Participant: 42\nItemAction | Type: Remove | Item: antidote | Count: 1",
	}
	h.send(t, "I drink an antidote")
	h.nextReply(t)

	p, _ = h.store.Participant("table-1", "42")
	if len(p.StatusEffects) != 0 {
		t.Errorf("effect not removed: %v", p.StatusEffects)
	}
	if p.Inventory["antidote"] != 1 {
		t.Errorf("inventory after use = %v", p.Inventory)
	}
}

func TestExtractionMemoRemove(t *testing.T) {
	h := newHarness(t)
	h.prepare(t)
	h.send(t, "!join")
	h.nextReply(t)
	if err := h.quests.AddMemo("table-1", "the stairs are flooded"); err != nil {
		t.Fatal(err)
	}

	h.llm.responses = []string{
		"The pumps grind to life. The stairwell drains.",
		"MemoAction | Type: Remove | Content: flooded",
	}
	h.send(t, "I start the pumps")
	h.nextReply(t)

	if b := h.quests.Board("table-1"); len(b.Memos) != 0 {
		t.Errorf("memo not removed: %v", b.Memos)
	}
}

func TestExtractionXPAwardStandardGrowth(t *testing.T) {
	h := newHarness(t)
	h.prepare(t)
	h.send(t, "!join")
	h.nextReply(t)

	h.llm.responses = []string{
		"The lighthouse mechanism yields to you at last.",
		"XPAction | Type: Award | Amount: 250 | Reason: breached the lighthouse",
	}
	h.send(t, "I solve the lens puzzle")
	h.nextReply(t)

	if reply := h.nextReply(t); !strings.Contains(reply, "Kai reaches level 3") {
		t.Errorf("level-up announcement = %q", reply)
	}
	p, _ := h.store.Participant("table-1", "42")
	if p.CoreStats.Level != 3 || p.CoreStats.XP != 30 {
		t.Errorf("core stats after award = %+v", p.CoreStats)
	}
}

func TestExtractionXPAwardCustomGrowth(t *testing.T) {
	h := newHarness(t)
	h.prepare(t)
	h.send(t, "!join")
	h.nextReply(t)
	h.send(t, "!growth custom")
	h.nextReply(t)

	h.llm.responses = []string{
		"You carry the day, though the cost is not yet counted.",
		"XPAction | Type: Award | Amount: 250 | Reason: held the line",
	}
	h.send(t, "I hold the line")
	h.nextReply(t)

	// Custom growth accumulates XP without an automatic level-up.
	select {
	case m := <-h.outbound:
		t.Errorf("unexpected announcement: %q", m.Content)
	case <-time.After(100 * time.Millisecond):
	}
	p, _ := h.store.Participant("table-1", "42")
	if p.CoreStats.Level != 1 || p.CoreStats.XP != 250 {
		t.Errorf("core stats after award = %+v", p.CoreStats)
	}
}

func TestSessionLockViaCommands(t *testing.T) {
	h := newHarness(t)
	h.prepare(t)
	h.send(t, "!join")
	h.nextReply(t)

	h.send(t, "!start")
	if reply := h.nextReply(t); !strings.Contains(reply, "Registration is now locked") {
		t.Errorf("start reply = %q", reply)
	}

	stranger := &bus.InboundMessage{
		Transport: "test", ChannelID: "table-1", SenderID: "99", SenderName: "Drifter", Content: "!join",
	}
	h.svc.handleInbound(context.Background(), stranger)
	if reply := h.nextReply(t); !strings.Contains(reply, "locked") {
		t.Errorf("locked join reply = %q", reply)
	}

	h.send(t, "!unlock")
	h.nextReply(t)
	h.svc.handleInbound(context.Background(), stranger)
	if reply := h.nextReply(t); !strings.Contains(reply, "joins the story") {
		t.Errorf("post-unlock join reply = %q", reply)
	}
}
