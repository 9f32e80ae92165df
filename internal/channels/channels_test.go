package channels

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lorekeeper/lorekeeper/internal/bus"
	"github.com/lorekeeper/lorekeeper/internal/config"
)

func TestSenderAllowed(t *testing.T) {
	cases := []struct {
		allow  []string
		sender string
		want   bool
	}{
		{nil, "anyone", true},
		{[]string{}, "anyone", true},
		{[]string{"U123"}, "U123", true},
		{[]string{"u123"}, "U123", true},
		{[]string{" U123 "}, "U123", true},
		{[]string{"U123"}, "U999", false},
	}
	for _, tc := range cases {
		if got := senderAllowed(tc.allow, tc.sender); got != tc.want {
			t.Errorf("senderAllowed(%v, %q) = %v, want %v", tc.allow, tc.sender, got, tc.want)
		}
	}
}

func TestSlackStripBotMention(t *testing.T) {
	c := &SlackChannel{botUserID: "UBOT"}
	if got := c.stripBotMention("<@UBOT> !join"); got != "!join" {
		t.Errorf("stripped = %q", got)
	}
	if got := c.stripBotMention("plain text"); got != "plain text" {
		t.Errorf("untouched = %q", got)
	}
}

func TestWhatsAppOutboundHook(t *testing.T) {
	mbus := bus.NewMessageBus()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewWhatsAppChannel(config.WhatsAppConfig{Enabled: true}, mbus, logger)

	sent := make(chan *bus.OutboundMessage, 1)
	c.sendFn = func(_ context.Context, msg *bus.OutboundMessage) error {
		sent <- msg
		return nil
	}
	mbus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		_ = c.sendOutbound(context.Background(), msg)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mbus.DispatchOutbound(ctx)

	mbus.PublishOutbound(&bus.OutboundMessage{
		Transport: "whatsapp",
		ChannelID: "123@s.whatsapp.net",
		Content:   "The tide recedes.",
	})

	select {
	case msg := <-sent:
		if msg.Content != "The tide recedes." {
			t.Errorf("content = %q", msg.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("outbound never reached the transport")
	}
}
