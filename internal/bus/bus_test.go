package bus

import (
	"context"
	"testing"
	"time"
)

func TestInboundRoundTrip(t *testing.T) {
	b := NewMessageBus()
	b.PublishInbound(&InboundMessage{Transport: "test", ChannelID: "c1", Content: "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ChannelID != "c1" || msg.Content != "hello" {
		t.Errorf("got %+v", msg)
	}
}

func TestConsumeInboundHonoursContext(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.ConsumeInbound(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestDispatchOutboundRoutesByTransport(t *testing.T) {
	b := NewMessageBus()
	got := make(chan *OutboundMessage, 2)
	b.Subscribe("slack", func(m *OutboundMessage) { got <- m })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(&OutboundMessage{Transport: "whatsapp", ChannelID: "w1", Content: "ignored"})
	b.PublishOutbound(&OutboundMessage{Transport: "slack", ChannelID: "s1", Content: "routed"})

	select {
	case m := <-got:
		if m.Transport != "slack" || m.Content != "routed" {
			t.Errorf("got %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound not dispatched")
	}
}
