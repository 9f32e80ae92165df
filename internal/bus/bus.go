// Package bus provides the in-process message bus between chat-channel
// adapters and the game-master loop.
package bus

import (
	"context"
	"sync"
	"time"
)

// InboundMessage is one player (or system) message arriving from a channel
// adapter. ChannelID keys all campaign state; SenderID keys the participant.
type InboundMessage struct {
	Transport   string         `json:"transport"`
	ChannelID   string         `json:"channel_id"`
	SenderID    string         `json:"sender_id"`
	SenderName  string         `json:"sender_name,omitempty"`
	TraceID     string         `json:"trace_id"`
	Content     string         `json:"content"`
	IsNarration bool           `json:"is_narration,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// OutboundMessage is one game-master reply heading back to a transport.
type OutboundMessage struct {
	Transport string `json:"transport"`
	ChannelID string `json:"channel_id"`
	TraceID   string `json:"trace_id"`
	Content   string `json:"content"`
}

// MessageBus decouples the transports from the game-master loop. Inbound is
// a single consumed queue; outbound fans out to per-transport subscribers.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage
	subs     map[string][]func(*OutboundMessage)
	mu       sync.RWMutex
}

// NewMessageBus creates a bus with bounded queues.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan *InboundMessage, 100),
		outbound: make(chan *OutboundMessage, 100),
		subs:     make(map[string][]func(*OutboundMessage)),
	}
}

// PublishInbound hands a player message to the game master.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available or ctx is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishOutbound hands a game-master reply to the dispatcher.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	b.outbound <- msg
}

// Subscribe registers a delivery callback for one transport's replies.
func (b *MessageBus) Subscribe(transport string, callback func(*OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[transport] = append(b.subs[transport], callback)
}

// DispatchOutbound delivers replies to their transport's subscribers until
// ctx is cancelled. Run as a goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbound:
			b.mu.RLock()
			callbacks := b.subs[msg.Transport]
			b.mu.RUnlock()
			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// InboundSize returns the number of queued inbound messages.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// OutboundSize returns the number of queued outbound replies.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}
