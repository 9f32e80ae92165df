// Package channels holds the chat transports. Each transport turns platform
// events into bus messages and delivers outbound replies for its name.
package channels

import (
	"context"
	"strings"

	"github.com/lorekeeper/lorekeeper/internal/bus"
)

// Channel is a chat transport (Slack, WhatsApp, ...).
type Channel interface {
	// Name returns the transport name, matching bus message Transport fields.
	Name() string
	// Start connects the transport and begins delivering messages.
	Start(ctx context.Context) error
	// Stop disconnects the transport.
	Stop() error
	// Send delivers one outbound message to its channel.
	Send(ctx context.Context, msg *bus.OutboundMessage) error
}

// BaseChannel provides the shared bus handle.
type BaseChannel struct {
	Bus *bus.MessageBus
}

// senderAllowed reports whether a sender passes the allowlist. An empty
// allowlist admits everyone.
func senderAllowed(allowFrom []string, senderID string) bool {
	if len(allowFrom) == 0 {
		return true
	}
	for _, allowed := range allowFrom {
		if strings.EqualFold(strings.TrimSpace(allowed), senderID) {
			return true
		}
	}
	return false
}
