package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/lorekeeper/lorekeeper/internal/bus"
	"github.com/lorekeeper/lorekeeper/internal/config"
)

// SlackChannel runs a Socket Mode client: every message event in a channel
// the bot is in becomes an inbound bus message, and outbound replies are
// posted back with the Web API.
type SlackChannel struct {
	BaseChannel
	config config.SlackConfig
	logger *slog.Logger

	api       *slack.Client
	socket    *socketmode.Client
	botUserID string
}

func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus, logger *slog.Logger) *SlackChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		logger:      logger.With("transport", "slack"),
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	if strings.TrimSpace(c.config.BotToken) == "" {
		return errors.New("missing slack bot token")
	}
	if strings.TrimSpace(c.config.AppToken) == "" {
		return errors.New("missing slack app token")
	}

	c.api = slack.New(
		c.config.BotToken,
		slack.OptionAppLevelToken(c.config.AppToken),
	)
	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.botUserID = auth.UserID

	c.socket = socketmode.New(c.api)
	go c.runSocketMode(ctx)

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Send(sendCtx, msg); err != nil {
			c.logger.Error("outbound send failed", "channel", msg.ChannelID, "error", err)
		}
	})

	c.logger.Info("slack connected", "bot_user", c.botUserID)
	return nil
}

func (c *SlackChannel) runSocketMode(ctx context.Context) {
	go func() {
		for evt := range c.socket.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				if evt.Request != nil {
					c.socket.Ack(*evt.Request)
				}
				ev, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok || ev.Type != slackevents.CallbackEvent {
					continue
				}
				if in, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent); ok && in != nil {
					c.handleMessageEvent(in)
				}
			case socketmode.EventTypeConnectionError:
				c.logger.Warn("socket mode connection error", "data", evt.Data)
			}
		}
	}()
	if err := c.socket.RunContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("socket mode stopped", "error", err)
	}
}

func (c *SlackChannel) handleMessageEvent(in *slackevents.MessageEvent) {
	// Skip our own messages and channel joins, edits, and other subtypes.
	if in.User == "" || in.User == c.botUserID || in.SubType != "" {
		return
	}
	if !senderAllowed(c.config.AllowFrom, in.User) {
		c.logger.Debug("sender not allowed", "sender", in.User)
		return
	}
	content := c.stripBotMention(in.Text)
	if strings.TrimSpace(content) == "" {
		return
	}
	c.Bus.PublishInbound(&bus.InboundMessage{
		Transport:  c.Name(),
		ChannelID:  in.Channel,
		SenderID:   in.User,
		SenderName: in.User,
		Content:    content,
		Timestamp:  time.Now().UTC(),
	})
}

func (c *SlackChannel) stripBotMention(text string) string {
	if c.botUserID == "" {
		return text
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+c.botUserID+">", ""))
}

func (c *SlackChannel) Stop() error {
	return nil
}

func (c *SlackChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if c.api == nil {
		return errors.New("slack client not started")
	}
	_, _, err := c.api.PostMessageContext(ctx, msg.ChannelID,
		slack.MsgOptionText(msg.Content, false))
	if err != nil {
		return fmt.Errorf("slack post message: %w", err)
	}
	return nil
}
