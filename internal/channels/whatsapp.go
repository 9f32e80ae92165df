package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/lorekeeper/lorekeeper/internal/bus"
	"github.com/lorekeeper/lorekeeper/internal/config"
)

// WhatsAppChannel is a native WhatsApp client. First start pairs via a QR
// code written next to the session database; later starts reuse the session.
type WhatsAppChannel struct {
	BaseChannel
	config config.WhatsAppConfig
	logger *slog.Logger

	client    *whatsmeow.Client
	container *sqlstore.Container
	sendFn    func(ctx context.Context, msg *bus.OutboundMessage) error
}

func NewWhatsAppChannel(cfg config.WhatsAppConfig, messageBus *bus.MessageBus, logger *slog.Logger) *WhatsAppChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &WhatsAppChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		logger:      logger.With("transport", "whatsapp"),
	}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

func (c *WhatsAppChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	dbPath := c.config.SessionDB
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, ".lorekeeper", "whatsapp.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create whatsapp session dir: %w", err)
	}

	dbLog := waLog.Stdout("Database", "WARN", true)
	clientLog := waLog.Stdout("Client", "WARN", true)

	container, err := sqlstore.New(ctx, "sqlite",
		"file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
	if err != nil {
		return fmt.Errorf("init whatsapp session db: %w", err)
	}
	c.container = container

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get whatsapp device: %w", err)
	}

	c.client = whatsmeow.NewClient(deviceStore, clientLog)
	c.client.AddEventHandler(c.eventHandler)

	if c.client.Store.ID == nil {
		if err := c.pair(ctx, filepath.Dir(dbPath)); err != nil {
			return err
		}
	} else {
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("whatsapp connect: %w", err)
		}
		c.logger.Info("whatsapp connected")
	}

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.sendOutbound(sendCtx, msg); err != nil {
			c.logger.Error("outbound send failed", "channel", msg.ChannelID, "error", err)
		}
	})
	return nil
}

// pair runs the QR login flow, writing the code as a PNG for scanning.
func (c *WhatsAppChannel) pair(ctx context.Context, dir string) error {
	qrChan, _ := c.client.GetQRChannel(ctx)
	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp connect for pairing: %w", err)
	}
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			qrPath := filepath.Join(dir, "whatsapp-qr.png")
			if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, qrPath); err != nil {
				c.logger.Error("write login QR code failed", "error", err)
				continue
			}
			fmt.Printf("WhatsApp login QR code saved to %s — scan it with your phone.\n", qrPath)
		case "success":
			c.logger.Info("whatsapp paired")
		default:
			c.logger.Info("whatsapp login event", "event", evt.Event)
		}
	}
	return nil
}

func (c *WhatsAppChannel) Stop() error {
	if c.client != nil {
		c.client.Disconnect()
	}
	if c.container != nil {
		return c.container.Close()
	}
	return nil
}

func (c *WhatsAppChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if c.client == nil {
		return errors.New("whatsapp client not started")
	}
	jid, err := types.ParseJID(msg.ChannelID)
	if err != nil {
		return fmt.Errorf("invalid JID %q: %w", msg.ChannelID, err)
	}
	waMsg := &waE2E.Message{Conversation: proto.String(msg.Content)}
	if _, err := c.client.SendMessage(ctx, jid, waMsg); err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	return nil
}

func (c *WhatsAppChannel) sendOutbound(ctx context.Context, msg *bus.OutboundMessage) error {
	if c.sendFn != nil {
		return c.sendFn(ctx, msg)
	}
	return c.Send(ctx, msg)
}

func (c *WhatsAppChannel) eventHandler(evt interface{}) {
	v, ok := evt.(*events.Message)
	if !ok {
		return
	}
	if v.Info.IsFromMe {
		return
	}

	content := extractText(v.Message)
	if strings.TrimSpace(content) == "" {
		return
	}

	sender := v.Info.Sender.User
	if !senderAllowed(c.config.AllowFrom, sender) {
		c.logger.Debug("sender not allowed", "sender", sender)
		return
	}

	name := strings.TrimSpace(v.Info.PushName)
	if name == "" {
		name = sender
	}
	c.Bus.PublishInbound(&bus.InboundMessage{
		Transport:  c.Name(),
		ChannelID:  v.Info.Chat.String(),
		SenderID:   sender,
		SenderName: name,
		Content:    content,
		Timestamp:  v.Info.Timestamp,
	})
}

// extractText pulls the plain text out of the message variants we care
// about. Media and reactions are ignored; this is a text game.
func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if t := msg.GetConversation(); t != "" {
		return t
	}
	return msg.GetExtendedTextMessage().GetText()
}
