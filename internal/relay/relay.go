// Package relay publishes chronicle entries to Kafka so external archive
// consumers (campaign wikis, recap generators) can follow a campaign
// without touching the state files.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lorekeeper/lorekeeper/internal/domain"
)

// Publisher is the transport behind the relay. Kafka in production, an
// in-process channel in tests.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

// Envelope is the wire format of one published chronicle entry.
type Envelope struct {
	ChannelID string    `json:"channel_id"`
	EntryID   string    `json:"entry_id"`
	Day       int       `json:"day"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Relay fans chronicle entries out to per-campaign topics.
type Relay struct {
	pub         Publisher
	topicPrefix string
}

// New creates a relay over the given publisher. topicPrefix defaults to
// "campaign".
func New(pub Publisher, topicPrefix string) *Relay {
	if topicPrefix == "" {
		topicPrefix = "campaign"
	}
	return &Relay{pub: pub, topicPrefix: topicPrefix}
}

// Topic returns the topic name for one channel's chronicle stream.
// Channel ids are sanitised the same way the store sanitises file names.
func (r *Relay) Topic(channelID string) string {
	id := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_").Replace(channelID)
	return fmt.Sprintf("%s.%s.history", r.topicPrefix, id)
}

// PublishEntries sends chronicle entries to the channel's topic, keyed by
// entry id so replays dedup downstream.
func (r *Relay) PublishEntries(ctx context.Context, channelID string, entries []domain.ChronicleEntry) error {
	topic := r.Topic(channelID)
	for _, e := range entries {
		value, err := json.Marshal(Envelope{
			ChannelID: channelID,
			EntryID:   e.ID,
			Day:       e.Day,
			Text:      e.Text,
			CreatedAt: e.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal chronicle envelope: %w", err)
		}
		if err := r.pub.Publish(ctx, topic, []byte(e.ID), value); err != nil {
			return fmt.Errorf("publish chronicle entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// Close shuts the underlying publisher.
func (r *Relay) Close() error { return r.pub.Close() }

// KafkaPublisher implements Publisher using segmentio/kafka-go.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given comma-separated
// broker list. Topics are created on first write where the cluster allows.
func NewKafkaPublisher(brokers string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes one message to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Message is one captured publish in the in-process publisher.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// ChannelPublisher is a test/in-process Publisher backed by a Go channel.
type ChannelPublisher struct {
	ch chan Message
}

// NewChannelPublisher creates an in-process publisher for testing.
func NewChannelPublisher() *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Message, 100)}
}

// Publish captures the message.
func (p *ChannelPublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	p.ch <- Message{Topic: topic, Key: key, Value: value}
	return nil
}

// Messages returns the captured messages.
func (p *ChannelPublisher) Messages() <-chan Message { return p.ch }

// Close closes the capture channel.
func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}
