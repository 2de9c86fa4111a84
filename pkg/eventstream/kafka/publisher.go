// Package kafka publishes mnemo events to a Kafka topic with segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
)

const defaultTopic = "mnemo.events"

// Config configures a Kafka publisher.
type Config struct {
	Brokers []string

	// Topic defaults to "mnemo.events".
	Topic string

	// WriteTimeout defaults to 10s.
	WriteTimeout time.Duration
}

// MessageWriter is the part of *kafkago.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events as JSON messages. Memory events are keyed by
// session id and document events by document path so that related events
// land on the same partition.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewPublisher creates a publisher backed by a kafkago.Writer.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = defaultTopic
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, cfg.WriteTimeout), nil
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{writer: w, timeout: timeout}
}

// PublishMemory writes a memory-stored event.
func (p *Publisher) PublishMemory(ctx context.Context, event *eventstream.MemoryStoredEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return p.write(ctx, event.SessionID, event.EventType, event)
}

// PublishDocument writes a document-processed event.
func (p *Publisher) PublishDocument(ctx context.Context, event *eventstream.DocumentProcessedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return p.write(ctx, event.DocumentPath, event.EventType, event)
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) write(ctx context.Context, key, eventType string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encoding %s: %w", eventType, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publishing %s: %w", eventType, err)
	}
	return nil
}
