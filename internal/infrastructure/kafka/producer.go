package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/cassiomorais/payment-relay/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
)

// Producer publishes outbox payloads to Kafka. One writer is kept per
// topic; the topic is the outbox entry's event type and the message
// key is the aggregate id, so events for one aggregate stay ordered
// within a partition.
type Producer struct {
	mu      sync.Mutex
	writers map[string]*kafka.Writer
	cfg     *config.KafkaConfig
}

func NewProducer(cfg *config.KafkaConfig) *Producer {
	return &Producer{
		writers: make(map[string]*kafka.Writer),
		cfg:     cfg,
	}
}

func (p *Producer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(p.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: p.cfg.BatchTimeout,
		WriteTimeout: p.cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(p.cfg.RequiredAcks),
		Async:        false,
	}
	p.writers[topic] = w
	return w
}

// Publish writes one message to the topic. The write uses the
// configured timeout; a slow broker fails the attempt instead of
// stalling the publisher batch.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}
	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to topic %s: %w", topic, err)
	}
	return nil
}

// Close closes all writers
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			lastErr = fmt.Errorf("close writer for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
