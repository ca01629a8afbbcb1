// Package memory records site events in-process when no broker is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/logging"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	logger   *zap.Logger
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns a memory Publisher. Each publish is logged at debug level.
func New(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logging.OrNop(logger).Named("events")}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	id := fmt.Sprintf("memory-%d", len(p.messages))
	p.mu.Unlock()

	p.logger.Debug("event recorded", zap.String("topic", topic), zap.String("id", id))
	return id, nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Topics returns the topic of each recorded publish, in order.
func (p *Publisher) Topics() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.messages))
	for i, m := range p.messages {
		out[i] = m.Topic
	}
	return out
}
