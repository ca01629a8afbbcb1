// Package pubsub publishes site lifecycle events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// EventAttribute carries the event type on every message.
const EventAttribute = "event"

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// NewFromClient looks up topicName on client and returns a Publisher for it.
// It fails when the topic does not exist.
func NewFromClient(ctx context.Context, client *pubsub.Client, topicName string) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	topic := client.Topic(topicName)
	ok, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %q: %w", topicName, err)
	}
	if !ok {
		return nil, fmt.Errorf("topic %q does not exist", topicName)
	}
	return New(topic), nil
}

// Publish marshals the payload to JSON and publishes it with the event type
// as an attribute, blocking until the server acknowledges it.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{EventAttribute: event},
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages and stops the topic's background goroutines.
func (p *Publisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}
