// Package pubsub publishes run reports to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/api/option"

	"github.com/JakeFAU/channel-liveness/internal/notify"
)

// Config identifies the destination topic.
type Config struct {
	ProjectID string
	TopicID   string
}

// Option customises a Notifier.
type Option func(*Notifier)

// WithPropagator overrides the propagator used to stamp trace context onto
// message attributes. The global otel propagator is used by default.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(n *Notifier) {
		if p != nil {
			n.propagator = p
		}
	}
}

// Notifier publishes reports as JSON messages.
type Notifier struct {
	topic      *pubsub.Topic
	client     *pubsub.Client
	propagator propagation.TextMapPropagator
}

// New dials Pub/Sub and returns a Notifier bound to cfg.TopicID. The topic
// must already exist.
func New(ctx context.Context, cfg Config, clientOpts []option.ClientOption, opts ...Option) (*Notifier, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, errors.New("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil || !exists {
		_ = client.Close()
		if err == nil {
			err = fmt.Errorf("topic %q does not exist in project %q", cfg.TopicID, cfg.ProjectID)
		}
		return nil, fmt.Errorf("check pubsub topic: %w", err)
	}
	n := NewWithTopic(topic, opts...)
	n.client = client
	return n, nil
}

// NewWithTopic wraps an existing topic handle. Close does not close the
// topic's client.
func NewWithTopic(topic *pubsub.Topic, opts ...Option) *Notifier {
	n := &Notifier{topic: topic, propagator: otel.GetTextMapPropagator()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify publishes a text-only report.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	return n.NotifyReport(ctx, notify.Report{Text: message})
}

// NotifyReport publishes rep and waits for the server acknowledgement.
func (n *Notifier) NotifyReport(ctx context.Context, rep notify.Report) error {
	if n.topic == nil {
		return errors.New("pubsub topic is not configured")
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	msg := &pubsub.Message{Data: data, Attributes: map[string]string{}}
	if rep.RunID != "" {
		msg.Attributes["run_id"] = rep.RunID
	}
	if rep.Status != "" {
		msg.Attributes["status"] = string(rep.Status)
	}
	n.propagator.Inject(ctx, carrier(msg.Attributes))

	if _, err := n.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

// Close flushes pending publishes and releases the client when New created it.
func (n *Notifier) Close() error {
	if n.topic != nil {
		n.topic.Stop()
	}
	if n.client == nil {
		return nil
	}
	if err := n.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// carrier adapts message attributes to propagation.TextMapCarrier.
type carrier map[string]string

func (c carrier) Get(key string) string {
	return c[key]
}

func (c carrier) Set(key, value string) {
	c[key] = value
}

func (c carrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
