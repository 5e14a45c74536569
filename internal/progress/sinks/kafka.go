package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/progress"
)

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig locates the topic probe results are published to.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaSink publishes probe results as JSON messages keyed by channel id.
type KafkaSink struct {
	writer messageWriter
	logger *zap.Logger
}

// ProbeMessage is the JSON payload written for each probe result.
type ProbeMessage struct {
	RunID     string                    `json:"runId"`
	Total     int                       `json:"total"`
	Completed int                       `json:"completed"`
	Result    channel.ChannelTestResult `json:"result"`
	TS        time.Time                 `json:"ts"`
}

// NewKafkaSink builds a sink backed by a kafka-go writer.
func NewKafkaSink(cfg KafkaConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return NewKafkaSinkWithWriter(w, logger), nil
}

// NewKafkaSinkWithWriter wraps an existing writer, primarily for tests.
func NewKafkaSinkWithWriter(w messageWriter, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{writer: w, logger: logger}
}

// Consume encodes the probe results of the batch and writes them in one call.
func (s *KafkaSink) Consume(ctx context.Context, batch []progress.Event) error {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, evt := range batch {
		if evt.Stage != progress.StageProbeDone || evt.Result == nil {
			continue
		}
		payload, err := json.Marshal(ProbeMessage{
			RunID:     evt.RunID,
			Total:     evt.Total,
			Completed: evt.Completed,
			Result:    *evt.Result,
			TS:        evt.TS,
		})
		if err != nil {
			return fmt.Errorf("marshal probe message: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(evt.Result.ChannelID),
			Value: payload,
			Time:  evt.TS,
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	s.logger.Debug("published probe results", zap.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close(context.Context) error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
