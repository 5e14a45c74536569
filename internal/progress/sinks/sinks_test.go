package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/progress"
)

var testNow = time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)

func runBatch() []progress.Event {
	online := channel.NewOnlineResult(channel.Channel{ID: "c1", Name: "One"}, 250*time.Millisecond, testNow)
	offline := channel.NewOfflineResult(channel.Channel{ID: "c2", Name: "Two"}, "no data", testNow)
	return []progress.Event{
		{RunID: "run-1", TS: testNow, Stage: progress.StageRunStart, Total: 2},
		{RunID: "run-1", TS: testNow, Stage: progress.StageProbeDone, Total: 2, Completed: 1, Result: &online},
		{RunID: "run-1", TS: testNow, Stage: progress.StageProbeDone, Total: 2, Completed: 2, Result: &offline},
		{
			RunID: "run-1", TS: testNow.Add(3 * time.Second), Stage: progress.StageRunDone,
			Total: 2, Completed: 2, Status: channel.RunCompleted, Dur: 3 * time.Second,
		},
	}
}

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	batch := runBatch()
	require.NoError(t, sink.Consume(context.Background(), batch[:1]))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsRunning))

	require.NoError(t, sink.Consume(context.Background(), batch[1:]))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsFinished.WithLabelValues("completed")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsFinished.WithLabelValues("cancelled")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.probeResults.WithLabelValues("online")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.probeResults.WithLabelValues("offline")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.responseTimes, "liveness_probe_response_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.ErrorContains(t, err, "register progress collector")
}

func TestLogSinkLogsEvents(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Consume(context.Background(), runBatch()))
	require.Equal(t, 4, logs.Len())
	entry := logs.All()[2]
	require.Equal(t, "progress event", entry.Message)
	require.Equal(t, "no data", entry.ContextMap()["reason"])
	require.Equal(t, "c2", entry.ContextMap()["channel_id"])
	require.NoError(t, sink.Close(context.Background()))
}

func TestKafkaSinkWritesProbeResults(t *testing.T) {
	t.Parallel()

	w := &fakeKafkaWriter{}
	sink := NewKafkaSinkWithWriter(w, nil)

	require.NoError(t, sink.Consume(context.Background(), runBatch()))
	require.Len(t, w.msgs, 2)
	require.Equal(t, "c1", string(w.msgs[0].Key))

	var msg ProbeMessage
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &msg))
	require.Equal(t, "run-1", msg.RunID)
	require.Equal(t, 2, msg.Completed)
	require.Equal(t, channel.StatusOffline, msg.Result.Status)
	require.Equal(t, "no data", msg.Result.ErrorMessage)

	require.NoError(t, sink.Close(context.Background()))
	require.True(t, w.closed)
}

func TestKafkaSinkSkipsBatchesWithoutResults(t *testing.T) {
	t.Parallel()

	w := &fakeKafkaWriter{}
	sink := NewKafkaSinkWithWriter(w, nil)
	require.NoError(t, sink.Consume(context.Background(), runBatch()[:1]))
	require.Zero(t, w.calls)
}

func TestKafkaSinkWrapsWriteErrors(t *testing.T) {
	t.Parallel()

	w := &fakeKafkaWriter{err: errors.New("broker down")}
	sink := NewKafkaSinkWithWriter(w, nil)
	err := sink.Consume(context.Background(), runBatch())
	require.ErrorContains(t, err, "write kafka messages")
	require.ErrorContains(t, err, "broker down")
}

func TestNewKafkaSinkValidates(t *testing.T) {
	t.Parallel()

	_, err := NewKafkaSink(KafkaConfig{Topic: "probes"}, nil)
	require.ErrorContains(t, err, "brokers")
	_, err = NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.ErrorContains(t, err, "topic")

	sink, err := NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "probes"}, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Close(context.Background()))
}

type fakeKafkaWriter struct {
	msgs   []kafka.Message
	calls  int
	err    error
	closed bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}
