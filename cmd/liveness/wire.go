package main

import (
	"context"
	"fmt"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/api"
	"github.com/JakeFAU/channel-liveness/internal/app"
	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/config"
	"github.com/JakeFAU/channel-liveness/internal/notify"
	notifypubsub "github.com/JakeFAU/channel-liveness/internal/notify/pubsub"
	"github.com/JakeFAU/channel-liveness/internal/notify/webhook"
	"github.com/JakeFAU/channel-liveness/internal/progress"
	"github.com/JakeFAU/channel-liveness/internal/progress/sinks"
	"github.com/JakeFAU/channel-liveness/internal/scheduler"
	"github.com/JakeFAU/channel-liveness/internal/storage/gcs"
	"github.com/JakeFAU/channel-liveness/internal/storage/local"
	"github.com/JakeFAU/channel-liveness/internal/storage/memory"
	"github.com/JakeFAU/channel-liveness/internal/storage/postgres"
)

type stores struct {
	lister channel.Lister
	writer channel.ResultWriter
	states api.ChannelStates
	ready  func(ctx context.Context) error
	close  func()
}

func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.DB.DSN == "" {
		logger.Info("using in-memory channel store", zap.Int("channels", len(cfg.Channels)))
		store := memory.NewChannelStore(cfg.Channels)
		return stores{lister: store, writer: store, states: store, close: func() {}}, nil
	}
	store, err := postgres.NewChannelStore(ctx, postgres.Config{DSN: cfg.DB.DSN, MaxConns: cfg.DB.MaxConns})
	if err != nil {
		return stores{}, fmt.Errorf("init channel store: %w", err)
	}
	logger.Info("using postgres channel store")
	return stores{lister: store, writer: store, ready: store.Ping, close: store.Close}, nil
}

func buildSinks(cfg config.Config, logger *zap.Logger) ([]progress.Sink, error) {
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	out := []progress.Sink{
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	}
	if cfg.Kafka.Enabled {
		kafkaSink, err := sinks.NewKafkaSink(sinks.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, logger.Named("kafka_sink"))
		if err != nil {
			return nil, fmt.Errorf("init kafka sink: %w", err)
		}
		logger.Info("kafka sink enabled", zap.String("topic", cfg.Kafka.Topic))
		out = append(out, kafkaSink)
	}
	return out, nil
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (channel.ReportArchive, error) {
	switch {
	case cfg.Archive.GCSBucket != "":
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		archive, err := gcs.New(client, gcs.Config{Bucket: cfg.Archive.GCSBucket, Prefix: cfg.Archive.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		logger.Info("archiving reports to gcs", zap.String("bucket", cfg.Archive.GCSBucket))
		return archive, nil
	case cfg.Archive.Dir != "":
		archive, err := local.New(local.Config{BaseDir: cfg.Archive.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		logger.Info("archiving reports locally", zap.String("dir", cfg.Archive.Dir))
		return archive, nil
	default:
		return nil, nil
	}
}

type delivery struct {
	multi    *notify.Multi
	webhooks map[string]app.Webhook
	close    func()
}

func buildNotifiers(ctx context.Context, cfg config.Config, logger *zap.Logger) (delivery, error) {
	d := delivery{webhooks: make(map[string]app.Webhook), close: func() {}}
	var targets []notify.Target
	for i, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", wh.Type, i)
		}
		n, err := webhook.New(webhook.Config{Kind: webhook.Kind(wh.Type), URL: wh.URL})
		if err != nil {
			return delivery{}, fmt.Errorf("init webhook %s: %w", name, err)
		}
		d.webhooks[name] = n
		if wh.Enabled {
			targets = append(targets, notify.Target{Name: name, Notifier: n})
		}
	}
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		ps, err := notifypubsub.New(ctx, notifypubsub.Config{ProjectID: cfg.PubSub.ProjectID, TopicID: cfg.PubSub.TopicName}, nil)
		if err != nil {
			return delivery{}, fmt.Errorf("init pubsub notifier: %w", err)
		}
		targets = append(targets, notify.Target{Name: "pubsub", Notifier: ps})
		d.close = func() {
			if err := ps.Close(); err != nil {
				logger.Warn("pubsub close failed", zap.Error(err))
			}
		}
	}
	d.multi = notify.NewMulti(cfg.NotifySpacing(), logger, targets...)
	logger.Info("notification targets ready", zap.Int("targets", d.multi.Len()))
	return d, nil
}

func buildScheduler(cfg config.Config, svc *app.Service, clock channel.Clock, logger *zap.Logger) (*scheduler.Scheduler, error) {
	loc, err := cfg.ScheduleLocation()
	if err != nil {
		return nil, err
	}
	hour, minute, err := cfg.ScheduleClock()
	if err != nil {
		return nil, err
	}
	sched, err := scheduler.New(svc, hour, minute, loc,
		scheduler.WithClock(clock),
		scheduler.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	return sched, nil
}
