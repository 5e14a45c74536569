// Package app ties channel listing, the run controller, report rendering,
// archiving, and notification into the trigger used by the API and the
// scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/clock/system"
	"github.com/JakeFAU/channel-liveness/internal/controller"
	"github.com/JakeFAU/channel-liveness/internal/notify"
	"github.com/JakeFAU/channel-liveness/internal/notify/webhook"
	"github.com/JakeFAU/channel-liveness/internal/report"
)

// ErrUnknownWebhook is returned when a webhook name is not configured.
var ErrUnknownWebhook = errors.New("webhook not found")

const failureTimeLayout = "2006-01-02 15:04:05"

// Runner starts asynchronous liveness runs.
type Runner interface {
	Start(ctx context.Context, channels []channel.Channel) (<-chan channel.TestProgress, error)
}

// Webhook is a configured webhook that can receive a test message.
type Webhook interface {
	channel.Notifier
	Kind() webhook.Kind
}

// Option customises a Service.
type Option func(*Service)

// WithArchive stores every rendered report.
func WithArchive(a channel.ReportArchive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

// WithNotifier delivers every rendered report.
func WithNotifier(n channel.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithWebhooks registers webhooks addressable by name for test messages.
func WithWebhooks(hooks map[string]Webhook) Option {
	return func(s *Service) {
		for name, h := range hooks {
			if h != nil {
				s.webhooks[name] = h
			}
		}
	}
}

// WithLocation sets the zone used for report and notice timestamps.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the clock used for failure notices.
func WithClock(c channel.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service triggers runs and reports on them once they finish.
type Service struct {
	lister   channel.Lister
	runner   Runner
	archive  channel.ReportArchive
	notifier channel.Notifier
	webhooks map[string]Webhook
	loc      *time.Location
	clock    channel.Clock
	logger   *zap.Logger

	wg sync.WaitGroup
}

// New builds a Service.
func New(lister channel.Lister, runner Runner, opts ...Option) *Service {
	s := &Service{
		lister:   lister,
		runner:   runner,
		webhooks: make(map[string]Webhook),
		loc:      time.UTC,
		clock:    system.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("app")
	return s
}

// Trigger lists the channels and starts a run. The returned channel yields
// the final snapshot after the report has been archived and delivered.
// controller.ErrRunActive and controller.ErrNoChannels pass through unchanged.
func (s *Service) Trigger(ctx context.Context) (<-chan channel.TestProgress, error) {
	channels, err := s.lister.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	done, err := s.runner.Start(ctx, channels)
	if err != nil {
		return nil, err
	}

	out := make(chan channel.TestProgress, 1)
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		final, ok := <-done
		if !ok {
			return
		}
		s.finalize(bg, final)
		out <- final
	}()
	return out, nil
}

// TriggerAndWait runs to completion for scheduled use. An active run is
// skipped without error. A listing failure is reported to the notifier.
func (s *Service) TriggerAndWait(ctx context.Context) error {
	done, err := s.Trigger(ctx)
	switch {
	case errors.Is(err, controller.ErrRunActive):
		s.logger.Info("scheduled run skipped, a run is already active")
		return nil
	case errors.Is(err, controller.ErrNoChannels):
		s.logger.Info("scheduled run skipped, no channels configured")
		return nil
	case err != nil:
		s.logger.Error("scheduled run failed", zap.Error(err))
		s.deliver(context.WithoutCancel(ctx), notify.Report{Text: s.failureNotice(err)})
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RenderReport renders p in the service location.
func (s *Service) RenderReport(p channel.TestProgress) string {
	return report.NewFormatter(s.loc).Format(p)
}

// TestWebhook sends a test message to the named webhook.
func (s *Service) TestWebhook(ctx context.Context, name string) error {
	h, ok := s.webhooks[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWebhook, name)
	}
	if err := h.Notify(ctx, webhook.TestMessage(h.Kind(), s.clock.Now(), s.loc)); err != nil {
		return fmt.Errorf("test webhook %s: %w", name, err)
	}
	return nil
}

// Wait blocks until every pending report has been delivered or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) finalize(ctx context.Context, final channel.TestProgress) {
	text := s.RenderReport(final)

	logger := s.logger.With(zap.String("run_id", final.RunID), zap.String("status", string(final.Status)))
	if s.archive != nil {
		loc, err := s.archive.PutReport(ctx, final.RunID, text)
		if err != nil {
			logger.Warn("report archive failed", zap.Error(err))
		} else {
			logger.Info("report archived", zap.String("location", loc))
		}
	}

	summary := report.Summarize(final)
	s.deliver(ctx, notify.Report{
		RunID:   final.RunID,
		Status:  final.Status,
		Summary: &summary,
		Text:    text,
	})
}

func (s *Service) deliver(ctx context.Context, rep notify.Report) {
	if s.notifier == nil {
		return
	}
	var err error
	if rn, ok := s.notifier.(notify.ReportNotifier); ok {
		err = rn.NotifyReport(ctx, rep)
	} else {
		err = s.notifier.Notify(ctx, rep.Text)
	}
	if err != nil {
		s.logger.Warn("report delivery failed", zap.String("run_id", rep.RunID), zap.Error(err))
	}
}

func (s *Service) failureNotice(err error) string {
	return fmt.Sprintf("⚠️ Scheduled channel test failed\n\nTime: %s\nError: %s",
		s.clock.Now().In(s.loc).Format(failureTimeLayout), err)
}
