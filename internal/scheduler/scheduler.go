// Package scheduler fires a liveness run once a day at a fixed wall-clock
// time in a configured timezone.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/clock/system"
	"github.com/JakeFAU/channel-liveness/internal/metrics"
)

// Trigger runs one scheduled liveness pass to completion.
type Trigger interface {
	TriggerAndWait(ctx context.Context) error
}

// TriggerFunc adapts a function to Trigger.
type TriggerFunc func(ctx context.Context) error

// TriggerAndWait calls f(ctx).
func (f TriggerFunc) TriggerAndWait(ctx context.Context) error {
	return f(ctx)
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock used to compute fire times.
func WithClock(c channel.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithAfter overrides the timer source, mainly for tests.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		if after != nil {
			s.after = after
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scheduler triggers a run daily at hour:minute in loc.
type Scheduler struct {
	hour    int
	minute  int
	loc     *time.Location
	trigger Trigger
	clock   channel.Clock
	after   func(time.Duration) <-chan time.Time
	logger  *zap.Logger

	mu       sync.Mutex
	next     time.Time
	lastRun  time.Time
	started  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New validates the fire time and builds a Scheduler. A nil loc means UTC.
func New(trigger Trigger, hour, minute int, loc *time.Location, opts ...Option) (*Scheduler, error) {
	if trigger == nil {
		return nil, fmt.Errorf("scheduler trigger is required")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid schedule time %02d:%02d", hour, minute)
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		hour:    hour,
		minute:  minute,
		loc:     loc,
		trigger: trigger,
		clock:   system.New(),
		after:   time.After,
		logger:  zap.NewNop(),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("scheduler")
	return s, nil
}

// NextRun returns the first fire time strictly after now: today at the
// configured time if that is still ahead, otherwise tomorrow.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.loc)
	y, m, d := local.Date()
	target := time.Date(y, m, d, s.hour, s.minute, 0, 0, s.loc)
	if !target.After(local) {
		target = time.Date(y, m, d+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return target
}

// Next returns the pending fire time, zero before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// LastRun returns when the last scheduled run fired, zero if none has.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Start runs the schedule loop on its own goroutine until ctx is done or
// Stop is called. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop ends the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	for {
		now := s.clock.Now()
		next := s.NextRun(now)
		s.mu.Lock()
		s.next = next
		s.mu.Unlock()
		s.logger.Info("next scheduled run", zap.Time("at", next))

		select {
		case <-runCtx.Done():
			return
		case <-s.after(next.Sub(now)):
		}
		s.fire(runCtx)
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	s.mu.Lock()
	s.lastRun = s.clock.Now()
	s.mu.Unlock()

	s.logger.Info("scheduled run starting")
	if err := s.trigger.TriggerAndWait(ctx); err != nil {
		metrics.ObserveScheduledTrigger("error")
		s.logger.Error("scheduled run failed", zap.Error(err))
		return
	}
	metrics.ObserveScheduledTrigger("success")
	s.logger.Info("scheduled run finished")
}
