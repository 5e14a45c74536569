package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/clock/system"
	"github.com/JakeFAU/channel-liveness/internal/id/uuid"
	"github.com/JakeFAU/channel-liveness/internal/prober"
	"github.com/JakeFAU/channel-liveness/internal/progress"
)

var (
	// ErrRunActive is returned when a run is requested while another is running.
	ErrRunActive = errors.New("a run is already active")
	// ErrNoChannels is returned when a run is requested with no channels.
	ErrNoChannels = errors.New("no channels to test")
)

// Controller coordinates liveness runs. At most one run is active at a time.
type Controller struct {
	probe     channel.Prober
	batchSize int
	clock     channel.Clock
	ids       channel.IDGenerator
	observer  channel.Observer
	writer    channel.ResultWriter
	emitter   progress.Emitter
	logger    *zap.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	progress *channel.TestProgress
}

// New constructs a Controller around the provided prober.
func New(p channel.Prober, opts ...Option) *Controller {
	c := &Controller{
		probe:     p,
		batchSize: DefaultBatchSize,
		clock:     system.New(),
		ids:       uuid.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("controller")
	return c
}

// Run executes a run over channels and blocks until it is terminal. The final
// snapshot is returned. Cancelling ctx cancels the run.
func (c *Controller) Run(ctx context.Context, channels []channel.Channel) (channel.TestProgress, error) {
	runCtx, chans, err := c.begin(ctx, channels)
	if err != nil {
		return channel.TestProgress{}, err
	}
	return c.execute(runCtx, chans), nil
}

// Start admits a run like Run but executes it on its own goroutine. The run is
// detached from ctx cancellation and stops only through CancelRun. The final
// snapshot is delivered on the returned channel, which is then closed.
func (c *Controller) Start(ctx context.Context, channels []channel.Channel) (<-chan channel.TestProgress, error) {
	runCtx, chans, err := c.begin(context.WithoutCancel(ctx), channels)
	if err != nil {
		return nil, err
	}
	done := make(chan channel.TestProgress, 1)
	go func() {
		defer close(done)
		done <- c.execute(runCtx, chans)
	}()
	return done, nil
}

// GetProgress returns a copy of the current or last run, or nil when no run
// has started yet.
func (c *Controller) GetProgress() *channel.TestProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress == nil {
		return nil
	}
	snap := c.progress.Clone()
	return &snap
}

// CancelRun signals the active run to stop. It reports whether a run was
// running.
func (c *Controller) CancelRun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.cancel()
	c.logger.Info("run cancellation requested", zap.String("run_id", c.progress.RunID))
	return true
}

// Running reports whether a run is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) begin(ctx context.Context, channels []channel.Channel) (context.Context, []channel.Channel, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, nil, ErrRunActive
	}
	if len(channels) == 0 {
		c.mu.Unlock()
		return nil, nil, ErrNoChannels
	}
	runID, err := c.ids.NewID()
	if err != nil {
		c.mu.Unlock()
		return nil, nil, fmt.Errorf("generate run id: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	chans := append([]channel.Channel(nil), channels...)
	c.running = true
	c.cancel = cancel
	c.progress = &channel.TestProgress{
		RunID:     runID,
		Total:     len(chans),
		Results:   make([]channel.ChannelTestResult, 0, len(chans)),
		Status:    channel.RunRunning,
		StartedAt: c.clock.Now(),
	}
	snap := c.progress.Clone()
	c.mu.Unlock()

	c.logger.Info("run started", zap.String("run_id", runID), zap.Int("total", snap.Total), zap.Int("batch_size", c.batchSize))
	c.emit(progress.Event{RunID: runID, TS: snap.StartedAt, Stage: progress.StageRunStart, Total: snap.Total})
	c.notify(snap)
	return runCtx, chans, nil
}

func (c *Controller) execute(ctx context.Context, chans []channel.Channel) channel.TestProgress {
	total := len(chans)
	for start := 0; start < total; start += c.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+c.batchSize, total)
		c.setCurrent(fmt.Sprintf("testing (%d-%d/%d)", start+1, end, total))
		results := c.probeBatch(ctx, chans[start:end])
		c.applyBatch(ctx, results)
	}
	return c.finish(ctx)
}

// probeBatch probes every channel of the batch concurrently and waits for all
// of them. A panicking probe yields an offline result for its channel only.
func (c *Controller) probeBatch(ctx context.Context, batch []channel.Channel) []channel.ChannelTestResult {
	results := make([]channel.ChannelTestResult, len(batch))
	wg := conc.NewWaitGroup()
	for i, ch := range batch {
		wg.Go(func() {
			recovered := panics.Try(func() {
				results[i] = prober.ProbeChannel(ctx, c.probe, c.clock, ch)
			})
			if recovered != nil {
				c.logger.Error("probe panicked",
					zap.String("channel_id", ch.ID),
					zap.String("url", ch.URL),
					zap.Any("panic", recovered.Value),
				)
				results[i] = channel.NewOfflineResult(ch, prober.MsgProbeFailed, c.clock.Now())
			}
		})
	}
	wg.Wait()
	return results
}

// applyBatch persists and then appends results one at a time. Once the run is
// cancelled, results of probes that were aborted by the cancellation are
// dropped.
func (c *Controller) applyBatch(ctx context.Context, results []channel.ChannelTestResult) {
	cancelled := ctx.Err() != nil
	kept := results[:0]
	for _, res := range results {
		if cancelled && !res.Online() && res.ErrorMessage == prober.MsgCancelled {
			continue
		}
		kept = append(kept, res)
	}
	c.persist(ctx, kept)
	for i := range kept {
		res := kept[i]
		c.mu.Lock()
		c.progress.Results = append(c.progress.Results, res)
		c.progress.Completed++
		evt := progress.Event{
			RunID:     c.progress.RunID,
			TS:        res.TestedAt,
			Stage:     progress.StageProbeDone,
			Total:     c.progress.Total,
			Completed: c.progress.Completed,
			Result:    &res,
		}
		c.mu.Unlock()
		c.emit(evt)
	}
	c.notify(c.snapshot())
}

// persist writes every result to the result writer before the batch is
// counted. Writes outlive run cancellation; a failing write is logged and does
// not stop the others.
func (c *Controller) persist(ctx context.Context, results []channel.ChannelTestResult) {
	if c.writer == nil || len(results) == 0 {
		return
	}
	writeCtx := context.WithoutCancel(ctx)
	var errs error
	for _, res := range results {
		if err := c.writer.ApplyResult(writeCtx, res); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("apply result %s: %w", res.ChannelID, err))
		}
	}
	if errs != nil {
		c.logger.Warn("persist batch results failed",
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Int("batch", len(results)),
			zap.Error(errs),
		)
	}
}

func (c *Controller) setCurrent(current string) {
	c.mu.Lock()
	c.progress.Current = current
	snap := c.progress.Clone()
	c.mu.Unlock()
	c.logger.Debug("batch started", zap.String("run_id", snap.RunID), zap.String("current", current))
	c.notify(snap)
}

// finish marks the run terminal and releases the one-run lock.
func (c *Controller) finish(ctx context.Context) channel.TestProgress {
	c.mu.Lock()
	status := channel.RunCompleted
	if ctx.Err() != nil {
		status = channel.RunCancelled
	}
	finishedAt := c.clock.Now()
	c.progress.Status = status
	c.progress.Current = ""
	c.progress.FinishedAt = &finishedAt
	c.cancel()
	c.cancel = nil
	c.running = false
	snap := c.progress.Clone()
	c.mu.Unlock()

	dur := max(finishedAt.Sub(snap.StartedAt), 0)
	c.logger.Info("run finished",
		zap.String("run_id", snap.RunID),
		zap.String("status", string(status)),
		zap.Int("completed", snap.Completed),
		zap.Int("total", snap.Total),
		zap.Duration("dur", dur),
	)
	c.emit(progress.Event{
		RunID:     snap.RunID,
		TS:        finishedAt,
		Stage:     progress.StageRunDone,
		Total:     snap.Total,
		Completed: snap.Completed,
		Status:    status,
		Dur:       dur,
	})
	c.notify(snap)
	return snap
}

func (c *Controller) snapshot() channel.TestProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress.Clone()
}

func (c *Controller) emit(evt progress.Event) {
	if c.emitter != nil {
		c.emitter.Emit(evt)
	}
}

func (c *Controller) notify(snap channel.TestProgress) {
	if c.observer != nil {
		c.observer.OnProgress(snap)
	}
}
