package controller

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/progress"
)

// DefaultBatchSize is the number of channels probed concurrently.
const DefaultBatchSize = 20

// Option customises a Controller.
type Option func(*Controller)

// WithBatchSize sets the per-batch concurrency ceiling. Values <= 0 are ignored.
func WithBatchSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithClock overrides the clock used for timestamps and probe timing.
func WithClock(clock channel.Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDGenerator overrides the run id generator.
func WithIDGenerator(ids channel.IDGenerator) Option {
	return func(c *Controller) {
		if ids != nil {
			c.ids = ids
		}
	}
}

// WithObserver registers a callback for progress snapshots.
func WithObserver(obs channel.Observer) Option {
	return func(c *Controller) {
		c.observer = obs
	}
}

// WithResultWriter persists every applied result through w before it is
// counted in the run progress.
func WithResultWriter(w channel.ResultWriter) Option {
	return func(c *Controller) {
		c.writer = w
	}
}

// WithEmitter registers a progress event emitter.
func WithEmitter(em progress.Emitter) Option {
	return func(c *Controller) {
		c.emitter = em
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}
