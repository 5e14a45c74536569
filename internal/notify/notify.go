// Package notify fans rendered run reports out to delivery targets such as
// chat webhooks and Pub/Sub topics.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/metrics"
	"github.com/JakeFAU/channel-liveness/internal/report"
)

// DefaultSpacing is the pause between consecutive deliveries.
const DefaultSpacing = 200 * time.Millisecond

// Report is the structured form of a delivery. Text is the rendered report.
type Report struct {
	RunID   string            `json:"run_id,omitempty"`
	Status  channel.RunStatus `json:"status,omitempty"`
	Summary *report.Summary   `json:"summary,omitempty"`
	Text    string            `json:"report"`
}

// ReportNotifier is implemented by targets that can use the structured report
// instead of just its text.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, rep Report) error
}

// Target is a named delivery destination.
type Target struct {
	Name     string
	Notifier channel.Notifier
}

// Multi delivers to every target in order.
type Multi struct {
	targets []Target
	spacing time.Duration
	logger  *zap.Logger
}

// NewMulti builds a Multi. Targets with a nil notifier are skipped.
func NewMulti(spacing time.Duration, logger *zap.Logger, targets ...Target) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Multi{spacing: spacing, logger: logger.Named("notify")}
	for _, t := range targets {
		if t.Notifier != nil {
			m.targets = append(m.targets, t)
		}
	}
	return m
}

// Len returns the number of delivery targets.
func (m *Multi) Len() int {
	return len(m.targets)
}

// Notify delivers a plain message to every target.
func (m *Multi) Notify(ctx context.Context, message string) error {
	return m.NotifyReport(ctx, Report{Text: message})
}

// NotifyReport delivers rep to every target sequentially. A failing target
// does not stop the others; all failures are logged and returned combined.
func (m *Multi) NotifyReport(ctx context.Context, rep Report) error {
	var errs error
	for i, t := range m.targets {
		if i > 0 && m.spacing > 0 {
			select {
			case <-ctx.Done():
				return multierr.Append(errs, fmt.Errorf("notify %s: %w", t.Name, ctx.Err()))
			case <-time.After(m.spacing):
			}
		}
		err := deliver(ctx, t.Notifier, rep)
		metrics.ObserveNotification(t.Name, err)
		if err != nil {
			m.logger.Warn("notification failed", zap.String("target", t.Name), zap.String("run_id", rep.RunID), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("notify %s: %w", t.Name, err))
			continue
		}
		m.logger.Debug("notification sent", zap.String("target", t.Name), zap.String("run_id", rep.RunID))
	}
	return errs
}

func deliver(ctx context.Context, n channel.Notifier, rep Report) error {
	if rn, ok := n.(ReportNotifier); ok {
		return rn.NotifyReport(ctx, rep)
	}
	return n.Notify(ctx, rep.Text)
}
