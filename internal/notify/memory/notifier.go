// Package memory contains an in-memory notifier for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/channel-liveness/internal/notify"
)

// Notifier stores delivered reports for inspection.
type Notifier struct {
	mu      sync.RWMutex
	reports []notify.Report
	err     error
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// FailWith makes subsequent deliveries return err.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	n.err = err
	n.mu.Unlock()
}

// Notify records a plain message.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	return n.NotifyReport(ctx, notify.Report{Text: message})
}

// NotifyReport records rep.
func (n *Notifier) NotifyReport(_ context.Context, rep notify.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.reports = append(n.reports, rep)
	return nil
}

// Reports returns the recorded deliveries.
func (n *Notifier) Reports() []notify.Report {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]notify.Report, len(n.reports))
	copy(out, n.reports)
	return out
}

// Messages returns the text of every recorded delivery.
func (n *Notifier) Messages() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, len(n.reports))
	for i, r := range n.reports {
		out[i] = r.Text
	}
	return out
}
