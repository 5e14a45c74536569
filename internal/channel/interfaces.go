package channel

import (
	"context"
	"time"
)

// Prober checks a single URL and always returns a definite outcome.
type Prober interface {
	Probe(ctx context.Context, rawURL string) ProbeOutcome
}

// Observer receives progress snapshots while a run advances.
type Observer interface {
	OnProgress(progress TestProgress)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(progress TestProgress)

// OnProgress calls f(progress).
func (f ObserverFunc) OnProgress(progress TestProgress) {
	f(progress)
}

// Lister loads the channel definitions to probe.
type Lister interface {
	ListChannels(ctx context.Context) ([]Channel, error)
}

// ResultWriter records a probe result on the stored channel.
type ResultWriter interface {
	ApplyResult(ctx context.Context, result ChannelTestResult) error
}

// Notifier delivers a rendered report.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// ReportArchive keeps rendered reports and returns their location.
type ReportArchive interface {
	PutReport(ctx context.Context, runID string, report string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
