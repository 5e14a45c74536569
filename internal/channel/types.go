package channel

import "time"

// Status is the liveness verdict recorded for a channel.
type Status string

// Supported channel statuses.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// RunStatus tracks the lifecycle of a liveness run.
type RunStatus string

// Supported run statuses. RunIdle is never stored on a TestProgress; callers
// report it when no run has started yet.
const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
)

// Channel is the read-only view of a stream entry that gets probed.
type Channel struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
	URL  string `json:"url" mapstructure:"url"`
}

// ProbeOutcome is the verdict of a single probe attempt.
type ProbeOutcome struct {
	Success bool
	Error   string
}

// ChannelTestResult is the per-channel outcome of a run.
type ChannelTestResult struct {
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
	Status      Status `json:"status"`
	// ResponseTimeMs is set only for online results.
	ResponseTimeMs *int64 `json:"responseTime,omitempty"`
	// ErrorMessage is set only for offline results.
	ErrorMessage string    `json:"errorMessage,omitempty"`
	TestedAt     time.Time `json:"testedAt"`
}

// Online reports whether the result is an online verdict.
func (r ChannelTestResult) Online() bool {
	return r.Status == StatusOnline
}

// NewOnlineResult builds an online result carrying a response time.
func NewOnlineResult(ch Channel, responseTime time.Duration, testedAt time.Time) ChannelTestResult {
	ms := responseTime.Milliseconds()
	return ChannelTestResult{
		ChannelID:      ch.ID,
		ChannelName:    ch.Name,
		Status:         StatusOnline,
		ResponseTimeMs: &ms,
		TestedAt:       testedAt,
	}
}

// NewOfflineResult builds an offline result carrying the failure reason.
func NewOfflineResult(ch Channel, reason string, testedAt time.Time) ChannelTestResult {
	return ChannelTestResult{
		ChannelID:    ch.ID,
		ChannelName:  ch.Name,
		Status:       StatusOffline,
		ErrorMessage: reason,
		TestedAt:     testedAt,
	}
}

// TestProgress is the observable state of an in-flight or finished run.
type TestProgress struct {
	RunID     string `json:"runId"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	// Current is a human readable marker of the batch being probed.
	Current    string              `json:"current,omitempty"`
	Results    []ChannelTestResult `json:"results"`
	Status     RunStatus           `json:"status"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
}

// Terminal reports whether the run has reached completed or cancelled.
func (p TestProgress) Terminal() bool {
	return p.Status == RunCompleted || p.Status == RunCancelled
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p TestProgress) Clone() TestProgress {
	cp := p
	cp.Results = make([]ChannelTestResult, len(p.Results))
	for i, r := range p.Results {
		if r.ResponseTimeMs != nil {
			ms := *r.ResponseTimeMs
			r.ResponseTimeMs = &ms
		}
		cp.Results[i] = r
	}
	if p.FinishedAt != nil {
		finished := *p.FinishedAt
		cp.FinishedAt = &finished
	}
	return cp
}
