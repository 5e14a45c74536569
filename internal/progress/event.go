package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/channel-liveness/internal/channel"
)

// Stage denotes the run milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart  Stage = "RUN_START"
	StageProbeDone Stage = "PROBE_DONE"
	StageRunDone   Stage = "RUN_DONE"
)

// Event captures a single step of a liveness run.
type Event struct {
	// RunID identifies the run that produced the event.
	RunID string
	// TS is the timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Total is the channel count of the run.
	Total int
	// Completed is the number of results applied so far.
	Completed int
	// Result is set for PROBE_DONE events.
	Result *channel.ChannelTestResult
	// Status is the terminal run status for RUN_DONE events.
	Status channel.RunStatus
	// Dur is the run wall time for RUN_DONE events.
	Dur time.Duration
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart:
	case StageProbeDone:
		if e.Result == nil {
			return errors.New("probe done requires result")
		}
		if e.Result.ChannelID == "" {
			return errors.New("probe done requires channel id")
		}
	case StageRunDone:
		if e.Status != channel.RunCompleted && e.Status != channel.RunCancelled {
			return fmt.Errorf("run done requires terminal status, got %q", e.Status)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Completed < 0 || (e.Total > 0 && e.Completed > e.Total) {
		return fmt.Errorf("completed %d out of range for total %d", e.Completed, e.Total)
	}
	return nil
}
