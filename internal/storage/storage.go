// Package storage holds the shared types of the channel and report stores.
// Implementations live in the memory, postgres, gcs, and local subpackages.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/channel-liveness/internal/channel"
)

// ErrNotFound is returned when a channel id is unknown to the store.
var ErrNotFound = errors.New("channel not found")

// ChannelState is a channel with its last applied probe result.
type ChannelState struct {
	channel.Channel
	Status         channel.Status `json:"status,omitempty"`
	ResponseTimeMs *int64         `json:"responseTime,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	LastCheckedAt  *time.Time     `json:"lastCheckedAt,omitempty"`
}

// Apply copies the result fields onto the state.
func (s *ChannelState) Apply(result channel.ChannelTestResult) {
	s.Status = result.Status
	s.ResponseTimeMs = nil
	if result.ResponseTimeMs != nil {
		ms := *result.ResponseTimeMs
		s.ResponseTimeMs = &ms
	}
	s.ErrorMessage = result.ErrorMessage
	checked := result.TestedAt
	s.LastCheckedAt = &checked
}

// ReportObjectName is the object path of a run's report under prefix.
func ReportObjectName(prefix, runID string) (string, error) {
	if runID == "" {
		return "", errors.New("run id is required")
	}
	if prefix == "" {
		return runID + ".txt", nil
	}
	return fmt.Sprintf("%s/%s.txt", prefix, runID), nil
}
