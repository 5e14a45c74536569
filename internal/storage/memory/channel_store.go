// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/storage"
)

// ChannelStore keeps channels and their last probe result in memory,
// preserving insertion order.
type ChannelStore struct {
	mu     sync.RWMutex
	order  []string
	states map[string]*storage.ChannelState
}

// NewChannelStore seeds a store with channels. Duplicate ids keep the first entry.
func NewChannelStore(channels []channel.Channel) *ChannelStore {
	s := &ChannelStore{states: make(map[string]*storage.ChannelState, len(channels))}
	for _, ch := range channels {
		if _, exists := s.states[ch.ID]; exists {
			continue
		}
		s.order = append(s.order, ch.ID)
		s.states[ch.ID] = &storage.ChannelState{Channel: ch}
	}
	return s
}

// ListChannels returns the channels in insertion order.
func (s *ChannelStore) ListChannels(context.Context) ([]channel.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]channel.Channel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.states[id].Channel)
	}
	return out, nil
}

// ApplyResult records result on the matching channel.
func (s *ChannelStore) ApplyResult(_ context.Context, result channel.ChannelTestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[result.ChannelID]
	if !ok {
		return fmt.Errorf("apply result %s: %w", result.ChannelID, storage.ErrNotFound)
	}
	state.Apply(result)
	return nil
}

// Status returns a copy of the channel state.
func (s *ChannelStore) Status(id string) (storage.ChannelState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[id]
	if !ok {
		return storage.ChannelState{}, false
	}
	return copyState(*state), true
}

// States returns copies of every channel state in insertion order.
func (s *ChannelStore) States() []storage.ChannelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.ChannelState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyState(*s.states[id]))
	}
	return out
}

func copyState(st storage.ChannelState) storage.ChannelState {
	if st.ResponseTimeMs != nil {
		ms := *st.ResponseTimeMs
		st.ResponseTimeMs = &ms
	}
	if st.LastCheckedAt != nil {
		at := *st.LastCheckedAt
		st.LastCheckedAt = &at
	}
	return st
}
