package app

import (
	"sync"
	"time"

	"github.com/bft-labs/ledship/internal/domain"
)

// StatsTracker accumulates counters from the ingest and dispatch goroutines.
type StatsTracker struct {
	mu    sync.Mutex
	stats domain.Stats
}

// NewStatsTracker creates a tracker whose snapshot starts at now.
func NewStatsTracker(devices int) *StatsTracker {
	return &StatsTracker{stats: domain.Stats{
		Devices:   devices,
		StartedAt: time.Now().UTC(),
	}}
}

// Snapshot returns a copy of the current counters.
func (s *StatsTracker) Snapshot() domain.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *StatsTracker) frameReceived(f domain.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FramesReceived++
	if f.Truncated {
		s.stats.CapacityWarnings++
	}
	s.stats.LastFrameAt = f.ReceivedAt
}

func (s *StatsTracker) frameDispatched(packets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FramesDispatched++
	s.stats.PacketsSent += uint64(packets)
}

func (s *StatsTracker) frameUnchanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FramesUnchanged++
}

func (s *StatsTracker) deviceError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.DeviceErrors++
}

func (s *StatsTracker) transportError(packets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TransportErrors++
	s.stats.PacketsSent += uint64(packets)
}

func (s *StatsTracker) setDevices(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Devices = n
}
