// Package observability aggregates engine counters for logs and the
// debug page. Counters are atomics so hot paths never block.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// EngineStats is a point-in-time snapshot for the debug endpoint.
type EngineStats struct {
	FramesForwarded uint64 `json:"frames_forwarded"`
	MalformedFrames uint64 `json:"malformed_frames"`
	Reconnects      uint64 `json:"reconnects"`
	EventsApplied   uint64 `json:"events_applied"`
	ReceiptsSent    uint64 `json:"receipts_sent"`
	RoomSwitches    uint64 `json:"room_switches"`
	EventQueueLen   int    `json:"event_queue_len"`
	EventQueueCap   int    `json:"event_queue_cap"`
	SampledAt       string `json:"sampled_at"`
}

type Stats struct {
	framesForwarded atomic.Uint64
	malformedFrames atomic.Uint64
	reconnects      atomic.Uint64
	eventsApplied   atomic.Uint64
	receiptsSent    atomic.Uint64
	roomSwitches    atomic.Uint64

	mu       sync.RWMutex
	queueLen int
	queueCap int
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) FrameForwarded() { s.framesForwarded.Add(1) }
func (s *Stats) FrameMalformed() { s.malformedFrames.Add(1) }
func (s *Stats) Reconnect()      { s.reconnects.Add(1) }
func (s *Stats) EventApplied()   { s.eventsApplied.Add(1) }
func (s *Stats) ReceiptSent()    { s.receiptsSent.Add(1) }
func (s *Stats) RoomSwitch()     { s.roomSwitches.Add(1) }

// RecordQueue stores the sampled event channel occupancy.
func (s *Stats) RecordQueue(length, capacity int) {
	s.mu.Lock()
	s.queueLen = length
	s.queueCap = capacity
	s.mu.Unlock()
}

func (s *Stats) Snapshot() EngineStats {
	s.mu.RLock()
	length, capacity := s.queueLen, s.queueCap
	s.mu.RUnlock()
	return EngineStats{
		FramesForwarded: s.framesForwarded.Load(),
		MalformedFrames: s.malformedFrames.Load(),
		Reconnects:      s.reconnects.Load(),
		EventsApplied:   s.eventsApplied.Load(),
		ReceiptsSent:    s.receiptsSent.Load(),
		RoomSwitches:    s.roomSwitches.Load(),
		EventQueueLen:   length,
		EventQueueCap:   capacity,
		SampledAt:       time.Now().UTC().Format(time.RFC3339),
	}
}
