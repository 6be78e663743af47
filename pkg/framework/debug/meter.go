package debug

import (
	"fmt"
	"sync/atomic"
	"time"
)

// BlockMeter accumulates processing time per audio block against the block's
// playback deadline. Record is lock-free and safe to call from the audio
// thread; Snapshot may be called from any goroutine.
type BlockMeter struct {
	deadline time.Duration

	blocks   atomic.Uint64
	overruns atomic.Uint64
	total    atomic.Int64
	max      atomic.Int64
	last     atomic.Int64
}

// MeterStats is a point-in-time copy of a BlockMeter.
type MeterStats struct {
	Blocks   uint64
	Overruns uint64
	Total    time.Duration
	Max      time.Duration
	Last     time.Duration
	Deadline time.Duration
}

// NewBlockMeter creates a meter for blocks of blockSize frames at sampleRate.
func NewBlockMeter(sampleRate, blockSize int) *BlockMeter {
	m := &BlockMeter{}
	if sampleRate > 0 {
		m.deadline = time.Duration(blockSize) * time.Second / time.Duration(sampleRate)
	}
	return m
}

// Deadline returns the playback duration of one block.
func (m *BlockMeter) Deadline() time.Duration {
	return m.deadline
}

// Record adds one block that took elapsed to process.
func (m *BlockMeter) Record(elapsed time.Duration) {
	m.blocks.Add(1)
	m.total.Add(int64(elapsed))
	m.last.Store(int64(elapsed))
	for {
		cur := m.max.Load()
		if int64(elapsed) <= cur || m.max.CompareAndSwap(cur, int64(elapsed)) {
			break
		}
	}
	if m.deadline > 0 && elapsed > m.deadline {
		m.overruns.Add(1)
	}
}

// Snapshot returns the current statistics.
func (m *BlockMeter) Snapshot() MeterStats {
	return MeterStats{
		Blocks:   m.blocks.Load(),
		Overruns: m.overruns.Load(),
		Total:    time.Duration(m.total.Load()),
		Max:      time.Duration(m.max.Load()),
		Last:     time.Duration(m.last.Load()),
		Deadline: m.deadline,
	}
}

// Average returns the mean processing time per block.
func (s MeterStats) Average() time.Duration {
	if s.Blocks == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Blocks)
}

// Load returns the average share of the deadline spent processing, in percent.
func (s MeterStats) Load() float64 {
	if s.Deadline <= 0 {
		return 0
	}
	return float64(s.Average()) / float64(s.Deadline) * 100
}

// String formats the statistics for a log line.
func (s MeterStats) String() string {
	return fmt.Sprintf("blocks=%d overruns=%d avg=%v max=%v deadline=%v load=%.2f%%",
		s.Blocks, s.Overruns, s.Average(), s.Max, s.Deadline, s.Load())
}
