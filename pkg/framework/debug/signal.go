package debug

import (
	"fmt"
	"math"
)

// SignalStats summarises one buffer of audio.
type SignalStats struct {
	Peak     float32
	RMS      float32
	DC       float32
	Clipped  int
	NaNCount int
}

// Analyze computes peak, RMS, DC offset, clipped and NaN sample counts.
// Samples at or above 1.0 in magnitude count as clipped.
func Analyze(buffer []float32) SignalStats {
	var st SignalStats
	if len(buffer) == 0 {
		return st
	}

	var sum, sumSquares float64
	for _, v := range buffer {
		if math.IsNaN(float64(v)) {
			st.NaNCount++
			continue
		}
		a := float32(math.Abs(float64(v)))
		if a > st.Peak {
			st.Peak = a
		}
		if a >= 1 {
			st.Clipped++
		}
		sum += float64(v)
		sumSquares += float64(v) * float64(v)
	}

	n := float64(len(buffer))
	st.RMS = float32(math.Sqrt(sumSquares / n))
	st.DC = float32(sum / n)
	return st
}

// String formats the statistics for a log line.
func (s SignalStats) String() string {
	return fmt.Sprintf("peak=%.4f rms=%.4f dc=%.4f clipped=%d nan=%d",
		s.Peak, s.RMS, s.DC, s.Clipped, s.NaNCount)
}
