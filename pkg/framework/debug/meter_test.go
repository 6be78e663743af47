package debug

import (
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBlockMeter(t *testing.T) {
	m := NewBlockMeter(48000, 480)
	if m.Deadline() != 10*time.Millisecond {
		t.Fatalf("deadline = %v, want 10ms", m.Deadline())
	}

	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)
	m.Record(12 * time.Millisecond)

	s := m.Snapshot()
	if s.Blocks != 3 {
		t.Errorf("blocks = %d, want 3", s.Blocks)
	}
	if s.Overruns != 1 {
		t.Errorf("overruns = %d, want 1", s.Overruns)
	}
	if s.Max != 12*time.Millisecond {
		t.Errorf("max = %v", s.Max)
	}
	if s.Last != 12*time.Millisecond {
		t.Errorf("last = %v", s.Last)
	}
	if s.Average() != 6*time.Millisecond {
		t.Errorf("average = %v", s.Average())
	}
	if math.Abs(s.Load()-60) > 1e-9 {
		t.Errorf("load = %f, want 60", s.Load())
	}
	if !strings.Contains(s.String(), "overruns=1") {
		t.Errorf("unexpected summary %q", s.String())
	}
}

func TestBlockMeterEmpty(t *testing.T) {
	var s MeterStats
	if s.Average() != 0 || s.Load() != 0 {
		t.Error("empty stats should report zero")
	}
	if NewBlockMeter(0, 256).Deadline() != 0 {
		t.Error("zero sample rate should give no deadline")
	}
}

func TestBlockMeterConcurrentMax(t *testing.T) {
	m := NewBlockMeter(48000, 256)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				m.Record(time.Duration(g*1000+i) * time.Nanosecond)
			}
		}(g)
	}
	wg.Wait()

	s := m.Snapshot()
	if s.Blocks != 4000 {
		t.Errorf("blocks = %d", s.Blocks)
	}
	if s.Max != 3999*time.Nanosecond {
		t.Errorf("max = %v", s.Max)
	}
}

func TestBlockMeterRecordAllocations(t *testing.T) {
	m := NewBlockMeter(48000, 256)
	allocs := testing.AllocsPerRun(100, func() {
		m.Record(time.Microsecond)
	})
	if allocs != 0 {
		t.Errorf("Record allocated %.1f times per run", allocs)
	}
}

func TestAnalyze(t *testing.T) {
	st := Analyze([]float32{0.5, -0.5, 0.5, -0.5})
	if st.Peak != 0.5 || st.RMS != 0.5 || st.DC != 0 {
		t.Errorf("unexpected stats %v", st)
	}

	st = Analyze([]float32{1, 0, float32(math.NaN()), -1.5})
	if st.Clipped != 2 {
		t.Errorf("clipped = %d, want 2", st.Clipped)
	}
	if st.NaNCount != 1 {
		t.Errorf("nan = %d, want 1", st.NaNCount)
	}
	if st.Peak != 1.5 {
		t.Errorf("peak = %f", st.Peak)
	}

	if (Analyze(nil) != SignalStats{}) {
		t.Error("empty buffer should give zero stats")
	}
}
