package modulation

import (
	"fmt"
	"math"
	"strings"
)

// Source produces a modulation signal one block at a time.
// Fill is called from the audio thread and must not allocate or block.
type Source interface {
	Fill(dst []float32)
}

// Constant is a Source holding a fixed value
type Constant float32

// Fill writes the constant into every slot of dst
func (c Constant) Fill(dst []float32) {
	for i := range dst {
		dst[i] = float32(c)
	}
}

// Waveform represents the LFO waveform shape
type Waveform int

const (
	// WaveformSine produces a sine wave
	WaveformSine Waveform = iota
	// WaveformTriangle produces a triangle wave
	WaveformTriangle
	// WaveformSquare produces a square wave
	WaveformSquare
	// WaveformSawtooth produces a rising ramp
	WaveformSawtooth
	// WaveformRandom produces sample & hold noise
	WaveformRandom
)

// ParseWaveform maps a configuration name to a Waveform
func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sine":
		return WaveformSine, nil
	case "triangle":
		return WaveformTriangle, nil
	case "square":
		return WaveformSquare, nil
	case "saw", "sawtooth":
		return WaveformSawtooth, nil
	case "random":
		return WaveformRandom, nil
	}
	return 0, fmt.Errorf("modulation: unknown waveform %q", name)
}

// LFO is a low frequency oscillator used to drive oscillator modulation inputs.
//
// Its output is scaled by depth and shifted by offset before reaching the
// mixer, which multiplies by the sample rate. Useful depths are therefore
// small: 0.001 at 48 kHz swings the target by 48 table steps.
type LFO struct {
	sampleRate float64

	frequency float64
	phase     float64
	phaseInc  float64
	waveform  Waveform
	depth     float64
	offset    float64

	// sample & hold state
	randState     uint32
	currentRandom float64
	randomCounter int
	randomPeriod  int
}

// NewLFO creates a 1 Hz full-depth sine LFO
func NewLFO(sampleRate float64) *LFO {
	l := &LFO{
		sampleRate: sampleRate,
		frequency:  1.0,
		waveform:   WaveformSine,
		depth:      1.0,
		randState:  1,
	}
	l.updatePhaseIncrement()
	return l
}

// SetFrequency sets the rate in Hz, limited to [0, Nyquist]
func (l *LFO) SetFrequency(hz float64) {
	l.frequency = math.Max(0, math.Min(l.sampleRate/2, hz))
	l.updatePhaseIncrement()
}

// SetWaveform sets the LFO waveform
func (l *LFO) SetWaveform(waveform Waveform) {
	l.waveform = waveform
	if waveform == WaveformRandom {
		l.currentRandom = 2.0*l.randFloat() - 1.0
		l.randomCounter = 0
	}
}

// SetDepth sets the modulation depth (0-1)
func (l *LFO) SetDepth(depth float64) {
	l.depth = math.Max(0, math.Min(1, depth))
}

// SetOffset sets the DC offset (-1 to 1)
func (l *LFO) SetOffset(offset float64) {
	l.offset = math.Max(-1, math.Min(1, offset))
}

// SetPhase sets the current phase (0-1)
func (l *LFO) SetPhase(phase float64) {
	l.phase = phase - math.Floor(phase)
}

// Seed reseeds the sample & hold generator
func (l *LFO) Seed(seed uint32) {
	if seed == 0 {
		seed = 1
	}
	l.randState = seed
}

// Phase returns the current phase (0-1)
func (l *LFO) Phase() float64 {
	return l.phase
}

func (l *LFO) updatePhaseIncrement() {
	l.phaseInc = l.frequency / l.sampleRate
	if l.frequency > 0 {
		l.randomPeriod = int(l.sampleRate / l.frequency)
	} else {
		l.randomPeriod = int(l.sampleRate)
	}
}

func (l *LFO) wave() float64 {
	switch l.waveform {
	case WaveformSine:
		return math.Sin(2.0 * math.Pi * l.phase)
	case WaveformTriangle:
		if l.phase < 0.5 {
			return 4.0*l.phase - 1.0
		}
		return 3.0 - 4.0*l.phase
	case WaveformSquare:
		if l.phase < 0.5 {
			return 1.0
		}
		return -1.0
	case WaveformSawtooth:
		return 2.0*l.phase - 1.0
	case WaveformRandom:
		if l.randomCounter >= l.randomPeriod {
			l.randomCounter = 0
			l.currentRandom = 2.0*l.randFloat() - 1.0
		}
		l.randomCounter++
		return l.currentRandom
	default:
		return 0
	}
}

// Next returns the next LFO sample, clamped to [-1, 1]
func (l *LFO) Next() float32 {
	out := l.wave()*l.depth + l.offset

	l.phase += l.phaseInc
	if l.phase >= 1.0 {
		l.phase -= 1.0
	}
	return float32(math.Max(-1, math.Min(1, out)))
}

// Fill implements Source
func (l *LFO) Fill(dst []float32) {
	for i := range dst {
		dst[i] = l.Next()
	}
}

// Reset rewinds the LFO to phase zero
func (l *LFO) Reset() {
	l.phase = 0
	l.randomCounter = 0
	l.currentRandom = 0
}

// linear congruential generator with per-instance state
func (l *LFO) randFloat() float64 {
	l.randState = l.randState*1664525 + 1013904223
	return float64(l.randState) / float64(1<<32)
}
