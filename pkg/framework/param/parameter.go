// Package param provides lock-free scalar parameters shared between control
// goroutines and the audio thread.
package param

import (
	"math"
	"sync/atomic"
)

// Int is an atomic integer parameter with an inclusive range.
// The zero value is unbounded and holds 0.
type Int struct {
	value   atomic.Int64
	min     int64
	max     int64
	bounded bool
}

// NewInt creates an integer parameter clamped to [min, max]
func NewInt(def, min, max int) *Int {
	p := &Int{min: int64(min), max: int64(max), bounded: true}
	p.Set(def)
	return p
}

// Load returns the current value
func (p *Int) Load() int {
	return int(p.value.Load())
}

// Set stores v, clamped to the parameter range
func (p *Int) Set(v int) {
	p.value.Store(p.clamp(int64(v)))
}

// CompareAndSwap stores next only if the value is still old.
// next is not clamped.
func (p *Int) CompareAndSwap(old, next int) bool {
	return p.value.CompareAndSwap(int64(old), int64(next))
}

// Range returns the inclusive bounds and whether they apply
func (p *Int) Range() (min, max int, bounded bool) {
	return int(p.min), int(p.max), p.bounded
}

func (p *Int) clamp(v int64) int64 {
	if !p.bounded {
		return v
	}
	if v < p.min {
		return p.min
	}
	if v > p.max {
		return p.max
	}
	return v
}

// Float is an atomic float32 parameter with an inclusive range.
// The value is stored as IEEE-754 bits so loads never tear.
type Float struct {
	bits    atomic.Uint32
	min     float32
	max     float32
	bounded bool
}

// NewFloat creates a float parameter clamped to [min, max]
func NewFloat(def, min, max float32) *Float {
	p := &Float{min: min, max: max, bounded: true}
	p.Set(def)
	return p
}

// Load returns the current value
func (p *Float) Load() float32 {
	return math.Float32frombits(p.bits.Load())
}

// Set stores v, clamped to the parameter range. NaN is stored as the minimum.
func (p *Float) Set(v float32) {
	if p.bounded {
		switch {
		case math.IsNaN(float64(v)):
			v = p.min
		case v < p.min:
			v = p.min
		case v > p.max:
			v = p.max
		}
	}
	p.bits.Store(math.Float32bits(v))
}

// Range returns the inclusive bounds and whether they apply
func (p *Float) Range() (min, max float32, bounded bool) {
	return p.min, p.max, p.bounded
}
