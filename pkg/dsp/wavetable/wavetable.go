// Package wavetable generates single-period basis waveforms for table oscillators
package wavetable

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrLength is returned for tables with no samples
	ErrLength = errors.New("wavetable: length must be positive")
	// ErrShape is returned for an unknown waveform shape
	ErrShape = errors.New("wavetable: unknown shape")
)

// Shape selects the basis waveform stored in a table
type Shape int

const (
	// ShapeSine holds one period of sin(2πx)
	ShapeSine Shape = iota
	// ShapeSaw holds a rising ramp from 0 towards 1
	ShapeSaw
	// ShapePulse holds two half-period plateaus at 0 and 1
	ShapePulse
)

// String returns the configuration name of the shape
func (s Shape) String() string {
	switch s {
	case ShapeSine:
		return "sine"
	case ShapeSaw:
		return "saw"
	case ShapePulse:
		return "pulse"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ParseShape maps a configuration name to a Shape
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sine", "sin":
		return ShapeSine, nil
	case "saw", "sawtooth":
		return ShapeSaw, nil
	case "pulse", "square":
		return ShapePulse, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrShape, name)
}

// Table is one period of a waveform, indexed by phase in [0, Len())
type Table []float32

// New allocates a table of the given length and fills it with shape
func New(shape Shape, length int) (Table, error) {
	if length <= 0 {
		return nil, ErrLength
	}
	t := make(Table, length)
	if err := Generate(shape, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Generate overwrites buf with shape. It does not allocate.
func Generate(shape Shape, buf []float32) error {
	if len(buf) == 0 {
		return ErrLength
	}
	switch shape {
	case ShapeSine:
		MakeSine(buf)
	case ShapeSaw:
		MakeSaw(buf)
	case ShapePulse:
		MakePulse(buf)
	default:
		return fmt.Errorf("%w: %v", ErrShape, shape)
	}
	return nil
}

// Len returns the number of samples in the table
func (t Table) Len() int {
	return len(t)
}

// MakeSine fills buf with sin(2π·i/len(buf))
func MakeSine(buf []float32) {
	n := float64(len(buf))
	for i := range buf {
		buf[i] = float32(math.Sin(float64(i) / n * 2 * math.Pi))
	}
}

// MakeSaw fills buf with the ramp i/len(buf)
func MakeSaw(buf []float32) {
	n := float64(len(buf))
	for i := range buf {
		buf[i] = float32(float64(i) / n)
	}
}

// MakePulse fills buf with floor(i/(len(buf)/2)): zeros for the first half,
// ones for the second. This is a unipolar step, not a ±1 square.
func MakePulse(buf []float32) {
	half := len(buf) / 2
	if half == 0 {
		half = 1
	}
	for i := range buf {
		v := i / half
		// odd lengths would put a 2 in the last slot
		if v > 1 {
			v = 1
		}
		buf[i] = float32(v)
	}
}
