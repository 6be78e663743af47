// Package oscillator implements a wavetable oscillator with frequency,
// amplitude and phase modulation inputs supplied by a real-time host.
package oscillator

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/jienfak/jack-sin/pkg/dsp/modulation"
	"github.com/jienfak/jack-sin/pkg/dsp/wavetable"
	"github.com/jienfak/jack-sin/pkg/framework/ident"
	"github.com/jienfak/jack-sin/pkg/framework/param"
	"github.com/jienfak/jack-sin/pkg/host"
)

const (
	// DefaultFrequency is the initial phase increment, a tone near A
	DefaultFrequency = 410
	// DefaultAmplitude is the initial output gain
	DefaultAmplitude = 0.1
	// MaxAmplitude is the largest gain accepted by SetAmplitude
	MaxAmplitude = 1.0

	// MinAudibleFrequency and MaxAudibleFrequency bound the hearing range
	MinAudibleFrequency = 20
	MaxAudibleFrequency = 20000
)

// Port name suffixes appended to the oscillator name
const (
	SuffixFreqMod        = "_freq_mod"
	SuffixPhaseMod       = "_phase_mod"
	SuffixLegacyPhaseMod = "_pb_mod"
	SuffixAmpMod         = "_amp_mod"
)

// ErrSampleRate is returned when the host reports a non-positive clock rate
var ErrSampleRate = errors.New("oscillator: sample rate must be positive")

// Option configures an Oscillator at construction
type Option func(*options)

type options struct {
	shape     wavetable.Shape
	legacy    bool
	frequency int
	amplitude float32
}

// WithShape selects the waveform stored in the table. Sine is the default.
func WithShape(shape wavetable.Shape) Option {
	return func(o *options) { o.shape = shape }
}

// WithLegacyPortNames names the phase modulation input "<name>_pb_mod"
func WithLegacyPortNames() Option {
	return func(o *options) { o.legacy = true }
}

// WithFrequency overrides DefaultFrequency
func WithFrequency(f int) Option {
	return func(o *options) { o.frequency = f }
}

// WithAmplitude overrides DefaultAmplitude
func WithAmplitude(a float32) Option {
	return func(o *options) { o.amplitude = a }
}

// Oscillator reads a one-second wavetable at an integer phase increment.
//
// Scalar state is atomic: setters may run on any goroutine while the host
// calls Process. Process picks up new values at the next block.
type Oscillator struct {
	rate  int
	table wavetable.Table
	name  atomic.Pointer[ident.Name]

	frequency *param.Int
	amplitude *param.Float
	bias      *param.Int
	phase     *param.Int

	out      *host.Port
	freqMod  *host.Port
	ampMod   *host.Port
	phaseMod *host.Port
}

// New creates an oscillator on reg.
//
// It registers an output port named name and three input ports named
// name+"_freq_mod", name+"_phase_mod" and name+"_amp_mod", then fills a table
// of SampleRate() samples. The oscillator starts at DefaultFrequency and
// DefaultAmplitude with zero phase and bias.
func New(reg host.Registrar, name string, opts ...Option) (*Oscillator, error) {
	o := options{
		shape:     wavetable.ShapeSine,
		frequency: DefaultFrequency,
		amplitude: DefaultAmplitude,
	}
	for _, opt := range opts {
		opt(&o)
	}

	rate := reg.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrSampleRate, rate)
	}

	base, err := ident.New(name)
	if err != nil {
		return nil, fmt.Errorf("oscillator %q: %w", name, err)
	}
	phaseSuffix := SuffixPhaseMod
	if o.legacy {
		phaseSuffix = SuffixLegacyPhaseMod
	}
	names := make([]ident.Name, 0, 3)
	for _, suffix := range []string{SuffixFreqMod, phaseSuffix, SuffixAmpMod} {
		n, err := base.Concat(suffix)
		if err != nil {
			return nil, fmt.Errorf("oscillator %q: %w", name, err)
		}
		names = append(names, n)
	}

	table, err := wavetable.New(o.shape, rate)
	if err != nil {
		return nil, fmt.Errorf("oscillator %q: %w", name, err)
	}

	osc := &Oscillator{
		rate:      rate,
		table:     table,
		frequency: param.NewInt(o.frequency, 0, math.MaxInt32),
		amplitude: param.NewFloat(o.amplitude, 0, MaxAmplitude),
		bias:      param.NewInt(0, 0, rate-1),
		phase:     param.NewInt(0, 0, rate-1),
	}
	osc.name.Store(&base)

	if osc.out, err = reg.RegisterPort(base.String(), host.Output); err != nil {
		return nil, fmt.Errorf("oscillator %q: output port: %w", name, err)
	}
	in := make([]*host.Port, len(names))
	for i, n := range names {
		if in[i], err = reg.RegisterPort(n.String(), host.Input); err != nil {
			return nil, fmt.Errorf("oscillator %q: input port: %w", name, err)
		}
	}
	osc.freqMod, osc.phaseMod, osc.ampMod = in[0], in[1], in[2]
	return osc, nil
}

// Process renders frames samples into the output port and advances the phase.
// It must only be called from the host's audio thread.
func (o *Oscillator) Process(frames int) {
	if o.table == nil {
		return
	}
	start := o.phase.Load()
	end := modulation.Render(
		o.table,
		o.out.Buffer(frames),
		o.freqMod.Buffer(frames),
		o.ampMod.Buffer(frames),
		o.phaseMod.Buffer(frames),
		modulation.Voice{
			Rate:      o.rate,
			Phase:     start,
			Frequency: o.frequency.Load(),
			Bias:      o.bias.Load(),
			Amplitude: o.amplitude.Load(),
		},
	)
	// a SetCurrentPhase during the block takes precedence
	o.phase.CompareAndSwap(start, end)
}

// Release drops the table and port references. Process becomes a no-op.
// The host must have stopped calling Process.
func (o *Oscillator) Release() {
	o.table = nil
	o.out, o.freqMod, o.ampMod, o.phaseMod = nil, nil, nil, nil
}

// SampleRate returns the table length and host clock rate
func (o *Oscillator) SampleRate() int {
	return o.rate
}

// Table returns the wavetable. Callers must not modify it.
func (o *Oscillator) Table() wavetable.Table {
	return o.table
}

// Name returns the oscillator identity
func (o *Oscillator) Name() string {
	return o.name.Load().String()
}

// SetName changes the diagnostic identity. Port names are fixed at construction.
func (o *Oscillator) SetName(name string) error {
	n, err := ident.New(name)
	if err != nil {
		return err
	}
	o.name.Store(&n)
	return nil
}

// OutputPort returns the output port
func (o *Oscillator) OutputPort() *host.Port { return o.out }

// FreqModPort returns the frequency modulation input
func (o *Oscillator) FreqModPort() *host.Port { return o.freqMod }

// AmpModPort returns the amplitude modulation input
func (o *Oscillator) AmpModPort() *host.Port { return o.ampMod }

// PhaseModPort returns the phase modulation input
func (o *Oscillator) PhaseModPort() *host.Port { return o.phaseMod }

// Frequency returns the phase increment per sample
func (o *Oscillator) Frequency() int { return o.frequency.Load() }

// SetFrequency sets the phase increment per sample. Negative values become 0.
func (o *Oscillator) SetFrequency(f int) { o.frequency.Set(f) }

// Amplitude returns the output gain
func (o *Oscillator) Amplitude() float32 { return o.amplitude.Load() }

// SetAmplitude sets the output gain, clamped to [0, MaxAmplitude]
func (o *Oscillator) SetAmplitude(a float32) { o.amplitude.Set(a) }

// PhaseBias returns the lookup offset in [0, SampleRate())
func (o *Oscillator) PhaseBias() int { return o.bias.Load() }

// SetPhaseBias sets the lookup offset, reduced modulo SampleRate()
func (o *Oscillator) SetPhaseBias(b int) { o.bias.Set(modulation.Wrap(b, o.rate)) }

// CurrentPhase returns the phase accumulator in [0, SampleRate())
func (o *Oscillator) CurrentPhase() int { return o.phase.Load() }

// SetCurrentPhase moves the phase accumulator, reduced modulo SampleRate()
func (o *Oscillator) SetCurrentPhase(p int) { o.phase.Set(modulation.Wrap(p, o.rate)) }
