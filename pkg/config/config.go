// Package config loads the oscillator bank description from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	semver "github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/jienfak/jack-sin/pkg/dsp/modulation"
	"github.com/jienfak/jack-sin/pkg/dsp/wavetable"
	"github.com/jienfak/jack-sin/pkg/framework/debug"
	"github.com/jienfak/jack-sin/pkg/framework/ident"
	"github.com/jienfak/jack-sin/pkg/framework/oscillator"
)

// SchemaVersion is the version written by Default
const SchemaVersion = "1.0.0"

// SupportedVersions is the range of schema versions Load accepts
const SupportedVersions = ">= 1.0, < 2.0"

// Backend names
const (
	BackendPulse    = "pulse"
	BackendOto      = "oto"
	BackendHeadless = "headless"
)

// Defaults applied when a field is left out
const (
	DefaultBackend    = BackendPulse
	DefaultSampleRate = 48000
	DefaultBlockSize  = 256
	DefaultLogLevel   = "info"
)

var (
	// ErrVersion is returned for a missing or unsupported schema version
	ErrVersion = errors.New("config: unsupported schema version")
	// ErrInvalid is returned by Validate for values that cannot be used
	ErrInvalid = errors.New("config: invalid value")
)

// Config describes one run of the oscillator bank
type Config struct {
	Version         string       `yaml:"version"`
	Client          string       `yaml:"client,omitempty"`
	Server          string       `yaml:"server,omitempty"`
	Backend         string       `yaml:"backend"`
	SampleRate      int          `yaml:"sample_rate"`
	BlockSize       int          `yaml:"block_size"`
	LegacyPortNames bool         `yaml:"legacy_port_names,omitempty"`
	LogLevel        string       `yaml:"log_level"`
	ControlFile     string       `yaml:"control_file,omitempty"`
	Oscillators     []Oscillator `yaml:"oscillators"`
}

// Oscillator is one bank entry. Nil pointers keep the oscillator defaults.
type Oscillator struct {
	Name       string     `yaml:"name"`
	Shape      string     `yaml:"shape,omitempty"`
	Frequency  *int       `yaml:"frequency,omitempty"`
	Amplitude  *float32   `yaml:"amplitude,omitempty"`
	PhaseBias  int        `yaml:"phase_bias,omitempty"`
	Phase      int        `yaml:"phase,omitempty"`
	Modulation Modulation `yaml:"modulation,omitempty"`
}

// Modulation patches an LFO onto each modulation input that is set
type Modulation struct {
	Freq  *Modulator `yaml:"freq,omitempty"`
	Amp   *Modulator `yaml:"amp,omitempty"`
	Phase *Modulator `yaml:"phase,omitempty"`
}

// Modulator describes an LFO. Depth and Offset are in modulation units,
// where 1.0 shifts the target by a full table length.
type Modulator struct {
	Waveform string  `yaml:"waveform,omitempty"`
	Rate     float64 `yaml:"rate"`
	Depth    float64 `yaml:"depth"`
	Offset   float64 `yaml:"offset,omitempty"`
	Seed     uint32  `yaml:"seed,omitempty"`
}

// Default returns the two oscillator bank: sines "01" at 410 and "02" at 210.
func Default() *Config {
	return &Config{
		Version:     SchemaVersion,
		Backend:     DefaultBackend,
		SampleRate:  DefaultSampleRate,
		BlockSize:   DefaultBlockSize,
		LogLevel:    DefaultLogLevel,
		Oscillators: DefaultOscillators(),
	}
}

// DefaultOscillators returns the oscillators of Default
func DefaultOscillators() []Oscillator {
	f1, f2 := oscillator.DefaultFrequency, 210
	return []Oscillator{
		{Name: "01", Shape: wavetable.ShapeSine.String(), Frequency: &f1},
		{Name: "02", Shape: wavetable.ShapeSine.String(), Frequency: &f2},
	}
}

// Load reads and validates a configuration file. Fields missing from the file
// keep their Default values; a file without oscillators gets the default bank.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses a YAML document. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.Version = ""
	cfg.Oscillators = nil

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(cfg.Oscillators) == 0 {
		cfg.Oscillators = DefaultOscillators()
	}
	if err := CheckVersion(cfg.Version); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CheckVersion accepts versions within SupportedVersions
func CheckVersion(v string) error {
	if v == "" {
		return fmt.Errorf("%w: version is required", ErrVersion)
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrVersion, v, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	if !c.Check(ver) {
		return fmt.Errorf("%w: %s not in %s", ErrVersion, ver, SupportedVersions)
	}
	return nil
}

// Validate checks every field and returns non-fatal findings as warnings
func (c *Config) Validate() (warnings []string, err error) {
	if err := CheckVersion(c.Version); err != nil {
		return nil, err
	}
	switch c.Backend {
	case BackendPulse, BackendOto, BackendHeadless:
	default:
		return nil, fmt.Errorf("%w: backend %q", ErrInvalid, c.Backend)
	}
	if c.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample_rate %d", ErrInvalid, c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: block_size %d", ErrInvalid, c.BlockSize)
	}
	if _, err := debug.ParseLevel(c.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	if c.Client != "" {
		if err := ident.Validate(c.Client); err != nil {
			return nil, fmt.Errorf("%w: client: %w", ErrInvalid, err)
		}
	}
	if len(c.Oscillators) == 0 {
		return nil, fmt.Errorf("%w: no oscillators", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Oscillators))
	for i, o := range c.Oscillators {
		w, err := o.validate(c.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("oscillators[%d]: %w", i, err)
		}
		if seen[o.Name] {
			return nil, fmt.Errorf("oscillators[%d]: %w: duplicate name %q", i, ErrInvalid, o.Name)
		}
		seen[o.Name] = true
		warnings = append(warnings, w...)
	}
	return warnings, nil
}

func (o Oscillator) validate(rate int) ([]string, error) {
	if err := ident.Validate(o.Name); err != nil {
		return nil, fmt.Errorf("%w: name: %w", ErrInvalid, err)
	}
	if _, err := wavetable.ParseShape(o.Shape); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, o.Name, err)
	}
	if o.Amplitude != nil && (*o.Amplitude < 0 || *o.Amplitude > oscillator.MaxAmplitude) {
		return nil, fmt.Errorf("%w: %s: amplitude %g outside [0, %g]",
			ErrInvalid, o.Name, *o.Amplitude, oscillator.MaxAmplitude)
	}

	var warnings []string
	if o.Frequency != nil {
		f := *o.Frequency
		if f < 0 {
			return nil, fmt.Errorf("%w: %s: negative frequency %d", ErrInvalid, o.Name, f)
		}
		if f < oscillator.MinAudibleFrequency || f > oscillator.MaxAudibleFrequency {
			warnings = append(warnings, fmt.Sprintf("%s: frequency %d Hz is outside the audible range", o.Name, f))
		}
		if f >= rate/2 {
			warnings = append(warnings, fmt.Sprintf("%s: frequency %d Hz aliases at %d Hz", o.Name, f, rate))
		}
	}

	for _, m := range []struct {
		input string
		mod   *Modulator
	}{{"freq", o.Modulation.Freq}, {"amp", o.Modulation.Amp}, {"phase", o.Modulation.Phase}} {
		if m.mod == nil {
			continue
		}
		if _, err := modulation.ParseWaveform(m.mod.Waveform); err != nil {
			return nil, fmt.Errorf("%w: %s %s modulation: %w", ErrInvalid, o.Name, m.input, err)
		}
		if m.mod.Rate < 0 {
			return nil, fmt.Errorf("%w: %s %s modulation: negative rate", ErrInvalid, o.Name, m.input)
		}
	}
	return warnings, nil
}

// Options converts the entry into oscillator construction options
func (o Oscillator) Options(legacyPortNames bool) ([]oscillator.Option, error) {
	shape, err := wavetable.ParseShape(o.Shape)
	if err != nil {
		return nil, err
	}
	opts := []oscillator.Option{oscillator.WithShape(shape)}
	if o.Frequency != nil {
		opts = append(opts, oscillator.WithFrequency(*o.Frequency))
	}
	if o.Amplitude != nil {
		opts = append(opts, oscillator.WithAmplitude(*o.Amplitude))
	}
	if legacyPortNames {
		opts = append(opts, oscillator.WithLegacyPortNames())
	}
	return opts, nil
}

// LFO builds the modulation source described by m
func (m Modulator) LFO(sampleRate int) (*modulation.LFO, error) {
	wf, err := modulation.ParseWaveform(m.Waveform)
	if err != nil {
		return nil, err
	}
	lfo := modulation.NewLFO(float64(sampleRate))
	lfo.SetWaveform(wf)
	lfo.SetFrequency(m.Rate)
	lfo.SetDepth(m.Depth)
	lfo.SetOffset(m.Offset)
	if m.Seed != 0 {
		lfo.Seed(m.Seed)
	}
	return lfo, nil
}

// Marshal renders c as YAML
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String implements fmt.Stringer for log output
func (c *Config) String() string {
	names := make([]string, len(c.Oscillators))
	for i, o := range c.Oscillators {
		names[i] = o.Name
	}
	return fmt.Sprintf("backend=%s rate=%d block=%d oscillators=[%s]",
		c.Backend, c.SampleRate, c.BlockSize, strings.Join(names, " "))
}
