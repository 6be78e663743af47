// Package control applies out-of-band parameter changes to a running bank.
//
// A control file is YAML keyed by oscillator name:
//
//	oscillators:
//	  "01":
//	    frequency: 440
//	    amplitude: 0.2
//	  "02":
//	    phase: 0
//
// Fields left out are not touched. Values go through the oscillator setters,
// so they are clamped or wrapped the same way and take effect at the next block.
//
// Keys are always the names the oscillators were created with. A name field
// only changes the name shown in diagnostics and is rejected when another
// oscillator already uses it.
package control

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jienfak/jack-sin/pkg/framework/oscillator"
)

// ErrUnknownOscillator is reported for entries naming no oscillator
var ErrUnknownOscillator = errors.New("control: unknown oscillator")

// Target resolves oscillators by their original name and renames them.
// *bank.Bank implements it.
type Target interface {
	Lookup(key string) (*oscillator.Oscillator, bool)
	Rename(key, name string) error
}

// Settings holds the setter values for one oscillator
type Settings struct {
	Frequency *int     `yaml:"frequency,omitempty"`
	Amplitude *float32 `yaml:"amplitude,omitempty"`
	PhaseBias *int     `yaml:"phase_bias,omitempty"`
	Phase     *int     `yaml:"phase,omitempty"`
	Name      *string  `yaml:"name,omitempty"`
}

// File is a parsed control file
type File struct {
	Oscillators map[string]Settings `yaml:"oscillators"`
}

// Parse decodes a control document. An empty document is valid.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("control: %w", err)
	}
	return &f, nil
}

// Read parses the control file at path
func Read(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply sets every listed value on t in name order. Entries for unknown
// oscillators or with an invalid name are skipped and reported together in
// the returned error; the rest are still applied. It returns the number of
// oscillators changed.
func (f *File) Apply(t Target) (int, error) {
	var errs []error
	applied := 0
	for _, name := range slices.Sorted(maps.Keys(f.Oscillators)) {
		osc, ok := t.Lookup(name)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownOscillator, name))
			continue
		}
		if err := f.Oscillators[name].apply(t, name, osc); err != nil {
			errs = append(errs, fmt.Errorf("control: %s: %w", name, err))
			continue
		}
		applied++
	}
	return applied, errors.Join(errs...)
}

func (s Settings) apply(t Target, key string, osc *oscillator.Oscillator) error {
	if s.Name != nil {
		if err := t.Rename(key, *s.Name); err != nil {
			return err
		}
	}
	if s.Frequency != nil {
		osc.SetFrequency(*s.Frequency)
	}
	if s.Amplitude != nil {
		osc.SetAmplitude(*s.Amplitude)
	}
	if s.PhaseBias != nil {
		osc.SetPhaseBias(*s.PhaseBias)
	}
	if s.Phase != nil {
		osc.SetCurrentPhase(*s.Phase)
	}
	return nil
}

// ApplyFile reads path and applies it to t
func ApplyFile(path string, t Target) (int, error) {
	f, err := Read(path)
	if err != nil {
		return 0, err
	}
	return f.Apply(t)
}
