// Package host defines the contract between the oscillator engine and the
// real-time audio host that drives it, plus a shared Session implementation
// used by every backend.
package host

import (
	"errors"
)

var (
	// ErrActive is returned for registrations attempted after activation
	ErrActive = errors.New("host: session already active")
	// ErrDuplicatePort is returned when a port name is already taken
	ErrDuplicatePort = errors.New("host: duplicate port name")
	// ErrNoProcessor is returned by Activate when no processor was set
	ErrNoProcessor = errors.New("host: no processor registered")
	// ErrClosed is returned by operations on a closed session
	ErrClosed = errors.New("host: session closed")
	// ErrShutdown wraps the reason a host stopped calling the processor
	ErrShutdown = errors.New("host: shutdown")
	// ErrSampleRate is returned for non-positive sample rates
	ErrSampleRate = errors.New("host: sample rate must be positive")
	// ErrBlockSize is returned for non-positive block sizes
	ErrBlockSize = errors.New("host: block size must be positive")
)

// Direction tells whether a port carries audio out of or into the engine
type Direction int

const (
	// Output ports are written by the processor
	Output Direction = iota
	// Input ports are read by the processor
	Input
)

// String returns "output" or "input"
func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Processor is the callback a host invokes once per block.
// Process must fill every output port for frames samples without allocating,
// locking or blocking. The return value is a status code; 0 means success.
type Processor interface {
	Process(frames int) int
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(frames int) int

// Process calls f
func (f ProcessorFunc) Process(frames int) int {
	return f(frames)
}

// ShutdownFunc is called once, off the audio thread, when the host stops
// calling the processor. reason wraps ErrShutdown.
type ShutdownFunc func(reason error)

// Registrar is the part of a host an oscillator needs at construction time
type Registrar interface {
	// SampleRate returns the host clock rate in frames per second
	SampleRate() int
	// RegisterPort creates a named port with a buffer of BlockSize frames
	RegisterPort(name string, dir Direction) (*Port, error)
}

// Host is a real-time audio session.
//
// All registrations happen before Activate. After Activate the host calls the
// processor from its own audio thread until Close or an asynchronous shutdown.
type Host interface {
	Registrar
	// BlockSize returns the fixed number of frames per Process call
	BlockSize() int
	// SetProcessor installs the block callback
	SetProcessor(p Processor) error
	// OnShutdown installs a hook run when the host stops on its own
	OnShutdown(fn ShutdownFunc) error
	// Activate starts calling the processor
	Activate() error
	// Close stops calling the processor and releases the device. When Close
	// returns no Process call is in flight.
	Close() error
}

// Port is a named per-block sample buffer owned by the host
type Port struct {
	name string
	dir  Direction
	buf  []float32
}

// Name returns the port name
func (p *Port) Name() string {
	return p.name
}

// Direction returns whether the port is an input or output
func (p *Port) Direction() Direction {
	return p.dir
}

// Buffer returns the port's samples for the current block.
// The slice is only valid during the Process call that requested it.
func (p *Port) Buffer(frames int) []float32 {
	return p.buf[:frames]
}
