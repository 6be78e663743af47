// Package headless drives a host session from a wall-clock ticker, without an
// audio device. It is used on machines with no sound server and in tests.
package headless

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jienfak/jack-sin/pkg/host"
)

// Sink receives the mixdown of every block on the driver goroutine.
// It must not block or retain mix.
type Sink func(mix []float32)

// Option configures a Backend
type Option func(*Backend)

// WithSink installs a mixdown consumer
func WithSink(fn Sink) Option {
	return func(b *Backend) { b.sink = fn }
}

// Manual disables the ticker. Blocks run only when Step is called.
func Manual() Option {
	return func(b *Backend) { b.manual = true }
}

// Backend is a host.Host that calls the processor once per block period
type Backend struct {
	*host.Session

	sink   Sink
	manual bool
	mix    []float32

	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New creates an inactive headless backend
func New(cfg host.Config, opts ...Option) (*Backend, error) {
	s, err := host.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		Session: s,
		mix:     make([]float32, cfg.BlockSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Activate starts the session and, unless Manual, the pacing goroutine
func (b *Backend) Activate() error {
	if err := b.Session.Activate(); err != nil {
		return err
	}
	if b.manual {
		return nil
	}
	b.started.Store(true)
	go b.run()
	return nil
}

// Period returns the wall-clock duration of one block
func (b *Backend) Period() time.Duration {
	return time.Duration(b.BlockSize()) * time.Second / time.Duration(b.SampleRate())
}

func (b *Backend) run() {
	defer close(b.done)
	ticker := time.NewTicker(b.Period())
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.Step()
		}
	}
}

// Step runs one block synchronously and feeds the sink. It returns false when
// the session is not active. In Manual mode the caller is the audio thread;
// otherwise only the pacing goroutine calls it.
func (b *Backend) Step() bool {
	if !b.RunBlock(b.BlockSize()) {
		return false
	}
	if b.sink != nil {
		b.Mixdown(b.mix)
		b.sink(b.mix)
	}
	return true
}

// Close stops the pacing goroutine and closes the session
func (b *Backend) Close() error {
	b.once.Do(func() {
		close(b.stop)
		if b.started.Load() {
			<-b.done
		}
	})
	return b.Session.Close()
}
