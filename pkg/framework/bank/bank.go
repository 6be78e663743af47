// Package bank holds the ordered set of oscillators a host drives each block.
package bank

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jienfak/jack-sin/pkg/framework/debug"
	"github.com/jienfak/jack-sin/pkg/framework/oscillator"
	"github.com/jienfak/jack-sin/pkg/host"
)

var (
	// ErrActivated is returned when the bank is modified after activation
	ErrActivated = errors.New("bank: already activated")
	// ErrDuplicateName is returned when two oscillators share a name
	ErrDuplicateName = errors.New("bank: duplicate oscillator name")
)

// Bank is a flat, ordered array of oscillators and the host processor that
// renders them. The array is fixed once the bank is activated.
type Bank struct {
	log *debug.Logger

	mu     sync.Mutex
	oscs   []*oscillator.Oscillator
	byName map[string]*oscillator.Oscillator

	activated atomic.Bool
	closed    sync.Once
	done      chan struct{}
	shutdown  sync.Once
	err       atomic.Pointer[error]
}

// New creates an empty bank. A nil logger discards output.
func New(log *debug.Logger) *Bank {
	if log == nil {
		log = debug.Discard()
	}
	return &Bank{
		log:    log,
		byName: make(map[string]*oscillator.Oscillator),
		done:   make(chan struct{}),
	}
}

// Add appends osc. Oscillators are processed in the order they were added.
func (b *Bank) Add(osc *oscillator.Oscillator) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.activated.Load() {
		return ErrActivated
	}
	name := osc.Name()
	if _, ok := b.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	b.oscs = append(b.oscs, osc)
	b.byName[name] = osc
	return nil
}

// Len returns the number of oscillators
func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.oscs)
}

// At returns the i-th oscillator in processing order
func (b *Bank) At(i int) *oscillator.Oscillator {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.oscs[i]
}

// Lookup finds an oscillator by the name it had when it was added,
// regardless of later renames
func (b *Bank) Lookup(name string) (*oscillator.Oscillator, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	osc, ok := b.byName[name]
	return osc, ok
}

// Rename changes the diagnostic name of the oscillator added as key. The new
// name may not be the current or original name of another oscillator. Lookup
// keeps resolving key.
func (b *Bank) Rename(key, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	osc, ok := b.byName[key]
	if !ok {
		return fmt.Errorf("bank: no oscillator %q", key)
	}
	for k, other := range b.byName {
		if other != osc && (k == name || other.Name() == name) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	return osc.SetName(name)
}

// Process implements host.Processor. It renders every oscillator for frames
// samples and always returns 0.
func (b *Bank) Process(frames int) int {
	for _, osc := range b.oscs {
		osc.Process(frames)
	}
	return 0
}

// Activate installs the bank as h's processor and shutdown handler, then
// activates h. On error the bank stays modifiable.
func (b *Bank) Activate(h host.Host) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.activated.Load() {
		return ErrActivated
	}
	if err := h.SetProcessor(b); err != nil {
		return fmt.Errorf("bank: set processor: %w", err)
	}
	if err := h.OnShutdown(b.onShutdown); err != nil {
		return fmt.Errorf("bank: shutdown hook: %w", err)
	}
	// freeze the array before the first callback can run
	b.activated.Store(true)
	if err := h.Activate(); err != nil {
		b.activated.Store(false)
		return fmt.Errorf("bank: activate: %w", err)
	}
	b.log.Info("bank active with %d oscillators", len(b.oscs))
	return nil
}

func (b *Bank) onShutdown(reason error) {
	b.shutdown.Do(func() {
		b.err.Store(&reason)
		close(b.done)
	})
}

// Done is closed when the host stops on its own
func (b *Bank) Done() <-chan struct{} {
	return b.done
}

// Err returns the host shutdown reason, or nil
func (b *Bank) Err() error {
	if p := b.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Close releases every oscillator. Later calls do nothing. The host must have
// stopped calling Process.
func (b *Bank) Close() {
	b.closed.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, osc := range b.oscs {
			osc.Release()
		}
		b.log.Debug("released %d oscillators", len(b.oscs))
	})
}
