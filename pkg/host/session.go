package host

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jienfak/jack-sin/pkg/dsp/modulation"
	"github.com/jienfak/jack-sin/pkg/framework/debug"
)

// Config describes a session before any backend is attached
type Config struct {
	// Client is the name the session announces to the audio system
	Client     string
	SampleRate int
	BlockSize  int
	Logger     *debug.Logger
}

type patch struct {
	port *Port
	src  modulation.Source
}

// Session implements the registration and block bookkeeping shared by all
// backends. A backend embeds it, drives RunBlock from its audio thread and
// calls Shutdown when the device goes away.
type Session struct {
	client string
	rate   int
	block  int
	log    *debug.Logger
	meter  *debug.BlockMeter

	// setup state, guarded by mu and frozen by Activate
	mu      sync.Mutex
	ports   []*Port
	byName  map[string]*Port
	outputs []*Port
	patches []patch
	proc    Processor
	hooks   []ShutdownFunc

	active   atomic.Bool
	closed   atomic.Bool
	inflight atomic.Int32
	once     sync.Once
	reason   atomic.Pointer[error]
}

// NewSession validates cfg and creates an inactive session
func NewSession(cfg Config) (*Session, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrSampleRate, cfg.SampleRate)
	}
	if cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBlockSize, cfg.BlockSize)
	}
	log := cfg.Logger
	if log == nil {
		log = debug.Discard()
	}
	return &Session{
		client: cfg.Client,
		rate:   cfg.SampleRate,
		block:  cfg.BlockSize,
		log:    log,
		meter:  debug.NewBlockMeter(cfg.SampleRate, cfg.BlockSize),
		byName: make(map[string]*Port),
	}, nil
}

// Client returns the client name
func (s *Session) Client() string {
	return s.client
}

// SampleRate implements Registrar
func (s *Session) SampleRate() int {
	return s.rate
}

// BlockSize implements Host
func (s *Session) BlockSize() int {
	return s.block
}

// Meter returns the block timing meter fed by RunBlock
func (s *Session) Meter() *debug.BlockMeter {
	return s.meter
}

// RegisterPort implements Registrar
func (s *Session) RegisterPort(name string, dir Direction) (*Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSetup(); err != nil {
		return nil, err
	}
	if _, ok := s.byName[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicatePort, name)
	}

	p := &Port{name: name, dir: dir, buf: make([]float32, s.block)}
	s.ports = append(s.ports, p)
	s.byName[name] = p
	if dir == Output {
		s.outputs = append(s.outputs, p)
	}
	s.log.Debug("registered %s port %s:%s", dir, s.client, name)
	return p, nil
}

// Port looks up a registered port by name
func (s *Session) Port(name string) (*Port, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byName[name]
	return p, ok
}

// Ports returns the registered ports in registration order
func (s *Session) Ports() []*Port {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Port, len(s.ports))
	copy(out, s.ports)
	return out
}

// Patch connects a modulation source to an input port. Unpatched inputs
// read silence.
func (s *Session) Patch(portName string, src modulation.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSetup(); err != nil {
		return err
	}
	p, ok := s.byName[portName]
	if !ok {
		return fmt.Errorf("host: no port %q", portName)
	}
	if p.dir != Input {
		return fmt.Errorf("host: port %q is not an input", portName)
	}
	s.patches = append(s.patches, patch{port: p, src: src})
	return nil
}

// SetProcessor implements Host
func (s *Session) SetProcessor(p Processor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSetup(); err != nil {
		return err
	}
	s.proc = p
	return nil
}

// OnShutdown implements Host
func (s *Session) OnShutdown(fn ShutdownFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSetup(); err != nil {
		return err
	}
	s.hooks = append(s.hooks, fn)
	return nil
}

// Activate marks the session live. Backends call it before starting their
// device so the first device callback already sees an active session.
func (s *Session) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSetup(); err != nil {
		return err
	}
	if s.proc == nil {
		return ErrNoProcessor
	}
	s.active.Store(true)
	s.log.Info("activated %s: %d Hz, %d frames per block, %d ports",
		s.client, s.rate, s.block, len(s.ports))
	return nil
}

// Active reports whether RunBlock will call the processor
func (s *Session) Active() bool {
	return s.active.Load()
}

func (s *Session) checkSetup() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.active.Load() {
		return ErrActive
	}
	return nil
}

// RunBlock runs one block: it fills patched inputs, calls the processor and
// records the elapsed time. It returns false, doing nothing, when the session
// is not active. frames is capped at BlockSize.
func (s *Session) RunBlock(frames int) bool {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if !s.active.Load() {
		return false
	}
	if frames > s.block {
		frames = s.block
	}

	start := time.Now()
	for i := range s.patches {
		s.patches[i].src.Fill(s.patches[i].port.buf[:frames])
	}
	s.proc.Process(frames)
	s.meter.Record(time.Since(start))
	return true
}

// Mixdown sums every output port into dst, up to len(dst) frames
func (s *Session) Mixdown(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	for _, p := range s.outputs {
		src := p.buf
		if len(src) > len(dst) {
			src = src[:len(dst)]
		}
		for i, v := range src {
			dst[i] += v
		}
	}
}

// Deactivate stops RunBlock from calling the processor and waits for an
// in-flight block to finish.
func (s *Session) Deactivate() {
	s.active.Store(false)
	for s.inflight.Load() > 0 {
		runtime.Gosched()
	}
}

// Shutdown records reason, deactivates the session and runs the shutdown
// hooks. Only the first call has an effect. Backends call it when the device
// fails; it must not be called from the audio thread.
func (s *Session) Shutdown(reason error) {
	s.once.Do(func() {
		err := fmt.Errorf("%w: %w", ErrShutdown, reason)
		s.reason.Store(&err)
		s.Deactivate()
		s.log.Warn("%s stopped: %v", s.client, reason)

		s.mu.Lock()
		hooks := append([]ShutdownFunc(nil), s.hooks...)
		s.mu.Unlock()
		for _, fn := range hooks {
			fn(err)
		}
	})
}

// Err returns the shutdown reason, or nil
func (s *Session) Err() error {
	if p := s.reason.Load(); p != nil {
		return *p
	}
	return nil
}

// Close deactivates the session permanently. Hooks are not run.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.Deactivate()
	s.log.Debug("closed %s", s.client)
	return nil
}
