// Package pulse plays a host session through a PulseAudio server.
//
// All output ports are mixed into one mono float32 playback stream. The
// server pulls samples in whatever chunk sizes it likes; a host.Pump keeps
// the processor on fixed blocks.
package pulse

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/jienfak/jack-sin/pkg/host"
)

// ErrStreamStopped is the shutdown cause when the server stops the stream
var ErrStreamStopped = errors.New("pulse: playback stream stopped")

// pollInterval is how often the stream state is checked for failures
const pollInterval = 100 * time.Millisecond

// Backend is a host.Host backed by a PulseAudio playback stream
type Backend struct {
	*host.Session

	server string
	client *pulse.Client
	stream *pulse.PlaybackStream
	pump   *host.Pump

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New connects to server, or the default server when it is empty.
// cfg.Client is announced as the application name.
func New(cfg host.Config, server string) (*Backend, error) {
	s, err := host.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	opts := []pulse.ClientOption{pulse.ClientApplicationName(cfg.Client)}
	if server != "" {
		opts = append(opts, pulse.ClientServerString(server))
	}
	c, err := pulse.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse: connect %q: %w", server, err)
	}
	return &Backend{
		Session: s,
		server:  server,
		client:  c,
		pump:    host.NewPump(s),
		stop:    make(chan struct{}),
	}, nil
}

// Activate opens the playback stream and starts it
func (b *Backend) Activate() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.Session.Activate(); err != nil {
		return err
	}
	stream, err := b.client.NewPlayback(pulse.Float32Reader(b.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(b.SampleRate()),
	)
	if err != nil {
		b.Deactivate()
		return fmt.Errorf("pulse: playback: %w", err)
	}
	if got := stream.SampleRate(); got != b.SampleRate() {
		stream.Close()
		b.Deactivate()
		return fmt.Errorf("%w: server granted %d Hz, wanted %d", host.ErrSampleRate, got, b.SampleRate())
	}
	b.stream = stream
	b.done = make(chan struct{})
	stream.Start()
	go b.monitor()
	return nil
}

// read is the stream callback, called on the client's goroutine
func (b *Backend) read(out []float32) (int, error) {
	b.pump.Fill(out)
	return len(out), nil
}

func (b *Backend) monitor() {
	defer close(b.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.stream.Error(); err != nil {
				b.Shutdown(err)
				return
			}
			if !b.stream.Running() {
				b.Shutdown(ErrStreamStopped)
				return
			}
		}
	}
}

// Close stops the stream and disconnects from the server
func (b *Backend) Close() error {
	b.once.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		close(b.stop)
		if b.done != nil {
			<-b.done
		}
		_ = b.Session.Close()
		if b.stream != nil {
			b.stream.Close()
		}
		b.client.Close()
	})
	return nil
}
