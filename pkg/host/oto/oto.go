// Package oto plays a host session through the platform audio API using
// github.com/ebitengine/oto/v3.
package oto

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/oto/v3"

	"github.com/jienfak/jack-sin/pkg/host"
)

const (
	bytesPerSample = 4
	pollInterval   = 100 * time.Millisecond
)

// Backend is a host.Host that feeds a mono float32 oto player.
// Only one oto context may exist per process.
type Backend struct {
	*host.Session

	ctx    *oto.Context
	player *oto.Player
	pump   *host.Pump
	buf    []float32

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New opens the audio device and waits until it is ready
func New(cfg host.Config) (*Backend, error) {
	s, err := host.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(cfg.BlockSize) * time.Second / time.Duration(cfg.SampleRate),
	})
	if err != nil {
		return nil, fmt.Errorf("oto: %w", err)
	}
	<-ready

	return &Backend{
		Session: s,
		ctx:     ctx,
		pump:    host.NewPump(s),
		buf:     make([]float32, 4096),
		stop:    make(chan struct{}),
	}, nil
}

// Activate creates the player and starts playback
func (b *Backend) Activate() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.Session.Activate(); err != nil {
		return err
	}
	b.player = b.ctx.NewPlayer(b)
	b.done = make(chan struct{})
	b.player.Play()
	go b.monitor()
	return nil
}

// Read implements io.Reader for the player. It always fills p,
// rendering through the fixed scratch buffer in chunks.
func (b *Backend) Read(p []byte) (int, error) {
	n := len(p) / bytesPerSample
	if n == 0 {
		return 0, nil
	}
	for done := 0; done < n; {
		chunk := b.buf[:min(n-done, len(b.buf))]
		b.pump.Fill(chunk)
		copy(p[done*bytesPerSample:], unsafe.Slice((*byte)(unsafe.Pointer(&chunk[0])), len(chunk)*bytesPerSample))
		done += len(chunk)
	}
	return n * bytesPerSample, nil
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
			if err := b.ctx.Err(); err != nil {
				b.Shutdown(err)
				return
			}
			if err := b.player.Err(); err != nil {
				b.Shutdown(err)
				return
			}
		}
	}
}

// Close stops playback. The oto context stays alive until the process exits.
func (b *Backend) Close() error {
	var err error
	b.once.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		close(b.stop)
		if b.done != nil {
			<-b.done
		}
		_ = b.Session.Close()
		if b.player != nil {
			err = b.player.Close()
		}
		_ = b.ctx.Suspend()
	})
	return err
}
