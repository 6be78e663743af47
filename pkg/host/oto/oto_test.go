package oto

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jienfak/jack-sin/pkg/host"
)

// newDetached builds a backend without an audio device
func newDetached(t *testing.T, value float32) *Backend {
	t.Helper()
	s, err := host.NewSession(host.Config{SampleRate: 1000, BlockSize: 8})
	require.NoError(t, err)
	out, err := s.RegisterPort("out", host.Output)
	require.NoError(t, err)
	require.NoError(t, s.SetProcessor(host.ProcessorFunc(func(frames int) int {
		buf := out.Buffer(frames)
		for i := range buf {
			buf[i] = value
		}
		return 0
	})))
	return &Backend{Session: s, pump: host.NewPump(s), buf: make([]float32, 4)}
}

func TestReadEncodesFloat32LE(t *testing.T) {
	b := newDetached(t, -0.5)
	require.NoError(t, b.Session.Activate())

	p := make([]byte, 12*bytesPerSample)
	n, err := b.Read(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n)
	for i := 0; i < 12; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		require.Equal(t, float32(-0.5), v, "sample %d", i)
	}
	assert.Len(t, b.buf, 4, "scratch is reused in chunks")
}

func TestReadLargeRequestAllocations(t *testing.T) {
	b := newDetached(t, 0.25)
	require.NoError(t, b.Session.Activate())

	p := make([]byte, 1000*bytesPerSample)
	allocs := testing.AllocsPerRun(20, func() {
		_, _ = b.Read(p)
	})
	assert.Zero(t, allocs)
	for i := 0; i < 1000; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		require.Equal(t, float32(0.25), v, "sample %d", i)
	}
}

func TestReadSilenceWhenInactive(t *testing.T) {
	b := newDetached(t, 1)
	p := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := b.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, make([]byte, 8), p)
}

func TestReadPartialSample(t *testing.T) {
	b := newDetached(t, 1)
	n, err := b.Read(make([]byte, 3))
	require.NoError(t, err)
	assert.Zero(t, n)
}
