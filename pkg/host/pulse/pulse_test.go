package pulse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jienfak/jack-sin/pkg/host"
)

func TestReadUsesFixedBlocks(t *testing.T) {
	s, err := host.NewSession(host.Config{SampleRate: 1000, BlockSize: 16})
	require.NoError(t, err)
	out, err := s.RegisterPort("out", host.Output)
	require.NoError(t, err)

	var sizes []int
	next := float32(0)
	require.NoError(t, s.SetProcessor(host.ProcessorFunc(func(frames int) int {
		sizes = append(sizes, frames)
		for i := range out.Buffer(frames) {
			out.Buffer(frames)[i] = next
			next++
		}
		return 0
	})))
	b := &Backend{Session: s, pump: host.NewPump(s)}

	// inactive sessions produce silence
	buf := []float32{9, 9, 9}
	n, err := b.read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{0, 0, 0}, buf)

	require.NoError(t, s.Activate())
	var got []float32
	for _, req := range []int{5, 30, 1, 12} {
		buf := make([]float32, req)
		n, err := b.read(buf)
		require.NoError(t, err)
		require.Equal(t, req, n)
		got = append(got, buf...)
	}

	for i, v := range got {
		require.Equal(t, float32(i), v, "sample %d", i)
	}
	for _, f := range sizes {
		assert.Equal(t, 16, f)
	}
	assert.Len(t, sizes, 3)
}
