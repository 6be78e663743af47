package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterSession emits a running sample counter on a single output port.
func counterSession(t *testing.T, block int) *Session {
	t.Helper()
	sess, err := NewSession(Config{SampleRate: 1000, BlockSize: block})
	require.NoError(t, err)
	out, err := sess.RegisterPort("out", Output)
	require.NoError(t, err)

	next := float32(0)
	require.NoError(t, sess.SetProcessor(ProcessorFunc(func(frames int) int {
		buf := out.Buffer(frames)
		for i := range buf {
			buf[i] = next
			next++
		}
		return 0
	})))
	return sess
}

func TestPumpDeliversContinuousStream(t *testing.T) {
	sess := counterSession(t, 16)
	require.NoError(t, sess.Activate())
	p := NewPump(sess)

	var got []float32
	for _, n := range []int{1, 5, 16, 33, 7, 100, 2} {
		out := make([]float32, n)
		require.True(t, p.Fill(out))
		got = append(got, out...)
	}

	for i, v := range got {
		require.Equal(t, float32(i), v, "sample %d", i)
	}
	total := len(got)
	blocks := (total + 15) / 16
	assert.Equal(t, uint64(blocks), sess.Meter().Snapshot().Blocks)
	assert.Equal(t, blocks*16-total, p.Buffered())
}

func TestPumpSilenceWhenInactive(t *testing.T) {
	sess := counterSession(t, 8)
	p := NewPump(sess)

	out := []float32{9, 9, 9, 9}
	assert.False(t, p.Fill(out))
	assert.Equal(t, []float32{0, 0, 0, 0}, out)
}

func TestPumpAllocations(t *testing.T) {
	sess := counterSession(t, 64)
	require.NoError(t, sess.Activate())
	p := NewPump(sess)
	out := make([]float32, 100)

	allocs := testing.AllocsPerRun(50, func() {
		p.Fill(out)
	})
	assert.Zero(t, allocs)
}
