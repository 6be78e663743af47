package wavetable

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorsLength(t *testing.T) {
	for _, length := range []int{1, 2, 3, 7, 64, 44100, 48000} {
		for _, shape := range []Shape{ShapeSine, ShapeSaw, ShapePulse} {
			tab, err := New(shape, length)
			require.NoError(t, err)
			assert.Equal(t, length, tab.Len(), "shape %v length %d", shape, length)
		}
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(ShapeSine, 0)
	require.ErrorIs(t, err, ErrLength)

	_, err = New(ShapeSaw, -5)
	require.ErrorIs(t, err, ErrLength)

	_, err = New(Shape(42), 16)
	require.ErrorIs(t, err, ErrShape)
}

func TestSine(t *testing.T) {
	const length = 48000
	buf := make([]float32, length)
	MakeSine(buf)

	t.Run("StartsAtZero", func(t *testing.T) {
		assert.Equal(t, float32(0), buf[0])
	})

	t.Run("QuarterPeriods", func(t *testing.T) {
		assert.InDelta(t, 1.0, buf[length/4], 1e-6)
		assert.InDelta(t, 0.0, buf[length/2], 1e-6)
		assert.InDelta(t, -1.0, buf[3*length/4], 1e-6)
	})

	t.Run("OddSymmetry", func(t *testing.T) {
		for i := 1; i < length; i++ {
			if math.Abs(float64(buf[i]+buf[length-i])) > 1e-6 {
				t.Fatalf("sample %d = %f, mirror %d = %f", i, buf[i], length-i, buf[length-i])
			}
		}
	})

	t.Run("Range", func(t *testing.T) {
		for i, v := range buf {
			if v < -1 || v > 1 {
				t.Fatalf("sample %d out of range: %f", i, v)
			}
		}
	})
}

func TestSaw(t *testing.T) {
	buf := make([]float32, 1000)
	MakeSaw(buf)

	assert.Equal(t, float32(0), buf[0])
	assert.InDelta(t, 0.5, buf[500], 1e-7)
	assert.InDelta(t, 0.999, buf[999], 1e-7)
	for i := 1; i < len(buf); i++ {
		if buf[i] <= buf[i-1] {
			t.Fatalf("ramp not monotonic at %d", i)
		}
		if buf[i] < 0 || buf[i] >= 1 {
			t.Fatalf("sample %d out of range: %f", i, buf[i])
		}
	}
}

func TestPulse(t *testing.T) {
	t.Run("EvenLength", func(t *testing.T) {
		buf := make([]float32, 8)
		MakePulse(buf)
		assert.Equal(t, []float32{0, 0, 0, 0, 1, 1, 1, 1}, buf)
	})

	t.Run("OddLengthStaysTwoLevel", func(t *testing.T) {
		buf := make([]float32, 7)
		MakePulse(buf)
		assert.Equal(t, []float32{0, 0, 0, 1, 1, 1, 1}, buf)
	})

	t.Run("SingleSample", func(t *testing.T) {
		buf := make([]float32, 1)
		MakePulse(buf)
		assert.Equal(t, []float32{0}, buf)
	})
}

func TestParseShape(t *testing.T) {
	tests := []struct {
		in   string
		want Shape
	}{
		{"sine", ShapeSine},
		{"", ShapeSine},
		{"SAW", ShapeSaw},
		{"sawtooth", ShapeSaw},
		{" pulse ", ShapePulse},
	}
	for _, tt := range tests {
		got, err := ParseShape(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		if tt.in != "" {
			roundTrip, err := ParseShape(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, roundTrip)
		}
	}

	_, err := ParseShape("triangle")
	require.ErrorIs(t, err, ErrShape)
}

func BenchmarkMakeSine(b *testing.B) {
	buf := make([]float32, 48000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MakeSine(buf)
	}
}
