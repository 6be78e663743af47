// Package buffer provides a fixed-capacity sample FIFO for staging audio
// between block-based producers and pull-based devices.
package buffer

import "errors"

// ErrOverrun is returned when a write does not fit in the free space
var ErrOverrun = errors.New("buffer: overrun")

// Ring is a single-goroutine circular FIFO of float32 samples.
// Capacity is rounded up to a power of two. Read and Write never allocate.
type Ring struct {
	data     []float32
	mask     uint64
	readPos  uint64
	writePos uint64
}

// NewRing creates a ring holding at least capacity samples
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	size := nextPowerOf2(uint64(capacity))
	return &Ring{
		data: make([]float32, size),
		mask: size - 1,
	}
}

// Cap returns the capacity in samples
func (r *Ring) Cap() int {
	return len(r.data)
}

// Len returns the number of buffered samples
func (r *Ring) Len() int {
	return int(r.writePos - r.readPos)
}

// Free returns the number of samples that can be written
func (r *Ring) Free() int {
	return r.Cap() - r.Len()
}

// Write appends all of samples or nothing
func (r *Ring) Write(samples []float32) error {
	if len(samples) > r.Free() {
		return ErrOverrun
	}
	for len(samples) > 0 {
		idx := r.writePos & r.mask
		n := copy(r.data[idx:], samples)
		samples = samples[n:]
		r.writePos += uint64(n)
	}
	return nil
}

// Read moves up to len(out) samples into out and returns the count
func (r *Ring) Read(out []float32) int {
	total := 0
	for len(out) > 0 && r.Len() > 0 {
		idx := r.readPos & r.mask
		end := uint64(len(r.data))
		if avail := idx + uint64(r.Len()); avail < end {
			end = avail
		}
		n := copy(out, r.data[idx:end])
		out = out[n:]
		r.readPos += uint64(n)
		total += n
	}
	return total
}

// Reset discards all buffered samples
func (r *Ring) Reset() {
	r.readPos = 0
	r.writePos = 0
}

func nextPowerOf2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
