package host

import "github.com/jienfak/jack-sin/pkg/dsp/buffer"

// Pump adapts a pull-model device, which asks for arbitrary sample counts, to
// the session's fixed block size. Whenever its staging ring runs dry it runs
// one block and queues the mixdown. Fill must be called from a single
// goroutine, normally the device callback.
type Pump struct {
	s     *Session
	ring  *buffer.Ring
	block []float32
}

// NewPump creates a pump for s, allocating one block of staging space
func NewPump(s *Session) *Pump {
	return &Pump{
		s:     s,
		ring:  buffer.NewRing(s.BlockSize()),
		block: make([]float32, s.BlockSize()),
	}
}

// Fill writes len(out) mono samples. When the session is inactive the
// remainder is silence and Fill returns false.
func (p *Pump) Fill(out []float32) bool {
	for len(out) > 0 {
		if p.ring.Len() == 0 {
			if !p.s.RunBlock(len(p.block)) {
				for i := range out {
					out[i] = 0
				}
				return false
			}
			p.s.Mixdown(p.block)
			// the ring is empty and sized for one block
			_ = p.ring.Write(p.block)
		}
		n := p.ring.Read(out)
		out = out[n:]
	}
	return true
}

// Buffered returns the number of rendered samples not yet delivered
func (p *Pump) Buffered() int {
	return p.ring.Len()
}
