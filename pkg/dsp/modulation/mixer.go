// Package modulation holds the per-sample modulation mixer for table oscillators
// and the control-rate sources that can drive its modulation inputs.
package modulation

import "math"

// Voice is the per-block snapshot of an oscillator's scalar state.
// All integer quantities live in the table's index domain [0, Rate).
type Voice struct {
	Rate      int
	Phase     int
	Frequency int
	Bias      int
	Amplitude float32
}

// ToDomain maps an analog modulation sample onto the index domain:
// floor(x * rate). A full-scale input shifts by one table length.
func ToDomain(x float32, rate int) int {
	return int(math.Floor(float64(x) * float64(rate)))
}

// Wrap reduces v into [0, n). Unlike %, negative inputs wrap upwards.
func Wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// Render fills out from table and returns the phase after len(out) samples.
//
// For each sample i:
//
//	idx    = Wrap(phase + bias + ToDomain(phaseMod[i]), rate)
//	out[i] = table[idx] * amplitude * (1 + ToDomain(ampMod[i]))
//	phase  = Wrap(phase + frequency + ToDomain(freqMod[i]), rate)
//
// The modulation slices must be at least len(out) long. len(table) must equal
// v.Rate. Render does not allocate.
func Render(table, out, freqMod, ampMod, phaseMod []float32, v Voice) int {
	rate := v.Rate
	phase := v.Phase
	amp := v.Amplitude

	freqMod = freqMod[:len(out)]
	ampMod = ampMod[:len(out)]
	phaseMod = phaseMod[:len(out)]
	table = table[:rate]

	for i := range out {
		idx := Wrap(phase+v.Bias+ToDomain(phaseMod[i], rate), rate)
		out[i] = table[idx] * (amp * float32(1+ToDomain(ampMod[i], rate)))
		phase = Wrap(phase+v.Frequency+ToDomain(freqMod[i], rate), rate)
	}
	return phase
}
