package audio

import (
	"encoding/binary"
	"fmt"
)

// Resampler converts 16-bit mono PCM between two sample rates using linear
// interpolation. It is stateful: the last input sample and the fractional
// read position carry over between [Resampler.Convert] calls so that chunk
// boundaries do not produce audible discontinuities.
//
// Create one Resampler per direction per stream; it is not safe for
// concurrent use.
type Resampler struct {
	srcRate int
	dstRate int

	last    int16
	hasLast bool
	pos     float64
}

// NewResampler creates a Resampler from srcRate to dstRate (both in Hz).
// Panics if either rate is not positive; rates are static configuration, not
// runtime input.
func NewResampler(srcRate, dstRate int) *Resampler {
	if srcRate <= 0 || dstRate <= 0 {
		panic(fmt.Sprintf("audio: invalid resample rates %d -> %d", srcRate, dstRate))
	}
	return &Resampler{srcRate: srcRate, dstRate: dstRate}
}

// Convert resamples one chunk of PCM and returns the converted samples.
// Output length varies between calls by up to one sample as the fractional
// position drifts; over a stream the ratio of output to input samples
// converges to dstRate/srcRate. Returns [ErrOddPCM] if the input length is
// not a multiple of 2; no partial conversion is performed.
func (r *Resampler) Convert(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddPCM
	}
	if len(pcm) == 0 {
		return nil, nil
	}
	if r.srcRate == r.dstRate {
		return pcm, nil
	}

	n := len(pcm) / 2

	// Prepend the carried sample so interpolation can cross the boundary
	// between the previous chunk and this one.
	window := make([]int16, 0, n+1)
	if r.hasLast {
		window = append(window, r.last)
	}
	for i := range n {
		window = append(window, int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	ratio := float64(r.srcRate) / float64(r.dstRate)
	out := make([]byte, 0, (n*r.dstRate/r.srcRate+2)*2)

	pos := r.pos
	for int(pos)+1 < len(window) {
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := float64(window[idx])
		s1 := float64(window[idx+1])
		sample := int16(s0*(1-frac) + s1*frac)
		out = binary.LittleEndian.AppendUint16(out, uint16(sample))
		pos += ratio
	}

	consumed := len(window) - 1
	r.pos = pos - float64(consumed)
	r.last = window[len(window)-1]
	r.hasLast = true

	return out, nil
}

// Reset clears the carried interpolation state. Use when the input stream
// restarts and continuity with previous chunks is not wanted.
func (r *Resampler) Reset() {
	r.last = 0
	r.hasLast = false
	r.pos = 0
}
