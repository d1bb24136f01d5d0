// Package audio implements the audio conversion primitives used by the
// bridge: G.711 μ-law companding between 8-bit telephony audio and 16-bit
// linear PCM, and a stateful linear-interpolation resampler that preserves
// continuity across arbitrarily sized chunks.
//
// All PCM in this package is little-endian signed 16-bit mono.
package audio

import "errors"

// ErrOddPCM is returned when a PCM input's byte length is not a multiple of
// the 2-byte sample width. No partial conversion is performed.
var ErrOddPCM = errors.New("audio: pcm length must be a multiple of 2")

const (
	ulawBias = 0x84
	ulawClip = 32635
)

// ulawToPCM maps each μ-law byte to its decoded linear sample. Built once at
// init so decoding the same byte always yields the same sample.
var ulawToPCM [256]int16

func init() {
	for i := range ulawToPCM {
		ulawToPCM[i] = expandSample(byte(i))
	}
}

// expandSample decodes one μ-law byte to a linear 16-bit sample.
func expandSample(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F

	magnitude := ((int32(mantissa) << 3) + ulawBias) << exponent
	magnitude -= ulawBias

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// compressSample encodes one linear 16-bit sample as a μ-law byte.
func compressSample(sample int16) byte {
	s := int32(sample)
	var sign byte
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	exponent := 7
	for exponent > 0 && s&(1<<(uint(exponent)+7)) == 0 {
		exponent--
	}
	mantissa := byte((s >> (uint(exponent) + 3)) & 0x0F)

	return ^(sign | byte(exponent)<<4 | mantissa)
}

// ExpandULaw decodes μ-law companded bytes to 16-bit linear PCM. Every input
// byte is a valid μ-law code, so expansion cannot fail. The output is twice
// the length of the input.
func ExpandULaw(companded []byte) []byte {
	out := make([]byte, len(companded)*2)
	for i, u := range companded {
		s := ulawToPCM[u]
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// CompressULaw encodes 16-bit linear PCM as μ-law companded bytes. The output
// is half the length of the input. Returns [ErrOddPCM] if the input length is
// not a multiple of 2.
func CompressULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddPCM
	}
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = compressSample(s)
	}
	return out, nil
}
