package audio_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/voxbridge/voxbridge/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestCompressULaw_OddLength(t *testing.T) {
	t.Parallel()
	_, err := audio.CompressULaw([]byte{0x01})
	if !errors.Is(err, audio.ErrOddPCM) {
		t.Fatalf("err = %v; want ErrOddPCM", err)
	}
}

func TestExpandULaw_Lengths(t *testing.T) {
	t.Parallel()
	out := audio.ExpandULaw([]byte{0xFF, 0x7F, 0x00})
	if len(out) != 6 {
		t.Fatalf("expanded length = %d; want 6", len(out))
	}
}

func TestULaw_SilenceRoundTrip(t *testing.T) {
	t.Parallel()
	pcm := samplesToBytes([]int16{0, 0, 0, 0})
	enc, err := audio.CompressULaw(pcm)
	if err != nil {
		t.Fatalf("CompressULaw: %v", err)
	}
	got := bytesToSamples(audio.ExpandULaw(enc))
	for i, s := range got {
		if s != 0 {
			t.Errorf("sample %d: got %d, want 0", i, s)
		}
	}
}

// μ-law is lossy, but the round-trip error must stay within the quantisation
// step for the sample's segment (roughly magnitude/16 plus a constant).
func TestULaw_RoundTripTolerance(t *testing.T) {
	t.Parallel()
	samples := []int16{1, -1, 64, -64, 500, -500, 2000, -2000, 8000, -8000, 30000, -30000, 32767, -32768}
	enc, err := audio.CompressULaw(samplesToBytes(samples))
	if err != nil {
		t.Fatalf("CompressULaw: %v", err)
	}
	got := bytesToSamples(audio.ExpandULaw(enc))
	for i, want := range samples {
		diff := int32(got[i]) - int32(want)
		if diff < 0 {
			diff = -diff
		}
		mag := int32(want)
		if mag < 0 {
			mag = -mag
		}
		tolerance := mag/16 + 64
		if diff > tolerance {
			t.Errorf("sample %d (%d): decoded %d, error %d exceeds tolerance %d",
				i, want, got[i], diff, tolerance)
		}
	}
}

// Decoding the same encoded byte must always yield the same sample.
func TestExpandULaw_Deterministic(t *testing.T) {
	t.Parallel()
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	first := audio.ExpandULaw(all)
	second := audio.ExpandULaw(all)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("byte %d: decode not deterministic", i)
		}
	}
}

// Re-encoding a decoded sample must reproduce the original μ-law byte: each
// code's decoded value lies at the centre of its quantisation interval.
func TestULaw_CodeStability(t *testing.T) {
	t.Parallel()
	for code := range 256 {
		decoded := audio.ExpandULaw([]byte{byte(code)})
		reencoded, err := audio.CompressULaw(decoded)
		if err != nil {
			t.Fatalf("CompressULaw: %v", err)
		}
		want := byte(code)
		if code == 0x7F {
			// Negative zero decodes to 0, which re-encodes as positive zero.
			want = 0xFF
		}
		if reencoded[0] != want {
			t.Errorf("code 0x%02X: decode then encode gave 0x%02X, want 0x%02X", code, reencoded[0], want)
		}
	}
}
