package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMuLawReferenceVectors(t *testing.T) {
	decodeCases := []struct {
		in   byte
		want int16
	}{
		{0xFF, 0},
		{0x7F, 0},
		{0x80, 32124},
		{0x00, -32124},
		{0xFE, 8},
		{0x7E, -8},
		{0xEF, 132},
		{0xDF, 396},
	}
	for _, tc := range decodeCases {
		assert.Equalf(t, tc.want, DecodeMuLaw(tc.in), "DecodeMuLaw(%#02x)", tc.in)
	}

	encodeCases := []struct {
		in   int16
		want byte
	}{
		{0, 0xFF},
		{-1, 0x7F},
		{math.MaxInt16, 0x80},
		{math.MinInt16, 0x00},
		{8, 0xFE},
		{-8, 0x7E},
		{32124, 0x80},
	}
	for _, tc := range encodeCases {
		assert.Equalf(t, tc.want, EncodeMuLaw(tc.in), "EncodeMuLaw(%d)", tc.in)
	}
}

func TestMuLawByteRoundTrip(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		decoded := DecodeMuLaw(b)
		reencoded := EncodeMuLaw(decoded)

		if b == 0x7F {
			// negative zero collapses onto positive zero
			assert.Equal(t, byte(0xFF), reencoded)
			continue
		}
		assert.Equalf(t, b, reencoded, "EncodeMuLaw(DecodeMuLaw(%#02x))", b)

		exponent := ((^b) >> 4) & 0x07
		step := int32(1) << (exponent + 3)
		diff := int32(DecodeMuLaw(reencoded)) - int32(decoded)
		assert.LessOrEqualf(t, abs32(diff), step, "reconstruction error for %#02x", b)
	}
}

func TestMuLawSampleErrorBounded(t *testing.T) {
	for s := math.MinInt16; s <= math.MaxInt16; s++ {
		sample := int16(s)
		b := EncodeMuLaw(sample)
		exponent := ((^b) >> 4) & 0x07
		step := int32(1) << (exponent + 3)
		diff := int32(DecodeMuLaw(b)) - int32(sample)
		if abs32(diff) > step {
			t.Fatalf("sample %d encoded to %#02x, error %d exceeds step %d", sample, b, diff, step)
		}
	}
}

func TestMuLawSliceHelpers(t *testing.T) {
	require.Nil(t, MuLawToPCM(nil))
	require.Nil(t, PCMToMuLaw(nil))

	silence := []byte{0xFF, 0xFF, 0x7F}
	pcm := MuLawToPCM(silence)
	require.Equal(t, []int16{0, 0, 0}, pcm)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF}, PCMToMuLaw(pcm))
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func BenchmarkEncodeMuLaw(b *testing.B) {
	pcm := make([]int16, 160)
	for i := range pcm {
		pcm[i] = int16(i * 200)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = PCMToMuLaw(pcm)
	}
}
