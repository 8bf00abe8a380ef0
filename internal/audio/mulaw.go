package audio

// G.711 μ-law constants.
const (
	muLawBias = 0x84
	muLawClip = 0x7FFF
)

// DecodeMuLaw expands one G.711 μ-law byte into a linear 16-bit sample.
func DecodeMuLaw(b byte) int16 {
	u := ^b
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := int32(u & 0x0F)

	magnitude := ((mantissa << 3) + muLawBias) << exponent
	magnitude -= muLawBias
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// EncodeMuLaw compresses a linear 16-bit sample into a G.711 μ-law byte.
func EncodeMuLaw(sample int16) byte {
	s := int32(sample)
	var sign byte
	if s < 0 {
		sign = 0x80
		s = -s
	}
	s += muLawBias
	if s > muLawClip {
		s = muLawClip
	}

	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && s&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(s>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}

// MuLawToPCM decodes a μ-law buffer sample by sample.
func MuLawToPCM(ulaw []byte) []int16 {
	if len(ulaw) == 0 {
		return nil
	}
	out := make([]int16, len(ulaw))
	for i, b := range ulaw {
		out[i] = DecodeMuLaw(b)
	}
	return out
}

// PCMToMuLaw encodes linear samples into a μ-law buffer.
func PCMToMuLaw(pcm []int16) []byte {
	if len(pcm) == 0 {
		return nil
	}
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = EncodeMuLaw(s)
	}
	return out
}
