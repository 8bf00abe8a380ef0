package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Endian selects the byte order of 16-bit PCM on the wire.
type Endian int

const (
	LittleEndian Endian = iota
	BigEndian
)

var ErrOddPCMLength = errors.New("pcm16 payload has odd byte length")

// ParseEndian accepts "le" or "be" (case-insensitive). Empty means little-endian.
func ParseEndian(v string) (Endian, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "le", "little":
		return LittleEndian, nil
	case "be", "big":
		return BigEndian, nil
	default:
		return LittleEndian, fmt.Errorf("unknown pcm endianness %q (expected le|be)", v)
	}
}

func (e Endian) String() string {
	if e == BigEndian {
		return "be"
	}
	return "le"
}

func (e Endian) order() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// PCMFromBytes unpacks 16-bit samples. Odd-length input is rejected rather
// than truncated so a corrupt chunk never shifts every following sample.
func PCMFromBytes(b []byte, e Endian) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddPCMLength, len(b))
	}
	if len(b) == 0 {
		return nil, nil
	}
	order := e.order()
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(order.Uint16(b[2*i:]))
	}
	return out, nil
}

// PCMToBytes packs 16-bit samples.
func PCMToBytes(pcm []int16, e Endian) []byte {
	order := e.order()
	out := make([]byte, 2*len(pcm))
	for i, s := range pcm {
		order.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
