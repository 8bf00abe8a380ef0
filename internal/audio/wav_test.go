package audio

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVMonoRoundTrip(t *testing.T) {
	pcm := []int16{0, 1000, -1000, 32767, -32768}
	wav, err := EncodeWAV(pcm, 8000)
	require.NoError(t, err)
	assert.Len(t, wav, 44+len(pcm)*2)

	got, rate, err := DecodeWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	assert.Equal(t, pcm, got)
}

func TestWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call.wav")
	require.NoError(t, WriteWAVFile(path, []int16{5, -5}, 16000))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got, rate, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	assert.Equal(t, []int16{5, -5}, got)
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	// Frame 1: L=1000, R=-1000 => 0. Frame 2: L=3000, R=1000 => 2000.
	stereo := []byte{
		0xE8, 0x03, 0x18, 0xFC,
		0xB8, 0x0B, 0xE8, 0x03,
	}
	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+len(stereo)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))
	_ = binary.Write(&b, binary.LittleEndian, uint16(2))
	_ = binary.Write(&b, binary.LittleEndian, uint32(24000))
	_ = binary.Write(&b, binary.LittleEndian, uint32(24000*4))
	_ = binary.Write(&b, binary.LittleEndian, uint16(4))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(stereo)))
	b.Write(stereo)

	got, rate, err := DecodeWAV(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 24000, rate)
	assert.Equal(t, []int16{0, 2000}, got)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("RIFF0000WAVX"), []byte("RIFF\x04\x00\x00\x00WAVE")} {
		_, _, err := DecodeWAV(data)
		assert.Error(t, err)
	}
}
