package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// EncodeWAV wraps mono PCM16 samples in a WAV container.
func EncodeWAV(pcm []int16, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVFile writes mono PCM16 samples to path as a WAV file.
func WriteWAVFile(path string, pcm []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, pcm, sampleRate); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteWAV streams mono PCM16 samples to out as little-endian WAV.
func WriteWAV(out io.Writer, pcm []int16, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = TelephonySampleRate
	}

	dataSize := uint32(len(pcm) * 2)
	header := struct {
		RIFF       [4]byte
		Size       uint32
		WAVE       [4]byte
		Fmt        [4]byte
		FmtSize    uint32
		Format     uint16
		Channels   uint16
		SampleRate uint32
		ByteRate   uint32
		BlockAlign uint16
		Bits       uint16
		Data       [4]byte
		DataSize   uint32
	}{
		RIFF:       [4]byte{'R', 'I', 'F', 'F'},
		Size:       36 + dataSize,
		WAVE:       [4]byte{'W', 'A', 'V', 'E'},
		Fmt:        [4]byte{'f', 'm', 't', ' '},
		FmtSize:    16,
		Format:     audioFormat,
		Channels:   numChannels,
		SampleRate: uint32(sampleRate),
		ByteRate:   uint32(sampleRate * numChannels * bitsPerSample / 8),
		BlockAlign: numChannels * bitsPerSample / 8,
		Bits:       bitsPerSample,
		Data:       [4]byte{'d', 'a', 't', 'a'},
		DataSize:   dataSize,
	}

	w := bufio.NewWriter(out)
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	if _, err := w.Write(PCMToBytes(pcm, LittleEndian)); err != nil {
		return err
	}
	return w.Flush()
}

// DecodeWAV reads 16-bit PCM WAV data. Multi-channel input is averaged down
// to mono.
func DecodeWAV(data []byte) (pcm []int16, sampleRate int, err error) {
	if len(data) < 12 {
		return nil, 0, errors.New("wav too short")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("unsupported wav header")
	}

	var (
		haveFmt     bool
		format      uint16
		channels    uint16
		bitsPerSamp uint16
		raw         []byte
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		if size < 0 || off+size > len(data) {
			return nil, 0, errors.New("invalid wav chunk size")
		}
		chunk := data[off : off+size]
		switch id {
		case "fmt ":
			if len(chunk) < 16 {
				return nil, 0, errors.New("invalid wav fmt chunk")
			}
			format = binary.LittleEndian.Uint16(chunk[0:2])
			channels = binary.LittleEndian.Uint16(chunk[2:4])
			sampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			bitsPerSamp = binary.LittleEndian.Uint16(chunk[14:16])
			haveFmt = true
		case "data":
			raw = chunk
		}
		off += size
		if size%2 == 1 {
			off++
		}
	}
	switch {
	case !haveFmt:
		return nil, 0, errors.New("wav fmt chunk missing")
	case len(raw) == 0:
		return nil, 0, errors.New("wav data chunk missing")
	case format != 1:
		return nil, 0, fmt.Errorf("unsupported wav audio format %d", format)
	case bitsPerSamp != 16:
		return nil, 0, fmt.Errorf("unsupported wav bits_per_sample %d", bitsPerSamp)
	case channels == 0:
		return nil, 0, errors.New("invalid wav channels=0")
	case sampleRate <= 0:
		return nil, 0, errors.New("invalid wav sample rate")
	}

	frameBytes := int(channels) * 2
	frames := len(raw) / frameBytes
	pcm = make([]int16, frames)
	for i := range pcm {
		base := i * frameBytes
		sum := 0
		for ch := 0; ch < int(channels); ch++ {
			sum += int(int16(binary.LittleEndian.Uint16(raw[base+ch*2:])))
		}
		pcm[i] = int16(sum / int(channels))
	}
	return pcm, sampleRate, nil
}
