package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndian(t *testing.T) {
	for _, v := range []string{"", "le", "LE", " little "} {
		e, err := ParseEndian(v)
		require.NoError(t, err)
		assert.Equal(t, LittleEndian, e)
	}
	e, err := ParseEndian("be")
	require.NoError(t, err)
	assert.Equal(t, BigEndian, e)
	assert.Equal(t, "be", e.String())

	_, err = ParseEndian("middle")
	require.Error(t, err)
}

func TestPCMFromBytesEndianness(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xFF, 0xFF}

	le, err := PCMFromBytes(raw, LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, []int16{0x0201, -1}, le)

	be, err := PCMFromBytes(raw, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, []int16{0x0102, -1}, be)

	assert.Equal(t, raw, PCMToBytes(le, LittleEndian))
	assert.Equal(t, raw, PCMToBytes(be, BigEndian))
}

func TestPCMFromBytesRejectsOddLength(t *testing.T) {
	_, err := PCMFromBytes([]byte{1, 2, 3}, LittleEndian)
	require.True(t, errors.Is(err, ErrOddPCMLength), "error = %v", err)
}

func TestPCMFromBytesEmpty(t *testing.T) {
	pcm, err := PCMFromBytes(nil, LittleEndian)
	require.NoError(t, err)
	assert.Nil(t, pcm)
	assert.Empty(t, PCMToBytes(nil, LittleEndian))
}
