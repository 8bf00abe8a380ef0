package bridge

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/callbridge/internal/protocol"
)

func TestFrames(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		sizes []int
	}{
		{name: "empty", n: 0},
		{name: "short", n: 10, sizes: []int{10}},
		{name: "exact", n: 320, sizes: []int{160, 160}},
		{name: "tail", n: 400, sizes: []int{160, 160, 80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := Frames(make([]byte, tt.n), FrameBytes)
			require.Len(t, frames, len(tt.sizes))
			for i, f := range frames {
				assert.Len(t, f, tt.sizes[i])
			}
		})
	}
}

func TestFramesPreservesOrder(t *testing.T) {
	in := make([]byte, 500)
	for i := range in {
		in[i] = byte(i)
	}
	assert.Equal(t, in, bytes.Join(Frames(in, 160), nil))
}

func TestPaceOutbound(t *testing.T) {
	ulaw := bytes.Repeat([]byte{0x7F}, 401)
	out := PaceOutbound("MZ9", ulaw, "audio-1")

	// ceil(401/160) media envelopes, then one mark.
	require.Len(t, out, 4)
	var payload []byte
	for _, msg := range out[:3] {
		media, ok := msg.(protocol.OutboundMedia)
		require.True(t, ok)
		assert.Equal(t, "MZ9", media.StreamSID)
		assert.Equal(t, protocol.TwilioMedia, media.Event)
		raw, err := base64.StdEncoding.DecodeString(media.Media.Payload)
		require.NoError(t, err)
		assert.Equal(t, len(raw), media.Size())
		payload = append(payload, raw...)
	}
	assert.Equal(t, ulaw, payload)

	mark, ok := out[3].(protocol.OutboundMark)
	require.True(t, ok)
	assert.Equal(t, "MZ9", mark.StreamSID)
	assert.Equal(t, "audio-1", mark.Mark.Name)
}

func TestPaceOutboundEmpty(t *testing.T) {
	assert.Nil(t, PaceOutbound("MZ9", nil, "audio-1"))
}

func TestNewMarkNameUnique(t *testing.T) {
	a, b := newMarkName(), newMarkName()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "audio-"))
}
