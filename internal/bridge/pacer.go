package bridge

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/callbridge/internal/protocol"
)

// FrameBytes is one 20 ms frame of 8 kHz μ-law, the unit Twilio plays out.
const FrameBytes = 160

// Frames splits ulaw into consecutive size-byte slices; the last may be
// shorter. The slices alias ulaw.
func Frames(ulaw []byte, size int) [][]byte {
	if size <= 0 {
		size = FrameBytes
	}
	if len(ulaw) == 0 {
		return nil
	}
	out := make([][]byte, 0, (len(ulaw)+size-1)/size)
	for off := 0; off < len(ulaw); off += size {
		end := off + size
		if end > len(ulaw) {
			end = len(ulaw)
		}
		out = append(out, ulaw[off:end])
	}
	return out
}

// PaceOutbound turns one agent utterance into the envelope sequence written
// to the telephony leg: a media envelope per frame, then a single mark.
func PaceOutbound(streamSID string, ulaw []byte, markName string) []any {
	frames := Frames(ulaw, FrameBytes)
	if len(frames) == 0 {
		return nil
	}
	out := make([]any, 0, len(frames)+1)
	for _, frame := range frames {
		out = append(out, protocol.NewTwilioMedia(streamSID, frame))
	}
	return append(out, protocol.NewTwilioMark(streamSID, markName))
}

// newMarkName returns a unique, time-ordered mark label.
func newMarkName() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("audio-%d", time.Now().UnixNano())
	}
	return "audio-" + id.String()
}
