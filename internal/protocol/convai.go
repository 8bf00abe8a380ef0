package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ent0n29/callbridge/internal/audio"
)

// ConvAIMessageType identifies ElevenLabs Conversational AI envelopes.
type ConvAIMessageType string

const (
	ConvAIAudio ConvAIMessageType = "audio"
	ConvAIPing  ConvAIMessageType = "ping"
	ConvAIPong  ConvAIMessageType = "pong"
)

// OutboundEvent is one parsed envelope from the agent leg: Audio, Ping or Other.
type OutboundEvent interface {
	MessageType() ConvAIMessageType
}

// Audio carries agent speech as 16 kHz linear samples.
type Audio struct {
	EventID int64
	PCM     []int16
}

type Ping struct {
	EventID int64
	PingMS  int64
}

// Other is any envelope the bridge does not act on (transcripts, metadata,
// interruptions, ...). It is never an error.
type Other struct {
	Type ConvAIMessageType
}

func (Audio) MessageType() ConvAIMessageType   { return ConvAIAudio }
func (Ping) MessageType() ConvAIMessageType    { return ConvAIPing }
func (o Other) MessageType() ConvAIMessageType { return o.Type }

type convaiEnvelope struct {
	Type       ConvAIMessageType `json:"type"`
	Audio      string            `json:"audio,omitempty"`
	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
		EventID     int64  `json:"event_id"`
	} `json:"audio_event,omitempty"`
	PingEvent *struct {
		EventID int64 `json:"event_id"`
		PingMS  int64 `json:"ping_ms"`
	} `json:"ping_event,omitempty"`
}

// ParseConvAIMessage validates one text frame from the agent leg. PCM byte
// order is a deployment setting since agent backends differ.
func ParseConvAIMessage(raw []byte, endian audio.Endian) (OutboundEvent, error) {
	var env convaiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case ConvAIAudio:
		encoded := env.Audio
		var eventID int64
		if env.AudioEvent != nil {
			eventID = env.AudioEvent.EventID
			if env.AudioEvent.AudioBase64 != "" {
				encoded = env.AudioEvent.AudioBase64
			}
		}
		if encoded == "" {
			return nil, fmt.Errorf("invalid audio: %w", ErrEmptyAudio)
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid audio payload: %w", err)
		}
		pcm, err := audio.PCMFromBytes(data, endian)
		if err != nil {
			return nil, fmt.Errorf("invalid audio payload: %w", err)
		}
		if len(pcm) == 0 {
			return nil, fmt.Errorf("invalid audio: %w", ErrEmptyAudio)
		}
		return Audio{EventID: eventID, PCM: pcm}, nil
	case ConvAIPing:
		if env.PingEvent == nil {
			return nil, errors.New("invalid ping: missing ping_event")
		}
		return Ping{EventID: env.PingEvent.EventID, PingMS: env.PingEvent.PingMS}, nil
	default:
		return Other{Type: env.Type}, nil
	}
}

// UserAudioChunk streams caller audio to the agent as base64 PCM16LE at 16 kHz.
type UserAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type Pong struct {
	Type    ConvAIMessageType `json:"type"`
	EventID int64             `json:"event_id"`
}

func NewUserAudioChunk(pcm []int16) UserAudioChunk {
	return UserAudioChunk{
		UserAudioChunk: base64.StdEncoding.EncodeToString(audio.PCMToBytes(pcm, audio.LittleEndian)),
	}
}

func NewPong(eventID int64) Pong {
	return Pong{Type: ConvAIPong, EventID: eventID}
}
