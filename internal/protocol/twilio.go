package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// TwilioEventType identifies Twilio Media Streams envelopes.
type TwilioEventType string

const (
	TwilioConnected TwilioEventType = "connected"
	TwilioStart     TwilioEventType = "start"
	TwilioMedia     TwilioEventType = "media"
	TwilioStop      TwilioEventType = "stop"
	TwilioMark      TwilioEventType = "mark"
	TwilioDTMF      TwilioEventType = "dtmf"
)

// InboundEvent is one parsed envelope from the telephony leg. The set of
// implementations is closed: Start, Media, Stop, Mark, Connected, DTMF.
type InboundEvent interface {
	Event() TwilioEventType
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type Start struct {
	StreamSID        string
	CallSID          string
	AccountSID       string
	Tracks           []string
	MediaFormat      MediaFormat
	CustomParameters Params
}

type Media struct {
	StreamSID string
	Track     string
	Chunk     string
	Timestamp string
	// Payload is the decoded μ-law audio.
	Payload []byte
}

type Stop struct {
	StreamSID string
	CallSID   string
}

// Mark is Twilio's playback acknowledgement for a mark we sent earlier.
type Mark struct {
	StreamSID string
	Name      string
}

type Connected struct {
	Protocol string
	Version  string
}

type DTMF struct {
	StreamSID string
	Digit     string
}

func (Start) Event() TwilioEventType     { return TwilioStart }
func (Media) Event() TwilioEventType     { return TwilioMedia }
func (Stop) Event() TwilioEventType      { return TwilioStop }
func (Mark) Event() TwilioEventType      { return TwilioMark }
func (Connected) Event() TwilioEventType { return TwilioConnected }
func (DTMF) Event() TwilioEventType      { return TwilioDTMF }

type twilioEnvelope struct {
	Event          TwilioEventType `json:"event"`
	SequenceNumber string          `json:"sequenceNumber,omitempty"`
	StreamSID      string          `json:"streamSid,omitempty"`
	Protocol       string          `json:"protocol,omitempty"`
	Version        string          `json:"version,omitempty"`
	Start          *struct {
		StreamSID        string      `json:"streamSid"`
		AccountSID       string      `json:"accountSid"`
		CallSID          string      `json:"callSid"`
		Tracks           []string    `json:"tracks"`
		MediaFormat      MediaFormat `json:"mediaFormat"`
		CustomParameters Params      `json:"customParameters"`
	} `json:"start,omitempty"`
	Media *struct {
		Track     string `json:"track"`
		Chunk     string `json:"chunk"`
		Timestamp string `json:"timestamp"`
		Payload   string `json:"payload"`
	} `json:"media,omitempty"`
	Stop *struct {
		AccountSID string `json:"accountSid"`
		CallSID    string `json:"callSid"`
	} `json:"stop,omitempty"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
	DTMF *struct {
		Track string `json:"track"`
		Digit string `json:"digit"`
	} `json:"dtmf,omitempty"`
}

// ParseTwilioMessage validates one text frame from the telephony leg.
// Media payloads are base64-decoded here so downstream code only sees bytes.
func ParseTwilioMessage(raw []byte) (InboundEvent, error) {
	var env twilioEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Event {
	case TwilioStart:
		if env.Start == nil {
			return nil, errors.New("invalid start: missing start block")
		}
		streamSID := env.Start.StreamSID
		if streamSID == "" {
			streamSID = env.StreamSID
		}
		if streamSID == "" {
			return nil, errors.New("invalid start: missing streamSid")
		}
		return Start{
			StreamSID:        streamSID,
			CallSID:          env.Start.CallSID,
			AccountSID:       env.Start.AccountSID,
			Tracks:           env.Start.Tracks,
			MediaFormat:      env.Start.MediaFormat,
			CustomParameters: env.Start.CustomParameters,
		}, nil
	case TwilioMedia:
		if env.Media == nil || env.Media.Payload == "" {
			return nil, fmt.Errorf("invalid media: %w", ErrEmptyAudio)
		}
		payload, err := base64.StdEncoding.DecodeString(env.Media.Payload)
		if err != nil {
			return nil, fmt.Errorf("invalid media payload: %w", err)
		}
		if len(payload) == 0 {
			return nil, fmt.Errorf("invalid media: %w", ErrEmptyAudio)
		}
		return Media{
			StreamSID: env.StreamSID,
			Track:     env.Media.Track,
			Chunk:     env.Media.Chunk,
			Timestamp: env.Media.Timestamp,
			Payload:   payload,
		}, nil
	case TwilioStop:
		msg := Stop{StreamSID: env.StreamSID}
		if env.Stop != nil {
			msg.CallSID = env.Stop.CallSID
		}
		return msg, nil
	case TwilioMark:
		msg := Mark{StreamSID: env.StreamSID}
		if env.Mark != nil {
			msg.Name = env.Mark.Name
		}
		return msg, nil
	case TwilioConnected:
		return Connected{Protocol: env.Protocol, Version: env.Version}, nil
	case TwilioDTMF:
		msg := DTMF{StreamSID: env.StreamSID}
		if env.DTMF != nil {
			msg.Digit = env.DTMF.Digit
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, env.Event)
	}
}

// OutboundMedia is a media envelope written back to the telephony leg.
type OutboundMedia struct {
	Event     TwilioEventType `json:"event"`
	StreamSID string          `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`

	size int
}

// Size is the number of μ-law bytes carried by the envelope.
func (m OutboundMedia) Size() int {
	return m.size
}

// OutboundMark asks the telephony leg to echo name once playback reaches it.
type OutboundMark struct {
	Event     TwilioEventType `json:"event"`
	StreamSID string          `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

func NewTwilioMedia(streamSID string, ulaw []byte) OutboundMedia {
	msg := OutboundMedia{Event: TwilioMedia, StreamSID: streamSID, size: len(ulaw)}
	msg.Media.Payload = base64.StdEncoding.EncodeToString(ulaw)
	return msg
}

func NewTwilioMark(streamSID, name string) OutboundMark {
	msg := OutboundMark{Event: TwilioMark, StreamSID: streamSID}
	msg.Mark.Name = name
	return msg
}
