package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/callbridge/internal/audio"
	"github.com/ent0n29/callbridge/internal/bridge"
	"github.com/ent0n29/callbridge/internal/protocol"
)

// callsim plays the Twilio side of a Media Streams call against a running
// bridge: start, paced μ-law media, stop. It reports what came back.

type options struct {
	url        string
	agentID    string
	token      string
	accountSID string
	input      string
	toneHz     float64
	duration   time.Duration
	realtime   float64
	listen     time.Duration
	record     string
	verbose    bool
}

type report struct {
	StreamSID       string        `json:"stream_sid"`
	FramesSent      int           `json:"frames_sent"`
	MediaReceived   int           `json:"media_received"`
	BytesReceived   int           `json:"bytes_received"`
	MarksReceived   int           `json:"marks_received"`
	FirstAgentAudio time.Duration `json:"first_agent_audio_ns"`
	CloseCode       int           `json:"close_code"`
	CloseText       string        `json:"close_text,omitempty"`
}

type startMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Start     struct {
		StreamSID        string               `json:"streamSid"`
		AccountSID       string               `json:"accountSid"`
		CallSID          string               `json:"callSid"`
		Tracks           []string             `json:"tracks"`
		MediaFormat      protocol.MediaFormat `json:"mediaFormat"`
		CustomParameters map[string]string    `json:"customParameters"`
	} `json:"start"`
}

type mediaMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Track     string `json:"track"`
		Chunk     string `json:"chunk"`
		Timestamp string `json:"timestamp"`
		Payload   string `json:"payload"`
	} `json:"media"`
}

type stopMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Stop      struct {
		AccountSID string `json:"accountSid"`
		CallSID    string `json:"callSid"`
	} `json:"stop"`
}

type markMessage struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "callsim: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := run(ctx, cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "callsim: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rep)
}

func parseFlags(args []string) (options, error) {
	var cfg options
	fs := flag.NewFlagSet("callsim", flag.ContinueOnError)
	fs.StringVar(&cfg.url, "url", "ws://127.0.0.1:8080/media-stream", "bridge media-stream WebSocket URL")
	fs.StringVar(&cfg.agentID, "agent-id", "", "agent_id custom parameter (optional)")
	fs.StringVar(&cfg.token, "token", "callsim", "token custom parameter")
	fs.StringVar(&cfg.accountSID, "account-sid", "ACcallsim", "accountSid reported in the start event")
	fs.StringVar(&cfg.input, "input", "", "16-bit PCM WAV to play at 8kHz or 16kHz (default: a tone)")
	fs.Float64Var(&cfg.toneHz, "tone-hz", 440, "tone frequency when no input is given")
	fs.DurationVar(&cfg.duration, "duration", 2*time.Second, "tone length when no input is given")
	fs.Float64Var(&cfg.realtime, "realtime", 1.0, "frame pacing multiplier (1.0=realtime, 2.0=2x)")
	fs.DurationVar(&cfg.listen, "listen", 5*time.Second, "how long to keep listening after the last frame")
	fs.StringVar(&cfg.record, "record", "", "write agent audio received back to this WAV path")
	fs.BoolVar(&cfg.verbose, "verbose", false, "print call progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.url = strings.TrimSpace(cfg.url)
	u, err := url.Parse(cfg.url)
	if err != nil {
		return options{}, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return options{}, fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.realtime <= 0 {
		return options{}, errors.New("realtime must be > 0")
	}
	if cfg.input == "" && (cfg.toneHz <= 0 || cfg.duration <= 0) {
		return options{}, errors.New("tone-hz and duration must be > 0 without an input file")
	}
	if cfg.listen < 0 {
		cfg.listen = 0
	}
	return cfg, nil
}

func run(ctx context.Context, cfg options, progress io.Writer) (report, error) {
	ulaw, err := loadCallerAudio(cfg)
	if err != nil {
		return report{}, fmt.Errorf("prepare caller audio: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.url, nil)
	if err != nil {
		return report{}, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	rep := report{StreamSID: "MZ" + strings.ReplaceAll(uuid.NewString(), "-", "")}
	callSID := "CA" + strings.ReplaceAll(uuid.NewString(), "-", "")

	var (
		writeMu  sync.Mutex
		received []byte
	)
	send := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	started := time.Now()
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					rep.CloseCode = ce.Code
					rep.CloseText = ce.Text
				}
				return
			}
			ev, err := protocol.ParseTwilioMessage(data)
			if err != nil {
				if cfg.verbose {
					fmt.Fprintf(progress, "callsim: ignoring message: %v\n", err)
				}
				continue
			}
			switch msg := ev.(type) {
			case protocol.Media:
				if rep.MediaReceived == 0 {
					rep.FirstAgentAudio = time.Since(started)
				}
				rep.MediaReceived++
				rep.BytesReceived += len(msg.Payload)
				if cfg.record != "" {
					received = append(received, msg.Payload...)
				}
			case protocol.Mark:
				rep.MarksReceived++
				// Twilio echoes marks once playback reaches them.
				_ = send(newMarkMessage(rep.StreamSID, msg.Name))
			}
		}
	}()

	// abort waits for the reader so rep is not shared when returned.
	abort := func(err error) (report, error) {
		_ = conn.Close()
		<-readDone
		return rep, err
	}

	if err := send(newStartMessage(cfg, rep.StreamSID, callSID)); err != nil {
		return abort(fmt.Errorf("send start: %w", err))
	}
	if cfg.verbose {
		fmt.Fprintf(progress, "callsim: stream=%s frames=%d realtime=%.2f\n", rep.StreamSID, len(bridge.Frames(ulaw, bridge.FrameBytes)), cfg.realtime)
	}

	frameDelay := time.Duration(float64(20*time.Millisecond) / cfg.realtime)
	ticker := time.NewTicker(frameDelay)
	defer ticker.Stop()
	for i, frame := range bridge.Frames(ulaw, bridge.FrameBytes) {
		select {
		case <-ctx.Done():
			return abort(ctx.Err())
		case <-readDone:
			return rep, closedEarly(rep)
		case <-ticker.C:
		}
		if err := send(newMediaMessage(rep.StreamSID, i, frame)); err != nil {
			return abort(fmt.Errorf("send media frame %d: %w", i+1, err))
		}
		rep.FramesSent++
	}

	if cfg.listen > 0 {
		select {
		case <-ctx.Done():
		case <-readDone:
		case <-time.After(cfg.listen):
		}
	}

	_ = send(newStopMessage(cfg.accountSID, rep.StreamSID, callSID))
	writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"), time.Now().Add(time.Second))
	writeMu.Unlock()
	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		_ = conn.Close()
		<-readDone
	}

	if cfg.record != "" {
		if err := audio.WriteWAVFile(cfg.record, audio.MuLawToPCM(received), audio.TelephonySampleRate); err != nil {
			return rep, fmt.Errorf("write recording: %w", err)
		}
	}
	return rep, nil
}

func closedEarly(rep report) error {
	if rep.CloseCode != 0 {
		return fmt.Errorf("bridge closed the call: %d %s", rep.CloseCode, rep.CloseText)
	}
	return errors.New("bridge closed the call")
}

// loadCallerAudio returns the μ-law stream to play into the bridge.
func loadCallerAudio(cfg options) ([]byte, error) {
	if cfg.input == "" {
		return audio.PCMToMuLaw(tone(cfg.toneHz, cfg.duration, audio.TelephonySampleRate)), nil
	}
	data, err := os.ReadFile(cfg.input)
	if err != nil {
		return nil, err
	}
	pcm, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	switch rate {
	case audio.TelephonySampleRate:
	case audio.AgentSampleRate:
		pcm = audio.Downsample16kTo8k(pcm)
	default:
		return nil, fmt.Errorf("unsupported sample rate %dHz (want 8000 or 16000)", rate)
	}
	if len(pcm) == 0 {
		return nil, errors.New("input has no samples")
	}
	return audio.PCMToMuLaw(pcm), nil
}

func tone(hz float64, d time.Duration, sampleRate int) []int16 {
	n := int(d.Seconds() * float64(sampleRate))
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate)))
	}
	return out
}

func newStartMessage(cfg options, streamSID, callSID string) startMessage {
	msg := startMessage{Event: string(protocol.TwilioStart), StreamSID: streamSID}
	msg.Start.StreamSID = streamSID
	msg.Start.AccountSID = cfg.accountSID
	msg.Start.CallSID = callSID
	msg.Start.Tracks = []string{"inbound"}
	msg.Start.MediaFormat = protocol.MediaFormat{Encoding: "audio/x-mulaw", SampleRate: audio.TelephonySampleRate, Channels: 1}
	msg.Start.CustomParameters = map[string]string{}
	if cfg.agentID != "" {
		msg.Start.CustomParameters["agent_id"] = cfg.agentID
	}
	if cfg.token != "" {
		msg.Start.CustomParameters["token"] = cfg.token
	}
	return msg
}

func newMediaMessage(streamSID string, index int, frame []byte) mediaMessage {
	msg := mediaMessage{Event: string(protocol.TwilioMedia), StreamSID: streamSID}
	msg.Media.Track = "inbound"
	msg.Media.Chunk = strconv.Itoa(index + 1)
	msg.Media.Timestamp = strconv.Itoa(index * 20)
	msg.Media.Payload = base64.StdEncoding.EncodeToString(frame)
	return msg
}

func newStopMessage(accountSID, streamSID, callSID string) stopMessage {
	msg := stopMessage{Event: string(protocol.TwilioStop), StreamSID: streamSID}
	msg.Stop.AccountSID = accountSID
	msg.Stop.CallSID = callSID
	return msg
}

func newMarkMessage(streamSID, name string) markMessage {
	msg := markMessage{Event: string(protocol.TwilioMark), StreamSID: streamSID}
	msg.Mark.Name = name
	return msg
}
