package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/looplab/fsm"

	"github.com/ent0n29/callbridge/internal/audio"
	"github.com/ent0n29/callbridge/internal/observability"
	"github.com/ent0n29/callbridge/internal/policy"
	"github.com/ent0n29/callbridge/internal/protocol"
	"github.com/ent0n29/callbridge/internal/reliability"
)

// EventKind classifies what happened on a leg.
type EventKind int

const (
	EventMessage EventKind = iota
	EventOpened
	EventClosed
	EventErrored
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventOpened:
		return "opened"
	case EventClosed:
		return "closed"
	case EventErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Event is the single input type of the session loop.
type Event struct {
	Leg  Side
	Kind EventKind
	Data []byte
	Err  error
	// Conn is set on EventOpened.
	Conn Conn
}

// Metrics is the counter surface the session reports into.
type Metrics interface {
	InboundConnected()
	OutboundConnected()
	InboundAudio(n int)
	OutboundAudio()
	BytesToInbound(n int)
	SessionEvent(event string)
	Dropped(leg, reason string)
	ObserveLatency(stage string, d time.Duration)
}

// Info is a point-in-time description of a session.
type Info struct {
	ID          string
	StreamSID   string
	CallSID     string
	AccountSID  string
	AgentID     string
	State       State
	CreatedAt   time.Time
	ActivatedAt time.Time
	CloseReason string
}

type Config struct {
	Rules policy.AdmissionRules
	// AcceptAgentID is the agent_id query value seen at upgrade time.
	AcceptAgentID string
	// Endian is the byte order of PCM received from the agent.
	Endian audio.Endian
	// EventBuffer sizes the loop's inbox.
	EventBuffer int
}

type Deps struct {
	Dialer  Dialer
	Metrics Metrics
	Logger  *slog.Logger
	// OnStateChange is called from the session goroutine after every
	// lifecycle transition.
	OnStateChange func(Info)
	Now           func() time.Time
}

// Session bridges one telephony call to one agent conversation. All state is
// owned by the goroutine running Run; read pumps and the dialer talk to it
// through the event channel.
type Session struct {
	cfg       Config
	dialer    Dialer
	metrics   Metrics
	logger    *slog.Logger
	onState   func(Info)
	now       func() time.Time
	lifecycle *fsm.FSM

	events   chan Event
	done     chan struct{}
	doneOnce sync.Once

	id         string
	inbound    Leg
	outbound   Leg
	dialCancel context.CancelFunc

	infoMu sync.RWMutex
	info   Info

	firstAgentAudio bool
}

func New(cfg Config, inbound Leg, deps Deps) *Session {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		cfg:     cfg,
		dialer:  deps.Dialer,
		metrics: deps.Metrics,
		onState: deps.OnStateChange,
		now:     now,
		events:  make(chan Event, cfg.EventBuffer),
		done:    make(chan struct{}),
		inbound: inbound,
	}
	s.id = uuid.NewString()
	s.info = Info{ID: s.id, State: StatePending, CreatedAt: now()}
	s.logger = logger.With("session_id", s.id)
	s.lifecycle = newLifecycle(s.transitioned)
	if s.metrics != nil {
		s.metrics.InboundConnected()
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(s.lifecycle.Current())
}

// Info returns a copy of the session description. Safe from any goroutine.
func (s *Session) Info() Info {
	s.infoMu.RLock()
	defer s.infoMu.RUnlock()
	return s.info
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Deliver queues ev for the session loop. It reports false once the session
// has finished and will no longer read events.
func (s *Session) Deliver(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// ReadPump forwards text frames from conn into the session until the
// connection fails, then reports how it ended.
func (s *Session) ReadPump(side Side, conn Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			reason, clean := reliability.ClassifyReadError(err)
			kind := EventErrored
			if clean {
				kind = EventClosed
			}
			s.Deliver(Event{Leg: side, Kind: kind, Err: fmt.Errorf("%s: %w", reason, err)})
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if !s.Deliver(Event{Leg: side, Kind: EventMessage, Data: data}) {
			return
		}
	}
}

// Run processes events until the call is closed or ctx ends.
func (s *Session) Run(ctx context.Context) error {
	defer s.doneOnce.Do(func() { close(s.done) })
	for s.State() != StateClosed {
		select {
		case <-ctx.Done():
			s.shutdown("server_shutdown")
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
	return nil
}

func (s *Session) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventMessage:
		if ev.Leg == InboundLeg {
			s.handleInbound(ctx, ev.Data)
		} else {
			s.handleOutbound(ev.Data)
		}
	case EventOpened:
		s.handleOpened(ev.Conn)
	case EventClosed, EventErrored:
		s.handleLegDown(ev)
	}
}

func (s *Session) handleInbound(ctx context.Context, data []byte) {
	msg, err := protocol.ParseTwilioMessage(data)
	if err != nil {
		s.logger.Debug("dropping inbound message", "error", err)
		s.dropped(InboundLeg, "malformed")
		return
	}

	switch m := msg.(type) {
	case protocol.Start:
		s.handleStart(ctx, m)
	case protocol.Media:
		s.handleMedia(m)
	case protocol.Stop:
		s.logger.Info("stream stopped by telephony leg")
		s.shutdown("stop")
	case protocol.Mark:
		s.logger.Debug("mark played", "name", m.Name)
	default:
		s.logger.Debug("ignoring inbound event", "event", msg.Event())
	}
}

func (s *Session) handleStart(ctx context.Context, m protocol.Start) {
	if s.State() != StatePending {
		s.logger.Warn("ignoring repeated start", "state", s.State())
		s.dropped(InboundLeg, "duplicate_start")
		return
	}

	s.updateInfo(func(info *Info) {
		info.StreamSID = m.StreamSID
		info.CallSID = m.CallSID
		info.AccountSID = m.AccountSID
	})
	s.logger = s.logger.With("stream_sid", m.StreamSID, "call_sid", m.CallSID)
	s.fire(eventStart)
	s.logger.Info("stream started",
		"account_sid", m.AccountSID,
		"tracks", m.Tracks,
		"encoding", m.MediaFormat.Encoding,
		"params", policy.RedactParams(m.CustomParameters),
	)

	admission, err := policy.Admit(s.cfg.Rules, policy.CallRequest{
		AccountSID:    m.AccountSID,
		Params:        m.CustomParameters,
		AcceptAgentID: s.cfg.AcceptAgentID,
	})
	if err != nil {
		s.reject(err)
		return
	}

	s.updateInfo(func(info *Info) {
		info.AgentID = admission.AgentID
		info.ActivatedAt = s.now()
	})
	s.fire(eventAuthorize)
	s.dial(ctx, admission.AgentID)
}

func (s *Session) reject(cause error) {
	s.logger.Warn("call rejected", "error", cause)
	s.updateInfo(func(info *Info) { info.CloseReason = cause.Error() })
	s.fire(eventReject)
	s.closeInbound(websocket.ClosePolicyViolation, cause.Error())
	s.fire(eventFinish)
}

func (s *Session) dial(ctx context.Context, agentID string) {
	if s.dialer == nil {
		s.handleLegDown(Event{Leg: OutboundLeg, Kind: EventErrored, Err: errors.New("no agent dialer configured")})
		return
	}
	dialCtx, cancel := context.WithCancel(ctx)
	s.dialCancel = cancel
	started := s.now()
	logger := s.logger

	go func() {
		conn, err := s.dialer.Dial(dialCtx, agentID)
		if err != nil {
			s.Deliver(Event{Leg: OutboundLeg, Kind: EventErrored, Err: fmt.Errorf("dial agent %s: %w", agentID, err)})
			return
		}
		if s.metrics != nil {
			s.metrics.ObserveLatency(observability.StageDial, s.now().Sub(started))
		}
		if !s.Deliver(Event{Leg: OutboundLeg, Kind: EventOpened, Conn: conn}) {
			logger.Debug("session finished while dialing; dropping agent connection")
			_ = conn.Close(websocket.CloseNormalClosure, "")
		}
	}()
}

func (s *Session) handleOpened(conn Conn) {
	if conn == nil {
		return
	}
	if s.State() != StateActive || s.outbound != nil {
		_ = conn.Close(websocket.CloseNormalClosure, "")
		return
	}
	s.outbound = conn
	if s.metrics != nil {
		s.metrics.OutboundConnected()
	}
	s.event("outbound_open")
	s.logger.Info("agent leg open", "agent_id", s.Info().AgentID)
	go s.ReadPump(OutboundLeg, conn)
}

func (s *Session) handleMedia(m protocol.Media) {
	if s.metrics != nil {
		s.metrics.InboundAudio(len(m.Payload))
	}
	if s.State() != StateActive {
		s.dropped(InboundLeg, "not_active")
		return
	}
	if s.outbound == nil {
		s.logger.Debug("agent leg not open yet; dropping media", "bytes", len(m.Payload))
		s.dropped(InboundLeg, "outbound_not_open")
		return
	}

	pcm := audio.Upsample8kTo16k(audio.MuLawToPCM(m.Payload))
	if err := s.outbound.WriteJSON(protocol.NewUserAudioChunk(pcm)); err != nil {
		s.handleLegDown(Event{Leg: OutboundLeg, Kind: EventErrored, Err: fmt.Errorf("write user audio: %w", err)})
	}
}

func (s *Session) handleOutbound(data []byte) {
	if s.State() != StateActive {
		return
	}
	msg, err := protocol.ParseConvAIMessage(data, s.cfg.Endian)
	if err != nil {
		s.logger.Debug("dropping agent message", "error", err)
		s.dropped(OutboundLeg, "malformed")
		return
	}

	switch m := msg.(type) {
	case protocol.Audio:
		s.handleAgentAudio(m)
	case protocol.Ping:
		if s.outbound == nil {
			return
		}
		if err := s.outbound.WriteJSON(protocol.NewPong(m.EventID)); err != nil {
			s.handleLegDown(Event{Leg: OutboundLeg, Kind: EventErrored, Err: fmt.Errorf("write pong: %w", err)})
		}
	default:
		s.logger.Debug("ignoring agent message", "type", msg.MessageType())
	}
}

func (s *Session) handleAgentAudio(m protocol.Audio) {
	if s.metrics != nil {
		s.metrics.OutboundAudio()
	}
	info := s.Info()
	if !s.firstAgentAudio {
		s.firstAgentAudio = true
		if s.metrics != nil && !info.ActivatedAt.IsZero() {
			s.metrics.ObserveLatency(observability.StageFirstAgentAudio, s.now().Sub(info.ActivatedAt))
		}
	}
	if info.StreamSID == "" {
		s.dropped(OutboundLeg, "no_stream_sid")
		return
	}

	ulaw := audio.PCMToMuLaw(audio.Downsample16kTo8k(m.PCM))
	for _, msg := range PaceOutbound(info.StreamSID, ulaw, newMarkName()) {
		if err := s.inbound.WriteJSON(msg); err != nil {
			s.handleLegDown(Event{Leg: InboundLeg, Kind: EventErrored, Err: fmt.Errorf("write telephony audio: %w", err)})
			return
		}
		if media, ok := msg.(protocol.OutboundMedia); ok && s.metrics != nil {
			s.metrics.BytesToInbound(media.Size())
		}
	}
}

func (s *Session) handleLegDown(ev Event) {
	st := s.State()
	if st == StateClosing || st == StateClosed {
		return
	}

	logFn := s.logger.Info
	if ev.Kind == EventErrored {
		logFn = s.logger.Warn
	}
	logFn("leg closed", "leg", ev.Leg, "kind", ev.Kind, "error", ev.Err)
	s.event(string(ev.Leg) + "_" + ev.Kind.String())
	s.shutdown(string(ev.Leg) + "_" + ev.Kind.String())
}

// shutdown closes both legs with a normal closure. It is idempotent.
func (s *Session) shutdown(reason string) {
	if !s.lifecycle.Can(eventHangup) {
		return
	}
	s.updateInfo(func(info *Info) {
		if info.CloseReason == "" {
			info.CloseReason = reason
		}
	})
	s.fire(eventHangup)
	if s.dialCancel != nil {
		s.dialCancel()
	}
	s.closeInbound(websocket.CloseNormalClosure, "")
	s.closeOutbound(websocket.CloseNormalClosure, "")
	s.fire(eventFinish)
}

func (s *Session) closeInbound(code int, reason string) {
	if s.inbound == nil {
		return
	}
	if err := s.inbound.Close(code, reason); err != nil {
		s.logger.Debug("closing telephony leg", "error", err)
	}
}

func (s *Session) closeOutbound(code int, reason string) {
	if s.outbound == nil {
		return
	}
	if err := s.outbound.Close(code, reason); err != nil {
		s.logger.Debug("closing agent leg", "error", err)
	}
}

func (s *Session) fire(event string) {
	if err := s.lifecycle.Event(context.Background(), event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			s.logger.Error("lifecycle transition failed", "event", event, "state", s.State(), "error", err)
		}
	}
}

// transitioned runs inside the fsm callback; it must not call back into the fsm.
func (s *Session) transitioned(from, to State) {
	s.updateInfo(func(info *Info) { info.State = to })
	s.logger.Debug("session state", "from", from, "to", to)
	s.event(string(to))
	if s.onState != nil {
		s.onState(s.Info())
	}
}

func (s *Session) updateInfo(fn func(*Info)) {
	s.infoMu.Lock()
	fn(&s.info)
	s.infoMu.Unlock()
}

func (s *Session) event(name string) {
	if s.metrics != nil {
		s.metrics.SessionEvent(name)
	}
}

func (s *Session) dropped(leg Side, reason string) {
	if s.metrics != nil {
		s.metrics.Dropped(string(leg), reason)
	}
}
