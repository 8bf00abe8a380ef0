package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/callbridge/internal/bridge"
	"github.com/ent0n29/callbridge/internal/config"
	"github.com/ent0n29/callbridge/internal/observability"
	"github.com/ent0n29/callbridge/internal/policy"
	"github.com/ent0n29/callbridge/internal/session"
)

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	dialer   bridge.Dialer
	metrics  *observability.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, dialer bridge.Dialer, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.TwilioMediaPath) == "" {
		cfg.TwilioMediaPath = "/media-stream"
	}
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		dialer:   dialer,
		metrics:  metrics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Twilio does not send Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	r.Get("/stats", s.handleStats)

	r.Get(s.cfg.TwilioMediaPath, s.handleMediaStream)
	r.Post("/twiml", s.handleTwiML)

	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":                "ready",
		"active_sessions":       s.sessions.ActiveCount(),
		"dialer_configured":     s.dialer != nil,
		"default_agent_present": strings.TrimSpace(s.cfg.ElevenLabsAgentID) != "",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.sessions.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	call, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, call)
}

// handleMediaStream accepts one Twilio Media Streams connection and bridges
// it until either leg goes away.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	leg := bridge.NewWSLeg(conn, s.cfg.LegWriteTimeout, s.cfg.LegIdleTimeout)

	sess := bridge.New(bridge.Config{
		Rules: policy.AdmissionRules{
			ExpectedAccountSID: s.cfg.TwilioAccountSID,
			DefaultAgentID:     s.cfg.ElevenLabsAgentID,
		},
		AcceptAgentID: strings.TrimSpace(r.URL.Query().Get("agent_id")),
		Endian:        s.cfg.ElevenLabsPCMEndian,
		EventBuffer:   s.cfg.SessionEventBuffer,
	}, leg, bridge.Deps{
		Dialer:        s.dialer,
		Metrics:       s.metrics,
		Logger:        s.logger,
		OnStateChange: s.sessions.Observe,
	})
	s.sessions.Observe(sess.Info())

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		sess.ReadPump(bridge.InboundLeg, leg)
		return nil
	})
	g.Go(func() error {
		return sess.Run(ctx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("media stream ended with error", "session_id", sess.ID(), "error", err)
	}

	info := sess.Info()
	s.logger.Info("media stream finished",
		"session_id", info.ID,
		"stream_sid", info.StreamSID,
		"agent_id", info.AgentID,
		"reason", info.CloseReason,
	)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
