package app

import (
	"log/slog"
	"strings"

	"github.com/ent0n29/callbridge/internal/bridge"
	"github.com/ent0n29/callbridge/internal/config"
	"github.com/ent0n29/callbridge/internal/httpapi"
	"github.com/ent0n29/callbridge/internal/observability"
	"github.com/ent0n29/callbridge/internal/session"
	"github.com/ent0n29/callbridge/internal/voice"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Dialer   bridge.Dialer
}

// Build wires config into the metrics sink, agent dialer, session registry
// and HTTP surface.
func Build(cfg config.Config, logger *slog.Logger) *BuildResult {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	dialer := buildDialer(cfg)
	if strings.TrimSpace(cfg.ElevenLabsWSFallbackURL) != "" {
		logger.Info("agent dialer: failover enabled", "primary", cfg.ElevenLabsWSBaseURL, "fallback", cfg.ElevenLabsWSFallbackURL)
	} else {
		logger.Info("agent dialer: single endpoint", "base_url", cfg.ElevenLabsWSBaseURL)
	}

	sessions := session.NewManager(cfg.SessionRetention)
	sessions.SetActiveHook(metrics.SetActiveSessions)

	api := httpapi.New(cfg, sessions, dialer, metrics, logger)

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Metrics:  metrics,
		Dialer:   dialer,
	}
}

func buildDialer(cfg config.Config) bridge.Dialer {
	primary := voice.NewConvAIDialer(voice.ElevenLabsConfig{
		APIKey:           cfg.ElevenLabsAPIKey,
		WSBaseURL:        cfg.ElevenLabsWSBaseURL,
		HandshakeTimeout: cfg.ElevenLabsDialTimeout,
		WriteTimeout:     cfg.LegWriteTimeout,
		IdleTimeout:      cfg.LegIdleTimeout,
	})
	if strings.TrimSpace(cfg.ElevenLabsWSFallbackURL) == "" {
		return primary
	}
	fallback := voice.NewConvAIDialer(voice.ElevenLabsConfig{
		APIKey:           cfg.ElevenLabsAPIKey,
		WSBaseURL:        cfg.ElevenLabsWSFallbackURL,
		HandshakeTimeout: cfg.ElevenLabsDialTimeout,
		WriteTimeout:     cfg.LegWriteTimeout,
		IdleTimeout:      cfg.LegIdleTimeout,
	})
	return voice.NewFailoverDialer(primary, fallback)
}
