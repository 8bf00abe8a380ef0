package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/callbridge/internal/audio"
	"github.com/ent0n29/callbridge/internal/observability"
)

// Config contains all runtime settings for the call bridge.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string
	LogFormat        string
	PublicHost       string

	AllowAnyOrigin   bool
	LegWriteTimeout  time.Duration
	LegIdleTimeout   time.Duration
	SessionRetention time.Duration

	// SessionEventBuffer sizes each call's event queue.
	SessionEventBuffer int

	ElevenLabsAgentID       string
	ElevenLabsAPIKey        string
	ElevenLabsWSBaseURL     string
	ElevenLabsWSFallbackURL string
	ElevenLabsPCMEndian     audio.Endian
	ElevenLabsDialTimeout   time.Duration

	TwilioAccountSID string
	TwilioMediaPath  string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:        envOrDefault("APP_METRICS_NAMESPACE", "callbridge"),
		LogLevel:                envOrDefault("APP_LOG_LEVEL", "info"),
		LogFormat:               strings.ToLower(envOrDefault("APP_LOG_FORMAT", "text")),
		PublicHost:              stringsTrimSpace("APP_PUBLIC_HOST"),
		AllowAnyOrigin:          false,
		ElevenLabsAgentID:       stringsTrimSpace("ELEVENLABS_AGENT_ID"),
		ElevenLabsAPIKey:        stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsWSBaseURL:     envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		ElevenLabsWSFallbackURL: stringsTrimSpace("ELEVENLABS_WS_FALLBACK_URL"),
		TwilioAccountSID:        stringsTrimSpace("TWILIO_ACCOUNT_SID"),
		TwilioMediaPath:         envOrDefault("TWILIO_MEDIA_PATH", "/media-stream"),
		ShutdownTimeout:         15 * time.Second,
		LegWriteTimeout:         5 * time.Second,
		LegIdleTimeout:          60 * time.Second,
		SessionRetention:        5 * time.Minute,
		SessionEventBuffer:      256,
		ElevenLabsDialTimeout:   10 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LegWriteTimeout, err = durationFromEnv("APP_LEG_WRITE_TIMEOUT", cfg.LegWriteTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LegIdleTimeout, err = durationFromEnv("APP_LEG_IDLE_TIMEOUT", cfg.LegIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionRetention, err = durationFromEnv("APP_SESSION_RETENTION", cfg.SessionRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionEventBuffer, err = intFromEnv("APP_SESSION_EVENT_BUFFER", cfg.SessionEventBuffer)
	if err != nil {
		return Config{}, err
	}
	cfg.ElevenLabsDialTimeout, err = durationFromEnv("ELEVENLABS_DIAL_TIMEOUT", cfg.ElevenLabsDialTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ElevenLabsPCMEndian, err = audio.ParseEndian(stringsTrimSpace("ELEVENLABS_PCM_ENDIAN"))
	if err != nil {
		return Config{}, fmt.Errorf("ELEVENLABS_PCM_ENDIAN parse error: %w", err)
	}
	if _, err := observability.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("APP_LOG_LEVEL parse error: %w", err)
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("APP_LOG_FORMAT must be text or json")
	}
	if !strings.HasPrefix(cfg.TwilioMediaPath, "/") {
		return Config{}, fmt.Errorf("TWILIO_MEDIA_PATH must start with /")
	}
	if cfg.ElevenLabsDialTimeout <= 0 {
		return Config{}, fmt.Errorf("ELEVENLABS_DIAL_TIMEOUT must be positive")
	}
	if cfg.SessionEventBuffer <= 0 {
		return Config{}, fmt.Errorf("APP_SESSION_EVENT_BUFFER must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.LegWriteTimeout < 0 || cfg.LegIdleTimeout < 0 {
		return Config{}, fmt.Errorf("APP_LEG_WRITE_TIMEOUT and APP_LEG_IDLE_TIMEOUT must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
