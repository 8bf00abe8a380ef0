package config

import (
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/callbridge/internal/audio"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.ElevenLabsWSBaseURL != "wss://api.elevenlabs.io" {
		t.Fatalf("ElevenLabsWSBaseURL = %q", cfg.ElevenLabsWSBaseURL)
	}
	if cfg.ElevenLabsPCMEndian != audio.LittleEndian {
		t.Fatalf("ElevenLabsPCMEndian = %v, want le", cfg.ElevenLabsPCMEndian)
	}
	if cfg.ElevenLabsDialTimeout != 10*time.Second {
		t.Fatalf("ElevenLabsDialTimeout = %v, want 10s", cfg.ElevenLabsDialTimeout)
	}
	if cfg.TwilioMediaPath != "/media-stream" {
		t.Fatalf("TwilioMediaPath = %q", cfg.TwilioMediaPath)
	}
	if cfg.TwilioAccountSID != "" || cfg.ElevenLabsAgentID != "" {
		t.Fatalf("account/agent should default empty: %+v", cfg)
	}
	if cfg.MetricsNamespace != "callbridge" || cfg.LogFormat != "text" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("ELEVENLABS_PCM_ENDIAN", "BE")
	t.Setenv("ELEVENLABS_AGENT_ID", " agent-default ")
	t.Setenv("ELEVENLABS_DIAL_TIMEOUT", "3s")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("APP_LOG_FORMAT", "JSON")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.ElevenLabsPCMEndian != audio.BigEndian {
		t.Fatalf("ElevenLabsPCMEndian = %v, want be", cfg.ElevenLabsPCMEndian)
	}
	if cfg.ElevenLabsAgentID != "agent-default" {
		t.Fatalf("ElevenLabsAgentID = %q", cfg.ElevenLabsAgentID)
	}
	if cfg.ElevenLabsDialTimeout != 3*time.Second {
		t.Fatalf("ElevenLabsDialTimeout = %v", cfg.ElevenLabsDialTimeout)
	}
	if cfg.TwilioAccountSID != "AC123" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"ELEVENLABS_PCM_ENDIAN", "middle", "ELEVENLABS_PCM_ENDIAN"},
		{"APP_LOG_LEVEL", "loud", "APP_LOG_LEVEL"},
		{"APP_LOG_FORMAT", "xml", "APP_LOG_FORMAT"},
		{"ELEVENLABS_DIAL_TIMEOUT", "soon", "ELEVENLABS_DIAL_TIMEOUT"},
		{"ELEVENLABS_DIAL_TIMEOUT", "0s", "ELEVENLABS_DIAL_TIMEOUT"},
		{"TWILIO_MEDIA_PATH", "media", "TWILIO_MEDIA_PATH"},
		{"APP_ALLOW_ANY_ORIGIN", "maybe", "APP_ALLOW_ANY_ORIGIN"},
		{"APP_SESSION_EVENT_BUFFER", "0", "APP_SESSION_EVENT_BUFFER"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_LOG_LEVEL",
		"APP_LOG_FORMAT",
		"APP_PUBLIC_HOST",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_LEG_WRITE_TIMEOUT",
		"APP_LEG_IDLE_TIMEOUT",
		"APP_SESSION_RETENTION",
		"APP_SESSION_EVENT_BUFFER",
		"ELEVENLABS_AGENT_ID",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_WS_BASE_URL",
		"ELEVENLABS_WS_FALLBACK_URL",
		"ELEVENLABS_PCM_ENDIAN",
		"ELEVENLABS_DIAL_TIMEOUT",
		"TWILIO_ACCOUNT_SID",
		"TWILIO_MEDIA_PATH",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
