package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/callbridge/internal/bridge"
	"github.com/ent0n29/callbridge/internal/config"
	"github.com/ent0n29/callbridge/internal/voice"
)

func testConfig() config.Config {
	return config.Config{
		MetricsNamespace:      "app_test",
		ElevenLabsWSBaseURL:   "wss://api.elevenlabs.io",
		ElevenLabsDialTimeout: time.Second,
		TwilioMediaPath:       "/media-stream",
		SessionRetention:      time.Minute,
	}
}

func TestBuildServesHealth(t *testing.T) {
	res := Build(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ts := httptest.NewServer(res.API.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /healthz status = %d", resp.StatusCode)
	}
}

func TestBuildSingleEndpointDialer(t *testing.T) {
	res := Build(testConfig(), nil)
	if _, ok := res.Dialer.(*voice.ConvAIDialer); !ok {
		t.Fatalf("Dialer = %T, want *voice.ConvAIDialer", res.Dialer)
	}
}

func TestBuildFailoverDialer(t *testing.T) {
	cfg := testConfig()
	cfg.ElevenLabsWSFallbackURL = "wss://fallback.example.com"
	res := Build(cfg, nil)
	if _, ok := res.Dialer.(*voice.ConvAIDialer); ok {
		t.Fatalf("Dialer = %T, want failover wrapper", res.Dialer)
	}
}

func TestBuildActiveGaugeFollowsRegistry(t *testing.T) {
	res := Build(testConfig(), nil)
	res.Sessions.Observe(bridge.Info{ID: "s1", State: bridge.StateActive})

	ts := httptest.NewServer(res.Metrics.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if want := "app_test_active_sessions 1"; !strings.Contains(string(body), want) {
		t.Fatalf("metrics missing %q:\n%s", want, body)
	}
}
