package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/callbridge/internal/bridge"
)

const convaiPath = "/v1/convai/conversation"

type ElevenLabsConfig struct {
	APIKey    string
	WSBaseURL string
	// HandshakeTimeout bounds the websocket upgrade.
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
}

// ConvAIDialer opens Conversational AI sessions for the bridge.
type ConvAIDialer struct {
	cfg    ElevenLabsConfig
	dialer *websocket.Dialer
}

func NewConvAIDialer(cfg ElevenLabsConfig) *ConvAIDialer {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &ConvAIDialer{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// ConversationURL builds the agent websocket URL for agentID.
func (d *ConvAIDialer) ConversationURL(agentID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(d.cfg.WSBaseURL, "/") + convaiPath)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *ConvAIDialer) Dial(ctx context.Context, agentID string) (bridge.Conn, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, errors.New("agent_id is required")
	}
	target, err := d.ConversationURL(agentID)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if key := strings.TrimSpace(d.cfg.APIKey); key != "" {
		headers.Set("xi-api-key", key)
	}

	conn, resp, err := d.dialer.DialContext(ctx, target, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial convai websocket: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial convai websocket: %w", err)
	}
	return bridge.NewWSLeg(conn, d.cfg.WriteTimeout, d.cfg.IdleTimeout), nil
}
