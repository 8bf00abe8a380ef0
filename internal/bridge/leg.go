package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Side names one of the two legs of a bridged call.
type Side string

const (
	InboundLeg  Side = "twilio"
	OutboundLeg Side = "elevenlabs"
)

// Leg is the write half of a call leg.
type Leg interface {
	WriteJSON(v any) error
	// Close sends a close frame with code and reason, then releases the
	// connection. Calls after the first are no-ops.
	Close(code int, reason string) error
}

// Conn is a leg the bridge can also read from.
type Conn interface {
	Leg
	ReadMessage() (messageType int, data []byte, err error)
}

// Dialer opens the agent leg for a call.
type Dialer interface {
	Dial(ctx context.Context, agentID string) (Conn, error)
}

// maxCloseReason is the close-frame payload limit minus the status code.
const maxCloseReason = 123

// WSLeg adapts a gorilla connection to Conn. Writes are serialised and every
// read refreshes the idle deadline.
type WSLeg struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	idleTimeout  time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewWSLeg(conn *websocket.Conn, writeTimeout, idleTimeout time.Duration) *WSLeg {
	conn.SetReadLimit(1 << 20)
	return &WSLeg{conn: conn, writeTimeout: writeTimeout, idleTimeout: idleTimeout}
}

func (l *WSLeg) ReadMessage() (int, []byte, error) {
	if l.idleTimeout > 0 {
		_ = l.conn.SetReadDeadline(time.Now().Add(l.idleTimeout))
	}
	return l.conn.ReadMessage()
}

func (l *WSLeg) WriteJSON(v any) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.writeTimeout > 0 {
		_ = l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	}
	return l.conn.WriteJSON(v)
}

func (l *WSLeg) Close(code int, reason string) error {
	var retErr error
	l.closeOnce.Do(func() {
		if len(reason) > maxCloseReason {
			reason = reason[:maxCloseReason]
		}
		// The peer may already be gone; the close frame is best effort.
		_ = l.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		retErr = l.conn.Close()
	})
	return retErr
}
