package reliability

import (
	"errors"
	"io"
	"net"

	"github.com/gorilla/websocket"
)

// Close reasons reported for a leg that stopped delivering messages.
const (
	ReasonNormal    = "normal"
	ReasonGoingAway = "going_away"
	ReasonPolicy    = "policy_violation"
	ReasonAbnormal  = "abnormal"
	ReasonTimeout   = "timeout"
	ReasonError     = "error"
)

// ClassifyReadError maps the error returned by a websocket read into a close
// reason and whether the peer went away cleanly.
func ClassifyReadError(err error) (reason string, clean bool) {
	if err == nil {
		return ReasonNormal, true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseNoStatusReceived:
			return ReasonNormal, true
		case websocket.CloseGoingAway:
			return ReasonGoingAway, true
		case websocket.ClosePolicyViolation:
			return ReasonPolicy, false
		case websocket.CloseAbnormalClosure:
			return ReasonAbnormal, false
		default:
			return ReasonError, false
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ReasonAbnormal, false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout, false
	}
	return ReasonError, false
}
