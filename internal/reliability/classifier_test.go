package reliability

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/gorilla/websocket"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyReadError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantReason string
		wantClean  bool
	}{
		{"nil", nil, ReasonNormal, true},
		{"normal", &websocket.CloseError{Code: websocket.CloseNormalClosure}, ReasonNormal, true},
		{"no_status", &websocket.CloseError{Code: websocket.CloseNoStatusReceived}, ReasonNormal, true},
		{"going_away", &websocket.CloseError{Code: websocket.CloseGoingAway}, ReasonGoingAway, true},
		{"policy", &websocket.CloseError{Code: websocket.ClosePolicyViolation}, ReasonPolicy, false},
		{"abnormal", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, ReasonAbnormal, false},
		{"internal", &websocket.CloseError{Code: websocket.CloseInternalServerErr}, ReasonError, false},
		{"wrapped_close", fmt.Errorf("read: %w", &websocket.CloseError{Code: websocket.CloseNormalClosure}), ReasonNormal, true},
		{"eof", io.EOF, ReasonAbnormal, false},
		{"timeout", timeoutErr{}, ReasonTimeout, false},
		{"other", errors.New("boom"), ReasonError, false},
	}
	for _, tc := range cases {
		reason, clean := ClassifyReadError(tc.err)
		if reason != tc.wantReason || clean != tc.wantClean {
			t.Fatalf("%s: ClassifyReadError() = (%q, %v), want (%q, %v)", tc.name, reason, clean, tc.wantReason, tc.wantClean)
		}
	}
}
