package policy

import (
	"errors"
	"strings"

	"github.com/ent0n29/callbridge/internal/protocol"
)

var (
	ErrAccountMismatch = errors.New("account mismatch")
	ErrMissingAgent    = errors.New("missing agent id")
	ErrMissingToken    = errors.New("missing call token")
)

// Custom parameter names read from the start envelope.
var (
	AgentParamNames = []string{"agent_id", "agentId"}
	TokenParamNames = []string{"token"}
)

// AdmissionRules are the process-wide checks applied to every call.
type AdmissionRules struct {
	// ExpectedAccountSID, when set, must equal the start envelope's account.
	ExpectedAccountSID string
	DefaultAgentID     string
}

// CallRequest is what the telephony leg told us about a call.
type CallRequest struct {
	AccountSID string
	Params     protocol.Params
	// AcceptAgentID is the agent named on the websocket URL at upgrade time.
	AcceptAgentID string
}

type Admission struct {
	AgentID string
	Token   string
}

// Admit decides whether a call may be bridged. The token is only checked for
// presence; it is not verified, expired or replay-protected.
func Admit(rules AdmissionRules, req CallRequest) (Admission, error) {
	if expected := strings.TrimSpace(rules.ExpectedAccountSID); expected != "" && req.AccountSID != expected {
		return Admission{}, ErrAccountMismatch
	}

	agentID := strings.TrimSpace(req.Params.Lookup(AgentParamNames...))
	if agentID == "" {
		agentID = strings.TrimSpace(req.AcceptAgentID)
	}
	if agentID == "" {
		agentID = strings.TrimSpace(rules.DefaultAgentID)
	}
	if agentID == "" {
		return Admission{}, ErrMissingAgent
	}

	token := strings.TrimSpace(req.Params.Lookup(TokenParamNames...))
	if token == "" {
		return Admission{}, ErrMissingToken
	}

	return Admission{AgentID: agentID, Token: token}, nil
}
