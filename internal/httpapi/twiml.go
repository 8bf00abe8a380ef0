package httpapi

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"github.com/ent0n29/callbridge/internal/policy"
)

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// handleTwiML answers Twilio's voice webhook with a <Connect><Stream> that
// points the call at the media-stream endpoint. agent_id and token from the
// webhook are handed through as stream parameters.
func (s *Server) handleTwiML(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	stream := twimlStream{URL: s.streamURL(r)}
	agentID := firstFormValue(r.Form, policy.AgentParamNames...)
	if agentID == "" {
		agentID = strings.TrimSpace(s.cfg.ElevenLabsAgentID)
	}
	if agentID != "" {
		stream.Parameters = append(stream.Parameters, twimlParameter{Name: "agent_id", Value: agentID})
	}
	if token := firstFormValue(r.Form, policy.TokenParamNames...); token != "" {
		stream.Parameters = append(stream.Parameters, twimlParameter{Name: "token", Value: token})
	}
	if from := strings.TrimSpace(r.Form.Get("From")); from != "" {
		stream.Parameters = append(stream.Parameters, twimlParameter{Name: "caller", Value: from})
	}

	body, err := xml.Marshal(twimlResponse{Connect: twimlConnect{Stream: stream}})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "twiml_encode_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}

func (s *Server) streamURL(r *http.Request) string {
	host := strings.TrimSpace(s.cfg.PublicHost)
	if host == "" {
		host = r.Host
	}
	u := url.URL{Scheme: "wss", Host: host, Path: s.cfg.TwilioMediaPath}
	return u.String()
}

func firstFormValue(form url.Values, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(form.Get(name)); v != "" {
			return v
		}
	}
	return ""
}
