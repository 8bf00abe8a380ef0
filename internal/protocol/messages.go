package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnsupportedEvent = errors.New("unsupported event")
	ErrEmptyAudio       = errors.New("empty audio payload")
)

// Param is one custom parameter attached to a call.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Params keeps custom parameters in wire order. Twilio delivers them as a
// JSON object, some relays forward them as a list of {name, value} pairs;
// both decode into the same structure.
type Params []Param

// Get returns the first value stored under name.
func (p Params) Get(name string) (string, bool) {
	for _, kv := range p {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return "", false
}

// Lookup returns the first non-empty value among names.
func (p Params) Lookup(names ...string) string {
	for _, name := range names {
		if v, ok := p.Get(name); ok && v != "" {
			return v
		}
	}
	return ""
}

// Map flattens the parameters; later duplicates do not override earlier ones.
func (p Params) Map() map[string]string {
	out := make(map[string]string, len(p))
	for _, kv := range p {
		if _, exists := out[kv.Name]; !exists {
			out[kv.Name] = kv.Value
		}
	}
	return out
}

func (p *Params) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var pairs []struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &pairs); err != nil {
			return fmt.Errorf("custom parameters: %w", err)
		}
		out := make(Params, 0, len(pairs))
		for _, kv := range pairs {
			if kv.Name == "" {
				continue
			}
			out = append(out, Param{Name: kv.Name, Value: scalarString(kv.Value)})
		}
		*p = out
		return nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("custom parameters: %w", err)
		}
		var out Params
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("custom parameters: %w", err)
			}
			name, _ := tok.(string)
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("custom parameters: %w", err)
			}
			out = append(out, Param{Name: name, Value: scalarString(raw)})
		}
		*p = out
		return nil
	default:
		return fmt.Errorf("custom parameters: unexpected JSON %q", string(trimmed[:1]))
	}
}

// scalarString renders a JSON scalar as the string a caller would have typed.
// Nested objects and arrays are kept as their raw JSON text.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
