// Package wire defines the JSON messages exchanged across the iframe
// boundary and a tolerant decoder for inbound payloads.
//
// Widget to host:
//
//	{"type":"REACT_APP_HEIGHT","height":1840,"isExpanded":true}
//
// Host to widget:
//
//	{"type":"TOGGLE_EXPAND"}
//	{"type":"IFRAME_READY"}
//
// Embedding script protocol (string-encoded JSON):
//
//	bridge -> iframe  {"type":"iframeExpanded","isExpanded":true}
//	iframe -> bridge  {"type":"requestHeight","iframeId":"w1"}
//	bridge -> iframe  {"type":"setHeight","isExpanded":true,"height":"1800px"}
package wire

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Message types.
const (
	TypeHeight         = "REACT_APP_HEIGHT"
	TypeToggleExpand   = "TOGGLE_EXPAND"
	TypeIframeReady    = "IFRAME_READY"
	TypeIframeExpanded = "iframeExpanded"
	TypeRequestHeight  = "requestHeight"
	TypeSetHeight      = "setHeight"
)

// HeightReport is the widget's height announcement to its parent.
type HeightReport struct {
	Type       string `json:"type"`
	Height     int    `json:"height"`
	IsExpanded bool   `json:"isExpanded"`
}

// NewHeightReport builds a REACT_APP_HEIGHT message.
func NewHeightReport(height int, expanded bool) HeightReport {
	return HeightReport{Type: TypeHeight, Height: height, IsExpanded: expanded}
}

// Command is a bare {"type": ...} message.
type Command struct {
	Type string `json:"type"`
}

// IframeExpanded notifies an iframe of the host container state.
type IframeExpanded struct {
	Type       string `json:"type"`
	IsExpanded bool   `json:"isExpanded"`
}

// RequestHeight asks the bridge for the container state of one instance.
type RequestHeight struct {
	Type     string `json:"type"`
	IframeID string `json:"iframeId"`
}

// SetHeight answers RequestHeight. Height is the configured CSS value.
type SetHeight struct {
	Type       string `json:"type"`
	IsExpanded bool   `json:"isExpanded"`
	Height     string `json:"height"`
}

// Inbound is a received message event: sender origin plus raw data.
// Data is either a JSON object or a JSON string holding one.
type Inbound struct {
	Origin string
	Data   []byte
}

// Envelope is the decoded form of any inbound message. Fields absent from
// the payload keep their zero value.
type Envelope struct {
	Type       string
	IsExpanded bool
	IframeID   string
	Height     string // numbers are rendered in decimal
}

// Decode parses data into an Envelope. ok is false for anything that is not
// a JSON object with a non-empty string "type", including string-encoded
// payloads that fail the same test. Decode never returns an error: malformed
// messages are expected on a shared message bus.
func Decode(data []byte) (Envelope, bool) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return Envelope{}, false
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	if len(data) == 0 || data[0] != '{' {
		return Envelope{}, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, false
	}
	var env Envelope
	if err := json.Unmarshal(raw["type"], &env.Type); err != nil || env.Type == "" {
		return Envelope{}, false
	}
	if v, ok := raw["isExpanded"]; ok {
		_ = json.Unmarshal(v, &env.IsExpanded)
	}
	if v, ok := raw["iframeId"]; ok {
		_ = json.Unmarshal(v, &env.IframeID)
	}
	if v, ok := raw["height"]; ok {
		env.Height = decodeHeight(v)
	}
	return env, true
}

func decodeHeight(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// Marshal encodes v as a JSON object.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalString encodes v as JSON text for the string-encoded embedding
// protocol.
func MarshalString(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
