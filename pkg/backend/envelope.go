package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the canonical shape of every backend response. The remote API
// answers either with a bare object or with an `[object, statusCode]` tuple;
// both collapse into this type before any caller sees them.
type Envelope struct {
	Status  int
	Success *bool
	Error   string
	Message string
	Body    json.RawMessage
}

// OK reports whether the payload did not explicitly signal failure.
func (e *Envelope) OK() bool {
	if e == nil {
		return false
	}
	if e.Success != nil {
		return *e.Success
	}
	return e.Status < 300
}

// Decode unmarshals the unwrapped payload into out.
func (e *Envelope) Decode(out any) error {
	if e == nil || len(e.Body) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(e.Body, out); err != nil {
		return fmt.Errorf("decode backend payload: %w", err)
	}
	return nil
}

// FailureMessage returns the backend's own error text, falling back to message.
func (e *Envelope) FailureMessage() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.Error); msg != "" {
		return msg
	}
	return strings.TrimSpace(e.Message)
}

// Normalize unwraps a raw response body. httpStatus is the transport status;
// a status carried inside a tuple takes precedence.
func Normalize(raw []byte, httpStatus int) (*Envelope, error) {
	env := &Envelope{Status: httpStatus}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return env, nil
	}

	if trimmed[0] == '[' {
		var tuple []json.RawMessage
		if err := json.Unmarshal(trimmed, &tuple); err != nil {
			return nil, fmt.Errorf("decode backend tuple: %w", err)
		}
		if len(tuple) == 0 {
			return env, nil
		}
		trimmed = bytes.TrimSpace(tuple[0])
		if len(tuple) > 1 {
			var status int
			if err := json.Unmarshal(tuple[1], &status); err == nil && status > 0 {
				env.Status = status
			}
		}
	}
	env.Body = json.RawMessage(trimmed)

	if len(trimmed) == 0 || trimmed[0] != '{' {
		return env, nil
	}

	var head struct {
		Success *bool           `json:"success"`
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, fmt.Errorf("decode backend payload: %w", err)
	}
	env.Success = head.Success
	env.Error = errorText(head.Error)
	env.Message = head.Message
	return env, nil
}

// errorText accepts `"error": "text"` as well as `"error": {"message": "text"}`.
func errorText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
