package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// Unwrap normalizes the two response shapes the API uses. An object with a
// "success" field is an envelope: success=false becomes an *APIError and
// "data", when present, is the payload. Anything else (raw arrays, plain
// objects) is the payload itself.
func Unwrap(statusCode int, body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("decode response: invalid json")
		}
		return json.RawMessage(trimmed), nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Success == nil {
		return json.RawMessage(trimmed), nil
	}
	if !*env.Success {
		return nil, &APIError{StatusCode: statusCode, Message: env.message()}
	}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		return env.Data, nil
	}
	return json.RawMessage(trimmed), nil
}

func (e envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// errorMessage pulls a human readable message out of an error body, if the
// body carries one.
func errorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.message()
}
