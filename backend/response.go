package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUndecodableBody is returned when the endpoint answers with something
// that is not JSON.
var ErrUndecodableBody = errors.New("response body is not valid JSON")

const snippetLimit = 200

// DecodeResponse classifies body into one of the known shapes. The remote
// side guarantees nothing, so every layout is checked before use.
func DecodeResponse(status int, body []byte) (*Response, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUndecodableBody, status, snippet(body))
	}
	resp := &Response{
		StatusCode: status,
		Shape:      ShapeUnrecognized,
		Raw:        json.RawMessage(body),
	}

	switch body[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err == nil {
			if e, ok := obj["error"]; ok {
				resp.Shape = ShapeError
				resp.Value = StringForm(e)
				return resp, nil
			}
		}
	case '[':
		var seq []json.RawMessage
		if err := json.Unmarshal(body, &seq); err == nil && len(seq) > 0 {
			first := seq[0]
			var obj map[string]json.RawMessage
			if bytes.HasPrefix(bytes.TrimSpace(first), []byte("{")) && json.Unmarshal(first, &obj) == nil {
				if text, ok := obj["generated_text"]; ok {
					resp.Shape = ShapeGenerated
					resp.Value = StringForm(text)
					return resp, nil
				}
			}
			resp.Shape = ShapeSequence
			resp.Value = StringForm(first)
			return resp, nil
		}
	}

	resp.Value = StringForm(body)
	return resp, nil
}

// StringForm renders a JSON value for display: strings unquoted, anything
// else as compact JSON.
func StringForm(raw json.RawMessage) string {
	var s *string
	if err := json.Unmarshal(raw, &s); err == nil && s != nil {
		return *s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func snippet(body []byte) string {
	r := []rune(string(body))
	if len(r) > snippetLimit {
		return string(r[:snippetLimit]) + "..."
	}
	return string(r)
}
