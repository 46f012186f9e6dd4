package handler

import (
	"errors"

	"askbot/backend"
)

// MaxMessageLength is the chat platform's per-message ceiling in characters.
const MaxMessageLength = 2000

const ellipsis = "..."

// RemoteError is an error reported by the inference endpoint in the response
// body.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return e.Message
}

var errNoResponse = errors.New("no response from model")

// Normalize turns a decoded response into the reply text. An error field
// wins over everything else; unrecognized layouts are rendered as text.
func Normalize(resp *backend.Response) (string, error) {
	if resp == nil {
		return "", errNoResponse
	}
	switch resp.Shape {
	case backend.ShapeError:
		return "", &RemoteError{StatusCode: resp.StatusCode, Message: resp.Value}
	case backend.ShapeGenerated, backend.ShapeSequence:
		return resp.Value, nil
	default:
		if resp.Value == "" && len(resp.Raw) > 0 {
			return backend.StringForm(resp.Raw), nil
		}
		return resp.Value, nil
	}
}

// Truncate caps text at MaxMessageLength characters, replacing the tail with
// an ellipsis when it is cut.
func Truncate(text string) string {
	r := []rune(text)
	if len(r) <= MaxMessageLength {
		return text
	}
	return string(r[:MaxMessageLength-len(ellipsis)]) + ellipsis
}
