package backend

import "encoding/json"

// Parameters are the generation controls sent with a request. Extra holds any
// additional keys the model understands; they are merged into the same JSON
// object and never override the named fields.
type Parameters struct {
	MaxLength   int
	Temperature float64
	TopP        float64
	DoSample    bool
	Extra       map[string]any
}

// MarshalJSON flattens Extra into the parameters object.
func (p Parameters) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["max_length"] = p.MaxLength
	out["temperature"] = p.Temperature
	out["top_p"] = p.TopP
	out["do_sample"] = p.DoSample
	return json.Marshal(out)
}

// Request is the body posted to the inference endpoint.
type Request struct {
	Inputs     string     `json:"inputs"`
	Parameters Parameters `json:"parameters"`
}

// Shape identifies which of the known response layouts a body matched.
type Shape int

const (
	// ShapeUnrecognized is valid JSON in none of the layouts below.
	ShapeUnrecognized Shape = iota
	// ShapeGenerated is [{"generated_text": T}].
	ShapeGenerated
	// ShapeSequence is [X] where X is not an object with generated_text.
	ShapeSequence
	// ShapeError is {"error": E}.
	ShapeError
)

func (s Shape) String() string {
	switch s {
	case ShapeGenerated:
		return "generated"
	case ShapeSequence:
		return "sequence"
	case ShapeError:
		return "error"
	default:
		return "unrecognized"
	}
}

// Response is a decoded inference response. Value is the string form of the
// field selected by Shape: the generated text, the first sequence element,
// the error, or the whole body for ShapeUnrecognized.
type Response struct {
	StatusCode int
	Shape      Shape
	Value      string
	Raw        json.RawMessage
}
