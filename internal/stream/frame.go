package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Frame is one JSON object pulled off the wire. Upstream has shipped several
// payload shapes over time, so fields are decoded one at a time and a field of
// the wrong type counts as absent rather than failing the whole frame.
type Frame struct {
	ID string

	HasCode bool
	Code    json.Number

	// Msg and Content are only set when the wire value is a string.
	Msg     string
	HasMsg  bool
	Content string

	HasChoices   bool
	Delta        string
	FinishReason string
}

// CodeIsZero reports whether the status code is numerically zero.
func (f Frame) CodeIsZero() bool {
	if !f.HasCode {
		return true
	}
	v, err := strconv.ParseFloat(string(f.Code), 64)
	return err == nil && v == 0
}

type wireChoice struct {
	Delta        json.RawMessage `json:"delta"`
	FinishReason json.RawMessage `json:"finish_reason"`
}

// ParseFrame decodes a single JSON object. Anything else is an error.
func ParseFrame(data []byte) (Frame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	if fields == nil {
		return Frame{}, fmt.Errorf("decoding frame: not an object")
	}

	var f Frame
	if raw, ok := fields["id"]; ok {
		f.ID = frameID(raw)
	}
	if raw, ok := fields["code"]; ok && !isNull(raw) {
		f.HasCode = true
		f.Code = json.Number(scalarString(raw))
	}
	if raw, ok := fields["msg"]; ok {
		f.HasMsg = json.Unmarshal(raw, &f.Msg) == nil
	}
	if raw, ok := fields["content"]; ok {
		_ = json.Unmarshal(raw, &f.Content)
	}
	if raw, ok := fields["choices"]; ok {
		var choices []wireChoice
		if json.Unmarshal(raw, &choices) == nil && len(choices) > 0 {
			f.HasChoices = true
			c := choices[0]
			var delta struct {
				Content json.RawMessage `json:"content"`
			}
			if json.Unmarshal(c.Delta, &delta) == nil {
				_ = json.Unmarshal(delta.Content, &f.Delta)
			}
			_ = json.Unmarshal(c.FinishReason, &f.FinishReason)
		}
	}
	return f, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// scalarString renders a string or number value as text. Other kinds yield "".
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// frameID keeps only ids usable as a prompt id. Booleans, empty strings and
// zero are treated as absent.
func frameID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "0" {
			return ""
		}
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := n.Float64(); err == nil && v == 0 {
			return ""
		}
		return n.String()
	}
	return ""
}
