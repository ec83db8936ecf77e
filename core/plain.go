package core

import (
	"bytes"
	"encoding/json"
	"math"
)

// Plain returns the artifact as it reads back from JSON: nested maps become
// map[string]any, slices become []any, integral numbers int and all other
// numbers float64. A value that cannot be encoded leaves a deep clone.
func (a Artifact) Plain() Artifact {
	if a == nil {
		return nil
	}
	v, err := PlainValue(map[string]any(a))
	if err != nil {
		return a.Clone()
	}
	m, ok := v.(map[string]any)
	if !ok {
		return a.Clone()
	}
	return Artifact(m)
}

// Plain returns a copy of the message whose artifact and tool call arguments
// hold JSON value types only.
func (m Message) Plain() Message {
	c := m.Clone()
	c.Artifact = m.Artifact.Plain()
	for i := range c.ToolCalls {
		if args := m.ToolCalls[i].Arguments; args != nil {
			c.ToolCalls[i].Arguments = map[string]any(Artifact(args).Plain())
		}
	}
	return c
}

// PlainValue round-trips v through JSON and resolves numbers with
// ResolveNumbers.
func PlainValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return ResolveNumbers(out), nil
}

// ResolveNumbers replaces every json.Number inside v with an int when the
// number is integral and fits, or a float64 otherwise. Maps and slices are
// rewritten in place.
func ResolveNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, vv := range t {
			t[k] = ResolveNumbers(vv)
		}
		return t
	case Artifact:
		for k, vv := range t {
			t[k] = ResolveNumbers(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = ResolveNumbers(vv)
		}
		return t
	default:
		return v
	}
}

// Plain returns a copy of the checkpoint with messages and artifact converted
// by Message.Plain and Artifact.Plain.
func (c Checkpoint) Plain() Checkpoint {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Plain()
	}
	out.Artifact = c.Artifact.Plain()
	return out
}
