// Package events models the event log an agent session emits for a turn and
// extracts the signals the grader needs from it: the final assistant text and
// the ordered tool invocation/response names.
package events

import (
	"encoding/json"
)

// Event is one record from the ordered event sequence returned by the agent
// transport for a single turn. The producer guarantees nothing about its
// shape, so the typed fields are best-effort and the raw document is retained
// for the permissive fallback scan and for diagnostics.
type Event struct {
	Author  string   `json:"author,omitempty"`
	Content *Content `json:"content,omitempty"`

	raw json.RawMessage
}

// Content holds the ordered parts of an event, following the Gemini
// Content/Part wire shape.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Part is the union of the part kinds the extractor understands. A part that
// carries none of these fields is simply ignored.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// UnmarshalJSON decodes the typed view of the event and keeps the raw
// document. A shape mismatch is not an error: the typed fields stay zero and
// the fallback scan works off the raw document instead.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event

	var a alias
	if err := json.Unmarshal(data, &a); err == nil {
		*e = Event(a)
	} else {
		*e = Event{}
	}

	e.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON round-trips the original document so that persisted raw events
// match what the transport returned.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}

	type alias Event
	return json.Marshal(alias(e))
}

// snake_case aliases some producers emit for the function descriptors.
type partAliases struct {
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

func (p *Part) UnmarshalJSON(data []byte) error {
	type alias Part

	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		*p = Part{}
		return nil
	}
	*p = Part(a)

	if p.FunctionCall == nil || p.FunctionResponse == nil {
		var aux partAliases
		if err := json.Unmarshal(data, &aux); err == nil {
			if p.FunctionCall == nil {
				p.FunctionCall = aux.FunctionCall
			}
			if p.FunctionResponse == nil {
				p.FunctionResponse = aux.FunctionResponse
			}
		}
	}

	return nil
}
