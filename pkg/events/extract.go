package events

import (
	"encoding/json"
	"strings"
)

// Extract pulls the grading signals out of an ordered event sequence.
//
// The assistant text is the most recent non-blank text part: events are
// scanned newest-first, parts within an event in their original order, and
// the first hit wins. Tool calls and tool responses are collected oldest-first
// with duplicates and encounter order preserved.
//
// If the structured pass leaves either list empty, every event's raw document
// is walked recursively and any function descriptor found at any depth is
// collected, so producers that nest descriptors in non-standard locations
// still register.
func Extract(evs []Event) (assistantText string, toolCalls, toolResponses []string) {
	toolCalls = make([]string, 0)
	toolResponses = make([]string, 0)

	for i := len(evs) - 1; i >= 0 && assistantText == ""; i-- {
		if evs[i].Content == nil {
			continue
		}
		for _, p := range evs[i].Content.Parts {
			if strings.TrimSpace(p.Text) != "" {
				assistantText = p.Text
				break
			}
		}
	}

	for _, ev := range evs {
		if ev.Content == nil {
			continue
		}
		for _, p := range ev.Content.Parts {
			if p.FunctionCall != nil && p.FunctionCall.Name != "" {
				toolCalls = append(toolCalls, p.FunctionCall.Name)
			}
			if p.FunctionResponse != nil && p.FunctionResponse.Name != "" {
				toolResponses = append(toolResponses, p.FunctionResponse.Name)
			}
		}
	}

	if len(toolCalls) == 0 || len(toolResponses) == 0 {
		for _, ev := range evs {
			toolCalls, toolResponses = scanRaw(ev.raw, toolCalls, toolResponses)
		}
	}

	return assistantText, toolCalls, toolResponses
}

// scanRaw walks a raw event document and appends every function descriptor it
// finds, regardless of nesting depth or surrounding field names.
func scanRaw(raw json.RawMessage, calls, responses []string) ([]string, []string) {
	if len(raw) == 0 {
		return calls, responses
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return calls, responses
	}

	walkValue(doc, func(m map[string]any) {
		if name := descriptorName(m, "functionCall", "function_call"); name != "" {
			calls = append(calls, name)
		}
		if name := descriptorName(m, "functionResponse", "function_response"); name != "" {
			responses = append(responses, name)
		}
	})

	return calls, responses
}

// walkValue visits every object in a decoded JSON tree, treating nested
// objects and arrays uniformly.
func walkValue(v any, visit func(map[string]any)) {
	switch t := v.(type) {
	case map[string]any:
		visit(t)
		for _, child := range t {
			walkValue(child, visit)
		}
	case []any:
		for _, child := range t {
			walkValue(child, visit)
		}
	}
}

func descriptorName(m map[string]any, keys ...string) string {
	for _, key := range keys {
		desc, ok := m[key].(map[string]any)
		if !ok {
			continue
		}
		if name, ok := desc["name"].(string); ok && name != "" {
			return name
		}
	}
	return ""
}
