package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEvents(t *testing.T, doc string) []Event {
	t.Helper()

	var evs []Event
	require.NoError(t, json.Unmarshal([]byte(doc), &evs))
	return evs
}

func TestExtract(t *testing.T) {
	tests := map[string]struct {
		doc           string
		wantText      string
		wantCalls     []string
		wantResponses []string
	}{
		"empty sequence": {
			doc:           `[]`,
			wantText:      "",
			wantCalls:     []string{},
			wantResponses: []string{},
		},
		"single text part": {
			doc:           `[{"content": {"parts": [{"text": "Please restart the client."}]}}]`,
			wantText:      "Please restart the client.",
			wantCalls:     []string{},
			wantResponses: []string{},
		},
		"latest non-empty text wins even when later events carry no text": {
			doc: `[
				{"content": {"parts": [{"text": "first answer"}]}},
				{"content": {"parts": [{"text": "the real answer"}]}},
				{"content": {"parts": [{"functionCall": {"name": "kb_search", "args": {"query": "vpn"}}}]}},
				{"content": {"parts": [{"functionResponse": {"name": "kb_search", "response": {"status": "success"}}}]}}
			]`,
			wantText:      "the real answer",
			wantCalls:     []string{"kb_search"},
			wantResponses: []string{"kb_search"},
		},
		"whitespace-only text is skipped": {
			doc: `[
				{"content": {"parts": [{"text": "useful"}]}},
				{"content": {"parts": [{"text": "   \n"}]}}
			]`,
			wantText:      "useful",
			wantCalls:     []string{},
			wantResponses: []string{},
		},
		"calls and responses keep encounter order and duplicates": {
			doc: `[
				{"content": {"parts": [
					{"functionCall": {"name": "kb_search"}},
					{"functionResponse": {"name": "kb_search"}}
				]}},
				{"content": {"parts": [
					{"functionCall": {"name": "kb_search"}},
					{"functionResponse": {"name": "kb_search"}},
					{"functionCall": {"name": "create_ticket"}},
					{"functionResponse": {"name": "create_ticket"}},
					{"text": "done"}
				]}}
			]`,
			wantText:      "done",
			wantCalls:     []string{"kb_search", "kb_search", "create_ticket"},
			wantResponses: []string{"kb_search", "kb_search", "create_ticket"},
		},
		"snake_case descriptors are understood": {
			doc: `[
				{"content": {"parts": [
					{"function_call": {"name": "get_ticket"}},
					{"function_response": {"name": "get_ticket"}}
				]}}
			]`,
			wantCalls:     []string{"get_ticket"},
			wantResponses: []string{"get_ticket"},
		},
		"fallback finds descriptors nested in non-standard locations": {
			doc: `[
				{"actions": {"delta": [{"functionCall": {"name": "update_ticket_status", "args": {}}}]}},
				{"content": {"parts": [{"text": "updated"}]}}
			]`,
			wantText:      "updated",
			wantCalls:     []string{"update_ticket_status"},
			wantResponses: []string{},
		},
		"malformed content shapes yield no signal": {
			doc: `[
				{"content": "not an object"},
				{"content": {"parts": "not a list"}},
				{"content": {"parts": [42, {"text": ""}]}}
			]`,
			wantText:      "",
			wantCalls:     []string{},
			wantResponses: []string{},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			text, calls, responses := Extract(decodeEvents(t, tc.doc))
			assert.Equal(t, tc.wantText, text)
			assert.Equal(t, tc.wantCalls, calls)
			assert.Equal(t, tc.wantResponses, responses)
		})
	}
}

func TestExtractFallbackAppendsToNonEmptyList(t *testing.T) {
	// When only one list is empty after the structured pass, the fallback
	// still collects both descriptor kinds, so the non-empty list picks up
	// the structured hits a second time. This mirrors the permissive scan's
	// historical behavior and is relied on nowhere for counting.
	doc := `[
		{"content": {"parts": [{"functionCall": {"name": "kb_search"}}]}}
	]`

	_, calls, responses := Extract(decodeEvents(t, doc))
	assert.Equal(t, []string{"kb_search", "kb_search"}, calls)
	assert.Equal(t, []string{}, responses)
}

func TestEventRoundTripsRawDocument(t *testing.T) {
	raw := `{"author":"helpdesk","custom":{"deep":[{"functionCall":{"name":"kb_search"}}]},"content":{"parts":[{"text":"hi"}]}}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	assert.Equal(t, "helpdesk", ev.Author)

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}
