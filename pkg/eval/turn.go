package eval

import (
	"context"

	"github.com/convocheck/convocheck/pkg/adkclient"
	"github.com/convocheck/convocheck/pkg/events"
)

// Transport is the agent server surface the runner depends on. It is
// implemented by adkclient.Client and substituted by fakes in tests.
type Transport interface {
	CreateSession(ctx context.Context, s adkclient.Session) error
	RunTurn(ctx context.Context, s adkclient.Session, text string) ([]events.Event, error)
}

// TurnResult is the record of one scripted turn: the user text sent, the
// signals extracted from the event log, and the raw events for diagnostics.
// It is immutable once constructed.
type TurnResult struct {
	User          string         `json:"user"`
	AssistantText string         `json:"assistant_text"`
	ToolCalls     []string       `json:"tool_calls"`
	ToolResponses []string       `json:"tool_responses"`
	RawEvents     []events.Event `json:"raw_events"`
}

// RunTurn drives one scripted conversational turn: it makes exactly one
// remote call, waits for the full event sequence, and extracts the turn's
// signals. A transport error propagates to the caller; there is no retry.
func RunTurn(ctx context.Context, transport Transport, session adkclient.Session, userText string) (*TurnResult, error) {
	evs, err := transport.RunTurn(ctx, session, userText)
	if err != nil {
		return nil, err
	}

	assistantText, toolCalls, toolResponses := events.Extract(evs)

	return &TurnResult{
		User:          userText,
		AssistantText: assistantText,
		ToolCalls:     toolCalls,
		ToolResponses: toolResponses,
		RawEvents:     evs,
	}, nil
}
