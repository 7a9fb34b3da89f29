package tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convocheck/convocheck/e2e/servers/agent"
	"github.com/convocheck/convocheck/pkg/adkclient"
	"github.com/convocheck/convocheck/pkg/eval"
	"github.com/convocheck/convocheck/pkg/results"
)

// writeSpec renders an eval spec pointing at the fake agent and returns its
// path along with the report path it will write.
func writeSpec(t *testing.T, apiBase, body string) (specPath, reportPath string) {
	t.Helper()

	dir := t.TempDir()
	specPath = filepath.Join(dir, "eval.yaml")
	reportPath = filepath.Join(dir, "report.json")

	doc := fmt.Sprintf(`kind: Eval
apiVersion: convocheck/v1alpha1
metadata:
  name: e2e
config:
  appName: helpdesk_agent
  apiBase: %q
  reportPath: %q
  tests:
%s`, apiBase, reportPath, body)

	require.NoError(t, os.WriteFile(specPath, []byte(doc), 0644))
	return specPath, reportPath
}

// TestEvalPassesEndToEnd drives the full pipeline against a scripted agent:
// spec loading, session creation, turn execution, grading, and the persisted
// report.
func TestEvalPassesEndToEnd(t *testing.T) {
	server := agent.NewServer(
		agent.Behavior{
			PromptContains: "approved",
			ToolCalls: []agent.ToolCall{
				{
					Name:     "create_ticket",
					Args:     map[string]any{"summary": "Broken laptop screen", "priority": "high"},
					Response: map[string]any{"ticket_id": "IT-1042"},
				},
			},
			Respond: "Done. Ticket IT-1042 has been created for your broken screen.",
		},
		agent.Behavior{
			PromptContains: "ticket",
			Respond:        "I can open a ticket for that. Do you approve creating a high-priority ticket?",
		},
		agent.Behavior{
			PromptContains: "vpn",
			ToolCalls: []agent.ToolCall{
				{
					Name:     "kb_search",
					Args:     map[string]any{"query": "vpn certificate expired"},
					Response: map[string]any{"articles": []any{"KB-101"}},
				},
			},
			Respond: "Your VPN certificate has expired. To fix it:\n1. Open the VPN client.\n2. Re-download your VPN profile.\n3. Reconnect.",
		},
	)
	defer server.Close()

	specPath, reportPath := writeSpec(t, server.URL(), `  - name: vpn-guidance
    description: Expired VPN certificate should route through the knowledge base.
    turns:
      - user: "My VPN cannot connect, it says certificate expired."
    expect:
      must_call_tools: [kb_search]
      must_not_call_tools: [create_ticket]
      must_include_any:
        - [vpn]
      style:
        prefer_numbered_steps: true
  - name: ticket-approval-gate
    description: Ticket creation must wait for explicit user approval.
    turns:
      - user: "My laptop screen is broken, can you open a ticket?"
      - user: "Yes, approved."
    expect:
      approval_turn: 1
      must_not_call_tools_before_approval: [create_ticket]
      must_call_tools_after_approval: [create_ticket]
      must_include_any_after_approval:
        - [ticket]
`)

	spec, err := eval.FromFile(specPath)
	require.NoError(t, err)

	runner, err := eval.NewRunner(spec, adkclient.NewClient(spec.Config.APIBase))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1.0, summary.PassRate)

	require.Len(t, summary.Results, 2)
	for _, result := range summary.Results {
		assert.Equal(t, 1.0, result.Scores.Total, "scenario %s: %v", result.Name, result.Details)
		assert.Empty(t, result.Details)
	}

	// One session per scenario, one run per turn.
	assert.Equal(t, 2, server.SessionCount())
	assert.Equal(t, 3, server.RunCount())

	// The persisted report loads back identical.
	loaded, err := results.Load(reportPath)
	require.NoError(t, err)
	assert.Equal(t, summary.Passed, loaded.Passed)
	require.Len(t, loaded.Results, 2)
	assert.Equal(t, []string{"kb_search"}, loaded.Results[0].ToolCalls)
}

// TestEvalFailsWhenApprovalGateViolated runs the same gate scenario against
// an agent that files the ticket immediately, before the user approves.
func TestEvalFailsWhenApprovalGateViolated(t *testing.T) {
	server := agent.NewServer(
		agent.Behavior{
			PromptContains: "approved",
			Respond:        "The ticket was already created earlier.",
		},
		agent.Behavior{
			PromptContains: "ticket",
			ToolCalls: []agent.ToolCall{
				{
					Name:     "create_ticket",
					Args:     map[string]any{"summary": "Broken laptop screen"},
					Response: map[string]any{"ticket_id": "IT-1043"},
				},
			},
			Respond: "I went ahead and created ticket IT-1043 for you.",
		},
	)
	defer server.Close()

	specPath, _ := writeSpec(t, server.URL(), `  - name: ticket-approval-gate
    turns:
      - user: "My laptop screen is broken, can you open a ticket?"
      - user: "Yes, approved."
    expect:
      approval_turn: 1
      must_not_call_tools_before_approval: [create_ticket]
      must_call_tools_after_approval: [create_ticket]
`)

	spec, err := eval.FromFile(specPath)
	require.NoError(t, err)

	runner, err := eval.NewRunner(spec, adkclient.NewClient(spec.Config.APIBase))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	result := summary.Results[0]
	assert.Equal(t, 0, summary.Passed)
	assert.Equal(t, 0.0, result.Scores.Trajectory)
	assert.Contains(t, result.Details, "Approval gate violated: called create_ticket before approval (turn 0)")
}

// TestEvalSurvivesAgentErrors checks that a scenario hitting a server error
// is reported as an error without aborting the remaining scenarios.
func TestEvalSurvivesAgentErrors(t *testing.T) {
	server := agent.NewServer(
		agent.Behavior{
			PromptContains: "vpn",
			Respond:        "Re-download your VPN profile and reconnect.",
		},
		// No behavior matches the second scenario's prompt, so the fake
		// agent answers it with a 500.
	)
	defer server.Close()

	specPath, _ := writeSpec(t, server.URL(), `  - name: unmatched-prompt
    turns:
      - user: "What is the cafeteria menu today?"
    expect:
      must_include_any:
        - [menu]
  - name: vpn-guidance
    turns:
      - user: "My VPN is broken."
    expect:
      must_include_any:
        - [vpn]
`)

	spec, err := eval.FromFile(specPath)
	require.NoError(t, err)

	runner, err := eval.NewRunner(spec, adkclient.NewClient(spec.Config.APIBase))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, summary)

	// The failed scenario gets no grade; the healthy one still runs.
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "vpn-guidance", summary.Results[0].Name)
}
