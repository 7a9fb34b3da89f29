// Package eval loads declarative evaluation specs, replays their scripted
// scenarios against a running agent session, and grades the transcripts.
package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/convocheck/convocheck/pkg/adkclient"
)

// RunSummary is the terminal artifact of a run: every grade plus the
// aggregate pass counts. It is persisted once at the end of the run.
type RunSummary struct {
	AppName   string         `json:"appName"`
	APIBase   string         `json:"apiBase"`
	Threshold float64        `json:"threshold"`
	Passed    int            `json:"passed"`
	Total     int            `json:"total"`
	PassRate  float64        `json:"pass_rate"`
	Results   []*GradeResult `json:"results"`
}

type Runner interface {
	Run(ctx context.Context) (*RunSummary, error)
	RunWithProgress(ctx context.Context, scenarioPattern string, callback ProgressCallback) (*RunSummary, error)
}

type evalRunner struct {
	spec             *EvalSpec
	transport        Transport
	progressCallback ProgressCallback
}

var _ Runner = &evalRunner{}

// NewRunner creates a new Runner from an EvalSpec and a transport to the
// agent server.
func NewRunner(spec *EvalSpec, transport Transport) (Runner, error) {
	if spec == nil {
		return nil, fmt.Errorf("eval spec cannot be nil")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}

	return &evalRunner{
		spec:             spec,
		transport:        transport,
		progressCallback: NoopProgressCallback,
	}, nil
}

func (r *evalRunner) Run(ctx context.Context) (*RunSummary, error) {
	return r.RunWithProgress(ctx, "", NoopProgressCallback)
}

// RunWithProgress replays every scenario whose name matches scenarioPattern,
// strictly one scenario at a time and one turn at a time. Turns within a
// scenario are conversationally ordered, so they must complete in sequence; a
// transport failure aborts that scenario's grading but never the run. The
// summary is persisted to the spec's report path before returning.
func (r *evalRunner) RunWithProgress(ctx context.Context, scenarioPattern string, callback ProgressCallback) (*RunSummary, error) {
	r.progressCallback = callback

	if scenarioPattern == "" {
		scenarioPattern = "." // match everything
	}

	scenarioMatcher, err := regexp.Compile(scenarioPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile regexp for scenario name match: %w", err)
	}

	r.progressCallback(ProgressEvent{
		Type:    EventEvalStart,
		Message: "Starting evaluation",
	})

	weights := r.spec.Config.Weights.Resolve()
	threshold := r.spec.Config.GetThreshold()

	summary := &RunSummary{
		AppName:   r.spec.Config.AppName,
		APIBase:   r.spec.Config.APIBase,
		Threshold: threshold,
		Results:   make([]*GradeResult, 0, len(r.spec.Config.Tests)),
	}

	var runErr error
	for i := range r.spec.Config.Tests {
		scenario := &r.spec.Config.Tests[i]
		if !scenarioMatcher.MatchString(scenario.Name) {
			continue
		}

		result, err := r.runScenario(ctx, scenario, weights)
		if err != nil {
			// The scenario receives no grade; surface the error and move on.
			runErr = errors.Join(runErr, fmt.Errorf("scenario '%s': %w", scenario.Name, err))
			r.progressCallback(ProgressEvent{
				Type:     EventScenarioError,
				Message:  fmt.Sprintf("Scenario failed to run: %s", scenario.Name),
				Scenario: scenario.Name,
				Err:      err,
			})
			continue
		}

		passed := result.Scores.Total >= threshold
		if passed {
			summary.Passed++
		}
		summary.Results = append(summary.Results, result)

		r.progressCallback(ProgressEvent{
			Type:     EventScenarioComplete,
			Message:  fmt.Sprintf("Completed scenario: %s (passed: %v)", scenario.Name, passed),
			Scenario: scenario.Name,
			Result:   result,
			Passed:   passed,
		})
	}

	summary.Total = len(summary.Results)
	summary.PassRate = float64(summary.Passed) / float64(max(1, summary.Total))

	if err := WriteReport(r.spec.Config.ReportPath, summary); err != nil {
		return nil, errors.Join(runErr, err)
	}

	r.progressCallback(ProgressEvent{
		Type:    EventEvalComplete,
		Message: "Evaluation complete",
	})

	return summary, runErr
}

// runScenario drives all of one scenario's turns on a fresh session and
// grades the transcript. Sessions are never reused across scenarios.
func (r *evalRunner) runScenario(ctx context.Context, scenario *Scenario, weights Weights) (*GradeResult, error) {
	session := adkclient.NewSession(r.spec.Config.AppName, r.spec.Config.UserID)

	r.progressCallback(ProgressEvent{
		Type:     EventScenarioStart,
		Message:  fmt.Sprintf("Starting scenario: %s", scenario.Name),
		Scenario: scenario.Name,
	})

	if err := r.transport.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	turns := make([]*TurnResult, 0, len(scenario.Turns))
	for i, turn := range scenario.Turns {
		r.progressCallback(ProgressEvent{
			Type:     EventTurnRunning,
			Message:  fmt.Sprintf("Running turn %d of %d", i+1, len(scenario.Turns)),
			Scenario: scenario.Name,
			Turn:     i,
			User:     turn.User,
		})

		tr, err := RunTurn(ctx, r.transport, session, turn.User)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		turns = append(turns, tr)
	}

	r.progressCallback(ProgressEvent{
		Type:     EventScenarioGrading,
		Message:  fmt.Sprintf("Grading scenario: %s", scenario.Name),
		Scenario: scenario.Name,
	})

	return Grade(scenario, turns, weights), nil
}

// WriteReport persists a run summary as indented JSON, creating parent
// directories and overwriting any prior report at the same path.
func WriteReport(path string, summary *RunSummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	return nil
}
