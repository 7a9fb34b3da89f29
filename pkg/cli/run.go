package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/convocheck/convocheck/pkg/adkclient"
	"github.com/convocheck/convocheck/pkg/eval"
	"github.com/convocheck/convocheck/pkg/results"
)

// At most this many violation details are shown inline per failed scenario;
// the persisted report always holds the full list.
const maxInlineDetails = 6

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var scenarioPattern string
	var outputFormat string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run [eval-spec-file]",
		Short: "Run an evaluation",
		Long:  `Run an evaluation using the specified eval spec file (YAML or JSON).`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := eval.FromFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to load eval spec: %w", err)
			}

			transport := adkclient.NewClient(spec.Config.APIBase)
			runner, err := eval.NewRunner(spec, transport)
			if err != nil {
				return fmt.Errorf("failed to create eval runner: %w", err)
			}

			display := newProgressDisplay(verbose)

			summary, runErr := runner.RunWithProgress(cmd.Context(), scenarioPattern, display.handleProgress)
			if summary == nil {
				return runErr
			}

			fmt.Printf("\nWrote report to: %s\n", spec.Config.ReportPath)

			if err := displaySummary(summary, outputFormat); err != nil {
				return err
			}

			return runErr
		},
	}

	cmd.Flags().StringVar(&scenarioPattern, "scenario", "", "Only run scenarios whose name matches this regular expression")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	return cmd
}

// progressDisplay handles interactive progress display
type progressDisplay struct {
	verbose bool
	green   *color.Color
	red     *color.Color
	cyan    *color.Color
	bold    *color.Color
}

func newProgressDisplay(verbose bool) *progressDisplay {
	return &progressDisplay{
		verbose: verbose,
		green:   color.New(color.FgGreen),
		red:     color.New(color.FgRed),
		cyan:    color.New(color.FgCyan),
		bold:    color.New(color.Bold),
	}
}

func (d *progressDisplay) handleProgress(event eval.ProgressEvent) {
	switch event.Type {
	case eval.EventEvalStart:
		d.bold.Println("\n=== Starting Evaluation ===")

	case eval.EventScenarioStart:
		if d.verbose {
			d.cyan.Printf("\nScenario: %s\n", event.Scenario)
		}

	case eval.EventTurnRunning:
		if d.verbose {
			fmt.Printf("  → %s, user: %s\n", event.Message, event.User)
		}

	case eval.EventScenarioGrading:
		if d.verbose {
			fmt.Printf("  → Grading transcript...\n")
		}

	case eval.EventScenarioError:
		d.red.Printf("[ERR ] %s\n", event.Scenario)
		fmt.Printf("  transport error: %v\n", event.Err)

	case eval.EventScenarioComplete:
		result := event.Result
		if event.Passed {
			d.green.Printf("[PASS] %s score=%.2f\n", result.Name, result.Scores.Total)
			return
		}

		d.red.Printf("[FAIL] %s score=%.2f\n", result.Name, result.Scores.Total)
		for i, detail := range result.Details {
			if i >= maxInlineDetails {
				fmt.Printf("  ... and %d more (see report)\n", len(result.Details)-maxInlineDetails)
				break
			}
			fmt.Printf("  - %s\n", detail)
		}

	case eval.EventEvalComplete:
		d.bold.Println("\n=== Evaluation Complete ===")
	}
}

func displaySummary(summary *eval.RunSummary, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)

	case "text":
		line := fmt.Sprintf("Passed %d of %d scenarios (pass rate %.0f%%)\n", summary.Passed, summary.Total, summary.PassRate*100)
		if summary.Passed == summary.Total && summary.Total > 0 {
			color.New(color.FgGreen).Print(line)
		} else {
			fmt.Print(line)
		}
		for _, failure := range failureLines(summary) {
			fmt.Println(failure)
		}
		return nil

	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// failureLines renders one line per failed scenario with its first recorded
// violation.
func failureLines(summary *eval.RunSummary) []string {
	lines := make([]string, 0)
	for _, r := range summary.Results {
		if r.Scores.Total >= summary.Threshold {
			continue
		}
		if reason := results.FailureReason(r); reason != "" {
			lines = append(lines, fmt.Sprintf("  %s: %s", r.Name, reason))
		}
	}
	return lines
}
