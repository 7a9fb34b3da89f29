package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/convocheck/convocheck/pkg/eval"
	"github.com/convocheck/convocheck/pkg/results"
)

const (
	defaultMaxDetails    = 10
	defaultMaxTextLength = 300
)

// NewViewCmd creates the view command for rendering persisted reports.
func NewViewCmd() *cobra.Command {
	var (
		scenarioFilter string
		maxDetails     = defaultMaxDetails
		maxTextLength  = defaultMaxTextLength
	)

	cmd := &cobra.Command{
		Use:   "view <report-file>",
		Short: "Pretty-print an evaluation report from a JSON file",
		Long: `Render the report produced by "convocheck run" in a human-friendly format.

Examples:
  convocheck view eval/report.json
  convocheck view --scenario vpn eval/report.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := results.Load(args[0])
			if err != nil {
				return err
			}

			filtered := results.Filter(summary.Results, scenarioFilter)
			if len(filtered) == 0 {
				if scenarioFilter == "" {
					return errors.New("no scenarios found in report")
				}
				return fmt.Errorf("no scenarios matched filter %q", scenarioFilter)
			}

			printHeader(summary, args[0])
			for _, result := range filtered {
				fmt.Println()
				printGradeResult(result, summary.Threshold, maxDetails, maxTextLength)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&scenarioFilter, "scenario", "", "Only show results for scenarios whose name contains this value")
	cmd.Flags().IntVar(&maxDetails, "max-details", maxDetails, "Maximum number of violation details to display per scenario (0 = unlimited)")
	cmd.Flags().IntVar(&maxTextLength, "max-text-length", maxTextLength, "Maximum characters of the final response to display")

	return cmd
}

func printHeader(summary *eval.RunSummary, path string) {
	bold := color.New(color.Bold)

	bold.Printf("Report: %s\n", path)
	fmt.Printf("  App: %s (%s)\n", summary.AppName, summary.APIBase)
	fmt.Printf("  Threshold: %.2f\n", summary.Threshold)

	stats := results.CalculateStats(path, summary)
	fmt.Printf("  Scenarios: %d/%d passed (pass rate %.0f%%, mean score %.2f)\n",
		stats.ScenariosPassed, stats.ScenariosTotal, stats.PassRate*100, stats.MeanTotalScore)
}

func printGradeResult(result *eval.GradeResult, threshold float64, maxDetails, maxTextLength int) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	bold.Printf("Scenario: %s\n", result.Name)
	if result.Description != "" {
		fmt.Printf("  Description: %s\n", result.Description)
	}

	if result.Scores.Total >= threshold {
		green.Printf("  Status: PASSED (%.2f)\n", result.Scores.Total)
	} else {
		red.Printf("  Status: FAILED (%.2f)\n", result.Scores.Total)
	}

	fmt.Printf("  Scores: trajectory=%.2f content=%.2f safety=%.2f style=%.2f\n",
		result.Scores.Trajectory, result.Scores.Content, result.Scores.Safety, result.Scores.Style)

	if len(result.ToolCalls) > 0 {
		fmt.Printf("  Tool calls: %s\n", strings.Join(result.ToolCalls, ", "))
	}

	if len(result.Details) > 0 {
		fmt.Println("  Details:")
		for i, detail := range result.Details {
			if maxDetails > 0 && i >= maxDetails {
				fmt.Printf("    ... and %d more\n", len(result.Details)-maxDetails)
				break
			}
			fmt.Printf("    - %s\n", detail)
		}
	}

	if text := strings.TrimSpace(result.FinalText); text != "" {
		fmt.Printf("  Final response: %s\n", truncateString(text, maxTextLength))
	}
}

func truncateString(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
