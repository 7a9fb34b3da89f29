// Package results provides utilities for loading, filtering, and analyzing
// persisted evaluation reports.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/convocheck/convocheck/pkg/eval"
)

// Stats holds computed statistics from a persisted report.
type Stats struct {
	ReportFile      string  `json:"reportFile"`
	ScenariosTotal  int     `json:"scenariosTotal"`
	ScenariosPassed int     `json:"scenariosPassed"`
	PassRate        float64 `json:"passRate"`
	MeanTotalScore  float64 `json:"meanTotalScore"`
}

// Load reads a JSON report file and returns the parsed run summary.
func Load(path string) (*eval.RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	summary := &eval.RunSummary{}
	if err := json.Unmarshal(data, summary); err != nil {
		return nil, fmt.Errorf("failed to parse report JSON: %w", err)
	}

	return summary, nil
}

// Filter returns the subset of results whose scenario names contain the
// filter substring.
func Filter(results []*eval.GradeResult, filter string) []*eval.GradeResult {
	if filter == "" {
		return results
	}

	filter = strings.ToLower(filter)
	filtered := make([]*eval.GradeResult, 0, len(results))
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.Name), filter) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// CalculateStats computes statistics from a run summary.
func CalculateStats(reportFile string, summary *eval.RunSummary) Stats {
	stats := Stats{
		ReportFile:     reportFile,
		ScenariosTotal: len(summary.Results),
	}

	totalScore := 0.0
	for _, result := range summary.Results {
		if result.Scores.Total >= summary.Threshold {
			stats.ScenariosPassed++
		}
		totalScore += result.Scores.Total
	}

	if stats.ScenariosTotal > 0 {
		stats.PassRate = float64(stats.ScenariosPassed) / float64(stats.ScenariosTotal)
		stats.MeanTotalScore = totalScore / float64(stats.ScenariosTotal)
	}

	return stats
}

// FailureReason returns the first violation detail from a result, or "" when
// the result has none.
func FailureReason(r *eval.GradeResult) string {
	if len(r.Details) == 0 {
		return ""
	}
	return r.Details[0]
}
