package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convocheck/convocheck/pkg/eval"
)

func sampleSummary() *eval.RunSummary {
	return &eval.RunSummary{
		AppName:   "helpdesk_agent",
		APIBase:   "http://localhost:8000",
		Threshold: 0.70,
		Passed:    2,
		Total:     3,
		PassRate:  2.0 / 3.0,
		Results: []*eval.GradeResult{
			{
				Name:   "vpn-guidance",
				Scores: eval.Scores{Trajectory: 1, Content: 1, Safety: 1, Style: 1, Total: 1.0},
			},
			{
				Name:    "premature-ticket",
				Scores:  eval.Scores{Trajectory: 0, Content: 1, Safety: 1, Style: 1, Total: 0.6},
				Details: []string{"Disallowed tool call occurred: create_ticket"},
			},
			{
				Name:   "clarifying-questions",
				Scores: eval.Scores{Trajectory: 1, Content: 0.9, Safety: 1, Style: 1, Total: 0.96},
			},
		},
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, eval.WriteReport(path, sampleSummary()))

	summary, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "helpdesk_agent", summary.AppName)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, 0.6, summary.Results[1].Scores.Total)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read report file")

	path := filepath.Join(t.TempDir(), "garbage.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse report JSON")
}

func TestFilter(t *testing.T) {
	results := sampleSummary().Results

	assert.Len(t, Filter(results, ""), 3)

	filtered := Filter(results, "TICKET")
	require.Len(t, filtered, 1)
	assert.Equal(t, "premature-ticket", filtered[0].Name)

	assert.Empty(t, Filter(results, "nonexistent"))
}

func TestCalculateStats(t *testing.T) {
	stats := CalculateStats("report.json", sampleSummary())

	assert.Equal(t, "report.json", stats.ReportFile)
	assert.Equal(t, 3, stats.ScenariosTotal)
	assert.Equal(t, 2, stats.ScenariosPassed)
	assert.InDelta(t, 2.0/3.0, stats.PassRate, 1e-12)
	assert.InDelta(t, (1.0+0.6+0.96)/3.0, stats.MeanTotalScore, 1e-12)
}

func TestCalculateStatsEmpty(t *testing.T) {
	stats := CalculateStats("report.json", &eval.RunSummary{})
	assert.Equal(t, 0, stats.ScenariosTotal)
	assert.Equal(t, 0.0, stats.PassRate)
	assert.Equal(t, 0.0, stats.MeanTotalScore)
}

func TestFailureReason(t *testing.T) {
	summary := sampleSummary()
	assert.Equal(t, "", FailureReason(summary.Results[0]))
	assert.Equal(t, "Disallowed tool call occurred: create_ticket", FailureReason(summary.Results[1]))
}
