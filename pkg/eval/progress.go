package eval

// ProgressEventType identifies what stage of the run a progress event
// reports.
type ProgressEventType string

const (
	EventEvalStart        ProgressEventType = "evalStart"
	EventScenarioStart    ProgressEventType = "scenarioStart"
	EventTurnRunning      ProgressEventType = "turnRunning"
	EventScenarioGrading  ProgressEventType = "scenarioGrading"
	EventScenarioError    ProgressEventType = "scenarioError"
	EventScenarioComplete ProgressEventType = "scenarioComplete"
	EventEvalComplete     ProgressEventType = "evalComplete"
)

// ProgressEvent is delivered to the caller's callback as the run advances.
// The CLI uses it to render live per-scenario status.
type ProgressEvent struct {
	Type     ProgressEventType
	Message  string
	Scenario string
	Turn     int
	Err      error

	// Set on EventTurnRunning: the user text being sent.
	User string

	// Set on EventScenarioComplete.
	Result *GradeResult
	Passed bool
}

// ProgressCallback receives progress events. Callbacks run on the runner's
// goroutine and should return quickly.
type ProgressCallback func(ProgressEvent)

// NoopProgressCallback ignores all progress events.
func NoopProgressCallback(ProgressEvent) {}
