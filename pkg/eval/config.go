package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/convocheck/convocheck/pkg/util"
)

const (
	KindEval = "Eval"

	DefaultAPIBase    = "http://localhost:8000"
	DefaultUserID     = "u_eval"
	DefaultReportPath = "eval/report.json"
	DefaultThreshold  = 0.70
)

// EvalSpec is the declarative description of one evaluation run: where the
// agent lives, how to weigh the score buckets, and the scenarios to replay.
type EvalSpec struct {
	util.TypeMeta `json:",inline"`
	Metadata      EvalMetadata `json:"metadata"`
	Config        EvalConfig   `json:"config"`
}

type EvalMetadata struct {
	Name string `json:"name"`
}

type EvalConfig struct {
	AppName    string         `json:"appName"`
	APIBase    string         `json:"apiBase,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	Threshold  *float64       `json:"threshold,omitempty"`
	Weights    *WeightsConfig `json:"weights,omitempty"`
	ReportPath string         `json:"reportPath,omitempty"`
	Tests      []Scenario     `json:"tests"`
}

// Scenario is the unit of evaluation: a named, ordered sequence of user turns
// plus the expectation to grade the transcript against.
type Scenario struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Turns       []Turn      `json:"turns"`
	Expect      Expectation `json:"expect"`
}

type Turn struct {
	User string `json:"user"`
}

// WeightsConfig carries per-key weight overrides from the spec file. Absent
// keys fall back to their defaults individually.
type WeightsConfig struct {
	Trajectory *float64 `json:"trajectory,omitempty"`
	Content    *float64 `json:"content,omitempty"`
	Safety     *float64 `json:"safety,omitempty"`
	Style      *float64 `json:"style,omitempty"`
}

// Weights are the four bucket coefficients of the total score. They are
// expected to sum to 1.0 but this is deliberately not enforced; weights that
// sum lower simply lower the achievable ceiling.
type Weights struct {
	Trajectory float64 `json:"trajectory"`
	Content    float64 `json:"content"`
	Safety     float64 `json:"safety"`
	Style      float64 `json:"style"`
}

func DefaultWeights() Weights {
	return Weights{
		Trajectory: 0.4,
		Content:    0.4,
		Safety:     0.1,
		Style:      0.1,
	}
}

// Resolve applies per-key defaults to the configured overrides.
func (c *WeightsConfig) Resolve() Weights {
	w := DefaultWeights()
	if c == nil {
		return w
	}

	if c.Trajectory != nil {
		w.Trajectory = *c.Trajectory
	}
	if c.Content != nil {
		w.Content = *c.Content
	}
	if c.Safety != nil {
		w.Safety = *c.Safety
	}
	if c.Style != nil {
		w.Style = *c.Style
	}

	return w
}

func (e *EvalSpec) UnmarshalJSON(data []byte) error {
	type Doppleganger EvalSpec

	tmp := (*Doppleganger)(e)
	return util.UnmarshalWithKind(data, tmp, KindEval)
}

// Read parses an eval spec document (YAML or JSON), applies defaults,
// resolves the report path against basePath, and compiles every scenario's
// safety patterns so that a bad pattern surfaces now rather than mid-run.
func Read(data []byte, basePath string) (*EvalSpec, error) {
	spec := &EvalSpec{}

	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, err
	}

	if err := spec.TypeMeta.Validate(KindEval); err != nil {
		return nil, err
	}

	if spec.Config.AppName == "" {
		return nil, fmt.Errorf("appName must be specified in eval config")
	}

	if spec.Config.APIBase == "" {
		spec.Config.APIBase = DefaultAPIBase
	}
	spec.Config.APIBase = strings.TrimRight(spec.Config.APIBase, "/")

	if spec.Config.UserID == "" {
		spec.Config.UserID = DefaultUserID
	}

	if spec.Config.ReportPath == "" {
		spec.Config.ReportPath = DefaultReportPath
	}
	if err := resolveFilePath(&spec.Config.ReportPath, basePath); err != nil {
		return nil, fmt.Errorf("failed to resolve report path: %w", err)
	}

	for i := range spec.Config.Tests {
		if err := spec.Config.Tests[i].Expect.Compile(); err != nil {
			return nil, fmt.Errorf("scenario '%s': %w", spec.Config.Tests[i].Name, err)
		}
	}

	return spec, nil
}

// Threshold returns the pass threshold for the run.
func (c *EvalConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

func resolveFilePath(filePath *string, basePath string) error {
	if filePath == nil || *filePath == "" {
		return nil
	}

	if filepath.IsAbs(*filePath) {
		return nil
	}

	*filePath = filepath.Join(basePath, *filePath)

	return nil
}

func FromFile(path string) (*EvalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s' for evalspec: %w", path, err)
	}

	// Convert to absolute path to ensure basePath is absolute
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", path, err)
	}

	return Read(data, filepath.Dir(absPath))
}

// Expectation declares what a scenario's transcript must look like. Every
// field is optional; an absent field imposes no constraint.
type Expectation struct {
	MustCallTools    []string `json:"must_call_tools,omitempty"`
	MustNotCallTools []string `json:"must_not_call_tools,omitempty"`
	ShouldCallTools  []string `json:"should_call_tools,omitempty"`

	// Approval gate: tools listed in MustNotCallToolsBeforeApproval must
	// never fire in a turn with index < ApprovalTurn, and tools listed in
	// MustCallToolsAfterApproval must appear somewhere from ApprovalTurn on.
	ApprovalTurn                   *int     `json:"approval_turn,omitempty"`
	MustNotCallToolsBeforeApproval []string `json:"must_not_call_tools_before_approval,omitempty"`
	MustCallToolsAfterApproval     []string `json:"must_call_tools_after_approval,omitempty"`

	MustIncludeAny              [][]string `json:"must_include_any,omitempty"`
	ShouldIncludeAny            [][]string `json:"should_include_any,omitempty"`
	MustIncludeAnyAfterApproval [][]string `json:"must_include_any_after_approval,omitempty"`

	MustAskQuestions   *QuestionExpectation `json:"must_ask_questions,omitempty"`
	ShouldAskQuestions *QuestionExpectation `json:"should_ask_questions,omitempty"`

	MustNotIncludePatterns []string `json:"must_not_include_patterns,omitempty"`

	Style *StyleExpectation `json:"style,omitempty"`

	compiledPatterns []*regexp.Regexp
}

type QuestionExpectation struct {
	MinQuestions int `json:"min_questions,omitempty"`
}

// Min returns the effective minimum question count.
func (q *QuestionExpectation) Min() int {
	if q.MinQuestions <= 0 {
		return 1
	}
	return q.MinQuestions
}

type StyleExpectation struct {
	PreferNumberedSteps bool `json:"prefer_numbered_steps,omitempty"`
}

// Compile builds the case-insensitive safety patterns. A pattern that fails
// to compile is a configuration error.
func (e *Expectation) Compile() error {
	e.compiledPatterns = make([]*regexp.Regexp, 0, len(e.MustNotIncludePatterns))
	for _, p := range e.MustNotIncludePatterns {
		rx, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return fmt.Errorf("invalid must_not_include_patterns entry '%s': %w", p, err)
		}
		e.compiledPatterns = append(e.compiledPatterns, rx)
	}
	return nil
}
