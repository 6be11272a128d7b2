package pipeline

import "time"

// Outcome is how a run ended
type Outcome string

const (
	// OutcomeWritten means the merged dataset was written to the output path
	OutcomeWritten Outcome = "written"
	// OutcomeNothingToWrite means the rules workbook had no sheets; no file
	// was written and the run is not a failure
	OutcomeNothingToWrite Outcome = "nothing_to_write"
	// OutcomeFailed means a stage returned an error
	OutcomeFailed Outcome = "failed"
)

// Stage names, in execution order
const (
	StageValidate = "validate"
	StageCleanup  = "cleanup"
	StageLoad     = "load"
	StageFilter   = "filter"
	StageRules    = "rules"
	StageAnnotate = "annotate"
	StageMerge    = "merge"
	StageDedup    = "dedup"
	StageWrite    = "write"
)

// StageStatus represents the current status of a stage
type StageStatus string

const (
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageState records how one stage of a run went
type StageState struct {
	Name     string        `json:"name"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// RuleSetSummary reports one rule set's indicator count
type RuleSetSummary struct {
	Name      string `json:"name"`
	Indicator string `json:"indicator"`
	Hits      int    `json:"hits"`
}

// Result describes a finished run, successful or not
type Result struct {
	RunID        string           `json:"run_id"`
	Outcome      Outcome          `json:"outcome"`
	InputPath    string           `json:"input_path,omitempty"`
	RulesPath    string           `json:"rules_path,omitempty"`
	OutputPath   string           `json:"output_path,omitempty"`
	RowsLoaded   int              `json:"rows_loaded"`
	RowsFiltered int              `json:"rows_filtered"`
	RowsMerged   int              `json:"rows_merged"`
	RowsWritten  int              `json:"rows_written"`
	RuleSets     []RuleSetSummary `json:"rule_sets,omitempty"`
	Deleted      []string         `json:"deleted,omitempty"`
	Stages       []StageState     `json:"stages"`
	Error        string           `json:"error,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// Duration returns the run's wall time
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Stage returns the recorded state of the named stage
func (r *Result) Stage(name string) (StageState, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageState{}, false
}
