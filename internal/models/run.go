package models

import "time"

type RunStatus string

const (
	RunCompleted      RunStatus = "completed"
	RunSkipped        RunStatus = "skipped"
	RunPartialFailure RunStatus = "partial_failure"
	RunFailed         RunStatus = "failed"
)

// RunResult is the outcome of one pipeline run. A run always yields one.
type RunResult struct {
	RunID      string    `json:"run_id"`
	Period     Period    `json:"period"`
	Policy     Policy    `json:"policy"`
	Status     RunStatus `json:"status"`
	Pages      int       `json:"pages"`
	Fetched    int       `json:"fetched"`
	Staged     int       `json:"staged"`
	Attempted  int       `json:"attempted"`
	Committed  int       `json:"committed"`
	Defects    []Defect  `json:"defects"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r RunResult) OK() bool {
	return r.Status == RunCompleted || r.Status == RunSkipped
}
