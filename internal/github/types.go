package github

import "time"

// Run status values reported by the API.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Run conclusion values reported by the API.
const (
	ConclusionSuccess        = "success"
	ConclusionFailure        = "failure"
	ConclusionNeutral        = "neutral"
	ConclusionSkipped        = "skipped"
	ConclusionCancelled      = "cancelled"
	ConclusionTimedOut       = "timed_out"
	ConclusionActionRequired = "action_required"
	ConclusionStartupFailure = "startup_failure"
	ConclusionStale          = "stale"
)

// RunStatus is the verdict for the latest completed run of a workflow on one branch.
type RunStatus int

const (
	RunUnknown RunStatus = iota
	RunSucceeded
	RunFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunSucceeded:
		return "succeeded"
	case RunFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WorkflowRun represents a GitHub Actions workflow run.
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	HeadBranch string    `json:"head_branch"`
	Event      string    `json:"event"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RunsResponse is the payload of the workflow runs listing endpoint.
type RunsResponse struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

// Repository holds the fields read from the repository endpoint.
type Repository struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

// StatusOf maps a run to a verdict. Runs that have not completed are unknown.
func StatusOf(run *WorkflowRun) RunStatus {
	if run == nil || run.Status != StatusCompleted {
		return RunUnknown
	}

	switch run.Conclusion {
	case ConclusionSuccess, ConclusionNeutral, ConclusionSkipped:
		return RunSucceeded
	case ConclusionFailure, ConclusionTimedOut, ConclusionStartupFailure:
		return RunFailed
	default:
		return RunUnknown
	}
}
